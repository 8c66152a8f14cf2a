package pipeline

import "slices"

// State is the UI state that shapes the view but is never exported: which
// branches are collapsed and which nodes show their detail bullets
type State struct {
	CollapsedThreats      []string `json:"collapsedThreats"`
	CollapsedConsequences []string `json:"collapsedConsequences"`
	Expanded              []string `json:"expanded"`
}

// Clone returns an independent copy
func (s State) Clone() State {
	return State{
		CollapsedThreats:      append([]string(nil), s.CollapsedThreats...),
		CollapsedConsequences: append([]string(nil), s.CollapsedConsequences...),
		Expanded:              append([]string(nil), s.Expanded...),
	}
}

// Collapsed reports whether id is a collapsed anchor on either side
func (s State) Collapsed(id string) bool {
	return contains(s.CollapsedThreats, id) || contains(s.CollapsedConsequences, id)
}

// IsExpanded reports whether id shows its details
func (s State) IsExpanded(id string) bool {
	return contains(s.Expanded, id)
}

// Empty reports whether nothing is collapsed or expanded
func (s State) Empty() bool {
	return len(s.CollapsedThreats) == 0 && len(s.CollapsedConsequences) == 0 && len(s.Expanded) == 0
}

// Forget drops id from every set, used when a node is deleted
func (s State) Forget(id string) State {
	return State{
		CollapsedThreats:      remove(s.CollapsedThreats, id),
		CollapsedConsequences: remove(s.CollapsedConsequences, id),
		Expanded:              remove(s.Expanded, id),
	}
}

func (s State) expandedSet() map[string]bool {
	set := make(map[string]bool, len(s.Expanded))
	for _, id := range s.Expanded {
		set[id] = true
	}
	return set
}

// Toggle adds id to the list if absent, otherwise removes it
func Toggle(list []string, id string) []string {
	if contains(list, id) {
		return remove(list, id)
	}
	return append(append([]string(nil), list...), id)
}

func contains(list []string, id string) bool {
	return slices.Contains(list, id)
}

func remove(list []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(list), func(v string) bool { return v == id })
}
