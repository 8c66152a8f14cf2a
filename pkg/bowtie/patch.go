package bowtie

// BarrierPatch is a partial update of a barrier's metadata. Nil fields are
// left alone.
type BarrierPatch struct {
	BarrierType       *BarrierType `json:"barrierType,omitempty" validate:"omitempty,oneof=preventive mitigative"`
	Failed            *bool        `json:"failed,omitempty"`
	Medium            *Medium      `json:"medium,omitempty" validate:"omitempty,oneof=human hardware human-hardware"`
	ResponsibleParty  *string      `json:"responsibleParty,omitempty" validate:"omitempty,max=200"`
	ShowMetadataBlock *bool        `json:"showMetadataBlock,omitempty"`
	Effectiveness     *int         `json:"effectiveness,omitempty" validate:"omitempty,min=0,max=100"`
}

// Empty reports whether the patch changes nothing
func (p BarrierPatch) Empty() bool {
	return p.BarrierType == nil && p.Failed == nil && p.Medium == nil &&
		p.ResponsibleParty == nil && p.ShowMetadataBlock == nil && p.Effectiveness == nil
}

// Apply writes the set fields into m
func (p BarrierPatch) Apply(m *NodeMeta) {
	if p.BarrierType != nil {
		m.BarrierType = *p.BarrierType
	}
	if p.Failed != nil {
		m.Failed = *p.Failed
	}
	if p.Medium != nil {
		m.Medium = *p.Medium
	}
	if p.ResponsibleParty != nil {
		m.ResponsibleParty = *p.ResponsibleParty
	}
	if p.ShowMetadataBlock != nil {
		show := *p.ShowMetadataBlock
		m.ShowMetadataBlock = &show
	}
	if p.Effectiveness != nil {
		m.Effectiveness = *p.Effectiveness
	}
}
