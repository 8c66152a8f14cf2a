// Package graphql exposes a read-only GraphQL API over evaluated diagrams.
package graphql

import (
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/dd0wney/cluso-bowtie/pkg/pipeline"
	"github.com/dd0wney/cluso-bowtie/pkg/propagation"
	"github.com/graphql-go/graphql"
)

// Source supplies the latest view of each diagram
type Source interface {
	View(id string) (*pipeline.View, bool)
	IDs() []string
}

type diagram struct {
	id   string
	view *pipeline.View
}

type breachReport struct {
	diagramID string
	report    *propagation.Report
}

func nodeField(typ graphql.Output, get func(n bowtie.Node) any) *graphql.Field {
	return &graphql.Field{
		Type: typ,
		Resolve: func(p graphql.ResolveParams) (any, error) {
			if n, ok := p.Source.(bowtie.Node); ok {
				return get(n), nil
			}
			return nil, nil
		},
	}
}

func edgeField(typ graphql.Output, get func(e bowtie.Edge) any) *graphql.Field {
	return &graphql.Field{
		Type: typ,
		Resolve: func(p graphql.ResolveParams) (any, error) {
			if e, ok := p.Source.(bowtie.Edge); ok {
				return get(e), nil
			}
			return nil, nil
		},
	}
}

var nodeType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Node",
	Fields: graphql.Fields{
		"id":                nodeField(graphql.NewNonNull(graphql.ID), func(n bowtie.Node) any { return n.ID }),
		"kind":              nodeField(graphql.String, func(n bowtie.Node) any { return string(n.Kind()) }),
		"label":             nodeField(graphql.String, func(n bowtie.Node) any { return n.Data.Label }),
		"baseLabel":         nodeField(graphql.String, func(n bowtie.Node) any { return n.Data.BaseLabel }),
		"x":                 nodeField(graphql.Float, func(n bowtie.Node) any { return n.Position.X }),
		"y":                 nodeField(graphql.Float, func(n bowtie.Node) any { return n.Position.Y }),
		"hidden":            nodeField(graphql.Boolean, func(n bowtie.Node) any { return n.Hidden }),
		"highlighted":       nodeField(graphql.Boolean, func(n bowtie.Node) any { return n.Data.Meta.Highlighted }),
		"breached":          nodeField(graphql.Boolean, func(n bowtie.Node) any { return n.Data.Meta.Breached }),
		"partiallyBreached": nodeField(graphql.Boolean, func(n bowtie.Node) any { return n.Data.Meta.PartiallyBreached }),
		"failed":            nodeField(graphql.Boolean, func(n bowtie.Node) any { return n.Data.Meta.Failed }),
		"barrierType":       nodeField(graphql.String, func(n bowtie.Node) any { return string(n.Data.Meta.BarrierType) }),
		"medium":            nodeField(graphql.String, func(n bowtie.Node) any { return string(n.Data.Meta.Medium) }),
		"responsibleParty":  nodeField(graphql.String, func(n bowtie.Node) any { return n.Data.Meta.ResponsibleParty }),
		"effectiveness":     nodeField(graphql.Int, func(n bowtie.Node) any { return n.Data.Meta.Effectiveness }),
		"severity":          nodeField(graphql.Int, func(n bowtie.Node) any { return n.Data.Meta.Severity }),
		"likelihood":        nodeField(graphql.Int, func(n bowtie.Node) any { return n.Data.Meta.Likelihood }),
		"baseRisk":          nodeField(graphql.Float, func(n bowtie.Node) any { return n.Data.Meta.BaseRisk }),
		"residualRisk":      nodeField(graphql.Float, func(n bowtie.Node) any { return n.Data.Meta.ResidualRisk }),
		"details":           nodeField(graphql.NewList(graphql.String), func(n bowtie.Node) any { return n.Data.Meta.Details }),
	},
})

var edgeType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Edge",
	Fields: graphql.Fields{
		"id":          edgeField(graphql.NewNonNull(graphql.ID), func(e bowtie.Edge) any { return e.ID }),
		"source":      edgeField(graphql.NewNonNull(graphql.ID), func(e bowtie.Edge) any { return e.Source }),
		"target":      edgeField(graphql.NewNonNull(graphql.ID), func(e bowtie.Edge) any { return e.Target }),
		"hot":         edgeField(graphql.Boolean, func(e bowtie.Edge) any { return e.Data.Hot }),
		"synthetic":   edgeField(graphql.Boolean, func(e bowtie.Edge) any { return e.Data.SyntheticCollapse }),
		"highlighted": edgeField(graphql.Boolean, func(e bowtie.Edge) any { return e.Data.Highlighted }),
	},
})

var issueType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Issue",
	Fields: graphql.Fields{
		"code": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (any, error) {
			return string(p.Source.(bowtie.Issue).Code), nil
		}},
		"nodeId":  &graphql.Field{Type: graphql.ID},
		"edgeId":  &graphql.Field{Type: graphql.ID},
		"message": &graphql.Field{Type: graphql.String},
	},
})

var pathType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Path",
	Fields: graphql.Fields{
		"threat": &graphql.Field{Type: graphql.ID},
		"verdict": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (any, error) {
			return string(p.Source.(propagation.PathResult).Verdict), nil
		}},
		"nodes":     &graphql.Field{Type: graphql.NewList(graphql.ID)},
		"edges":     &graphql.Field{Type: graphql.NewList(graphql.ID)},
		"blockedBy": &graphql.Field{Type: graphql.ID},
		"hotEdges":  &graphql.Field{Type: graphql.NewList(graphql.ID)},
	},
})

func reportField(typ graphql.Output, get func(r *propagation.Report) any) *graphql.Field {
	return &graphql.Field{
		Type: typ,
		Resolve: func(p graphql.ResolveParams) (any, error) {
			if b, ok := p.Source.(breachReport); ok {
				return get(b.report), nil
			}
			return nil, nil
		},
	}
}

// sortedKeys lists the true entries of a set in a stable order
func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k, v := range set {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

var breachReportType = graphql.NewObject(graphql.ObjectConfig{
	Name: "BreachReport",
	Fields: graphql.Fields{
		"diagramId": &graphql.Field{Type: graphql.ID, Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(breachReport).diagramID, nil
		}},
		"topEventId":        reportField(graphql.ID, func(r *propagation.Report) any { return r.TopEventID }),
		"topEventBreached":  reportField(graphql.Boolean, func(r *propagation.Report) any { return r.TopEventBreached }),
		"truncated":         reportField(graphql.Boolean, func(r *propagation.Report) any { return r.Truncated }),
		"breached":          reportField(graphql.NewList(graphql.ID), func(r *propagation.Report) any { return sortedKeys(r.Breached) }),
		"partiallyBreached": reportField(graphql.NewList(graphql.ID), func(r *propagation.Report) any { return sortedKeys(r.PartiallyBreached) }),
		"hotEdges":          reportField(graphql.NewList(graphql.ID), func(r *propagation.Report) any { return sortedKeys(r.HotEdges) }),
		"safePaths":         reportField(graphql.Int, func(r *propagation.Report) any { return r.Count(propagation.VerdictSafe) }),
		"partialPaths":      reportField(graphql.Int, func(r *propagation.Report) any { return r.Count(propagation.VerdictPartial) }),
		"fullPaths":         reportField(graphql.Int, func(r *propagation.Report) any { return r.Count(propagation.VerdictFull) }),
		"paths": &graphql.Field{
			Type: graphql.NewList(pathType),
			Args: graphql.FieldConfigArgument{
				"verdict": &graphql.ArgumentConfig{Type: graphql.String},
			},
			Resolve: func(p graphql.ResolveParams) (any, error) {
				b, ok := p.Source.(breachReport)
				if !ok {
					return nil, nil
				}
				verdict, _ := p.Args["verdict"].(string)
				if verdict == "" {
					return b.report.Paths, nil
				}
				var out []propagation.PathResult
				for _, path := range b.report.Paths {
					if string(path.Verdict) == verdict {
						out = append(out, path)
					}
				}
				return out, nil
			},
		},
	},
})

var diagramType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Diagram",
	Fields: graphql.Fields{
		"id": &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(diagram).id, nil
		}},
		"topEventId": &graphql.Field{Type: graphql.ID, Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(diagram).view.Report.TopEventID, nil
		}},
		"topEventBreached": &graphql.Field{Type: graphql.Boolean, Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(diagram).view.Report.TopEventBreached, nil
		}},
		"nodes": &graphql.Field{
			Type: graphql.NewList(nodeType),
			Args: graphql.FieldConfigArgument{
				"kind":     &graphql.ArgumentConfig{Type: graphql.String},
				"breached": &graphql.ArgumentConfig{Type: graphql.Boolean},
			},
			Resolve: func(p graphql.ResolveParams) (any, error) {
				kind, hasKind := p.Args["kind"].(string)
				breached, hasBreached := p.Args["breached"].(bool)
				var out []bowtie.Node
				for _, n := range p.Source.(diagram).view.Graph.Nodes {
					if hasKind && string(n.Kind()) != kind {
						continue
					}
					if hasBreached && n.Data.Meta.Breached != breached {
						continue
					}
					out = append(out, n)
				}
				return out, nil
			},
		},
		"edges": &graphql.Field{Type: graphql.NewList(edgeType), Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(diagram).view.Graph.Edges, nil
		}},
		"issues": &graphql.Field{Type: graphql.NewList(issueType), Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(diagram).view.Issues, nil
		}},
		"breachReport": &graphql.Field{Type: breachReportType, Resolve: func(p graphql.ResolveParams) (any, error) {
			d := p.Source.(diagram)
			return breachReport{diagramID: d.id, report: d.view.Report}, nil
		}},
	},
})

// GenerateSchema builds the query schema over src
func GenerateSchema(src Source) (graphql.Schema, error) {
	idArg := graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"health": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return "ok", nil
				},
			},
			"diagram": &graphql.Field{
				Type: diagramType,
				Args: idArg,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, _ := p.Args["id"].(string)
					if v, ok := src.View(id); ok {
						return diagram{id: id, view: v}, nil
					}
					return nil, nil
				},
			},
			"diagrams": &graphql.Field{
				Type: graphql.NewList(diagramType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					var out []diagram
					for _, id := range src.IDs() {
						if v, ok := src.View(id); ok {
							out = append(out, diagram{id: id, view: v})
						}
					}
					return out, nil
				},
			},
			"breachReport": &graphql.Field{
				Type: breachReportType,
				Args: idArg,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, _ := p.Args["id"].(string)
					if v, ok := src.View(id); ok {
						return breachReport{diagramID: id, report: v.Report}, nil
					}
					return nil, nil
				},
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("failed to create schema: %w", err)
	}
	return schema, nil
}
