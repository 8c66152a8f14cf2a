// Package validation checks imported documents, mutation requests and
// configuration before they reach the engine.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate = validator.New()

	// Limits on what a single diagram may hold
	MaxNodes       = 1000
	MaxEdges       = 4000
	MaxIDLength    = 128
	MaxLabelLength = 200
)

// ErrInvalidDocument wraps every document validation failure
var ErrInvalidDocument = errors.New("invalid document")

// ValidateDocument checks an import document field by field and then as a
// diagram: ids unique, every kind recognised, at most one top event.
// Dangling edges are not errors here; they surface as warnings after import.
func ValidateDocument(doc *bowtie.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document cannot be nil", ErrInvalidDocument)
	}
	if err := validate.Struct(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, formatValidationError(err))
	}

	if len(doc.Nodes) > MaxNodes {
		return fmt.Errorf("%w: at most %d nodes allowed, got %d", ErrInvalidDocument, MaxNodes, len(doc.Nodes))
	}
	if len(doc.Edges) > MaxEdges {
		return fmt.Errorf("%w: at most %d edges allowed, got %d", ErrInvalidDocument, MaxEdges, len(doc.Edges))
	}

	ids := make(map[string]bool, len(doc.Nodes))
	var tops []string
	for i, n := range doc.Nodes {
		if len(n.ID) > MaxIDLength {
			return fmt.Errorf("%w: Nodes[%d].ID exceeds %d characters", ErrInvalidDocument, i, MaxIDLength)
		}
		if ids[n.ID] {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidDocument, n.ID)
		}
		ids[n.ID] = true

		kind, err := resolveKind(n)
		if err != nil {
			return fmt.Errorf("%w: Nodes[%d]: %w", ErrInvalidDocument, i, err)
		}
		if kind == bowtie.KindTopEvent {
			tops = append(tops, n.ID)
		}
	}
	if len(tops) > 1 {
		return fmt.Errorf("%w: %d top events (%s); exactly one is allowed",
			ErrInvalidDocument, len(tops), strings.Join(tops, ", "))
	}

	edgeIDs := make(map[string]bool, len(doc.Edges))
	for i, e := range doc.Edges {
		if e.ID == "" {
			continue
		}
		if edgeIDs[e.ID] {
			return fmt.Errorf("%w: Edges[%d]: duplicate edge id %q", ErrInvalidDocument, i, e.ID)
		}
		edgeIDs[e.ID] = true
	}
	return nil
}

// resolveKind accepts an explicit kind (aliases included) or a legacy id
// prefix. A node with neither is tolerated and left for the normalizer to
// report.
func resolveKind(n bowtie.Node) (bowtie.Kind, error) {
	if raw := n.Data.Meta.Kind; raw != "" {
		k, ok := bowtie.ParseKind(string(raw))
		if !ok {
			return bowtie.KindUnknown, fmt.Errorf("node %q has unknown kind %q", n.ID, raw)
		}
		return k, nil
	}
	k, _ := bowtie.InferKind(n.ID)
	return k, nil
}

// formatValidationError converts validator errors to a user friendly message
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Report the first failure only
	for _, e := range validationErrs {
		field := fieldPath(e.Namespace())
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}

// fieldPath drops the root type name: "Document.Nodes[0].ID" → "Nodes[0].ID"
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
