package editor

import "errors"

var (
	ErrNodeNotFound      = errors.New("node not found")
	ErrEdgeNotFound      = errors.New("edge not found")
	ErrSyntheticEdge     = errors.New("edge is a synthetic collapse edge")
	ErrDuplicateTopEvent = errors.New("diagram already has a top event")
	ErrInvalidConnection = errors.New("invalid connection")
	ErrInvalidKind       = errors.New("invalid node kind")
	ErrNotBarrier        = errors.New("node is not a barrier")
	ErrNotCollapsible    = errors.New("only threats and consequences can be collapsed")
	ErrInvalidRisk       = errors.New("severity and likelihood must be between 1 and 5")
)
