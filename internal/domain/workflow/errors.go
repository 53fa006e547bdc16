package workflow

import "errors"

var (
	ErrInvalidMode       = errors.New("workflow: mode must be onload or offload")
	ErrEmptyQueue        = errors.New("workflow: queue is empty")
	ErrSessionNotActive  = errors.New("workflow: session is not active")
	ErrQueueExhausted    = errors.New("workflow: queue is exhausted")
	ErrVoxelNotSelected  = errors.New("workflow: target voxel not selected")
	ErrNoSession         = errors.New("workflow: no session")
	ErrInvalidQueueEntry = errors.New("workflow: queue entry needs an item id and a non-zero change")
	ErrNoOperator        = errors.New("workflow: operator id is required")
	ErrStepInFlight      = errors.New("workflow: a step is still in flight")
	ErrNotOwner          = errors.New("workflow: session belongs to another operator")
)
