package service

import (
	"fmt"

	"github.com/google/uuid"
)

// Operation is a named request executed by the Record Service.
//
// This is a sealed interface - only types in this package implement it.
type Operation interface {
	// Name identifies the operation in logs and journals.
	Name() string
	operation()
}

// Record state / status pairs used by the operations below.
const (
	StateActive   = 0
	StateInactive = 1

	// Duplicate rules: statecode 1 with statuscode 2 is Published.
	RuleStateUnpublished  = 0
	RuleStatePublished    = 1
	RuleStatusUnpublished = 0
	RuleStatusPublished   = 2

	// Workflows: statecode 1 is Activated, 0 Draft.
	WorkflowStateDraft     = 0
	WorkflowStateActivated = 1
	WorkflowStatusDraft    = 1
	WorkflowStatusActive   = 2

	// SLAs: statecode 1 is Active, 0 Draft.
	SLAStateDraft   = 0
	SLAStateActive  = 1
	SLAStatusDraft  = 1
	SLAStatusActive = 2
)

// SetState changes a record's statecode and statuscode.
type SetState struct {
	Type   string
	ID     uuid.UUID
	State  int
	Status int
}

func (SetState) operation() {}

// Name implements Operation.
func (SetState) Name() string { return "SetState" }

func (o SetState) String() string {
	return fmt.Sprintf("SetState %s %s (%d,%d)", o.Type, o.ID, o.State, o.Status)
}

// PublishDuplicateRule publishes a duplicate detection rule.
type PublishDuplicateRule struct {
	ID uuid.UUID
}

func (PublishDuplicateRule) operation() {}

// Name implements Operation.
func (PublishDuplicateRule) Name() string { return "PublishDuplicateRule" }

// UnpublishDuplicateRule unpublishes a duplicate detection rule.
type UnpublishDuplicateRule struct {
	ID uuid.UUID
}

func (UnpublishDuplicateRule) operation() {}

// Name implements Operation.
func (UnpublishDuplicateRule) Name() string { return "UnpublishDuplicateRule" }

// SetAutoNumberSeed sets the next value of an auto-number attribute.
type SetAutoNumberSeed struct {
	Type      string
	Attribute string
	Value     int64
}

func (SetAutoNumberSeed) operation() {}

// Name implements Operation.
func (SetAutoNumberSeed) Name() string { return "SetAutoNumberSeed" }
