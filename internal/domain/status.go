package domain

// ActionType classifies a mitigation recommendation.
type ActionType string

const (
	ActionTransfer  ActionType = "TRANSFER"
	ActionMarkdown  ActionType = "MARKDOWN"
	ActionLiquidate ActionType = "LIQUIDATE"
)

// ActionStatus is the approval-workflow state of an action. Actions are
// created PROPOSED and become immutable history once DONE.
type ActionStatus string

const (
	ActionProposed ActionStatus = "PROPOSED"
	ActionApproved ActionStatus = "APPROVED"
	ActionRejected ActionStatus = "REJECTED"
	ActionDone     ActionStatus = "DONE"
)

var actionTransitions = map[ActionStatus][]ActionStatus{
	ActionProposed: {ActionApproved, ActionRejected},
	ActionApproved: {ActionDone},
}

// CanTransition reports whether an action may move from one status to another.
func (s ActionStatus) CanTransition(to ActionStatus) bool {
	for _, next := range actionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// JobStatus is the lifecycle state of a job execution.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// Terminal reports whether the execution record may no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ProcessingType names a pipeline stage for change tracking.
type ProcessingType string

const (
	ProcessingFeatures         ProcessingType = "features"
	ProcessingRiskScoring      ProcessingType = "risk_scoring"
	ProcessingActionGeneration ProcessingType = "action_generation"
)

// CostSource tags where a unit cost came from in the fallback chain.
type CostSource string

const (
	CostSourceStoreSKU   CostSource = "store_sku"
	CostSourceSKUAverage CostSource = "sku_average"
	CostSourceDefault    CostSource = "default"
)
