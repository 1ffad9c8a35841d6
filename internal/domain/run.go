package domain

import "time"

// ItemState tracks a card through the pipeline. States only move forward.
type ItemState string

const (
	StatePending    ItemState = "pending"
	StateResearched ItemState = "researched"
	StateDrafted    ItemState = "drafted"
	StatePublished  ItemState = "published"
)

var stateOrder = map[ItemState]int{
	StatePending:    0,
	StateResearched: 1,
	StateDrafted:    2,
	StatePublished:  3,
}

// Reached reports whether s is at or past target.
func (s ItemState) Reached(target ItemState) bool {
	return stateOrder[s] >= stateOrder[target]
}

// RunStatus is the overall outcome of one invocation.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run identifies one pipeline invocation.
type Run struct {
	ID        string
	Command   string
	StartedAt time.Time
}

// RunItem is the persisted progress of one card within a run.
type RunItem struct {
	RunID     string
	Position  int
	Item      WorkItem
	State     ItemState
	Findings  ResearchFindings
	Article   Article
	UpdatedAt time.Time
}

// RunRecord is a run as loaded back from the ledger.
type RunRecord struct {
	Run        Run
	Status     RunStatus
	Error      string
	FinishedAt time.Time
	Items      []RunItem
}
