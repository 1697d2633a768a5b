package domain

import "time"

// Snapshot identifies one persisted tier file.
type Snapshot struct {
	Tier Tier
	Tag  string
	Path string
}

// RunStatus is the lifecycle state of a medallion run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run records one pass of a raw payload through every tier.
type Run struct {
	ID          string
	Source      string // bronze snapshot tag or topic/partition/offset
	Tag         string // snapshot tag shared by every tier the run wrote
	Status      RunStatus
	StartedAt   time.Time
	FinishedAt  time.Time
	SilverRows  int
	HourlyRows  int
	DailyRows   int
	MLReadyRows int
	Error       string
}

// TagLayout formats snapshot tags. Tags sort lexicographically in time order.
const TagLayout = "20060102T150405.000000Z"

// SnapshotTag formats t as a snapshot tag.
func SnapshotTag(t time.Time) string {
	return t.UTC().Format(TagLayout)
}
