package worker

import (
	"time"
)

// What caused a run.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerWatch    = "watch"
)

// Job asks the worker to apply retention to one series.
type Job struct {
	Series  string
	Trigger string
	At      time.Time
}
