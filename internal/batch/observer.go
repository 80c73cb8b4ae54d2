package batch

import (
	"time"

	"github.com/kozaktomas/fusion-batch/internal/shell"
)

// EventType names a progress event emitted by the driver.
type EventType string

const (
	EventBatchStarted  EventType = "batch_started"
	EventTaskStarted   EventType = "task_started"
	EventStage         EventType = "stage"
	EventTaskFinished  EventType = "task_finished"
	EventSourceDeleted EventType = "source_deleted"
	EventSweep         EventType = "sweep"
	EventBatchFinished EventType = "batch_finished"
)

// Event is one progress notification. Index is zero-based; Total is the
// number of tasks in the plan.
type Event struct {
	Type    EventType         `json:"type"`
	Kind    Kind              `json:"kind"`
	Index   int               `json:"index"`
	Total   int               `json:"total"`
	Task    *Task             `json:"task,omitempty"`
	Stage   string            `json:"stage,omitempty"`
	Status  TaskStatus        `json:"status,omitempty"`
	Error   string            `json:"error,omitempty"`
	Log     *shell.CommandLog `json:"log,omitempty"`
	Path    string            `json:"path,omitempty"`
	Summary *Summary          `json:"summary,omitempty"`
	Elapsed time.Duration     `json:"elapsed,omitempty"`
	Time    time.Time         `json:"time"`
}

// Observer receives progress events. Observe is called synchronously from
// the goroutine running the batch.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers fans an event out to every non-nil observer in order.
type Observers []Observer

// Observe implements Observer.
func (o Observers) Observe(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(e)
		}
	}
}
