// Package events defines the pipeline phase events emitted during an
// optimization run. Presentation layers subscribe to the bus; the core
// never blocks on a slow consumer.
package events

import (
	"sync"
	"time"
)

// EventType identifies a pipeline phase completion
type EventType string

const (
	// DataReady - historical statistics derived, dropped tickers known
	DataReady EventType = "data_ready"
	// BackendSelected - expectation evaluator target decided
	BackendSelected EventType = "backend_selected"
	// QuantumDone - variational loop finished, allocation decoded
	QuantumDone EventType = "quantum_done"
	// ClassicalDone - continuous weights solved
	ClassicalDone EventType = "classical_done"
	// ResultAssembled - full response built
	ResultAssembled EventType = "result_assembled"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// Event is a single phase completion, stamped at publish time
type Event struct {
	Type      EventType
	RunID     string
	Timestamp time.Time
	Data      EventData
}

// DataReadyData contains data for DataReady events
type DataReadyData struct {
	Tickers []string `json:"tickers"`
	Dropped []string `json:"dropped"`
	Days    int      `json:"days"`
}

// EventType returns the event type for DataReadyData
func (d *DataReadyData) EventType() EventType { return DataReady }

// BackendSelectedData contains data for BackendSelected events
type BackendSelectedData struct {
	Backend  string `json:"backend"`
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}

// EventType returns the event type for BackendSelectedData
func (d *BackendSelectedData) EventType() EventType { return BackendSelected }

// QuantumDoneData contains data for QuantumDone events
type QuantumDoneData struct {
	Selected   int  `json:"selected"`
	Iterations int  `json:"iterations"`
	Degenerate bool `json:"degenerate"`
}

// EventType returns the event type for QuantumDoneData
func (d *QuantumDoneData) EventType() EventType { return QuantumDone }

// ClassicalDoneData contains data for ClassicalDone events
type ClassicalDoneData struct {
	Objective float64 `json:"objective"`
}

// EventType returns the event type for ClassicalDoneData
func (d *ClassicalDoneData) EventType() EventType { return ClassicalDone }

// ResultAssembledData contains data for ResultAssembled events
type ResultAssembledData struct {
	Elapsed time.Duration `json:"elapsed"`
}

// EventType returns the event type for ResultAssembledData
func (d *ResultAssembledData) EventType() EventType { return ResultAssembled }

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a buffered channel that receives future events
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 16)
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if (<-chan Event)(sub) == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Publish sends an event to all subscribers without blocking
func (b *Bus) Publish(runID string, data EventData) {
	evt := Event{
		Type:      data.EventType(),
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
