package browser

import "sync"

// EventType discriminates the refresh lifecycle stream.
type EventType int

const (
	Any EventType = iota
	CycleStarted
	ServerUpdated
	ProgressChanged
	CycleFinished
)

// CycleState is the refresh orchestrator state machine.
type CycleState int

const (
	Idle CycleState = iota
	FetchingMaster
	QueryingServers
	Completed
	Failed
	Cancelled
)

func (s CycleState) String() string {
	switch s {
	case FetchingMaster:
		return "fetching master"
	case QueryingServers:
		return "querying servers"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	case Idle:
		fallthrough
	default:
		return "idle"
	}
}

// Progress is the percent-complete signal of one cycle.
type Progress struct {
	Done  int
	Total int
}

// Percent is the completed share in 0-100.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 100
	}

	return clamp(p.Done*100/p.Total, 0, 100)
}

// Summary is the terminal report of one refresh cycle.
type Summary struct {
	State     CycleState
	Queried   int
	Succeeded int
	Failures  int
	Err       error
}

// Event is one message of the change stream consumed by the UI layer.
type Event struct {
	Type     EventType
	Record   ServerRecord
	Progress Progress
	Summary  Summary
}

// Broadcaster fans events out to registered listener channels by type.
type Broadcaster struct {
	readersAny []chan<- Event
	readers    map[EventType][]chan<- Event
	readersMu  sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{readers: map[EventType][]chan<- Event{}}
}

// ListenFor registers handler for one event type, or every event when
// the type is Any.
func (b *Broadcaster) ListenFor(eventType EventType, handler chan<- Event) {
	b.readersMu.Lock()
	defer b.readersMu.Unlock()

	if eventType == Any {
		b.readersAny = append(b.readersAny, handler)

		return
	}

	b.readers[eventType] = append(b.readers[eventType], handler)
}

// Send delivers event to every matching listener. Listeners are expected
// to keep draining their channels.
func (b *Broadcaster) Send(event Event) {
	b.readersMu.RLock()
	defer b.readersMu.RUnlock()

	for _, handler := range b.readers[event.Type] {
		handler <- event
	}
	for _, handler := range b.readersAny {
		handler <- event
	}
}
