package session

import (
	"sync"
	"sync/atomic"

	"drawing-interpreter/internal/interpreter/models"
)

// ============================================================
// Observer
// ============================================================

// Observer receives advisory notifications in emission order. Calls are
// made on the interpreting goroutine, so implementations must return
// promptly.
//
// ElementRecognized fires once per element after every view has been
// matched and its dimensions attached, between the match and correlate
// progress milestones, in the order of the result's RecognizedElements.
// Matching runs units concurrently, so elements are not reported while a
// unit is still consuming geometry. CorrelationFound fires the same way
// after correlation.
type Observer interface {
	Progress(percent int, stage string)
	ElementRecognized(e models.RecognizedElement)
	CorrelationFound(c models.ViewCorrelation)
}

// Progress milestones.
const (
	ProgressClassify  = 5
	ProgressLevels    = 15
	ProgressMatch     = 20
	ProgressCorrelate = 75
	ProgressMerge     = 85
	ProgressValidate  = 95
	ProgressDone      = 100
)

type NopObserver struct{}

func (NopObserver) Progress(int, string)                       {}
func (NopObserver) ElementRecognized(models.RecognizedElement) {}
func (NopObserver) CorrelationFound(models.ViewCorrelation)    {}

// Observers fans out to each observer in order.
type Observers []Observer

func (obs Observers) Progress(percent int, stage string) {
	for _, o := range obs {
		o.Progress(percent, stage)
	}
}

func (obs Observers) ElementRecognized(e models.RecognizedElement) {
	for _, o := range obs {
		o.ElementRecognized(e)
	}
}

func (obs Observers) CorrelationFound(c models.ViewCorrelation) {
	for _, o := range obs {
		o.CorrelationFound(c)
	}
}

// ============================================================
// Events
// ============================================================

type EventKind string

const (
	EventProgress    EventKind = "progress"
	EventElement     EventKind = "element_recognized"
	EventCorrelation EventKind = "correlation_found"
)

type Event struct {
	Kind        EventKind                 `json:"kind"`
	Percent     int                       `json:"percent,omitempty"`
	Stage       string                    `json:"stage,omitempty"`
	Element     *models.RecognizedElement `json:"element,omitempty"`
	Correlation *models.ViewCorrelation   `json:"correlation,omitempty"`
}

// Stream forwards events to a buffered channel the caller drains. A full
// buffer drops the event instead of blocking the pipeline.
type Stream struct {
	ch      chan Event
	dropped atomic.Int64
	once    sync.Once
}

func NewStream(buffer int) *Stream {
	return &Stream{ch: make(chan Event, buffer)}
}

func (s *Stream) Events() <-chan Event { return s.ch }

// Dropped counts events lost to a full buffer.
func (s *Stream) Dropped() int64 { return s.dropped.Load() }

// Close must be called once interpretation has returned.
func (s *Stream) Close() {
	s.once.Do(func() { close(s.ch) })
}

func (s *Stream) send(e Event) {
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

func (s *Stream) Progress(percent int, stage string) {
	s.send(Event{Kind: EventProgress, Percent: percent, Stage: stage})
}

func (s *Stream) ElementRecognized(e models.RecognizedElement) {
	s.send(Event{Kind: EventElement, Element: &e})
}

func (s *Stream) CorrelationFound(c models.ViewCorrelation) {
	s.send(Event{Kind: EventCorrelation, Correlation: &c})
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Progress(percent int, stage string) {
	r.add(Event{Kind: EventProgress, Percent: percent, Stage: stage})
}

func (r *Recorder) ElementRecognized(e models.RecognizedElement) {
	r.add(Event{Kind: EventElement, Element: &e})
}

func (r *Recorder) CorrelationFound(c models.ViewCorrelation) {
	r.add(Event{Kind: EventCorrelation, Correlation: &c})
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Percents lists the progress milestones seen so far.
func (r *Recorder) Percents() []int {
	var out []int
	for _, e := range r.Events() {
		if e.Kind == EventProgress {
			out = append(out, e.Percent)
		}
	}
	return out
}
