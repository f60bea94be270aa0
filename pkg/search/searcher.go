package search

import (
	"context"
	"sync"

	"github.com/seekerror/logw"
)

// Subject multiplexes search events to any number of attached observers, in
// attachment order.
type Subject struct {
	observers []Observer
	mu        sync.Mutex
}

// Attach subscribes the observer to subsequent events.
func (s *Subject) Attach(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers = append(s.observers, o)
}

// Detach unsubscribes the observer.
func (s *Subject) Detach(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, cur := range s.observers {
		if cur == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *Subject) snapshot() []Observer {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Observer(nil), s.observers...)
}

func (s *Subject) SearchStarted() {
	for _, o := range s.snapshot() {
		o.SearchStarted()
	}
}

func (s *Subject) IterationStarted(depth int) {
	for _, o := range s.snapshot() {
		o.IterationStarted(depth)
	}
}

func (s *Subject) NewBestMove(pv PV) {
	for _, o := range s.snapshot() {
		o.NewBestMove(pv)
	}
}

func (s *Subject) IterationCompleted(pv PV) {
	for _, o := range s.snapshot() {
		o.IterationCompleted(pv)
	}
}

func (s *Subject) SearchCompleted(pv PV, stats Stats) {
	for _, o := range s.snapshot() {
		o.SearchCompleted(pv, stats)
	}
}

// Searcher runs searches on a background worker goroutine, at most one at a time,
// and forwards their events to the attached observers.
type Searcher struct {
	Subject

	current *Search
	done    chan struct{}
	runMu   sync.Mutex
}

// Start launches the search on the worker. The previous search, if any, must have
// ended.
func (s *Searcher) Start(ctx context.Context, search *Search) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.current != nil {
		// The previous search has delivered its completion event by the time a new
		// one can start; wait out the last instants of its goroutine.
		<-s.done
	}

	done := make(chan struct{})
	s.current = search
	s.done = done

	go func() {
		defer close(done)
		search.Run(ctx, &s.Subject)
		logw.Debugf(ctx, "Search worker exited")
	}()
}

// Stop requests the running search, if any, to halt. It does not wait.
func (s *Searcher) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.current != nil {
		s.current.Halt()
	}
}

// Wait blocks until the running search, if any, has fully unwound and its
// completion event has been delivered.
func (s *Searcher) Wait() {
	s.runMu.Lock()
	done := s.done
	s.runMu.Unlock()

	if done != nil {
		<-done
	}
}
