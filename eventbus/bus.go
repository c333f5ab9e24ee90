// Package eventbus provides an in-process fan-out bus for engine lifecycle
// events. Handlers run on their own goroutines, so event ordering across
// handlers is not guaranteed; consumers that need ordering should rely on the
// run context trace instead.
package eventbus

import (
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

// Event you can subscribe to
type Event struct {
	Name string
	At   time.Time
	Args interface{}
}

// NOOPHandler drops events on the floor without taking action
var NOOPHandler = Handler(func(_ Event) error { return nil })

// NopBus is an event bus that discards everything published to it.
var NopBus EventBus = &nopBus{}

type nopBus struct{}

func (n *nopBus) Close() error                { return nil }
func (n *nopBus) Publish(Event)               {}
func (n *nopBus) Subscribe(...EventHandler)   {}
func (n *nopBus) Unsubscribe(...EventHandler) {}
func (n *nopBus) Len() int                    { return 0 }

// Handler wraps a function that will be called when an event is received.
// Errors produced by the wrapped function are passed to the error handler
// configured on the bus.
func Handler(on func(Event) error) EventHandler {
	return &defaultHandler{on: on}
}

type defaultHandler struct {
	on func(Event) error
}

// On event trigger
func (h *defaultHandler) On(event Event) error {
	return h.on(event)
}

// EventHandler deals with handling events
type EventHandler interface {
	On(Event) error
}

// EventPredicate for filtering events
type EventPredicate func(Event) bool

// Filtered composes an event handler with a filter
func Filtered(matches EventPredicate, next EventHandler) EventHandler {
	return &filteredHandler{Matches: matches, Next: next}
}

type filteredHandler struct {
	Next    EventHandler
	Matches EventPredicate
}

func (f *filteredHandler) On(evt Event) error {
	if !f.Matches(evt) {
		return nil
	}
	return f.Next.On(evt)
}

func newSubscription(handler EventHandler, errorHandler func(error)) *eventSubscription {
	return &eventSubscription{
		handler: handler,
		once:    new(sync.Once),
		onError: errorHandler,
	}
}

type eventSubscription struct {
	listener chan Event
	handler  EventHandler
	once     *sync.Once
	onError  func(error)
}

func (e *eventSubscription) Listen() {
	e.once.Do(func() {
		e.listener = make(chan Event)
		go func() {
			for evt := range e.listener {
				if err := e.handler.On(evt); err != nil {
					e.onError(err)
				}
			}
		}()
	})
}

func (e *eventSubscription) Stop() {
	close(e.listener)
	e.listener = nil
	e.once = new(sync.Once)
}

func (e *eventSubscription) Matches(handler EventHandler) bool {
	return e.handler == handler
}

// EventBus does fanout to registered handlers
type EventBus interface {
	Close() error
	Publish(Event)
	Subscribe(...EventHandler)
	Unsubscribe(...EventHandler)
	Len() int
}

type defaultEventBus struct {
	lock *sync.RWMutex

	channel      chan Event
	handlers     []*eventSubscription
	closing      chan chan struct{}
	closed       bool
	log          logrus.FieldLogger
	errorHandler func(error)
}

// New event bus with the specified logger
func New(log logrus.FieldLogger) EventBus {
	return NewWithTimeout(log, 100*time.Millisecond)
}

// NewWithTimeout creates a new eventbus with a timeout after which delivery
// to a handler is abandoned
func NewWithTimeout(log logrus.FieldLogger, timeout time.Duration) EventBus {
	if log == nil {
		log = logrus.New().WithFields(nil)
	}
	e := &defaultEventBus{
		closing:      make(chan chan struct{}),
		channel:      make(chan Event, 100),
		log:          log,
		lock:         new(sync.RWMutex),
		errorHandler: func(err error) { log.Errorln(err) },
	}
	go e.dispatcherLoop(timeout)
	return e
}

func (e *defaultEventBus) dispatcherLoop(timeout time.Duration) {
	totWait := new(sync.WaitGroup)
	for {
		select {
		case evt := <-e.channel:
			e.log.Debugf("got event %+v in channel", evt)
			timer := metrics.GetOrRegisterTimer("events.notify", metrics.DefaultRegistry)
			go timer.Time(func() {
				totWait.Add(1)
				e.lock.RLock()

				noh := len(e.handlers)
				if noh == 0 {
					e.log.Debugf("there are no active listeners, skipping broadcast")
					e.lock.RUnlock()
					totWait.Done()
					return
				}

				var wg sync.WaitGroup
				wg.Add(noh)
				e.log.Debugf("notifying %d listeners", noh)
				for _, handler := range e.handlers {
					go func(listener chan<- Event) {
						timer := time.NewTimer(timeout)
						select {
						case listener <- evt:
							timer.Stop()
						case <-timer.C:
							e.log.Warnf("failed to send event %+v to listener within %v", evt, timeout)
						}
						wg.Done()
					}(handler.listener)
				}

				wg.Wait()
				e.lock.RUnlock()
				totWait.Done()
			})
		case closed := <-e.closing:
			totWait.Wait()
			close(e.channel)
			e.lock.Lock()
			for _, h := range e.handlers {
				h.Stop()
			}
			e.handlers = nil
			e.lock.Unlock()

			closed <- struct{}{}
			e.log.Debug("event bus closed")
			return
		}
	}
}

// SetErrorHandler changes the default error handler which logs as error
// to the new error handler provided to this method
func (e *defaultEventBus) SetErrorHandler(handler func(error)) {
	e.lock.Lock()
	e.errorHandler = handler
	e.lock.Unlock()
}

// Publish an event to all interested subscribers. Events published after the
// bus is closed are dropped.
func (e *defaultEventBus) Publish(evt Event) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	if e.closed {
		return
	}
	e.channel <- evt
}

// Subscribe to events published in the bus
func (e *defaultEventBus) Subscribe(handlers ...EventHandler) {
	e.lock.Lock()
	e.log.Debugf("adding %d listeners", len(handlers))
	for _, handler := range handlers {
		sub := newSubscription(handler, e.errorHandler)
		e.handlers = append(e.handlers, sub)
		sub.Listen()
	}
	e.lock.Unlock()
}

// Unsubscribe the provided handlers from the bus
func (e *defaultEventBus) Unsubscribe(handlers ...EventHandler) {
	e.lock.Lock()
	if len(e.handlers) == 0 {
		e.lock.Unlock()
		return
	}
	e.log.Debugf("removing %d listeners", len(handlers))
	for _, h := range handlers {
		for i, handler := range e.handlers {
			if handler.Matches(h) {
				handler.Stop()
				// the handler may still process messages in flight
				e.handlers = append(e.handlers[:i], e.handlers[i+1:]...)
				break
			}
		}
	}
	e.lock.Unlock()
}

func (e *defaultEventBus) Close() error {
	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		return nil
	}
	e.closed = true
	e.lock.Unlock()

	e.log.Debugf("closing eventbus")
	ch := make(chan struct{})
	e.closing <- ch
	<-ch
	close(e.closing)

	return nil
}

func (e *defaultEventBus) Len() int {
	e.lock.RLock()
	sz := len(e.handlers)
	e.lock.RUnlock()
	return sz
}
