package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"mockbody/internal/handler"
	"mockbody/internal/logger"
	"mockbody/internal/rules"
	"mockbody/pkg/model"
	"mockbody/pkg/traffic"
)

const eventBuffer = 256

// Session owns a set of live mock handlers and the engine view over them.
type Session struct {
	id     model.SessionID
	log    logger.Logger
	opts   handler.Options
	engine *rules.Engine

	mu       sync.RWMutex
	handlers map[model.HandlerID]*handler.MockHandler
	events   chan model.Event
}

func newSession(id model.SessionID, opts handler.Options, l logger.Logger) *Session {
	return &Session{
		id:       id,
		log:      l,
		opts:     opts,
		engine:   rules.New(nil),
		handlers: make(map[model.HandlerID]*handler.MockHandler),
		events:   make(chan model.Event, eventBuffer),
	}
}

func (s *Session) ID() model.SessionID { return s.id }

// Events is the session's notification stream. Sends never block; events
// are dropped when the subscriber lags.
func (s *Session) Events() <-chan model.Event { return s.events }

// PutHandler creates or replaces a handler from its definition and returns
// the (possibly newly assigned) handler ID.
func (s *Session) PutHandler(def model.HandlerDef) model.HandlerID {
	h := handler.New(def, s.opts)

	s.mu.Lock()
	if old, ok := s.handlers[h.ID()]; ok {
		old.Close()
	}
	s.handlers[h.ID()] = h
	s.mu.Unlock()

	s.rebuildEngine()
	s.emit(model.Event{Type: "handler_updated", Handler: h.ID()})
	return h.ID()
}

// RemoveHandler deletes a handler; unknown IDs are a no-op.
func (s *Session) RemoveHandler(id model.HandlerID) bool {
	s.mu.Lock()
	h, ok := s.handlers[id]
	if ok {
		h.Close()
		delete(s.handlers, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.rebuildEngine()
	s.emit(model.Event{Type: "handler_removed", Handler: id})
	return true
}

// Handler looks up a live handler.
func (s *Session) Handler(id model.HandlerID) (*handler.MockHandler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[id]
	return h, ok
}

// Handlers returns the live handlers ordered by descending priority.
func (s *Session) Handlers() []*handler.MockHandler {
	s.mu.RLock()
	out := make([]*handler.MockHandler, 0, len(s.handlers))
	for _, h := range s.handlers {
		out = append(out, h)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Def().Priority > out[j].Def().Priority })
	return out
}

// Resolve evaluates a request against the session's handlers and, on a
// match, materializes that handler's mock response.
func (s *Session) Resolve(ctx context.Context, req *traffic.Request) (*traffic.Response, model.HandlerID, error) {
	res := s.engine.Eval(rules.BuildContext(req))
	if res == nil {
		s.emit(model.Event{Type: "unmatched", URL: req.URL, Method: req.Method})
		return nil, "", nil
	}

	h, ok := s.Handler(res.HandlerID)
	if !ok {
		// Engine view can trail a concurrent removal for one evaluation.
		return nil, "", nil
	}
	response, err := h.Materialize(ctx)
	if err != nil {
		return nil, "", err
	}
	s.emit(model.Event{Type: "matched", Handler: res.HandlerID, URL: req.URL, Method: req.Method})
	return response, res.HandlerID, nil
}

// Stats returns the engine's evaluation counters.
func (s *Session) Stats() model.EngineStats { return s.engine.Stats() }

// Close shuts down all handlers and the event stream.
func (s *Session) Close() {
	s.mu.Lock()
	for _, h := range s.handlers {
		h.Close()
	}
	s.handlers = make(map[model.HandlerID]*handler.MockHandler)
	close(s.events)
	s.events = nil
	s.mu.Unlock()
}

func (s *Session) rebuildEngine() {
	s.mu.RLock()
	defs := make([]model.HandlerDef, 0, len(s.handlers))
	for _, h := range s.handlers {
		defs = append(defs, h.Def())
	}
	s.mu.RUnlock()
	s.engine.Update(defs)
}

func (s *Session) emit(evt model.Event) {
	evt.Session = s.id
	evt.Timestamp = time.Now().UnixMilli()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.events == nil {
		return
	}
	select {
	case s.events <- evt:
	default:
		s.log.Debug("event dropped, subscriber lagging", "type", evt.Type)
	}
}
