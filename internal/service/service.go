package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"mockbody/internal/config"
	"mockbody/internal/handler"
	"mockbody/internal/logger"
	"mockbody/internal/session"
	"mockbody/internal/storage"
	"mockbody/pkg/model"
	"mockbody/pkg/traffic"
)

// Service wires sessions, live handlers and persistence together behind
// pkg/api.Service.
type Service struct {
	mgr   *session.Manager
	store *storage.Store
	log   logger.Logger
}

func New(cfg *config.Config, l logger.Logger) (*Service, error) {
	if l == nil {
		l = logger.NewNop()
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	store, err := storage.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, l)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	opts := handler.Options{Logger: l}
	if cfg.Body.ThrottleMS > 0 {
		opts.ThrottleInterval = time.Duration(cfg.Body.ThrottleMS) * time.Millisecond
	}
	return &Service{
		mgr:   session.NewManager(opts, l),
		store: store,
		log:   l,
	}, nil
}

func (s *Service) StartSession() (model.SessionID, error) {
	sess := s.mgr.Create("")
	return sess.ID(), nil
}

func (s *Service) ResumeSession(id model.SessionID) error {
	defs, err := s.store.LoadSession(id)
	if err != nil {
		return fmt.Errorf("load session %s: %w", id, err)
	}
	sess := s.mgr.Create(id)
	for _, def := range defs {
		sess.PutHandler(def)
	}
	s.log.Info("session resumed", "session", string(id), "handlers", len(defs))
	return nil
}

func (s *Service) StopSession(id model.SessionID) error {
	if !s.mgr.Delete(id) {
		return model.ErrSessionNotFound
	}
	return nil
}

func (s *Service) ListSessions() []model.SessionID {
	return lo.Map(s.mgr.List(), func(sess *session.Session, _ int) model.SessionID {
		return sess.ID()
	})
}

func (s *Service) PutHandler(id model.SessionID, def model.HandlerDef) (model.HandlerID, error) {
	sess, ok := s.mgr.Get(id)
	if !ok {
		return "", model.ErrSessionNotFound
	}
	hid := sess.PutHandler(def)

	h, _ := sess.Handler(hid)
	if err := s.store.SaveHandler(id, h.Def()); err != nil {
		return "", fmt.Errorf("persist handler: %w", err)
	}
	return hid, nil
}

func (s *Service) DeleteHandler(id model.SessionID, hid model.HandlerID) error {
	sess, ok := s.mgr.Get(id)
	if !ok {
		return model.ErrSessionNotFound
	}
	if !sess.RemoveHandler(hid) {
		return model.ErrHandlerNotFound
	}
	return s.store.DeleteHandler(hid)
}

func (s *Service) ListHandlers(id model.SessionID) ([]model.HandlerDef, error) {
	sess, ok := s.mgr.Get(id)
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return lo.Map(sess.Handlers(), func(h *handler.MockHandler, _ int) model.HandlerDef {
		return h.Def()
	}), nil
}

func (s *Service) SetBody(id model.SessionID, hid model.HandlerID, body []byte) error {
	sess, h, err := s.handler(id, hid)
	if err != nil {
		return err
	}
	h.SetBody(body)
	return s.store.SaveHandler(sess.ID(), h.Def())
}

func (s *Service) GetBody(id model.SessionID, hid model.HandlerID) ([]byte, error) {
	_, h, err := s.handler(id, hid)
	if err != nil {
		return nil, err
	}
	return h.DecodedBody(), nil
}

func (s *Service) EncodedSize(id model.SessionID, hid model.HandlerID) (int, error) {
	_, h, err := s.handler(id, hid)
	if err != nil {
		return 0, err
	}
	return h.EncodedSize(), nil
}

func (s *Service) SetResponseHeader(id model.SessionID, hid model.HandlerID, name, value string) error {
	sess, h, err := s.handler(id, hid)
	if err != nil {
		return err
	}
	h.SetHeader(name, value)
	return s.store.SaveHandler(sess.ID(), h.Def())
}

func (s *Service) DeleteResponseHeader(id model.SessionID, hid model.HandlerID, name string) error {
	sess, h, err := s.handler(id, hid)
	if err != nil {
		return err
	}
	h.DelHeader(name)
	return s.store.SaveHandler(sess.ID(), h.Def())
}

func (s *Service) ApplyJSONPatch(id model.SessionID, hid model.HandlerID, path string, value any) error {
	sess, h, err := s.handler(id, hid)
	if err != nil {
		return err
	}
	if err := h.ApplyJSONPatch(path, value); err != nil {
		return err
	}
	return s.store.SaveHandler(sess.ID(), h.Def())
}

func (s *Service) Resolve(ctx context.Context, id model.SessionID, req *traffic.Request) (*model.ResolveResult, error) {
	sess, ok := s.mgr.Get(id)
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	res, hid, err := sess.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &model.ResolveResult{}, nil
	}
	return &model.ResolveResult{Matched: true, Handler: hid, Response: res}, nil
}

func (s *Service) GetStats(id model.SessionID) (model.EngineStats, error) {
	sess, ok := s.mgr.Get(id)
	if !ok {
		return model.EngineStats{}, model.ErrSessionNotFound
	}
	return sess.Stats(), nil
}

func (s *Service) SubscribeEvents(id model.SessionID) (<-chan model.Event, error) {
	sess, ok := s.mgr.Get(id)
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return sess.Events(), nil
}

func (s *Service) Close() error {
	s.mgr.Close()
	return s.store.Close()
}

func (s *Service) handler(id model.SessionID, hid model.HandlerID) (*session.Session, *handler.MockHandler, error) {
	sess, ok := s.mgr.Get(id)
	if !ok {
		return nil, nil, model.ErrSessionNotFound
	}
	h, ok := sess.Handler(hid)
	if !ok {
		return nil, nil, model.ErrHandlerNotFound
	}
	return sess, h, nil
}
