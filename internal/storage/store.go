// Package storage persists mock handler definitions in sqlite. Rapid edit
// bursts (every keystroke of a body edit can reach SaveHandler) are
// coalesced into a single delayed write.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"mockbody/internal/logger"
	"mockbody/pkg/model"
)

var ErrNotFound = errors.New("handler definition not found")

// flushDelay is the quiet period before buffered writes hit the database.
const flushDelay = 300 * time.Millisecond

// HandlerRecord 处理器定义存储模型
type HandlerRecord struct {
	ID        string `gorm:"primaryKey"`
	Session   string `gorm:"index"`
	Name      string
	Priority  int
	Mode      string
	Match     []byte // json
	Respond   []byte // json
	UpdatedAt time.Time
}

type Store struct {
	db  *gorm.DB
	log logger.Logger

	mu      sync.Mutex
	pending map[string]HandlerRecord
	flush   func(func())
}

// Open 打开（或创建）sqlite 存储
func Open(dsn, prefix string, l logger.Logger) (*Store, error) {
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&HandlerRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{
		db:      db,
		log:     l,
		pending: make(map[string]HandlerRecord),
		flush:   debounce.New(flushDelay),
	}, nil
}

// SaveHandler buffers an upsert of the definition; the write lands after
// the edit burst quiets down.
func (s *Store) SaveHandler(session model.SessionID, def model.HandlerDef) error {
	rec, err := toRecord(session, def)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.pending[rec.ID] = rec
	s.mu.Unlock()

	s.flush(s.flushPending)
	return nil
}

// DeleteHandler removes a definition immediately, including any buffered
// write for it.
func (s *Store) DeleteHandler(id model.HandlerID) error {
	s.mu.Lock()
	delete(s.pending, string(id))
	s.mu.Unlock()

	return s.db.Delete(&HandlerRecord{}, "id = ?", string(id)).Error
}

// DeleteSession removes every definition belonging to the session.
func (s *Store) DeleteSession(session model.SessionID) error {
	s.mu.Lock()
	for id, rec := range s.pending {
		if rec.Session == string(session) {
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	return s.db.Delete(&HandlerRecord{}, "session = ?", string(session)).Error
}

// GetHandler loads one definition.
func (s *Store) GetHandler(id model.HandlerID) (model.HandlerDef, error) {
	s.Flush()

	var rec HandlerRecord
	err := s.db.First(&rec, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.HandlerDef{}, ErrNotFound
	}
	if err != nil {
		return model.HandlerDef{}, err
	}
	return fromRecord(rec)
}

// LoadSession returns the session's definitions, highest priority first.
func (s *Store) LoadSession(session model.SessionID) ([]model.HandlerDef, error) {
	s.Flush()

	var recs []HandlerRecord
	if err := s.db.Where("session = ?", string(session)).
		Order("priority desc").Find(&recs).Error; err != nil {
		return nil, err
	}

	defs := make([]model.HandlerDef, 0, len(recs))
	for _, rec := range recs {
		def, err := fromRecord(rec)
		if err != nil {
			s.log.Warn("skipping unreadable handler record", "id", rec.ID, "error", err)
			continue
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Flush writes all buffered definitions synchronously.
func (s *Store) Flush() {
	s.flushPending()
}

// Close flushes and releases the database.
func (s *Store) Close() error {
	s.Flush()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) flushPending() {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	recs := make([]HandlerRecord, 0, len(s.pending))
	for _, rec := range s.pending {
		recs = append(recs, rec)
	}
	s.pending = make(map[string]HandlerRecord)
	s.mu.Unlock()

	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&recs).Error
	if err != nil {
		s.log.Error("flush handler records failed", "count", len(recs), "error", err)
		return
	}
	s.log.Debug("flushed handler records", "count", len(recs))
}

func toRecord(session model.SessionID, def model.HandlerDef) (HandlerRecord, error) {
	match, err := json.Marshal(def.Match)
	if err != nil {
		return HandlerRecord{}, fmt.Errorf("marshal match: %w", err)
	}
	respond, err := json.Marshal(def.Respond)
	if err != nil {
		return HandlerRecord{}, fmt.Errorf("marshal respond: %w", err)
	}
	return HandlerRecord{
		ID:        string(def.ID),
		Session:   string(session),
		Name:      def.Name,
		Priority:  def.Priority,
		Mode:      def.Mode,
		Match:     match,
		Respond:   respond,
		UpdatedAt: time.Now(),
	}, nil
}

func fromRecord(rec HandlerRecord) (model.HandlerDef, error) {
	def := model.HandlerDef{
		ID:       model.HandlerID(rec.ID),
		Name:     rec.Name,
		Priority: rec.Priority,
		Mode:     rec.Mode,
	}
	if err := json.Unmarshal(rec.Match, &def.Match); err != nil {
		return model.HandlerDef{}, fmt.Errorf("unmarshal match: %w", err)
	}
	if err := json.Unmarshal(rec.Respond, &def.Respond); err != nil {
		return model.HandlerDef{}, fmt.Errorf("unmarshal respond: %w", err)
	}
	return def, nil
}
