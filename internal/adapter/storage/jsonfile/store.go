package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/port"
)

// Store keeps sessions, segments and applied keys in a single JSON document
// rewritten atomically on every change.
type Store struct {
	mu       sync.RWMutex
	path     string
	sessions map[string]*domain.Session
	segments map[string]*domain.Segment
	applied  map[string]string // key -> session id
}

type document struct {
	Sessions []*domain.Session `json:"sessions"`
	Segments []*domain.Segment `json:"segments"`
	Applied  map[string]string `json:"applied"`
}

func NewStore(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "captioner.json")

	store := &Store{
		path:     path,
		sessions: make(map[string]*domain.Session),
		segments: make(map[string]*domain.Segment),
		applied:  make(map[string]string),
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return store, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}

	for _, sess := range doc.Sessions {
		s.sessions[sess.ID] = sess
	}
	for _, seg := range doc.Segments {
		s.segments[seg.ID] = seg
	}
	for k, v := range doc.Applied {
		s.applied[k] = v
	}

	return nil
}

func (s *Store) save() error {
	tmpPath := s.path + ".tmp"

	doc := document{
		Sessions: make([]*domain.Session, 0, len(s.sessions)),
		Segments: make([]*domain.Segment, 0, len(s.segments)),
		Applied:  s.applied,
	}
	for _, sess := range s.sessions {
		doc.Sessions = append(doc.Sessions, sess)
	}
	for _, seg := range s.segments {
		doc.Segments = append(doc.Segments, seg)
	}
	sort.Slice(doc.Sessions, func(i, j int) bool { return doc.Sessions[i].ID < doc.Sessions[j].ID })
	sort.Slice(doc.Segments, func(i, j int) bool { return doc.Segments[i].ID < doc.Segments[j].ID })

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.path)
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateSession(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	s.sessions[sess.ID] = sess.Clone()
	return s.save()
}

func (s *Store) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *Store) UpdateSession(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return domain.ErrNotFound
	}
	s.sessions[sess.ID] = sess.Clone()
	return s.save()
}

func (s *Store) ListActiveSessions(_ context.Context) ([]*domain.Session, error) {
	return s.filterSessions(func(sess *domain.Session) bool { return !sess.IsTerminal() }, false), nil
}

func (s *Store) ListSessionsByOwner(_ context.Context, ownerID string) ([]*domain.Session, error) {
	return s.filterSessions(func(sess *domain.Session) bool { return sess.OwnerID == ownerID }, true), nil
}

func (s *Store) ListAllSessions(_ context.Context) ([]*domain.Session, error) {
	return s.filterSessions(func(*domain.Session) bool { return true }, true), nil
}

func (s *Store) ListIdleSessions(_ context.Context, before time.Time) ([]*domain.Session, error) {
	return s.filterSessions(func(sess *domain.Session) bool {
		return !sess.IsTerminal() && sess.UpdatedAt.Before(before)
	}, false), nil
}

func (s *Store) ListFinishedSessions(_ context.Context, before time.Time) ([]*domain.Session, error) {
	return s.filterSessions(func(sess *domain.Session) bool {
		return sess.IsTerminal() && sess.UpdatedAt.Before(before)
	}, false), nil
}

func (s *Store) filterSessions(keep func(*domain.Session) bool, newestFirst bool) []*domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Session
	for _, sess := range s.sessions {
		if keep(sess) {
			result = append(result, sess.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if newestFirst {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (s *Store) ReplaceSegments(_ context.Context, sessionID string, segments []*domain.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, seg := range s.segments {
		if seg.SessionID == sessionID {
			delete(s.segments, id)
		}
	}
	for _, seg := range segments {
		if seg.SessionID != sessionID {
			return fmt.Errorf("segment %s belongs to session %s", seg.ID, seg.SessionID)
		}
		s.segments[seg.ID] = seg.Clone()
	}
	return s.save()
}

func (s *Store) GetSegment(_ context.Context, segmentID string) (*domain.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seg, ok := s.segments[segmentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return seg.Clone(), nil
}

func (s *Store) UpdateSegment(_ context.Context, seg *domain.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.segments[seg.ID]; !ok {
		return domain.ErrNotFound
	}
	s.segments[seg.ID] = seg.Clone()
	return s.save()
}

func (s *Store) ListSegments(_ context.Context, sessionID string) ([]*domain.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Segment
	for _, seg := range s.segments {
		if seg.SessionID == sessionID {
			result = append(result, seg.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result, nil
}

func (s *Store) IsApplied(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.applied[key]
	return ok, nil
}

func (s *Store) MarkApplied(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.applied[key]; ok {
		return nil
	}
	s.applied[key] = sessionID
	return s.save()
}

func (s *Store) ForgetSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range s.applied {
		if v == sessionID {
			delete(s.applied, k)
		}
	}
	return s.save()
}

var _ port.Store = (*Store)(nil)
