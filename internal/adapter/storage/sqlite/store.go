package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/port"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA foreign_keys = ON",
				"PRAGMA cache_size = -8000", // 8MB
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

// Open opens the database without touching the schema.
func Open(dataDir string) (*Store, error) {
	registerHook()

	db, err := sql.Open("sqlite", filepath.Join(dataDir, "captioner.db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite (WAL allows concurrent reads but only one writer)
	db.SetMaxOpenConns(1)

	return &Store{db: db}, nil
}

// NewStore opens the database and applies pending migrations.
func NewStore(dataDir string) (*Store, error) {
	s, err := Open(dataDir)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(context.Background(), "up"); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate runs a goose command (up, down, status, version, redo, reset).
func (s *Store) Migrate(ctx context.Context, command string, args ...string) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, s.db, "migrations", args...); err != nil {
		return fmt.Errorf("run migrations (%s): %w", command, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// Sessions

const sessionColumns = `id, owner_id, state, caption_style, caption_mode, segment_ids,
	video_ref, output_ref, failure_reason, created_at, updated_at`

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	ids, err := json.Marshal(nonNil(sess.SegmentIDs))
	if err != nil {
		return fmt.Errorf("encode segment ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.OwnerID, string(sess.State), sess.CaptionStyle, string(sess.CaptionMode), string(ids),
		sess.VideoRef, sess.OutputRef, sess.FailureReason, toMillis(sess.CreatedAt), toMillis(sess.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

func (s *Store) UpdateSession(ctx context.Context, sess *domain.Session) error {
	ids, err := json.Marshal(nonNil(sess.SegmentIDs))
	if err != nil {
		return fmt.Errorf("encode segment ids: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET owner_id = ?, state = ?, caption_style = ?,
		caption_mode = ?, segment_ids = ?, video_ref = ?, output_ref = ?, failure_reason = ?, updated_at = ?
		WHERE id = ?`,
		sess.OwnerID, string(sess.State), sess.CaptionStyle, string(sess.CaptionMode), string(ids),
		sess.VideoRef, sess.OutputRef, sess.FailureReason, toMillis(sess.UpdatedAt), sess.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return expectOne(res)
}

func (s *Store) ListActiveSessions(ctx context.Context) ([]*domain.Session, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE state NOT IN (?, ?) ORDER BY created_at`,
		string(domain.SessionCompleted), string(domain.SessionFailed))
}

func (s *Store) ListSessionsByOwner(ctx context.Context, ownerID string) ([]*domain.Session, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
}

func (s *Store) ListAllSessions(ctx context.Context) ([]*domain.Session, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC`)
}

func (s *Store) ListIdleSessions(ctx context.Context, before time.Time) ([]*domain.Session, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE state NOT IN (?, ?) AND updated_at < ? ORDER BY updated_at`,
		string(domain.SessionCompleted), string(domain.SessionFailed), toMillis(before))
}

func (s *Store) ListFinishedSessions(ctx context.Context, before time.Time) ([]*domain.Session, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE state IN (?, ?) AND updated_at < ? ORDER BY updated_at`,
		string(domain.SessionCompleted), string(domain.SessionFailed), toMillis(before))
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]*domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var result []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sess)
	}
	return result, rows.Err()
}

// Segments

const segmentColumns = `id, session_id, idx, status, source_ref, start_ms, end_ms, raw_transcript,
	edited_transcript, conversion, pending_convert, mode, preview_ref, revision, updated_at`

func (s *Store) ReplaceSegments(ctx context.Context, sessionID string, segments []*domain.Segment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete segments: %w", err)
	}
	for _, seg := range segments {
		if seg.SessionID != sessionID {
			return fmt.Errorf("segment %s belongs to session %s", seg.ID, seg.SessionID)
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO segments (`+segmentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			seg.ID, seg.SessionID, seg.Index, string(seg.Status), seg.SourceRef, seg.StartMs, seg.EndMs,
			seg.RawTranscript, seg.EditedTranscript, string(seg.Conversion), string(seg.PendingConvert),
			string(seg.Mode), seg.PreviewRef, seg.Revision, toMillis(seg.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert segment %s: %w", seg.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetSegment(ctx context.Context, segmentID string) (*domain.Segment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = ?`, segmentID)
	seg, err := scanSegment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return seg, nil
}

func (s *Store) UpdateSegment(ctx context.Context, seg *domain.Segment) error {
	res, err := s.db.ExecContext(ctx, `UPDATE segments SET status = ?, source_ref = ?, start_ms = ?, end_ms = ?,
		raw_transcript = ?, edited_transcript = ?, conversion = ?, pending_convert = ?, mode = ?,
		preview_ref = ?, revision = ?, updated_at = ?
		WHERE id = ?`,
		string(seg.Status), seg.SourceRef, seg.StartMs, seg.EndMs, seg.RawTranscript, seg.EditedTranscript,
		string(seg.Conversion), string(seg.PendingConvert), string(seg.Mode), seg.PreviewRef, seg.Revision,
		toMillis(seg.UpdatedAt), seg.ID)
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	return expectOne(res)
}

func (s *Store) ListSegments(ctx context.Context, sessionID string) ([]*domain.Segment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+segmentColumns+` FROM segments
		WHERE session_id = ? ORDER BY idx`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var result []*domain.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, seg)
	}
	return result, rows.Err()
}

// Applied ledger

func (s *Store) IsApplied(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM applied_jobs WHERE key = ?`, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check applied key: %w", err)
	}
	return n > 0, nil
}

func (s *Store) MarkApplied(ctx context.Context, sessionID, key string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO applied_jobs (key, session_id, applied_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO NOTHING`, key, sessionID, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("record applied key: %w", err)
	}
	return nil
}

func (s *Store) ForgetSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM applied_jobs WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("forget applied keys: %w", err)
	}
	return nil
}

// Helper conversions

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var (
		sess             domain.Session
		state, mode, ids string
		created, updated int64
	)
	err := row.Scan(&sess.ID, &sess.OwnerID, &state, &sess.CaptionStyle, &mode, &ids,
		&sess.VideoRef, &sess.OutputRef, &sess.FailureReason, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ids), &sess.SegmentIDs); err != nil {
		return nil, fmt.Errorf("decode segment ids of %s: %w", sess.ID, err)
	}
	sess.State = domain.SessionState(state)
	sess.CaptionMode = domain.CaptionMode(mode)
	sess.CreatedAt = fromMillis(created)
	sess.UpdatedAt = fromMillis(updated)
	return &sess, nil
}

func scanSegment(row scanner) (*domain.Segment, error) {
	var (
		seg                             domain.Segment
		status, conv, pendingConv, mode string
		updated                         int64
	)
	err := row.Scan(&seg.ID, &seg.SessionID, &seg.Index, &status, &seg.SourceRef, &seg.StartMs, &seg.EndMs,
		&seg.RawTranscript, &seg.EditedTranscript, &conv, &pendingConv, &mode, &seg.PreviewRef,
		&seg.Revision, &updated)
	if err != nil {
		return nil, err
	}
	seg.Status = domain.SegmentStatus(status)
	seg.Conversion = domain.ConversionType(conv)
	seg.PendingConvert = domain.ConversionType(pendingConv)
	seg.Mode = domain.CaptionMode(mode)
	seg.UpdatedAt = fromMillis(updated)
	return &seg, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

var _ port.Store = (*Store)(nil)
