package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/port"
)

// Registry owns the persisted per-segment status table.
type Registry struct {
	store port.SegmentStore
	now   func() time.Time
}

// NewRegistry stamps segment changes with now, or the UTC wall clock when
// now is nil.
func NewRegistry(store port.SegmentStore, now func() time.Time) *Registry {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Registry{store: store, now: now}
}

// CreateSegments replaces the segments of a session with one PENDING_SPLIT
// row per split output, in order.
func (r *Registry) CreateSegments(ctx context.Context, sessionID string, outputs []domain.SegmentOutput) ([]*domain.Segment, error) {
	segs := make([]*domain.Segment, len(outputs))
	for i, out := range outputs {
		segs[i] = domain.NewSegment(sessionID, i, out)
		segs[i].UpdatedAt = r.now()
	}
	if err := r.store.ReplaceSegments(ctx, sessionID, segs); err != nil {
		return nil, fmt.Errorf("create segments: %w", err)
	}
	return segs, nil
}

// Get returns a segment of the session or ErrSegmentNotFound.
func (r *Registry) Get(ctx context.Context, sessionID, segmentID string) (*domain.Segment, error) {
	seg, err := r.store.GetSegment(ctx, segmentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSegmentNotFound, segmentID)
		}
		return nil, err
	}
	if seg.SessionID != sessionID {
		return nil, fmt.Errorf("%w: %s", domain.ErrSegmentNotFound, segmentID)
	}
	return seg, nil
}

func (r *Registry) List(ctx context.Context, sessionID string) ([]*domain.Segment, error) {
	return r.store.ListSegments(ctx, sessionID)
}

func (r *Registry) UpdateStatus(ctx context.Context, seg *domain.Segment, status domain.SegmentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown segment status %q", status)
	}
	seg.Status = status
	return r.save(ctx, seg)
}

func (r *Registry) SetTranscript(ctx context.Context, seg *domain.Segment, text string) error {
	seg.RawTranscript = text
	seg.Status = domain.SegmentTranscribed
	return r.save(ctx, seg)
}

// SetPreview stores a rendered preview. A non-empty converted transcript
// replaces the edited one and records the conversion that produced it.
func (r *Registry) SetPreview(ctx context.Context, seg *domain.Segment, previewRef, converted string) error {
	seg.PreviewRef = previewRef
	seg.Status = domain.SegmentPreviewReady
	if converted != "" {
		seg.EditedTranscript = converted
		seg.Conversion = seg.PendingConvert
	}
	seg.PendingConvert = ""
	return r.save(ctx, seg)
}

// MarkApproved requires a ready preview. Approving an approved segment is a no-op.
func (r *Registry) MarkApproved(ctx context.Context, seg *domain.Segment) error {
	switch seg.Status {
	case domain.SegmentApproved:
		return nil
	case domain.SegmentPreviewReady:
		seg.Status = domain.SegmentApproved
		return r.save(ctx, seg)
	default:
		return fmt.Errorf("%w: segment %d is %s", domain.ErrInvalidTransition, seg.Index+1, seg.Status)
	}
}

// SetMode overrides the caption mode of one segment. An empty mode
// falls back to the session default.
func (r *Registry) SetMode(ctx context.Context, seg *domain.Segment, mode domain.CaptionMode) error {
	seg.Mode = mode
	return r.save(ctx, seg)
}

// MarkStale invalidates the preview and approval of this segment only.
func (r *Registry) MarkStale(ctx context.Context, seg *domain.Segment) error {
	seg.Invalidate()
	return r.save(ctx, seg)
}

func (r *Registry) AllAtLeast(ctx context.Context, sessionID string, status domain.SegmentStatus) (bool, error) {
	segs, err := r.store.ListSegments(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if len(segs) == 0 {
		return false, nil
	}
	for _, seg := range segs {
		if !seg.Status.AtLeast(status) {
			return false, nil
		}
	}
	return true, nil
}

func (r *Registry) save(ctx context.Context, seg *domain.Segment) error {
	seg.UpdatedAt = r.now()
	if err := r.store.UpdateSegment(ctx, seg); err != nil {
		return fmt.Errorf("update segment %s: %w", seg.ID, err)
	}
	return nil
}
