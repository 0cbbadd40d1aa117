package http

import (
	"context"
	"sync"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/service"
)

type fakePipeline struct {
	mu        sync.Mutex
	sessions  map[string]*domain.Session
	segments  map[string][]*domain.Segment
	submitted []service.SubmitRequest
	events    []domain.UserEvent
	submitErr error
	eventErr  error
}

var _ Pipeline = (*fakePipeline)(nil)

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		sessions: make(map[string]*domain.Session),
		segments: make(map[string][]*domain.Segment),
	}
}

func (f *fakePipeline) put(sess *domain.Session, segs ...*domain.Segment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[sess.ID] = sess
	f.segments[sess.ID] = segs
}

func (f *fakePipeline) SubmitVideo(_ context.Context, req service.SubmitRequest) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	id := req.SessionID
	if id == "" {
		id = "generated"
	}
	sess := domain.NewSession(id, req.OwnerID, req.VideoRef)
	sess.State = domain.SessionUploading
	f.sessions[id] = sess
	return sess.Clone(), nil
}

func (f *fakePipeline) ApplyUserEvent(_ context.Context, _ string, ev domain.UserEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.eventErr
}

func (f *fakePipeline) Session(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess.Clone(), nil
}

func (f *fakePipeline) Segments(_ context.Context, id string) ([]*domain.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]*domain.Segment, 0, len(f.segments[id]))
	for _, seg := range f.segments[id] {
		out = append(out, seg.Clone())
	}
	return out, nil
}

func (f *fakePipeline) SessionsByOwner(_ context.Context, owner string) ([]*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Session
	for _, sess := range f.sessions {
		if sess.OwnerID == owner {
			out = append(out, sess.Clone())
		}
	}
	return out, nil
}

func (f *fakePipeline) Styles() []domain.Style {
	return []domain.Style{{ID: "classic", Name: "Classic"}, {ID: "bold", Name: "Bold"}}
}

func (f *fakePipeline) lastEvent() domain.UserEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil
	}
	return f.events[len(f.events)-1]
}

type fakeVerifier struct {
	token string
	calls int
	mu    sync.Mutex
}

func (v *fakeVerifier) Verify(token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if token != v.token {
		return domain.ErrValidation
	}
	return nil
}

func reviewSession(id string) (*domain.Session, []*domain.Segment) {
	sess := domain.NewSession(id, "api", "/videos/"+id+".mp4")
	sess.State = domain.SessionChunkReview
	sess.CaptionStyle = "bold"
	segs := []*domain.Segment{
		domain.NewSegment(id, 0, domain.SegmentOutput{Ref: "/work/a.mp4", EndMs: 10000}),
		domain.NewSegment(id, 1, domain.SegmentOutput{Ref: "/work/b.mp4", StartMs: 10000, EndMs: 20000}),
	}
	for _, seg := range segs {
		seg.Status = domain.SegmentPreviewReady
		seg.RawTranscript = "hello from " + seg.ID
	}
	return sess, segs
}

// putReview stores a two-segment session waiting for review.
func (f *fakePipeline) putReview(id string) {
	sess, segs := reviewSession(id)
	f.put(sess, segs...)
}
