package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bnema/captioner/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	t.Run("creates store successfully", func(t *testing.T) {
		tempDir := t.TempDir()
		store, err := NewStore(tempDir)

		assert.NoError(t, err)
		assert.NotNil(t, store)
		assert.Empty(t, store.sessions)
	})

	t.Run("returns error for invalid JSON", func(t *testing.T) {
		tempDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(tempDir, "captioner.json"), []byte("invalid json"), 0600))

		store, err := NewStore(tempDir)

		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("creates empty store if file doesn't exist", func(t *testing.T) {
		tempDir := t.TempDir()

		store, err := NewStore(tempDir)

		assert.NoError(t, err)
		assert.Empty(t, store.segments)
		_, err = os.Stat(filepath.Join(tempDir, "captioner.json"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("handles empty JSON file", func(t *testing.T) {
		tempDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(tempDir, "captioner.json"), []byte(""), 0600))

		store, err := NewStore(tempDir)

		assert.NoError(t, err)
		assert.Empty(t, store.sessions)
	})
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)

	sess := domain.NewSession("s1", "owner", "/videos/in.mp4")
	require.NoError(t, store.CreateSession(ctx, sess))

	seg := domain.NewSegment("s1", 0, domain.SegmentOutput{Ref: "/chunks/0.mp4", StartMs: 0, EndMs: 10000})
	require.NoError(t, store.ReplaceSegments(ctx, "s1", []*domain.Segment{seg}))
	require.NoError(t, store.MarkApplied(ctx, "s1", "s1/-/SPLIT_VIDEO"))

	reopened, err := NewStore(tempDir)
	require.NoError(t, err)

	got, err := reopened.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "owner", got.OwnerID)
	assert.Equal(t, domain.SessionIdle, got.State)

	segs, err := reopened.ListSegments(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "/chunks/0.mp4", segs[0].SourceRef)

	applied, err := reopened.IsApplied(ctx, "s1/-/SPLIT_VIDEO")
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestStore_Sessions(t *testing.T) {
	ctx := context.Background()

	t.Run("get returns ErrNotFound for missing session", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		_, err = store.GetSession(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("create rejects duplicate ids", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, store.CreateSession(ctx, domain.NewSession("dup", "a", "v")))
		assert.Error(t, store.CreateSession(ctx, domain.NewSession("dup", "b", "v")))
	})

	t.Run("returned sessions are copies", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, store.CreateSession(ctx, domain.NewSession("s", "a", "v")))

		got, err := store.GetSession(ctx, "s")
		require.NoError(t, err)
		got.State = domain.SessionFailed

		again, err := store.GetSession(ctx, "s")
		require.NoError(t, err)
		assert.Equal(t, domain.SessionIdle, again.State)
	})

	t.Run("update missing session", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		err = store.UpdateSession(ctx, domain.NewSession("nope", "a", "v"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("lists filter by state, owner and age", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		old := time.Now().Add(-48 * time.Hour)

		active := domain.NewSession("active", "alice", "v")
		active.UpdatedAt = old
		done := domain.NewSession("done", "alice", "v")
		done.State = domain.SessionCompleted
		done.UpdatedAt = old
		fresh := domain.NewSession("fresh", "bob", "v")
		fresh.State = domain.SessionChunkReview

		for _, s := range []*domain.Session{active, done, fresh} {
			require.NoError(t, store.CreateSession(ctx, s))
		}

		list, err := store.ListActiveSessions(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"active", "fresh"}, sessionIDs(list))

		list, err = store.ListSessionsByOwner(ctx, "alice")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"active", "done"}, sessionIDs(list))

		cutoff := time.Now().Add(-24 * time.Hour)
		list, err = store.ListIdleSessions(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, []string{"active"}, sessionIDs(list))

		list, err = store.ListFinishedSessions(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, []string{"done"}, sessionIDs(list))

		list, err = store.ListAllSessions(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 3)
	})
}

func TestStore_Segments(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	var segs []*domain.Segment
	for i := 2; i >= 0; i-- {
		segs = append(segs, domain.NewSegment("s1", i, domain.SegmentOutput{Ref: "chunk"}))
	}
	require.NoError(t, store.ReplaceSegments(ctx, "s1", segs))
	require.NoError(t, store.ReplaceSegments(ctx, "s2", []*domain.Segment{domain.NewSegment("s2", 0, domain.SegmentOutput{})}))

	list, err := store.ListSegments(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, seg := range list {
		assert.Equal(t, i, seg.Index, "segments should be ordered by index")
	}

	seg := list[1]
	seg.Status = domain.SegmentTranscribed
	seg.RawTranscript = "hello"
	require.NoError(t, store.UpdateSegment(ctx, seg))

	got, err := store.GetSegment(ctx, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SegmentTranscribed, got.Status)
	assert.Equal(t, "hello", got.RawTranscript)

	t.Run("replace drops previous segments of the session only", func(t *testing.T) {
		require.NoError(t, store.ReplaceSegments(ctx, "s1", []*domain.Segment{domain.NewSegment("s1", 0, domain.SegmentOutput{})}))

		list, err := store.ListSegments(ctx, "s1")
		require.NoError(t, err)
		assert.Len(t, list, 1)

		other, err := store.ListSegments(ctx, "s2")
		require.NoError(t, err)
		assert.Len(t, other, 1)
	})

	t.Run("replace rejects foreign segments", func(t *testing.T) {
		err := store.ReplaceSegments(ctx, "s1", []*domain.Segment{domain.NewSegment("s9", 0, domain.SegmentOutput{})})
		assert.Error(t, err)
	})

	t.Run("update missing segment", func(t *testing.T) {
		err := store.UpdateSegment(ctx, domain.NewSegment("zz", 4, domain.SegmentOutput{}))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestStore_AppliedLedger(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.MarkApplied(ctx, "s1", "k1"))
	require.NoError(t, store.MarkApplied(ctx, "s1", "k1"))
	require.NoError(t, store.MarkApplied(ctx, "s2", "k2"))

	ok, err := store.IsApplied(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.ForgetSession(ctx, "s1"))

	ok, err = store.IsApplied(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.IsApplied(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := domain.SegmentID("s", i)
			_ = store.CreateSession(ctx, domain.NewSession(id, "o", "v"))
			_, _ = store.GetSession(ctx, id)
		}(i)
	}
	wg.Wait()

	list, err := store.ListAllSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 10)
}

func sessionIDs(list []*domain.Session) []string {
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	return ids
}
