package port

import (
	"context"

	"github.com/bnema/captioner/internal/domain"
)

// MediaEngine runs the video operations of the pipeline.
type MediaEngine interface {
	Split(ctx context.Context, sessionID, videoRef string) ([]domain.SegmentOutput, error)
	RenderPreview(ctx context.Context, segmentID string, p domain.PreviewPayload) (string, error)
	RenderFinal(ctx context.Context, sessionID string, p domain.RenderPayload) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, segmentRef string) (string, error)
}

// TextConverter rewrites a transcript, for example transliterating it.
type TextConverter interface {
	Convert(ctx context.Context, text string, conversion domain.ConversionType) (string, error)
}
