package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/port"
)

var errNoConverter = errors.New("no text converter configured")

// NewExecutors binds every job type to the media ports. converter may be
// nil, in which case conversion requests fail permanently.
func NewExecutors(engine port.MediaEngine, transcriber port.Transcriber, converter port.TextConverter) Executors {
	return Executors{
		Split: func(ctx context.Context, job *domain.Job) (domain.JobResult, error) {
			var p domain.SplitPayload
			if err := job.DecodePayload(&p); err != nil {
				return nil, err
			}
			outs, err := engine.Split(ctx, job.SessionID, p.VideoRef)
			if err != nil {
				return nil, fmt.Errorf("split: %w", err)
			}
			return domain.SplitResult{Segments: outs}, nil
		},
		Transcribe: func(ctx context.Context, job *domain.Job) (domain.JobResult, error) {
			var p domain.TranscribePayload
			if err := job.DecodePayload(&p); err != nil {
				return nil, err
			}
			text, err := transcriber.Transcribe(ctx, p.SegmentRef)
			if err != nil {
				return nil, fmt.Errorf("transcribe: %w", err)
			}
			return domain.TranscribeResult{Text: text}, nil
		},
		Preview: func(ctx context.Context, job *domain.Job) (domain.JobResult, error) {
			var p domain.PreviewPayload
			if err := job.DecodePayload(&p); err != nil {
				return nil, err
			}
			var converted string
			if p.Conversion != "" {
				if converter == nil {
					return nil, domain.Permanent(errNoConverter)
				}
				text, err := converter.Convert(ctx, p.Transcript, p.Conversion)
				if err != nil {
					return nil, fmt.Errorf("convert to %s: %w", p.Conversion, err)
				}
				converted = text
				p.Transcript = text
			}
			ref, err := engine.RenderPreview(ctx, job.SegmentID, p)
			if err != nil {
				return nil, fmt.Errorf("preview: %w", err)
			}
			return domain.PreviewResult{PreviewRef: ref, Transcript: converted}, nil
		},
		Render: func(ctx context.Context, job *domain.Job) (domain.JobResult, error) {
			var p domain.RenderPayload
			if err := job.DecodePayload(&p); err != nil {
				return nil, err
			}
			ref, err := engine.RenderFinal(ctx, job.SessionID, p)
			if err != nil {
				return nil, fmt.Errorf("render: %w", err)
			}
			return domain.RenderResult{OutputRef: ref}, nil
		},
	}
}
