package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeSplitVideo        JobType = "SPLIT_VIDEO"
	JobTypeTranscribeSegment JobType = "TRANSCRIBE_SEGMENT"
	JobTypeGeneratePreview   JobType = "GENERATE_PREVIEW"
	JobTypeRenderFinal       JobType = "RENDER_FINAL"
)

func (t JobType) Valid() bool {
	switch t {
	case JobTypeSplitVideo, JobTypeTranscribeSegment, JobTypeGeneratePreview, JobTypeRenderFinal:
		return true
	}
	return false
}

// Label is used in user-visible failure reasons.
func (t JobType) Label() string {
	switch t {
	case JobTypeSplitVideo:
		return "splitting the video"
	case JobTypeTranscribeSegment:
		return "transcribing"
	case JobTypeGeneratePreview:
		return "rendering the preview of"
	case JobTypeRenderFinal:
		return "rendering the final video"
	}
	return string(t)
}

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusDone      JobStatus = "done"
	JobStatusDead      JobStatus = "dead"
	JobStatusCancelled JobStatus = "cancelled"
)

// Settled reports whether the job can no longer produce an outcome that
// affects its session.
func (s JobStatus) Settled() bool {
	return s == JobStatusDone || s == JobStatusDead || s == JobStatusCancelled
}

type Job struct {
	ID        string          `json:"job_id"`
	Type      JobType         `json:"type"`
	SessionID string          `json:"session_id"`
	SegmentID string          `json:"segment_id,omitempty"`
	Revision  int             `json:"revision"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	Status    JobStatus       `json:"status"`
	LastError string          `json:"last_error,omitempty"`
	RunAt     time.Time       `json:"run_at"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewJob(jobType JobType, sessionID, segmentID string, revision int, payload any) (*Job, error) {
	if !jobType.Valid() {
		return nil, fmt.Errorf("unknown job type: %s", jobType)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", jobType, err)
	}
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		SessionID: sessionID,
		SegmentID: segmentID,
		Revision:  revision,
		Payload:   raw,
		Attempt:   1,
		Status:    JobStatusPending,
		RunAt:     now,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IdempotencyKey identifies one logical unit of work. Segment jobs carry
// the segment revision so a preview regenerated after an edit is new work
// while a redelivered completion of the same issuance is not.
func (j *Job) IdempotencyKey() string {
	if j.SegmentID == "" {
		return fmt.Sprintf("%s/-/%s", j.SessionID, j.Type)
	}
	return fmt.Sprintf("%s/%s/%s@%d", j.SessionID, j.SegmentID, j.Type, j.Revision)
}

func (j *Job) DecodePayload(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", j.Type, err))
	}
	return nil
}

type SplitPayload struct {
	VideoRef string `json:"video_ref"`
}

type TranscribePayload struct {
	SegmentRef string `json:"segment_ref"`
}

type PreviewPayload struct {
	SegmentRef string         `json:"segment_ref"`
	Transcript string         `json:"transcript"`
	Style      Style          `json:"style"`
	Mode       CaptionMode    `json:"mode"`
	Conversion ConversionType `json:"conversion,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

type RenderPart struct {
	SegmentRef string      `json:"segment_ref"`
	Transcript string      `json:"transcript"`
	Mode       CaptionMode `json:"mode"`
	DurationMs int64       `json:"duration_ms"`
}

type RenderPayload struct {
	Parts []RenderPart `json:"parts"`
	Style Style        `json:"style"`
}

// JobResult is the closed set of executor outputs.
type JobResult interface {
	JobType() JobType
	isJobResult()
}

type SplitResult struct {
	Segments []SegmentOutput `json:"segments"`
}

type TranscribeResult struct {
	Text string `json:"text"`
}

// PreviewResult carries the converted transcript when the preview applied
// a text conversion.
type PreviewResult struct {
	PreviewRef string `json:"preview_ref"`
	Transcript string `json:"transcript,omitempty"`
}

type RenderResult struct {
	OutputRef string `json:"output_ref"`
}

func (SplitResult) JobType() JobType      { return JobTypeSplitVideo }
func (TranscribeResult) JobType() JobType { return JobTypeTranscribeSegment }
func (PreviewResult) JobType() JobType    { return JobTypeGeneratePreview }
func (RenderResult) JobType() JobType     { return JobTypeRenderFinal }

func (SplitResult) isJobResult()      {}
func (TranscribeResult) isJobResult() {}
func (PreviewResult) isJobResult()    {}
func (RenderResult) isJobResult()     {}
