package domain

import (
	"fmt"
	"strings"
	"time"
)

type SessionState string

const (
	SessionIdle               SessionState = "IDLE"
	SessionUploading          SessionState = "UPLOADING"
	SessionProcessing         SessionState = "PROCESSING"
	SessionTranscribing       SessionState = "TRANSCRIBING"
	SessionStyleSelection     SessionState = "STYLE_SELECTION"
	SessionGeneratingPreviews SessionState = "GENERATING_PREVIEWS"
	SessionChunkReview        SessionState = "CHUNK_REVIEW"
	SessionRendering          SessionState = "RENDERING"
	SessionCompleted          SessionState = "COMPLETED"
	SessionFailed             SessionState = "FAILED"
)

func (s SessionState) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// Label is a short human description used in prompts and status pages.
func (s SessionState) Label() string {
	switch s {
	case SessionIdle:
		return "waiting for a video"
	case SessionUploading:
		return "splitting video"
	case SessionProcessing:
		return "preparing segments"
	case SessionTranscribing:
		return "transcribing"
	case SessionStyleSelection:
		return "waiting for a caption style"
	case SessionGeneratingPreviews:
		return "rendering previews"
	case SessionChunkReview:
		return "waiting for segment review"
	case SessionRendering:
		return "rendering final video"
	case SessionCompleted:
		return "done"
	case SessionFailed:
		return "failed"
	default:
		return strings.ToLower(string(s))
	}
}

type CaptionMode string

const (
	CaptionModeWord     CaptionMode = "word"
	CaptionModeSentence CaptionMode = "sentence"
)

const DefaultCaptionMode = CaptionModeSentence

func ParseCaptionMode(s string) (CaptionMode, error) {
	switch CaptionMode(strings.ToLower(strings.TrimSpace(s))) {
	case CaptionModeWord:
		return CaptionModeWord, nil
	case CaptionModeSentence:
		return CaptionModeSentence, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

type Session struct {
	ID            string       `json:"id"`
	OwnerID       string       `json:"owner_id"`
	State         SessionState `json:"state"`
	CaptionStyle  string       `json:"caption_style,omitempty"`
	CaptionMode   CaptionMode  `json:"caption_mode"`
	SegmentIDs    []string     `json:"segment_ids"`
	VideoRef      string       `json:"video_ref"`
	OutputRef     string       `json:"output_ref,omitempty"`
	FailureReason string       `json:"failure_reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func NewSession(id, ownerID, videoRef string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          id,
		OwnerID:     ownerID,
		State:       SessionIdle,
		CaptionMode: DefaultCaptionMode,
		VideoRef:    videoRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Session) IsTerminal() bool {
	return s.State.IsTerminal()
}

// Reset prepares a terminal session to run again from a new video.
func (s *Session) Reset(ownerID, videoRef string) {
	s.OwnerID = ownerID
	s.State = SessionIdle
	s.CaptionStyle = ""
	s.CaptionMode = DefaultCaptionMode
	s.SegmentIDs = nil
	s.VideoRef = videoRef
	s.OutputRef = ""
	s.FailureReason = ""
	s.UpdatedAt = time.Now().UTC()
}

func (s *Session) Clone() *Session {
	c := *s
	c.SegmentIDs = append([]string(nil), s.SegmentIDs...)
	return &c
}
