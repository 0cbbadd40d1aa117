package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type SegmentStatus string

const (
	SegmentPendingSplit   SegmentStatus = "PENDING_SPLIT"
	SegmentTranscribing   SegmentStatus = "TRANSCRIBING"
	SegmentTranscribed    SegmentStatus = "TRANSCRIBED"
	SegmentPreviewPending SegmentStatus = "PREVIEW_PENDING"
	SegmentPreviewReady   SegmentStatus = "PREVIEW_READY"
	SegmentApproved       SegmentStatus = "APPROVED"
	SegmentStale          SegmentStatus = "STALE"
)

var segmentRank = map[SegmentStatus]int{
	SegmentPendingSplit:   0,
	SegmentTranscribing:   1,
	SegmentTranscribed:    2,
	SegmentStale:          3,
	SegmentPreviewPending: 3,
	SegmentPreviewReady:   4,
	SegmentApproved:       5,
}

// Rank orders statuses along the segment lifecycle. STALE ranks with
// PREVIEW_PENDING: the transcript exists but no valid preview does.
func (s SegmentStatus) Rank() int {
	r, ok := segmentRank[s]
	if !ok {
		return -1
	}
	return r
}

func (s SegmentStatus) AtLeast(min SegmentStatus) bool {
	return s.Rank() >= min.Rank()
}

func (s SegmentStatus) Valid() bool {
	_, ok := segmentRank[s]
	return ok
}

// ConversionType names a text conversion applied to a transcript
// (for example "hinglish").
type ConversionType string

var conversionPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

func ParseConversionType(s string) (ConversionType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if !conversionPattern.MatchString(v) {
		return "", fmt.Errorf("%w: conversion type %q", ErrInvalidEvent, s)
	}
	return ConversionType(v), nil
}

type Segment struct {
	ID               string         `json:"id"`
	SessionID        string         `json:"session_id"`
	Index            int            `json:"index"`
	Status           SegmentStatus  `json:"status"`
	SourceRef        string         `json:"source_ref"`
	StartMs          int64          `json:"start_ms"`
	EndMs            int64          `json:"end_ms"`
	RawTranscript    string         `json:"raw_transcript,omitempty"`
	EditedTranscript string         `json:"edited_transcript,omitempty"`
	Conversion       ConversionType `json:"conversion,omitempty"`
	PendingConvert   ConversionType `json:"pending_convert,omitempty"`
	Mode             CaptionMode    `json:"mode,omitempty"`
	PreviewRef       string         `json:"preview_ref,omitempty"`
	Revision         int            `json:"revision"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// SegmentOutput describes one chunk produced by splitting a video.
type SegmentOutput struct {
	Ref     string `json:"ref"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

func SegmentID(sessionID string, index int) string {
	return fmt.Sprintf("%s-%03d", sessionID, index)
}

func NewSegment(sessionID string, index int, out SegmentOutput) *Segment {
	return &Segment{
		ID:        SegmentID(sessionID, index),
		SessionID: sessionID,
		Index:     index,
		Status:    SegmentPendingSplit,
		SourceRef: out.Ref,
		StartMs:   out.StartMs,
		EndMs:     out.EndMs,
		UpdatedAt: time.Now().UTC(),
	}
}

// Transcript returns the edited transcript when present, otherwise the raw one.
func (s *Segment) Transcript() string {
	if s.EditedTranscript != "" {
		return s.EditedTranscript
	}
	return s.RawTranscript
}

func (s *Segment) EffectiveMode(sessionDefault CaptionMode) CaptionMode {
	if s.Mode != "" {
		return s.Mode
	}
	if sessionDefault != "" {
		return sessionDefault
	}
	return DefaultCaptionMode
}

// Invalidate drops the preview and approval of this segment only.
func (s *Segment) Invalidate() {
	s.Status = SegmentStale
	s.PreviewRef = ""
	s.Revision++
	s.UpdatedAt = time.Now().UTC()
}

func (s *Segment) Clone() *Segment {
	c := *s
	return &c
}

// ResolveSegmentRef accepts a segment id or a 1-based segment number as
// typed by users and returns the segment id.
func ResolveSegmentRef(sessionID, ref string) string {
	ref = strings.TrimSpace(ref)
	n, err := strconv.Atoi(ref)
	if err != nil || n < 1 {
		return ref
	}
	return SegmentID(sessionID, n-1)
}
