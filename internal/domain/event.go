package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type EventKind string

const (
	EventVideoReceived          EventKind = "video_received"
	EventSplitSucceeded         EventKind = "split_succeeded"
	EventSegmentsCreated        EventKind = "segments_created"
	EventAllSegmentsTranscribed EventKind = "all_segments_transcribed"
	EventStyleChosen            EventKind = "style_chosen"
	EventCaptionModeChanged     EventKind = "caption_mode_changed"
	EventAllPreviewsReady       EventKind = "all_previews_ready"
	EventSegmentApproved        EventKind = "segment_approved"
	EventSegmentEdited          EventKind = "segment_edited"
	EventSegmentConverted       EventKind = "segment_converted"
	EventAllSegmentsApproved    EventKind = "all_segments_approved"
	EventRenderSucceeded        EventKind = "render_succeeded"
	EventJobExhaustedRetries    EventKind = "job_exhausted_retries"
)

// UserEvent is the closed set of events a user can send to a session.
type UserEvent interface {
	Kind() EventKind
	isUserEvent()
}

type StyleChosen struct {
	StyleID string
}

type SegmentApproval struct {
	SegmentID string
}

type SegmentEdited struct {
	SegmentID string
	Text      string
}

type SegmentConverted struct {
	SegmentID  string
	Conversion ConversionType
}

// CaptionModeChanged applies to one segment when SegmentID is set,
// otherwise to the whole session.
type CaptionModeChanged struct {
	SegmentID string
	Mode      CaptionMode
}

func (StyleChosen) Kind() EventKind        { return EventStyleChosen }
func (SegmentApproval) Kind() EventKind    { return EventSegmentApproved }
func (SegmentEdited) Kind() EventKind      { return EventSegmentEdited }
func (SegmentConverted) Kind() EventKind   { return EventSegmentConverted }
func (CaptionModeChanged) Kind() EventKind { return EventCaptionModeChanged }

func (StyleChosen) isUserEvent()        {}
func (SegmentApproval) isUserEvent()    {}
func (SegmentEdited) isUserEvent()      {}
func (SegmentConverted) isUserEvent()   {}
func (CaptionModeChanged) isUserEvent() {}

// InboundEvent is the wire shape of a user event.
type InboundEvent struct {
	Kind           EventKind `json:"kind"`
	SessionID      string    `json:"session_id"`
	StyleID        string    `json:"style_id,omitempty"`
	SegmentID      string    `json:"segment_id,omitempty"`
	Text           string    `json:"text,omitempty"`
	ConversionType string    `json:"conversion_type,omitempty"`
	Mode           string    `json:"mode,omitempty"`
}

func DecodeInboundEvent(data []byte) (*InboundEvent, error) {
	var ev InboundEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return &ev, nil
}

// UserEvent validates the wire fields and returns the typed event.
func (e *InboundEvent) UserEvent() (UserEvent, error) {
	switch e.Kind {
	case EventStyleChosen:
		if strings.TrimSpace(e.StyleID) == "" {
			return nil, fmt.Errorf("%w: style_id is required", ErrInvalidEvent)
		}
		return StyleChosen{StyleID: strings.TrimSpace(e.StyleID)}, nil
	case EventSegmentApproved:
		if e.SegmentID == "" {
			return nil, fmt.Errorf("%w: segment_id is required", ErrInvalidEvent)
		}
		return SegmentApproval{SegmentID: e.SegmentID}, nil
	case EventSegmentEdited:
		if e.SegmentID == "" {
			return nil, fmt.Errorf("%w: segment_id is required", ErrInvalidEvent)
		}
		text := strings.TrimSpace(e.Text)
		if text == "" {
			return nil, fmt.Errorf("%w: text is required", ErrInvalidEvent)
		}
		return SegmentEdited{SegmentID: e.SegmentID, Text: text}, nil
	case EventSegmentConverted:
		if e.SegmentID == "" {
			return nil, fmt.Errorf("%w: segment_id is required", ErrInvalidEvent)
		}
		conv, err := ParseConversionType(e.ConversionType)
		if err != nil {
			return nil, err
		}
		return SegmentConverted{SegmentID: e.SegmentID, Conversion: conv}, nil
	case EventCaptionModeChanged:
		mode, err := ParseCaptionMode(e.Mode)
		if err != nil {
			return nil, err
		}
		return CaptionModeChanged{SegmentID: e.SegmentID, Mode: mode}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrInvalidEvent, e.Kind)
	}
}
