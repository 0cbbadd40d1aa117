package service

import (
	"fmt"

	"github.com/bnema/captioner/internal/domain"
)

type transition struct {
	from  domain.SessionState
	event domain.EventKind
}

// transitions is the closed table of session moves. Any pair not listed,
// other than JobExhaustedRetries from a non-terminal state, is rejected.
var transitions = map[transition]domain.SessionState{
	{domain.SessionIdle, domain.EventVideoReceived}:                  domain.SessionUploading,
	{domain.SessionUploading, domain.EventSplitSucceeded}:            domain.SessionProcessing,
	{domain.SessionProcessing, domain.EventSegmentsCreated}:          domain.SessionTranscribing,
	{domain.SessionTranscribing, domain.EventAllSegmentsTranscribed}: domain.SessionStyleSelection,
	{domain.SessionStyleSelection, domain.EventStyleChosen}:          domain.SessionGeneratingPreviews,
	{domain.SessionStyleSelection, domain.EventCaptionModeChanged}:   domain.SessionStyleSelection,
	{domain.SessionGeneratingPreviews, domain.EventAllPreviewsReady}: domain.SessionChunkReview,
	{domain.SessionChunkReview, domain.EventSegmentApproved}:         domain.SessionChunkReview,
	{domain.SessionChunkReview, domain.EventSegmentEdited}:           domain.SessionChunkReview,
	{domain.SessionChunkReview, domain.EventSegmentConverted}:        domain.SessionChunkReview,
	{domain.SessionChunkReview, domain.EventCaptionModeChanged}:      domain.SessionChunkReview,
	{domain.SessionChunkReview, domain.EventAllSegmentsApproved}:     domain.SessionRendering,
	{domain.SessionRendering, domain.EventRenderSucceeded}:           domain.SessionCompleted,
}

// NextState validates a move of the session state machine.
func NextState(from domain.SessionState, event domain.EventKind) (domain.SessionState, error) {
	if event == domain.EventJobExhaustedRetries && !from.IsTerminal() {
		return domain.SessionFailed, nil
	}
	to, ok := transitions[transition{from, event}]
	if !ok {
		return from, fmt.Errorf("%w: %s in state %s", domain.ErrInvalidTransition, event, from)
	}
	return to, nil
}

// Accepts reports whether the event is valid in the given state.
func Accepts(from domain.SessionState, event domain.EventKind) bool {
	_, err := NextState(from, event)
	return err == nil
}
