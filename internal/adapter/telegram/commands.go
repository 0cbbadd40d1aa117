package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bnema/captioner/internal/domain"
)

// query is a read-only command answered from session state.
type query int

const (
	queryNone query = iota
	queryHelp
	queryStyles
	queryStatus
	querySegments
	queryTranscript
)

// parsedCommand is either a query or a list of user events to apply in order.
type parsedCommand struct {
	query  query
	events []domain.UserEvent
}

const helpText = `Send a video to start captioning.

/styles - list caption styles
/style <id> - pick a caption style
/approve <n> [n...] - approve segments
/edit <n> <text> - replace a segment transcript
/convert <n> <type> - convert a segment transcript
/mode <word|sentence> [n] - caption mode for the session or one segment
/status - session state
/segments - segment list
/transcript - transcript as a Word document`

func usage(format string) error {
	return fmt.Errorf("%w: usage: %s", domain.ErrInvalidEvent, format)
}

// parseCommand maps a bot command and its argument string to events for the
// chat's session. Segment numbers are 1-based.
func parseCommand(sessionID, command, args string) (parsedCommand, error) {
	fields := strings.Fields(args)

	switch strings.ToLower(command) {
	case "start", "help":
		return parsedCommand{query: queryHelp}, nil
	case "styles":
		return parsedCommand{query: queryStyles}, nil
	case "status":
		return parsedCommand{query: queryStatus}, nil
	case "segments":
		return parsedCommand{query: querySegments}, nil
	case "transcript":
		return parsedCommand{query: queryTranscript}, nil

	case "style":
		if len(fields) != 1 {
			return parsedCommand{}, usage("/style <id>")
		}
		return events(domain.StyleChosen{StyleID: fields[0]}), nil

	case "approve":
		if len(fields) == 0 {
			return parsedCommand{}, usage("/approve <n> [n...]")
		}
		var out []domain.UserEvent
		for _, f := range fields {
			id, err := segmentRef(sessionID, f)
			if err != nil {
				return parsedCommand{}, err
			}
			out = append(out, domain.SegmentApproval{SegmentID: id})
		}
		return events(out...), nil

	case "edit":
		n, text, _ := strings.Cut(strings.TrimSpace(args), " ")
		text = strings.TrimSpace(text)
		if n == "" || text == "" {
			return parsedCommand{}, usage("/edit <n> <text>")
		}
		id, err := segmentRef(sessionID, n)
		if err != nil {
			return parsedCommand{}, err
		}
		return events(domain.SegmentEdited{SegmentID: id, Text: text}), nil

	case "convert":
		if len(fields) != 2 {
			return parsedCommand{}, usage("/convert <n> <type>")
		}
		id, err := segmentRef(sessionID, fields[0])
		if err != nil {
			return parsedCommand{}, err
		}
		conv, err := domain.ParseConversionType(fields[1])
		if err != nil {
			return parsedCommand{}, err
		}
		return events(domain.SegmentConverted{SegmentID: id, Conversion: conv}), nil

	case "mode":
		if len(fields) < 1 || len(fields) > 2 {
			return parsedCommand{}, usage("/mode <word|sentence> [n]")
		}
		mode, err := domain.ParseCaptionMode(fields[0])
		if err != nil {
			return parsedCommand{}, err
		}
		ev := domain.CaptionModeChanged{Mode: mode}
		if len(fields) == 2 {
			if ev.SegmentID, err = segmentRef(sessionID, fields[1]); err != nil {
				return parsedCommand{}, err
			}
		}
		return events(ev), nil
	}

	return parsedCommand{}, fmt.Errorf("%w: unknown command /%s", domain.ErrInvalidEvent, command)
}

func events(evs ...domain.UserEvent) parsedCommand {
	return parsedCommand{events: evs}
}

func segmentRef(sessionID, s string) (string, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return "", fmt.Errorf("%w: %q is not a segment number", domain.ErrInvalidEvent, s)
	}
	return domain.ResolveSegmentRef(sessionID, s), nil
}

// sessionIDForChat names the session bound to a Telegram chat.
func sessionIDForChat(chatID int64) string {
	return "tg-" + strconv.FormatInt(chatID, 10)
}

// chatForSession reverses sessionIDForChat. Sessions started elsewhere have
// no chat.
func chatForSession(sessionID string) (int64, bool) {
	rest, ok := strings.CutPrefix(sessionID, "tg-")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
