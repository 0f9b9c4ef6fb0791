// Package commands implements the avdecc-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/avbridge/avdecc-go/pkg/log"
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Protocol  *log.Protocol
	Direction *log.Direction
	Category  *log.Category
	EntityID  protocol.UniqueIdentifier
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		Protocol:  f.Protocol,
		Direction: f.Direction,
		Category:  f.Category,
		EntityID:  f.EntityID,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session:id] DIRECTION PROTOCOL Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	session := shortenSessionID(event.SessionID)

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = event.Frame.MessageType
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Statistic != nil:
		typeLabel = event.Statistic.Kind.String()
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [session:%s] %-8s %-4s %s\n", ts, session, event.Direction, event.Protocol, typeLabel)
	if event.LocalEntityID != 0 {
		fmt.Fprintf(w, "  Local: %s\n", event.LocalEntityID)
	}
	if event.RemoteEntityID != 0 {
		fmt.Fprintf(w, "  Remote: %s\n", event.RemoteEntityID)
	}

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Protocol, event.Frame)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Statistic != nil:
		formatStatisticDetails(w, event.Statistic)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatFrameDetails writes frame-specific details. Frames that decode are
// shown field by field, others as hex.
func formatFrameDetails(w io.Writer, proto log.Protocol, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  %s -> %s\n", frame.SrcAddress, frame.DestAddress)
	if frame.SequenceID != nil {
		fmt.Fprintf(w, "  Sequence: %d\n", *frame.SequenceID)
	}
	if frame.Status != "" {
		fmt.Fprintf(w, "  Status: %s\n", frame.Status)
	}

	if len(frame.Data) == 0 {
		return
	}
	if line, ok := decodeFrameSummary(proto, frame); ok {
		fmt.Fprintf(w, "  %s\n", line)
		return
	}
	fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
	if frame.Truncated {
		fmt.Fprintf(w, " (truncated)")
	}
	fmt.Fprintln(w)
}

func decodeFrameSummary(proto log.Protocol, frame *log.FrameEvent) (string, bool) {
	switch proto {
	case log.ProtocolADP:
		var pdu protocol.Adpdu
		if log.DecodeFrame(frame, &pdu) != nil {
			return "", false
		}
		return fmt.Sprintf("Entity: %s  ValidTime: %ds  AvailableIndex: %d  Interface: %d",
			pdu.EntityID, int(pdu.ValidTime)*2, pdu.AvailableIndex, pdu.InterfaceIndex), true
	case log.ProtocolAECP:
		var pdu protocol.Aecpdu
		if log.DecodeFrame(frame, &pdu) != nil {
			return "", false
		}
		s := fmt.Sprintf("Target: %s  Controller: %s", pdu.TargetEntityID, pdu.ControllerEntityID)
		switch pdu.MessageType {
		case protocol.AecpAemCommand, protocol.AecpAemResponse:
			s += "  Command: " + pdu.CommandType.String()
			if pdu.Unsolicited {
				s += " (unsolicited)"
			}
		case protocol.AecpVendorUniqueCmd, protocol.AecpVendorUniqueResp:
			s += "  Protocol: " + pdu.ProtocolIdentifier.String()
		}
		return s, true
	case log.ProtocolACMP:
		var pdu protocol.Acmpdu
		if log.DecodeFrame(frame, &pdu) != nil {
			return "", false
		}
		return fmt.Sprintf("Talker: %s/%d  Listener: %s/%d  Controller: %s",
			pdu.TalkerEntityID, pdu.TalkerUniqueID, pdu.ListenerEntityID, pdu.ListenerUniqueID, pdu.ControllerEntityID), true
	default:
		return "", false
	}
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatStatisticDetails(w io.Writer, st *log.StatisticEvent) {
	fmt.Fprintf(w, "  Sequence: %d\n", st.SequenceID)
	if st.ResponseTime != nil {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(*st.ResponseTime))
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseProtocolFlag parses a protocol string from command-line flag (case-insensitive).
func ParseProtocolFlag(s string) (log.Protocol, error) {
	switch strings.ToLower(s) {
	case "adp":
		return log.ProtocolADP, nil
	case "aecp":
		return log.ProtocolAECP, nil
	case "acmp":
		return log.ProtocolACMP, nil
	case "none":
		return log.ProtocolNone, nil
	default:
		return 0, fmt.Errorf("invalid protocol: %s (must be adp, aecp, acmp, or none)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	case "internal":
		return log.DirectionInternal, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in, out, or internal)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "state":
		return log.CategoryState, nil
	case "statistic":
		return log.CategoryStatistic, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, state, statistic, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
