package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("protocol", event.Protocol.String()),
		slog.String("category", event.Category.String()),
	}

	if event.LocalEntityID != 0 {
		attrs = append(attrs, slog.String("local_entity", event.LocalEntityID.String()))
	}
	if event.RemoteEntityID != 0 {
		attrs = append(attrs, slog.String("remote_entity", event.RemoteEntityID.String()))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.String("msg_type", event.Frame.MessageType),
			slog.String("src", event.Frame.SrcAddress),
			slog.String("dest", event.Frame.DestAddress),
		)
		if event.Frame.SequenceID != nil {
			attrs = append(attrs, slog.Uint64("seq", uint64(*event.Frame.SequenceID)))
		}
		if event.Frame.Status != "" {
			attrs = append(attrs, slog.String("status", event.Frame.Status))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Statistic != nil:
		attrs = append(attrs,
			slog.String("statistic", event.Statistic.Kind.String()),
			slog.Uint64("seq", uint64(event.Statistic.SequenceID)),
		)
		if event.Statistic.ResponseTime != nil {
			attrs = append(attrs, slog.Duration("response_time", *event.Statistic.ResponseTime))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
