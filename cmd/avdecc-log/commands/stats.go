package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/avbridge/avdecc-go/pkg/log"
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByProtocol  map[log.Protocol]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Statistics        map[log.StatisticKind]int
	Sessions          map[string]*SessionStats
	Entities          map[protocol.UniqueIdentifier]int
	Errors            int

	// ResponseTimes sums StatisticResponseTime events.
	ResponseTimes     time.Duration
	ResponseTimeCount int

	TimeRange struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for a single engine session.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
}

// AverageResponseTime returns the mean recorded response time, or zero.
func (s *Stats) AverageResponseTime() time.Duration {
	if s.ResponseTimeCount == 0 {
		return 0
	}
	return s.ResponseTimes / time.Duration(s.ResponseTimeCount)
}

func newStats() *Stats {
	return &Stats{
		EventsByProtocol:  make(map[log.Protocol]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Statistics:        make(map[log.StatisticKind]int),
		Sessions:          make(map[string]*SessionStats),
		Entities:          make(map[protocol.UniqueIdentifier]int),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByProtocol[event.Protocol]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	sess, ok := s.Sessions[event.SessionID]
	if !ok {
		sess = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Sessions[event.SessionID] = sess
	}
	sess.Events++
	if event.Timestamp.After(sess.LastSeen) {
		sess.LastSeen = event.Timestamp
	}

	if event.RemoteEntityID != 0 {
		s.Entities[event.RemoteEntityID]++
	}
	if st := event.Statistic; st != nil {
		s.Statistics[st.Kind]++
		if st.Kind == log.StatisticResponseTime && st.ResponseTime != nil {
			s.ResponseTimes += *st.ResponseTime
			s.ResponseTimeCount++
		}
	}
	if event.Error != nil {
		s.Errors++
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	if err := each(reader, func(event log.Event) error {
		stats.add(event)
		return nil
	}); err != nil {
		return err
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== AVDECC Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Protocol:")
	for _, p := range []log.Protocol{log.ProtocolADP, log.ProtocolAECP, log.ProtocolACMP, log.ProtocolNone} {
		if count := stats.EventsByProtocol[p]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", p.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryStatistic, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut, log.DirectionInternal} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Statistics) > 0 {
		fmt.Fprintln(w, "Command Statistics:")
		for _, k := range []log.StatisticKind{log.StatisticResponseTime, log.StatisticRetry, log.StatisticTimeout, log.StatisticUnexpectedResponse} {
			if count := stats.Statistics[k]; count > 0 {
				fmt.Fprintf(w, "  %-22s %d\n", k.String()+":", count)
			}
		}
		if stats.ResponseTimeCount > 0 {
			fmt.Fprintf(w, "  Average response:      %s\n", formatDuration(stats.AverageResponseTime()))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Remote Entities: %d\n", len(stats.Entities))
	ids := make([]protocol.UniqueIdentifier, 0, len(stats.Entities))
	for id := range stats.Entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Fprintf(w, "  %s %d events\n", id, stats.Entities[id])
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenSessionID(s.id), s.stats.Events, duration)
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}

func entityField(id protocol.UniqueIdentifier) string {
	if id == 0 {
		return ""
	}
	return id.String()
}
