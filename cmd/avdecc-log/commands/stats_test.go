package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/avbridge/avdecc-go/pkg/log"
)

func TestRunStats(t *testing.T) {
	rt1, rt2 := 2*time.Millisecond, 4*time.Millisecond
	events := []log.Event{
		aecpFrameEvent(log.DirectionOut, sampleCommand()),
		{Timestamp: ts.Add(time.Second), SessionID: "other-session", Protocol: log.ProtocolADP, Direction: log.DirectionIn, RemoteEntityID: 0x20},
		{Timestamp: ts.Add(2 * time.Second), Protocol: log.ProtocolAECP, Category: log.CategoryStatistic, Direction: log.DirectionInternal,
			Statistic: &log.StatisticEvent{Kind: log.StatisticResponseTime, ResponseTime: &rt1}},
		{Timestamp: ts.Add(3 * time.Second), Protocol: log.ProtocolAECP, Category: log.CategoryStatistic, Direction: log.DirectionInternal,
			Statistic: &log.StatisticEvent{Kind: log.StatisticResponseTime, ResponseTime: &rt2}},
		{Timestamp: ts.Add(4 * time.Second), Protocol: log.ProtocolAECP, Category: log.CategoryStatistic,
			Statistic: &log.StatisticEvent{Kind: log.StatisticTimeout}},
		{Timestamp: ts.Add(5 * time.Second), Protocol: log.ProtocolNone, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "boom"}},
	}
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 6",
		"ADP:",
		"AECP:",
		"NONE:",
		"STATISTIC:",
		"INTERNAL:",
		"RESPONSE_TIME:",
		"TIMEOUT:",
		"Average response:      3.000ms",
		"Remote Entities: 2",
		"0x0000000000000020 1 events",
		"Sessions: 3",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestStatsEmptyFile(t *testing.T) {
	var buf bytes.Buffer
	if err := RunStats(createTestLogFile(t, nil), &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Time Range") {
		t.Error("empty file should not print a time range")
	}
}
