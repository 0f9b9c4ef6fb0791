package log

import "testing"

func TestDirectionString(t *testing.T) {
	tests := []struct {
		dir  Direction
		want string
	}{
		{DirectionIn, "IN"},
		{DirectionOut, "OUT"},
		{DirectionInternal, "INTERNAL"},
		{Direction(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.dir.String()
		if got != tt.want {
			t.Errorf("Direction(%d).String() = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestProtocolString(t *testing.T) {
	tests := []struct {
		p    Protocol
		want string
	}{
		{ProtocolADP, "ADP"},
		{ProtocolAECP, "AECP"},
		{ProtocolACMP, "ACMP"},
		{ProtocolNone, "NONE"},
		{Protocol(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.p.String()
		if got != tt.want {
			t.Errorf("Protocol(%d).String() = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestCategoryString(t *testing.T) {
	tests := []struct {
		cat  Category
		want string
	}{
		{CategoryMessage, "MESSAGE"},
		{CategoryState, "STATE"},
		{CategoryStatistic, "STATISTIC"},
		{CategoryError, "ERROR"},
		{Category(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.cat.String()
		if got != tt.want {
			t.Errorf("Category(%d).String() = %q, want %q", tt.cat, got, tt.want)
		}
	}
}

func TestStateEntityString(t *testing.T) {
	tests := []struct {
		e    StateEntity
		want string
	}{
		{StateEntityRemote, "REMOTE_ENTITY"},
		{StateEntityLocal, "LOCAL_ENTITY"},
		{StateEntityAdvertising, "ADVERTISING"},
		{StateEntity(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.e.String()
		if got != tt.want {
			t.Errorf("StateEntity(%d).String() = %q, want %q", tt.e, got, tt.want)
		}
	}
}

func TestStatisticKindString(t *testing.T) {
	tests := []struct {
		k    StatisticKind
		want string
	}{
		{StatisticRetry, "RETRY"},
		{StatisticTimeout, "TIMEOUT"},
		{StatisticUnexpectedResponse, "UNEXPECTED_RESPONSE"},
		{StatisticResponseTime, "RESPONSE_TIME"},
		{StatisticKind(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.k.String()
		if got != tt.want {
			t.Errorf("StatisticKind(%d).String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}
