package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/avbridge/avdecc-go/pkg/log"
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

var ts = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.alog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func aecpFrameEvent(dir log.Direction, pdu *protocol.Aecpdu) log.Event {
	return log.Event{
		Timestamp:      ts,
		SessionID:      "abc12345-6789-0123-4567-890abcdef012",
		Direction:      dir,
		Protocol:       log.ProtocolAECP,
		Category:       log.CategoryMessage,
		LocalEntityID:  pdu.ControllerEntityID,
		RemoteEntityID: pdu.TargetEntityID,
		Frame:          log.AecpFrame(pdu),
	}
}

func sampleCommand() *protocol.Aecpdu {
	return &protocol.Aecpdu{
		SrcAddress:         protocol.MacAddress{0x02, 0, 0, 0, 0, 0x01},
		DestAddress:        protocol.MacAddress{0x02, 0, 0, 0, 0, 0x02},
		MessageType:        protocol.AecpAemCommand,
		TargetEntityID:     0x0011223344550002,
		ControllerEntityID: 0x0011223344550001,
		SequenceID:         7,
		CommandType:        protocol.AemReadDescriptor,
	}
}
