// Command avdecc-sim runs an AVDECC end station hosting the entities of a
// configuration file.
//
// The station attaches to a UDP multicast group, or to an in-process
// virtual bus. With the virtual transport, -peers adds simulated end
// stations on the same bus, each hosting one talker/listener entity, so
// discovery and commands can be exercised without a network.
//
// Usage:
//
//	avdecc-sim [flags]
//
// Flags:
//
//	-config string      Configuration file (.yaml, .yml or .toml)
//	-virtual            Use the virtual transport (overrides the file)
//	-mac string         Transport MAC address (overrides the file)
//	-peers int          Simulated peer stations on the virtual bus
//	-log-level string   Log level: debug, info, warn, error (overrides the file)
//	-capture string     Protocol capture file (overrides the file)
//	-interactive        Enable interactive command mode
//
// Examples:
//
//	# Controller on the LAN, interactive
//	avdecc-sim -config controller.yaml -interactive
//
//	# Self-contained demo with three simulated peers
//	avdecc-sim -virtual -peers 3 -interactive -capture /tmp/demo.alog
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/avbridge/avdecc-go/cmd/avdecc-sim/interactive"
	"github.com/avbridge/avdecc-go/pkg/config"
	"github.com/avbridge/avdecc-go/pkg/endstation"
	avlog "github.com/avbridge/avdecc-go/pkg/log"
	"github.com/avbridge/avdecc-go/pkg/protocol"
	"github.com/avbridge/avdecc-go/pkg/transport"
)

// Flags holds the command line.
type Flags struct {
	ConfigFile  string
	Virtual     bool
	MacAddress  string
	Peers       int
	LogLevel    string
	Capture     string
	Interactive bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file (.yaml, .yml or .toml)")
	flag.BoolVar(&flags.Virtual, "virtual", false, "Use the virtual transport")
	flag.StringVar(&flags.MacAddress, "mac", "", "Transport MAC address")
	flag.IntVar(&flags.Peers, "peers", 0, "Simulated peer stations on the virtual bus")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.Capture, "capture", "", "Protocol capture file")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Enable interactive command mode")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "avdecc-sim: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	file, err := loadConfig()
	if err != nil {
		return err
	}
	level, err := file.Log.SlogLevel()
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	var shell *interactive.Shell
	if flags.Interactive {
		shell, err = interactive.New()
		if err != nil {
			return err
		}
		// Route log output through readline so it does not garble the prompt.
		out = shell.Stdout()
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

	var capture avlog.Logger
	if file.Log.Capture != "" {
		fl, err := avlog.NewFileLogger(file.Log.Capture)
		if err != nil {
			return fmt.Errorf("open capture: %w", err)
		}
		defer fl.Close()
		capture = fl
		logger.Info("capturing protocol events", "file", file.Log.Capture)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var bus *transport.Bus
	var iface transport.Interface
	switch file.Transport.Kind {
	case config.TransportVirtual:
		bus = transport.NewBus(transport.BusOptions{Logger: logger})
		iface, err = bus.NewInterface(file.Transport.Mac())
	default:
		iface, err = transport.NewUDPInterface(file.Transport.UDPConfig(logger))
	}
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}

	cfg := file.EndstationConfig(iface)
	cfg.Logger = logger
	cfg.ProtocolLogger = capture
	es, err := endstation.New(cfg)
	if err != nil {
		iface.Close()
		return err
	}
	es.OnEvent(eventLogger(logger))
	if err := es.Start(ctx); err != nil {
		iface.Close()
		return err
	}
	logger.Info("end station started", "transport", file.Transport.Kind, "mac", es.MacAddress())

	for i, ec := range file.Entities {
		local, err := ec.LocalEntity(es.MacAddress())
		if err != nil {
			logger.Error("invalid entity", "index", i, "error", err)
			continue
		}
		if err := es.AddEntity(local, ec.ShouldAdvertise()); err != nil {
			logger.Error("failed to add entity", "entity_id", local.EntityID(), "error", err)
			continue
		}
		logger.Info("hosting entity", "entity_id", local.EntityID(), "advertise", ec.ShouldAdvertise())
	}

	var peers []*endstation.EndStation
	if bus != nil {
		peers, err = startPeers(ctx, bus, flags.Peers, logger)
		if err != nil {
			logger.Error("failed to start peers", "error", err)
		}
	}

	if shell != nil {
		go shell.Run(ctx, cancel, es)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	for _, p := range peers {
		if err := p.Stop(); err != nil {
			logger.Warn("error stopping peer", "mac", p.MacAddress(), "error", err)
		}
	}
	if err := es.Stop(); err != nil {
		logger.Warn("error stopping end station", "error", err)
	}
	if bus != nil && bus.Dropped() > 0 {
		logger.Info("virtual bus dropped frames", "count", bus.Dropped())
	}
	return nil
}

// loadConfig reads the configuration file, if any, and applies the
// command line overrides.
func loadConfig() (*config.File, error) {
	file := config.Default()
	if flags.ConfigFile != "" {
		var err error
		if file, err = config.Load(flags.ConfigFile); err != nil {
			return nil, err
		}
	}
	if flags.Virtual {
		file.Transport.Kind = config.TransportVirtual
	}
	if flags.MacAddress != "" {
		file.Transport.MacAddress = flags.MacAddress
	}
	if file.Transport.Kind == config.TransportVirtual && file.Transport.MacAddress == "" {
		file.Transport.MacAddress = virtualMac(0).String()
	}
	if flags.LogLevel != "" {
		file.Log.Level = flags.LogLevel
	}
	if flags.Capture != "" {
		file.Log.Capture = flags.Capture
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	if flags.Peers > 0 && file.Transport.Kind != config.TransportVirtual {
		return nil, fmt.Errorf("-peers requires the virtual transport")
	}
	return file, nil
}

func eventLogger(logger *slog.Logger) endstation.EventHandler {
	return func(e endstation.Event) {
		attrs := []any{"entity_id", e.EntityID}
		switch e.Type {
		case endstation.EventEntityOnline, endstation.EventEntityUpdated:
			if e.Entity != nil {
				attrs = append(attrs,
					"model", e.Entity.Common.EntityModelID,
					"talker", e.Entity.IsTalker(),
					"listener", e.Entity.IsListener(),
					"controller", e.Entity.IsController())
			}
		case endstation.EventUnsolicitedResponse, endstation.EventIdentify:
			if e.Aecp != nil {
				attrs = append(attrs, "command", e.Aecp.CommandType)
			}
		case endstation.EventAcmpResponse:
			if e.Acmp != nil {
				attrs = append(attrs, "message", e.Acmp.MessageType, "status", e.Acmp.Status)
			}
		}
		logger.Info(e.Type.String(), attrs...)
	}
}

// virtualMac returns a locally administered address for station n on the
// virtual bus.
func virtualMac(n int) protocol.MacAddress {
	return protocol.MacAddress{0x02, 0x00, 0x5e, 0x00, byte(n >> 8), byte(n)}
}
