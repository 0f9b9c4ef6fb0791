package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/avbridge/avdecc-go/pkg/endstation"
	"github.com/avbridge/avdecc-go/pkg/entity"
	"github.com/avbridge/avdecc-go/pkg/protocol"
	"github.com/avbridge/avdecc-go/pkg/statemachine"
	"github.com/avbridge/avdecc-go/pkg/transport"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Transport kinds.
const (
	TransportUDP     = "udp"
	TransportVirtual = "virtual"
)

// ErrUnknownFormat is returned for a file extension that is neither YAML
// nor TOML.
var ErrUnknownFormat = errors.New("unknown config format")

// LoadError describes a configuration file that could not be used.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.File == "" {
		return msg
	}
	return e.File + ": " + msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Duration is a time.Duration written as a Go duration string ("250ms").
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// File is the top-level configuration of an end station.
type File struct {
	Transport TransportConfig `yaml:"transport" toml:"transport"`
	Engine    EngineConfig    `yaml:"engine" toml:"engine"`
	Log       LogConfig       `yaml:"log" toml:"log"`
	Entities  []EntityConfig  `yaml:"entities" toml:"entities"`
}

// TransportConfig selects and configures the network attachment.
type TransportConfig struct {
	// Kind is "udp" (default) or "virtual".
	Kind string `yaml:"kind" toml:"kind"`

	// MacAddress is the attachment's address. Optional for udp.
	MacAddress string `yaml:"mac_address" toml:"mac_address"`

	Group           string `yaml:"group" toml:"group"`
	Interface       string `yaml:"interface" toml:"interface"`
	TTL             int    `yaml:"ttl" toml:"ttl"`
	DisableLoopback bool   `yaml:"disable_loopback" toml:"disable_loopback"`
}

// EngineConfig tunes the protocol engine.
type EngineConfig struct {
	TickInterval     Duration     `yaml:"tick_interval" toml:"tick_interval"`
	DiscoveryDelay   *Duration    `yaml:"discovery_delay" toml:"discovery_delay"`
	DisableResponder bool         `yaml:"disable_responder" toml:"disable_responder"`
	Aecp             WindowConfig `yaml:"aecp" toml:"aecp"`
	AcmpMulticast    WindowConfig `yaml:"acmp_multicast" toml:"acmp_multicast"`
	AcmpUnicast      WindowConfig `yaml:"acmp_unicast" toml:"acmp_unicast"`
}

// WindowConfig limits commands toward one destination.
type WindowConfig struct {
	MaxInflight  int      `yaml:"max_inflight" toml:"max_inflight"`
	SendInterval Duration `yaml:"send_interval" toml:"send_interval"`
}

// LogConfig configures operational logging and protocol capture.
type LogConfig struct {
	// Level is a slog level name (default "info").
	Level string `yaml:"level" toml:"level"`

	// Capture is the path of a protocol capture file (.alog). Empty
	// disables capture.
	Capture string `yaml:"capture" toml:"capture"`
}

// EntityConfig describes a hosted entity.
type EntityConfig struct {
	EntityID      string `yaml:"entity_id" toml:"entity_id"`
	EntityModelID string `yaml:"entity_model_id" toml:"entity_model_id"`
	AssociationID string `yaml:"association_id" toml:"association_id"`

	AemSupported    bool   `yaml:"aem_supported" toml:"aem_supported"`
	Controller      bool   `yaml:"controller" toml:"controller"`
	TalkerSources   uint16 `yaml:"talker_sources" toml:"talker_sources"`
	ListenerSinks   uint16 `yaml:"listener_sinks" toml:"listener_sinks"`
	ValidTime       uint8  `yaml:"valid_time" toml:"valid_time"`
	GptpGrandmaster string `yaml:"gptp_grandmaster" toml:"gptp_grandmaster"`
	GptpDomain      uint8  `yaml:"gptp_domain" toml:"gptp_domain"`

	// Advertise defaults to true.
	Advertise *bool `yaml:"advertise" toml:"advertise"`
}

// Default returns a File with every default applied and no entities.
func Default() *File {
	f := &File{}
	f.applyDefaults()
	return f
}

// FormatFor returns the format implied by a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Load reads, defaults and validates a configuration file.
func Load(path string) (*File, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "unsupported file", Cause: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	f, err := Parse(data, format)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return nil, err
	}
	return f, nil
}

// Parse decodes, defaults and validates configuration data. Unknown keys
// are rejected.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, &LoadError{Message: "failed to parse TOML", Cause: err}
		}
	default:
		return nil, &LoadError{Message: "unsupported format", Cause: fmt.Errorf("%w: %q", ErrUnknownFormat, format)}
	}

	f.applyDefaults()
	if err := f.Validate(); err != nil {
		return nil, &LoadError{Message: "invalid configuration", Cause: err}
	}
	return &f, nil
}

func (f *File) applyDefaults() {
	if f.Transport.Kind == "" {
		f.Transport.Kind = TransportUDP
	}
	if f.Transport.Kind == TransportUDP {
		if f.Transport.Group == "" {
			f.Transport.Group = transport.DefaultGroup
		}
		if f.Transport.TTL == 0 {
			f.Transport.TTL = transport.DefaultTTL
		}
	}
	if f.Engine.TickInterval == 0 {
		f.Engine.TickInterval = Duration(statemachine.DefaultTickInterval)
	}
	if f.Engine.DiscoveryDelay == nil {
		d := Duration(endstation.DefaultDiscoveryDelay)
		f.Engine.DiscoveryDelay = &d
	}
	if f.Log.Level == "" {
		f.Log.Level = "info"
	}
	for i := range f.Entities {
		if f.Entities[i].ValidTime == 0 {
			f.Entities[i].ValidTime = entity.DefaultValidTime
		}
		if f.Entities[i].Advertise == nil {
			advertise := true
			f.Entities[i].Advertise = &advertise
		}
	}
}

// Validate checks the configuration.
func (f *File) Validate() error {
	switch f.Transport.Kind {
	case TransportUDP:
		if f.Transport.TTL < 0 || f.Transport.TTL > 255 {
			return fmt.Errorf("transport ttl %d out of range", f.Transport.TTL)
		}
	case TransportVirtual:
		if f.Transport.MacAddress == "" {
			return errors.New("virtual transport requires mac_address")
		}
	default:
		return fmt.Errorf("unknown transport kind %q", f.Transport.Kind)
	}
	if f.Transport.MacAddress != "" {
		mac, err := protocol.ParseMacAddress(f.Transport.MacAddress)
		if err != nil {
			return fmt.Errorf("transport mac_address: %w", err)
		}
		if mac.IsMulticast() || mac.IsZero() {
			return fmt.Errorf("transport mac_address %s must be a unicast address", mac)
		}
	}

	if f.Engine.TickInterval < 0 || (f.Engine.DiscoveryDelay != nil && *f.Engine.DiscoveryDelay < 0) {
		return errors.New("engine durations must not be negative")
	}
	for name, w := range map[string]WindowConfig{
		"aecp":           f.Engine.Aecp,
		"acmp_multicast": f.Engine.AcmpMulticast,
		"acmp_unicast":   f.Engine.AcmpUnicast,
	} {
		if w.MaxInflight < 0 || w.SendInterval < 0 {
			return fmt.Errorf("engine %s window must not be negative", name)
		}
	}

	if _, err := f.Log.SlogLevel(); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	seen := make(map[protocol.UniqueIdentifier]bool, len(f.Entities))
	for i, e := range f.Entities {
		id, err := e.validate()
		if err != nil {
			return fmt.Errorf("entity[%d]: %w", i, err)
		}
		if seen[id] {
			return fmt.Errorf("entity[%d]: duplicate entity_id %s", i, id)
		}
		seen[id] = true
	}
	return nil
}

// SlogLevel returns the configured log level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}

// Mac returns the configured transport address, or the zero address.
func (t TransportConfig) Mac() protocol.MacAddress {
	mac, _ := protocol.ParseMacAddress(t.MacAddress)
	return mac
}

// UDPConfig converts the transport section for transport.NewUDPInterface.
func (t TransportConfig) UDPConfig(logger *slog.Logger) transport.UDPConfig {
	return transport.UDPConfig{
		Group:           t.Group,
		InterfaceName:   t.Interface,
		MacAddress:      t.Mac(),
		TTL:             t.TTL,
		DisableLoopback: t.DisableLoopback,
		Logger:          logger,
	}
}

// EndstationConfig converts the engine section. The caller supplies the
// interface and loggers.
func (f *File) EndstationConfig(iface transport.Interface) endstation.Config {
	cfg := endstation.DefaultConfig()
	cfg.Interface = iface
	cfg.TickInterval = time.Duration(f.Engine.TickInterval)
	if f.Engine.DiscoveryDelay != nil {
		cfg.DiscoveryDelay = time.Duration(*f.Engine.DiscoveryDelay)
	}
	cfg.DisableResponder = f.Engine.DisableResponder
	cfg.Command.Aecp = f.Engine.Aecp.window(cfg.Command.Aecp)
	cfg.Command.AcmpMulticast = f.Engine.AcmpMulticast.window(cfg.Command.AcmpMulticast)
	cfg.Command.AcmpUnicast = f.Engine.AcmpUnicast.window(cfg.Command.AcmpUnicast)
	return cfg
}

func (w WindowConfig) window(def statemachine.Window) statemachine.Window {
	if w.MaxInflight > 0 {
		def.MaxInflight = w.MaxInflight
	}
	if w.SendInterval > 0 {
		def.SendInterval = time.Duration(w.SendInterval)
	}
	return def
}

func (e EntityConfig) validate() (protocol.UniqueIdentifier, error) {
	id, err := protocol.ParseUniqueIdentifier(e.EntityID)
	if err != nil {
		return 0, fmt.Errorf("entity_id: %w", err)
	}
	if !id.IsValid() {
		return 0, fmt.Errorf("entity_id %s is reserved", id)
	}
	if e.EntityModelID != "" {
		if _, err := protocol.ParseUniqueIdentifier(e.EntityModelID); err != nil {
			return 0, fmt.Errorf("entity_model_id: %w", err)
		}
	}
	if e.AssociationID != "" {
		if _, err := protocol.ParseUniqueIdentifier(e.AssociationID); err != nil {
			return 0, fmt.Errorf("association_id: %w", err)
		}
	}
	if e.GptpGrandmaster != "" {
		if _, err := protocol.ParseUniqueIdentifier(e.GptpGrandmaster); err != nil {
			return 0, fmt.Errorf("gptp_grandmaster: %w", err)
		}
	}
	if e.ValidTime > entity.MaxValidTime {
		return 0, fmt.Errorf("valid_time %d exceeds %d", e.ValidTime, entity.MaxValidTime)
	}
	if !e.Controller && e.TalkerSources == 0 && e.ListenerSinks == 0 {
		return 0, errors.New("entity must be a controller, talker or listener")
	}
	return id, nil
}

// ShouldAdvertise reports whether the entity is advertised once added.
func (e EntityConfig) ShouldAdvertise() bool {
	return e.Advertise == nil || *e.Advertise
}

// LocalEntity builds the hosted entity with a single interface on mac.
func (e EntityConfig) LocalEntity(mac protocol.MacAddress) (*entity.Local, error) {
	id, err := e.validate()
	if err != nil {
		return nil, err
	}

	common := entity.CommonInformation{EntityID: id}
	if e.EntityModelID != "" {
		common.EntityModelID, _ = protocol.ParseUniqueIdentifier(e.EntityModelID)
	}
	if e.AssociationID != "" {
		assoc, _ := protocol.ParseUniqueIdentifier(e.AssociationID)
		common.AssociationID = &assoc
		common.EntityCapabilities = common.EntityCapabilities.With(protocol.EntityCapAssociationIDValid)
	}
	if e.AemSupported {
		common.EntityCapabilities = common.EntityCapabilities.With(protocol.EntityCapAemSupported)
	}
	if e.Controller {
		common.ControllerCapabilities = protocol.ControllerCapImplemented
	}
	if e.TalkerSources > 0 {
		common.TalkerStreamSources = e.TalkerSources
		common.TalkerCapabilities = protocol.TalkerCapImplemented
	}
	if e.ListenerSinks > 0 {
		common.ListenerStreamSinks = e.ListenerSinks
		common.ListenerCapabilities = protocol.ListenerCapImplemented
	}

	intf := entity.InterfaceInformation{MacAddress: mac, ValidTime: e.ValidTime}
	if e.GptpGrandmaster != "" {
		gm, _ := protocol.ParseUniqueIdentifier(e.GptpGrandmaster)
		intf.GptpGrandmasterID = &gm
		intf.GptpDomainNumber = entity.Ptr(e.GptpDomain)
		common.EntityCapabilities = common.EntityCapabilities.With(protocol.EntityCapGptpSupported)
	}
	return entity.NewLocal(common, map[protocol.AvbInterfaceIndex]entity.InterfaceInformation{0: intf})
}
