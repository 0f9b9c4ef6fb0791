package interactive

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/avbridge/avdecc-go/pkg/entity"
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// commandTimeout bounds how long the shell waits for one command. The
// engine enforces the protocol timeouts itself.
const commandTimeout = 10 * time.Second

var aemCommands = []protocol.AemCommandType{
	protocol.AemAcquireEntity,
	protocol.AemLockEntity,
	protocol.AemEntityAvailable,
	protocol.AemControllerAvailable,
	protocol.AemReadDescriptor,
	protocol.AemSetConfiguration,
	protocol.AemGetConfiguration,
	protocol.AemSetName,
	protocol.AemGetName,
	protocol.AemSetControl,
	protocol.AemGetControl,
	protocol.AemRegisterUnsolNotif,
	protocol.AemDeregisterUnsolNotif,
	protocol.AemGetAvbInfo,
	protocol.AemGetCounters,
	protocol.AemGetDynamicInfo,
}

var acmpCommands = []protocol.AcmpMessageType{
	protocol.AcmpConnectTxCommand,
	protocol.AcmpDisconnectTxCommand,
	protocol.AcmpGetTxStateCommand,
	protocol.AcmpConnectRxCommand,
	protocol.AcmpDisconnectRxCommand,
	protocol.AcmpGetRxStateCommand,
	protocol.AcmpGetTxConnectionCommand,
}

// normalizeName maps "read-descriptor" and "READ_DESCRIPTOR" alike.
func normalizeName(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
}

func parseAemCommand(s string) (protocol.AemCommandType, error) {
	name := normalizeName(s)
	for _, c := range aemCommands {
		if c.String() == name {
			return c, nil
		}
	}
	if v, err := strconv.ParseUint(s, 0, 16); err == nil {
		return protocol.AemCommandType(v), nil
	}
	return 0, fmt.Errorf("unknown AEM command %q", s)
}

func parseAcmpCommand(s string) (protocol.AcmpMessageType, error) {
	name := normalizeName(s)
	for _, c := range acmpCommands {
		if c.String() == name || c.String() == name+"_COMMAND" {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown ACMP command %q", s)
}

func parseRoles(args []string) (controller, talker, listener bool, err error) {
	if len(args) == 0 {
		return false, false, false, errors.New("at least one role is required")
	}
	for _, r := range args {
		switch strings.ToLower(r) {
		case "controller", "c":
			controller = true
		case "talker", "t":
			talker = true
		case "listener", "l":
			listener = true
		default:
			return false, false, false, fmt.Errorf("unknown role %q", r)
		}
	}
	return controller, talker, listener, nil
}

func roles(e *entity.Entity) string {
	var r []string
	if e.IsController() {
		r = append(r, "controller")
	}
	if e.IsTalker() {
		r = append(r, "talker")
	}
	if e.IsListener() {
		r = append(r, "listener")
	}
	if len(r) == 0 {
		return "-"
	}
	return strings.Join(r, ",")
}

// destination returns the MAC of the entity's lowest interface index.
func destination(e *entity.Entity) (protocol.MacAddress, bool) {
	idx := e.InterfaceIndexes()
	if len(idx) == 0 {
		return protocol.MacAddress{}, false
	}
	return e.Interfaces[idx[0]].MacAddress, true
}

func (s *Shell) cmdList() {
	remotes := s.es.Manager().RemoteEntities()
	if len(remotes) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No remote entities discovered")
		return
	}

	fmt.Fprintf(s.rl.Stdout(), "\nRemote Entities (%d):\n", len(remotes))
	fmt.Fprintln(s.rl.Stdout(), "-------------------------------------------")
	for i := range remotes {
		e := &remotes[i]
		fmt.Fprintf(s.rl.Stdout(), "  ID: %s\n", e.EntityID())
		fmt.Fprintf(s.rl.Stdout(), "      Model: %s\n", e.Common.EntityModelID)
		fmt.Fprintf(s.rl.Stdout(), "      Roles: %s\n", roles(e))
		for _, idx := range e.InterfaceIndexes() {
			intf := e.Interfaces[idx]
			fmt.Fprintf(s.rl.Stdout(), "      Interface %d: %s (valid %ds, available index %d)\n",
				idx, intf.MacAddress, int(intf.ValidTime)*2, intf.AvailableIndex)
		}
	}
}

func (s *Shell) cmdLocal() {
	ids := s.es.LocalEntityIDs()
	if len(ids) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No hosted entities")
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "\nHosted Entities (%d):\n", len(ids))
	for _, id := range ids {
		l, ok := s.es.LocalEntity(id)
		if !ok {
			continue
		}
		snap := entity.Entity{Common: l.CommonInformation(), Interfaces: l.InterfacesInformation()}
		fmt.Fprintf(s.rl.Stdout(), "  %s  %s\n", id, roles(&snap))
	}
}

func (s *Shell) cmdDiscover(args []string) {
	if len(args) == 0 {
		if err := s.es.Discover(); err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Discover failed: %v\n", err)
			return
		}
		fmt.Fprintln(s.rl.Stdout(), "ENTITY_DISCOVER sent")
		return
	}
	id, err := protocol.ParseUniqueIdentifier(args[0])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if err := s.es.Manager().DiscoverRemoteEntity(id); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Discover failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "ENTITY_DISCOVER sent for %s\n", id)
}

func (s *Shell) cmdForget(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: forget <entity-id>")
		return
	}
	id, err := protocol.ParseUniqueIdentifier(args[0])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if err := s.es.Manager().ForgetRemoteEntity(id); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Forget failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "OK")
}

func (s *Shell) cmdAdd(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: add <entity-id> <role>...")
		fmt.Fprintln(s.rl.Stdout(), "  Example: add 0x001B92FFFE000001 controller")
		return
	}
	id, err := protocol.ParseUniqueIdentifier(args[0])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	controller, talker, listener, err := parseRoles(args[1:])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}

	common := entity.CommonInformation{
		EntityID:           id,
		EntityCapabilities: protocol.EntityCapAemSupported,
	}
	if controller {
		common.ControllerCapabilities = protocol.ControllerCapImplemented
	}
	if talker {
		common.TalkerStreamSources = 1
		common.TalkerCapabilities = protocol.TalkerCapImplemented
	}
	if listener {
		common.ListenerStreamSinks = 1
		common.ListenerCapabilities = protocol.ListenerCapImplemented
	}
	local, err := entity.NewLocal(common, map[protocol.AvbInterfaceIndex]entity.InterfaceInformation{
		0: {MacAddress: s.es.MacAddress()},
	})
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if err := s.es.AddEntity(local, true); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Add failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Hosting %s\n", id)
}

func (s *Shell) cmdRemove(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: remove <entity-id>")
		return
	}
	id, err := protocol.ParseUniqueIdentifier(args[0])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if err := s.es.RemoveEntity(id); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Remove failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "OK")
}

func (s *Shell) cmdAdvertise(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: advertise <entity-id> on|off")
		return
	}
	id, err := protocol.ParseUniqueIdentifier(args[0])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	switch strings.ToLower(args[1]) {
	case "on":
		err = s.es.Manager().EnableEntityAdvertising(id)
	case "off":
		err = s.es.Manager().DisableEntityAdvertising(id)
	default:
		fmt.Fprintln(s.rl.Stdout(), "Usage: advertise <entity-id> on|off")
		return
	}
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Advertise failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "OK")
}

// controllerID returns the hosted entity commands are sent from,
// preferring one with the controller role.
func (s *Shell) controllerID() (protocol.UniqueIdentifier, error) {
	ids := s.es.LocalEntityIDs()
	idx := slices.IndexFunc(ids, func(id protocol.UniqueIdentifier) bool {
		l, ok := s.es.LocalEntity(id)
		return ok && l.CommonInformation().ControllerCapabilities&protocol.ControllerCapImplemented != 0
	})
	switch {
	case idx >= 0:
		return ids[idx], nil
	case len(ids) > 0:
		return ids[0], nil
	default:
		return 0, errors.New("no hosted entity; add a controller first")
	}
}

func (s *Shell) cmdAem(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: aem <target-id> <command>")
		fmt.Fprintln(s.rl.Stdout(), "  Example: aem 0x001B92FFFE5E0001 entity_available")
		return
	}
	target, err := protocol.ParseUniqueIdentifier(args[0])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	cmdType, err := parseAemCommand(args[1])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	controller, err := s.controllerID()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	remote, ok := s.es.Manager().RemoteEntity(target)
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "Unknown remote entity %s (try 'discover')\n", target)
		return
	}
	dest, ok := destination(&remote)
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "Entity %s has no interface\n", target)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	start := time.Now()
	resp, err := s.es.SendAecpCommand(ctx, &protocol.Aecpdu{
		DestAddress:        dest,
		MessageType:        protocol.AecpAemCommand,
		TargetEntityID:     target,
		ControllerEntityID: controller,
		CommandType:        cmdType,
	})
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "%s failed: %v\n", cmdType, err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "%s -> %s (%s)\n", cmdType, resp.Status, time.Since(start).Round(time.Microsecond))
}

func (s *Shell) cmdAcmp(ctx context.Context, args []string) {
	if len(args) != 5 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: acmp <message> <talker-id> <talker-uid> <listener-id> <listener-uid>")
		fmt.Fprintln(s.rl.Stdout(), "  Example: acmp get_rx_state 0x001B92FFFE5E0001 0 0x001B92FFFE5E0002 0")
		return
	}
	msgType, err := parseAcmpCommand(args[0])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	talker, err := protocol.ParseUniqueIdentifier(args[1])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	talkerUID, err := strconv.ParseUint(args[2], 0, 16)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid talker unique id: %v\n", err)
		return
	}
	listener, err := protocol.ParseUniqueIdentifier(args[3])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	listenerUID, err := strconv.ParseUint(args[4], 0, 16)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid listener unique id: %v\n", err)
		return
	}
	controller, err := s.controllerID()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	resp, err := s.es.SendAcmpCommand(ctx, &protocol.Acmpdu{
		DestAddress:        protocol.MulticastMacAddress,
		MessageType:        msgType,
		ControllerEntityID: controller,
		TalkerEntityID:     talker,
		TalkerUniqueID:     uint16(talkerUID),
		ListenerEntityID:   listener,
		ListenerUniqueID:   uint16(listenerUID),
	})
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "%s failed: %v\n", msgType, err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "%s -> %s (connections %d)\n", resp.MessageType, resp.Status, resp.ConnectionCount)
}

func (s *Shell) cmdStats() {
	st := s.es.Statistics()
	fmt.Fprintln(s.rl.Stdout(), "\nAECP Statistics:")
	fmt.Fprintf(s.rl.Stdout(), "  Responses:            %d\n", st.Responses)
	fmt.Fprintf(s.rl.Stdout(), "  Retries:              %d\n", st.Retries)
	fmt.Fprintf(s.rl.Stdout(), "  Timeouts:             %d\n", st.Timeouts)
	fmt.Fprintf(s.rl.Stdout(), "  Unexpected responses: %d\n", st.UnexpectedResponses)
	fmt.Fprintf(s.rl.Stdout(), "  Average response:     %s\n", st.AverageResponseTime())
	fmt.Fprintf(s.rl.Stdout(), "  Remote entities:      %d\n", len(s.es.Manager().RemoteEntities()))
}
