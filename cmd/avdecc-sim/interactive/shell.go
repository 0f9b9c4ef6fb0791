// Package interactive provides the interactive command-line interface
// for avdecc-sim.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/avbridge/avdecc-go/pkg/endstation"
)

// Shell handles interactive mode for avdecc-sim.
type Shell struct {
	rl *readline.Instance
	es *endstation.EndStation
}

// New creates the shell. The readline instance is created up front so
// log output can be routed through Stdout before the station starts.
func New() (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "avdecc> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run starts the interactive command loop against es.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc, es *endstation.EndStation) {
	defer s.rl.Close()
	s.es = es

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "list", "ls":
			s.cmdList()

		case "local":
			s.cmdLocal()

		case "discover", "d":
			s.cmdDiscover(args)

		case "forget":
			s.cmdForget(args)

		case "add":
			s.cmdAdd(args)

		case "remove", "rm":
			s.cmdRemove(args)

		case "advertise":
			s.cmdAdvertise(args)

		case "aem":
			s.cmdAem(ctx, args)

		case "acmp":
			s.cmdAcmp(ctx, args)

		case "stats":
			s.cmdStats()

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
AVDECC Commands:
  Discovery:
    list                                   - List discovered remote entities
    discover [entity-id]                   - Send ENTITY_DISCOVER (global or targeted)
    forget <entity-id>                     - Drop a remote entity without notification

  Hosted entities:
    local                                  - List hosted entities
    add <entity-id> <role>...              - Host an entity (roles: controller, talker, listener)
    remove <entity-id>                     - Withdraw a hosted entity
    advertise <entity-id> on|off           - Start or stop advertising

  Commands:
    aem <target-id> <command>              - Send an AEM command (e.g. entity_available)
    acmp <message> <talker-id> <talker-uid> <listener-id> <listener-uid>
                                           - Send an ACMP command (e.g. get_rx_state)

  General:
    stats                                  - Show command statistics
    help                                   - Show this help
    quit                                   - Exit`)
}
