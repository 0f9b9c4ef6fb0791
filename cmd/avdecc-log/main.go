// Command avdecc-log is a tool for viewing and analyzing AVDECC protocol
// capture files.
//
// Capture files are written by avdecc-sim with the -capture flag, or by
// any application that sets endstation.Config.ProtocolLogger to a
// log.FileLogger.
//
// Usage:
//
//	avdecc-log <command> [flags] <file.alog>
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSONL, CSV or YAML
//	filter   Filter capture file and write to new file
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View all events
//	avdecc-log view station.alog
//
//	# View only AECP frames
//	avdecc-log view -protocol aecp -category message station.alog
//
//	# Everything involving one entity
//	avdecc-log view -entity 0x001B92FFFE000001 station.alog
//
//	# Export to CSV
//	avdecc-log export -format csv -o station.csv station.alog
//
//	# Keep one session and save to a new file
//	avdecc-log filter -session 6f1c2a9e -o session.alog station.alog
//
//	# Show statistics
//	avdecc-log stats station.alog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/avbridge/avdecc-go/cmd/avdecc-log/commands"
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

const usage = `avdecc-log - AVDECC Protocol Capture Analyzer

Usage:
  avdecc-log <command> [flags] <file.alog>

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSONL, CSV or YAML
  filter   Filter capture file and write to new file
  stats    Show statistics about the capture file

Use "avdecc-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// parseArgs parses the flag set and returns the single capture file path.
func parseArgs(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func usageFor(fs *flag.FlagSet, title, synopsis string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "avdecc-log %s - %s\n\nUsage:\n  avdecc-log %s\n\nFlags:\n", fs.Name(), title, synopsis)
		fs.PrintDefaults()
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = usageFor(fs, "View capture file in human-readable format", "view [flags] <file.alog>")

	proto := fs.String("protocol", "", "Filter by protocol (adp, aecp, acmp, none)")
	direction := fs.String("direction", "", "Filter by direction (in, out, internal)")
	category := fs.String("category", "", "Filter by category (message, state, statistic, error)")
	entityID := fs.String("entity", "", "Filter by local or remote entity ID")

	path := parseArgs(fs, args)

	var filter commands.ViewFilter
	if *proto != "" {
		p, err := commands.ParseProtocolFlag(*proto)
		if err != nil {
			fail(err)
		}
		filter.Protocol = &p
	}
	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fail(err)
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}
	if *entityID != "" {
		id, err := protocol.ParseUniqueIdentifier(*entityID)
		if err != nil {
			fail(err)
		}
		filter.EntityID = id
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = usageFor(fs, "Export capture file to JSONL, CSV or YAML", "export [flags] <file.alog>")

	format := fs.String("format", "jsonl", "Output format (jsonl, csv, yaml)")
	output := fs.String("o", "", "Output file (default: stdout)")

	path := parseArgs(fs, args)
	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = usageFor(fs, "Filter capture file and write to new file", "filter [flags] <file.alog>")

	output := fs.String("o", "", "Output file (required)")
	sessionID := fs.String("session", "", "Filter by session ID")
	entityID := fs.String("entity", "", "Filter by local or remote entity ID")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	proto := fs.String("protocol", "", "Filter by protocol (adp, aecp, acmp, none)")
	direction := fs.String("direction", "", "Filter by direction (in, out, internal)")
	category := fs.String("category", "", "Filter by category (message, state, statistic, error)")

	path := parseArgs(fs, args)
	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	n, err := commands.RunFilter(path, commands.FilterOptions{
		Output:    *output,
		SessionID: *sessionID,
		EntityID:  *entityID,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
		Protocol:  *proto,
		Direction: *direction,
		Category:  *category,
	})
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = usageFor(fs, "Show statistics about the capture file", "stats <file.alog>")

	path := parseArgs(fs, args)
	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
