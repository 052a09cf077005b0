// inputvizd captures keyboard, mouse and trackpad input and streams what an
// on-screen visualizer would show.
//
//	inputvizd run      Run the daemon, streaming snapshots as JSON lines
//	inputvizd watch    Run the daemon with a styled terminal view
//	inputvizd demo     Play a scripted synthetic sequence
//	inputvizd status   Show capture availability and configuration source
//	inputvizd config   Print the effective configuration
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = cmdRun("run", args, "json")
	case "watch":
		err = cmdRun("watch", args, "auto")
	case "demo":
		err = cmdDemo(args)
	case "status":
		err = cmdStatus(args)
	case "config":
		err = cmdConfig(args)
	case "version":
		fmt.Println("inputvizd", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "inputvizd %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`inputvizd - keyboard, mouse and trackpad visualizer backend

USAGE:
    inputvizd <command> [options]

COMMANDS:
    run        Capture input and stream snapshots to stdout as JSON lines
    watch      Capture input and render snapshots for a terminal
    demo       Play a scripted input sequence through the pipeline
    status     Show capture permissions and configuration source
    config     Print the effective configuration
    version    Print the version
    help       Show this help message

COMMON OPTIONS:
    -config <path>   Configuration file (toml, json or yaml)

SIGNALS:
    SIGINT, SIGTERM  Stop monitoring and exit
    SIGHUP           Reopen the log file and reload the configuration

The daemon only observes input. It never blocks, modifies or records
keystrokes to disk; key glyphs are redacted from logs unless
logging.log_keys is set.`)
}
