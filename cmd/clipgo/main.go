package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Kai-project-00/clipgo/internal/app"
	"github.com/Kai-project-00/clipgo/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"clip": true, "category": true, "cat": true,
	"backup": true, "storage": true, "settings": true,
	"export": true, "import": true,
	"serve": true, "ui": true,
	"help": true,
}

// longRunning lists the commands that keep the store open and watch it for
// writes made by other clipgo processes.
var longRunning = map[string]bool{"serve": true, "ui": true}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// needsWatch reports whether this invocation stays up long enough to need
// cross-process change detection.
func needsWatch() bool {
	return !isCLIMode() || longRunning[os.Args[1]]
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
    ___ _ _        ___
   / __| (_)_ __  / __|___
  | (__| | | '_ \| (_ / _ \
   \___|_|_| .__/ \___\___/
           |_|

  Clips saved from AI chats, organized in categories

  Usage: clipgo <command> [options]
         clipgo ui        browse clips in the browser
         clipgo --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before opening the store
	if isHelpOrVersion() {
		cliApp := newCLIApp(nil)
		if err := cliApp.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode() && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'clipgo --help' for usage.\n")
		os.Exit(1)
	}

	os.Exit(run())
}

func run() int {
	baseDir, err := app.DefaultBaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	a, err := app.New(context.Background(), app.Options{BaseDir: baseDir, Watch: needsWatch()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open clip store: %v\n", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error: close: %v\n", err)
		}
	}()

	if isCLIMode() {
		if err := newCLIApp(a).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	// MCP server mode (default)
	if err := mcp.Run(a, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
