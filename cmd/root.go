package cmd

import (
	"context"
	"fmt"
	"strings"
)

// version is overridden at build time with -ldflags "-X ollama-bridge/cmd.version=...".
var version = "2.0.0"

const usage = `ollama-bridge is an OpenAI-compatible proxy for a local Ollama server.

Usage:
  ollama-bridge <command> [flags]

Commands:
  serve    Start the HTTP server
  version  Print the version

Flags:
  -h, --help  Show this help message`

// Execute runs the CLI dispatcher with the provided arguments. With no
// arguments the server starts with its defaults.
func Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return serve(ctx, nil)
	}

	switch args[0] {
	case "serve":
		return serve(ctx, args[1:])
	case "version", "--version":
		fmt.Println(version)
		return nil
	case "help", "-h", "--help":
		return printUsage()
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func printUsage() error {
	fmt.Println(strings.TrimSpace(usage))
	return nil
}
