package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aura-nw/smart-account-sample/pkg/config"
	"github.com/aura-nw/smart-account-sample/pkg/policy"
)

const version = "v0.1.0"

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "keygen":
		return runKeygenCmd(args[2:], stdout, stderr)
	case "sign-recovery":
		return runSignRecoveryCmd(args[2:], stdout, stderr)
	case "simulate":
		return runSimulateCmd(args[2:], stdout, stderr)
	case "modules":
		for _, name := range policy.Names() {
			_, _ = fmt.Fprintln(stdout, name)
		}
		return 0
	case "version", "--version":
		_, _ = fmt.Fprintf(stdout, "smartaccount %s (module version %s)\n", version, policy.Version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// newLogger writes structured logs to w at the configured level.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// ANSI Colors
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorRed   = "\033[31m"
	ColorGreen = "\033[32m"
	ColorBlue  = "\033[34m"
	ColorCyan  = "\033[36m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sSmart Account %s%s\n", ColorBold+ColorBlue, version, ColorReset)
	fmt.Fprintf(w, "%sPolicy hooks for programmable accounts.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  smartaccount <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "KEYS")
	printCommand(w, "keygen", "Generate a secp256k1 key and its address (--prefix)")
	printCommand(w, "sign-recovery", "Sign a new public key with the recovery key (--key, --pubkey)")

	printSection(w, "SIMULATION")
	printCommand(w, "simulate", "Replay a scenario against the reference runtime (--scenario, --json)")
	printCommand(w, "modules", "List available policy modules")

	printSection(w, "UTILITIES")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-14s%s %s\n", ColorGreen, name, ColorReset, desc)
}
