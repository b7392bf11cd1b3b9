// Command roundctl is the operator CLI for the round program. It inspects
// chain state and issues the administrative instructions the keeper never
// sends on its own.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/roundkeeper/internal/config"
)

type command struct {
	name     string
	usage    string
	signer   bool
	run      func(ctx context.Context, e *env, args []string) error
	noConfig bool
}

var commands = []command{
	{name: "status", usage: "show program config and the active round", run: runStatus},
	{name: "round", usage: "-id N: show one round", run: runRound},
	{name: "derive", usage: "-id N: print the derived round addresses", run: runDerive},
	{name: "ticks", usage: "[-limit N]: list recorded tick reports", run: runTicks},
	{name: "archived", usage: "-id N: show a round from the archive bucket", run: runArchived},
	{name: "init", usage: "[-treasury A] -yes: initialize the program", signer: true, run: runInit},
	{name: "update-treasury", usage: "-address A -yes: change the treasury", signer: true, run: runUpdateTreasury},
	{name: "emergency-withdraw", usage: "-id N [-urim] -yes: drain a round vault to the treasury", signer: true, run: runEmergencyWithdraw},
	{name: "encrypt-key", usage: "-chain C -keyfile F -out F: encrypt a key with KEEPER_WALLET_KEY_PASSWORD", run: runEncryptKey, noConfig: true},
}

var errUsage = errors.New("usage")

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	fs := flag.NewFlagSet("roundctl", flag.ContinueOnError)
	configPath := fs.String("config", "config.toml", "path to configuration file")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(fs)
		return 2
	}

	name, rest := fs.Arg(0), fs.Args()[1:]
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "roundctl: unknown command %q\n", name)
		usage(fs)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := &env{
		out:    os.Stdout,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
	if !cmd.noConfig {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "roundctl: load config: %v\n", err)
			return 1
		}
		validate := cfg.ValidateReadOnly
		if cmd.signer {
			validate = cfg.Validate
		}
		if err := validate(); err != nil {
			fmt.Fprintf(os.Stderr, "roundctl: %v\n", err)
			return 1
		}
		e.cfg = cfg
	}
	defer e.close()

	if err := cmd.run(ctx, e, rest); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "usage: roundctl %s %s\n", cmd.name, cmd.usage)
			return 2
		}
		fmt.Fprintf(os.Stderr, "roundctl %s: %v\n", cmd.name, err)
		return 1
	}
	return 0
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "usage: roundctl [-config path] <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-20s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(os.Stderr)
	fs.PrintDefaults()
}
