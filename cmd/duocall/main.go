// duocall: CLI entry point.
//
// One binary, two roles. The relay forwards signaling messages between the
// two participants; a peer joins the relay and negotiates an audio/video call
// with the other peer over WebRTC using complete (non-trickle) descriptions.
//
// It can be launched interactively (no --role) or non-interactively via
// flags and an optional YAML config file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/pflag"

	"github.com/1ureka/duocall/internal/app"
	"github.com/1ureka/duocall/internal/config"
	"github.com/1ureka/duocall/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("duocall v%s", version))
	pterm.Println()

	if cfg.Role == "" {
		askRole(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	switch cfg.Role {
	case config.RoleRelay:
		err = app.RunRelay(ctx, cfg)
	case config.RolePeer:
		err = app.RunPeer(ctx, cfg)
	}
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	util.LogInfo("successfully closed")
}

// ---------------------------------------------------------------------------
// Interactive prompts
// ---------------------------------------------------------------------------

// askRole falls back to interactive prompts when no --role is given.
func askRole(cfg *config.Config) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Relay : forward signaling between two peers", "Peer  : join a call through a relay"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if strings.HasPrefix(role, "Relay") {
		cfg.Role = config.RoleRelay
		return
	}
	cfg.Role = config.RolePeer
	if cfg.RelayURL == "" {
		cfg.RelayURL = askURL()
	}
}

// askURL prompts for a relay URL until a valid one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Relay URL (e.g. localhost:3000 or wss://relay.example.com)").
			Show()

		u, err := config.NormalizeRelayURL(raw)
		if err == nil {
			pterm.Println()
			return u
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}
