// Package app contains the top-level orchestration for the relay and peer
// roles.
package app

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"

	"github.com/1ureka/duocall/internal/config"
	"github.com/1ureka/duocall/internal/signaling"
	"github.com/1ureka/duocall/internal/util"
)

// RunRelay serves the signaling relay until ctx is cancelled.
func RunRelay(ctx context.Context, cfg config.Config) error {
	relay := signaling.NewRelay()
	server := signaling.NewServer(relay)

	addr, err := server.Start(cfg.Listen)
	if err != nil {
		return err
	}
	defer server.Close()

	pterm.DefaultBox.
		WithTitle("Signaling Relay").
		Println(fmt.Sprintf("Listen : %s\nPath   : /ws\nHealth : /healthz", addr))
	pterm.Println()

	util.StartStatsReporter(ctx)
	util.LogInfo("Waiting for peers...")

	<-ctx.Done()
	util.LogInfo("Shutting down relay (%d peers connected)", relay.Len())
	return nil
}
