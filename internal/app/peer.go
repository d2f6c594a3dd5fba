package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/1ureka/duocall/internal/config"
	"github.com/1ureka/duocall/internal/media"
	"github.com/1ureka/duocall/internal/session"
	"github.com/1ureka/duocall/internal/signaling"
	"github.com/1ureka/duocall/internal/transport"
	"github.com/1ureka/duocall/internal/util"
)

// RunPeer orchestrates the peer lifecycle:
//  1. Connect to the relay
//  2. Set up the media controller and the negotiator
//  3. Feed relay messages to the negotiator
//  4. Drive intents from flags or the interactive controls until shutdown
func RunPeer(ctx context.Context, cfg config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ── 1. Relay ───────────────────────────────────────────────────────
	util.LogInfo("Connecting to relay %s...", cfg.RelayURL)
	client, err := signaling.Dial(ctx, cfg.RelayURL)
	if err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}
	defer client.Close()
	util.LogSuccess("Connected to relay")

	// ── 2. Media + negotiator ──────────────────────────────────────────
	controller := media.NewController(media.NewSyntheticCapturer(), media.Sinks{
		Local:       newMonitor("local preview"),
		RemoteVideo: newMonitor("remote video"),
		RemoteAudio: newMonitor("remote audio"),
	})
	defer controller.Close()

	api, err := transport.NewAPI()
	if err != nil {
		return err
	}

	negotiator := session.NewNegotiator(session.Config{
		Relay:   client,
		NewPath: transport.Factory(api, cfg.WebRTCICEServers(transport.DefaultSTUNServers)),
		Media:   controller,
	})

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		negotiator.Run(ctx)
	}()

	// ── 3. Relay → negotiator ──────────────────────────────────────────
	go func() {
		defer cancel()
		err := client.Watch(ctx, func(msg signaling.Message) {
			if err := negotiator.HandleMessage(ctx, msg); err != nil {
				util.LogDebug("Handled %s: %v", msg.Type, err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			util.LogError("Lost connection to relay, shutting down: %v", err)
		}
	}()

	util.StartStatsReporter(ctx)

	// ── 4. Intents ─────────────────────────────────────────────────────
	if cfg.Connect {
		if err := negotiator.Connect(ctx); err != nil {
			util.LogError("Failed to call peer: %v", err)
		}
	}

	if cfg.Headless {
		util.LogInfo("Running headless, waiting for calls...")
		<-ctx.Done()
	} else {
		runControls(ctx, negotiator, controller, ptermMenu)
		cancel()
	}

	<-runDone
	util.LogInfo("Peer stopped")
	return nil
}
