package app

import (
	"context"
	"errors"

	"github.com/pterm/pterm"

	"github.com/1ureka/duocall/internal/media"
	"github.com/1ureka/duocall/internal/session"
	"github.com/1ureka/duocall/internal/util"
)

const (
	optConnect = "Call peer"
	optAudio   = "Toggle audio"
	optVideo   = "Toggle video"
	optCamera  = "Select camera"
	optHangup  = "Hang up"
	optStatus  = "Show status"
	optQuit    = "Quit"
)

// menuFunc shows one selection menu and returns the chosen option.
type menuFunc func(text string, options []string) (string, error)

func ptermMenu(text string, options []string) (string, error) {
	return pterm.DefaultInteractiveSelect.
		WithOptions(options).
		WithDefaultText(text).
		Show()
}

// pick runs menu on its own goroutine and gives up when ctx is done. A
// keyboard read left pending that way ends with the process.
func pick(ctx context.Context, menu menuFunc, text string, options []string) (string, error) {
	type result struct {
		choice string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		choice, err := menu(text, options)
		done <- result{choice, err}
	}()

	select {
	case r := <-done:
		return r.choice, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// runControls shows the interactive control menu until the user quits or
// ctx is cancelled, e.g. when the relay connection drops.
func runControls(ctx context.Context, n *session.Negotiator, c *media.Controller, menu menuFunc) {
	options := []string{optConnect, optAudio, optVideo, optCamera, optHangup, optStatus, optQuit}

	for ctx.Err() == nil {
		choice, err := pick(ctx, menu, "Media "+c.Status().String(), options)
		if err != nil {
			if ctx.Err() == nil {
				util.LogDebug("control menu closed: %v", err)
			}
			return
		}

		switch choice {
		case optConnect:
			if err := n.Connect(ctx); err != nil {
				util.LogWarning("Cannot call: %v", err)
			}
		case optAudio:
			if _, err := c.ToggleAudio(ctx); err != nil {
				util.LogError("Toggle audio: %v", err)
			}
		case optVideo:
			if _, err := c.ToggleVideo(ctx); err != nil {
				util.LogError("Toggle video: %v", err)
			}
		case optCamera:
			selectCamera(ctx, c, menu)
		case optHangup:
			if err := n.Hangup(ctx); errors.Is(err, session.ErrNoActiveConnection) {
				util.LogWarning("No call in progress")
			}
		case optStatus:
			snap, err := n.Snapshot(ctx)
			if err != nil {
				return
			}
			util.LogInfo("Session: %s | Media: %s", snap, c.Status())
		case optQuit:
			return
		}
		pterm.Println()
	}
}

func selectCamera(ctx context.Context, c *media.Controller, menu menuFunc) {
	devices, err := c.Devices(ctx)
	if err != nil {
		util.LogError("List cameras: %v", err)
		return
	}

	labels := make([]string, 0, len(devices))
	byLabel := make(map[string]string, len(devices))
	for _, d := range devices {
		labels = append(labels, d.Label)
		byLabel[d.Label] = d.ID
	}

	choice, err := pick(ctx, menu, "Select camera", labels)
	if err != nil {
		return
	}
	if err := c.SelectCamera(ctx, byLabel[choice]); err != nil {
		util.LogError("Select camera: %v", err)
		return
	}
	util.LogSuccess("Camera set to %s", choice)
}
