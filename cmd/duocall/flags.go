package main

import (
	"github.com/spf13/pflag"

	"github.com/1ureka/duocall/internal/config"
)

// parseFlags builds the configuration: defaults, then the --config file, then
// every flag that was set explicitly.
func parseFlags(args []string) (config.Config, error) {
	fs := pflag.NewFlagSet("duocall", pflag.ContinueOnError)

	configPath := fs.String("config", "", "YAML config file")
	role := fs.String("role", "", "Role: relay or peer (interactive when empty)")
	listen := fs.String("listen", config.DefaultListen, "Relay listen address")
	relayURL := fs.String("relay", "", "Relay URL to join (peer only)")
	connect := fs.Bool("connect", false, "Call the other peer as soon as the relay is reachable")
	headless := fs.Bool("headless", false, "Disable the interactive controls (peer only)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	ice := fs.StringSlice("ice", nil, "STUN/TURN server URL, repeatable (default Google STUN)")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if fs.Changed("role") {
		cfg.Role = config.Role(*role)
	}
	if fs.Changed("listen") {
		cfg.Listen = *listen
	}
	if fs.Changed("relay") {
		cfg.RelayURL = *relayURL
	}
	if fs.Changed("connect") {
		cfg.Connect = *connect
	}
	if fs.Changed("headless") {
		cfg.Headless = *headless
	}
	if fs.Changed("debug") {
		cfg.Debug = *debug
	}
	if fs.Changed("ice") {
		cfg.ICEServers = []config.ICEServer{{URLs: *ice}}
	}
	return cfg, nil
}
