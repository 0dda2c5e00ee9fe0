// Command ssdwindow opens a single window whose decorations are drawn by
// the compositor and keeps it on screen until the compositor closes it.
package main

import (
	"os"
	"time"

	"github.com/SamuelDevz/WaylandClientWindow/ticker"
	"github.com/SamuelDevz/WaylandClientWindow/wl"
	"github.com/rs/zerolog"
)

func main() {
	os.Exit(run())
}

func run() int {
	ticker.Initialize()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger().
		Level(zerolog.InfoLevel)

	cfg, err := wl.LoadConfig()
	if err != nil {
		log.Error().Err(err).Msg("invalid environment")
		return 1
	}
	if cfg.Tracing() {
		log = log.Level(zerolog.TraceLevel)
	}

	client, err := wl.Connect(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("unable to connect")
		return 1
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("disconnect")
		}
	}()

	if err := client.Resolve(); err != nil {
		log.Error().Err(err).Msg("unable to resolve globals")
		return 1
	}
	w, err := client.CreateWindow(wl.DefaultTitle)
	if err != nil {
		log.Error().Err(err).Msg("unable to create window")
		return 1
	}
	if err := client.Run(w); err != nil {
		log.Error().Err(err).Msg("connection lost")
		return 1
	}
	log.Info().Uint32("uptime_ms", ticker.GetAsMS()).Msg("shutdown")
	return 0
}
