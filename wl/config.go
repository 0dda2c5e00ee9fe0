package wl

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Config holds the environment used to locate the compositor.
type Config struct {
	// Socket is an already connected socket fd inherited from the parent.
	// It takes precedence over Display.
	Socket     string `envconfig:"WAYLAND_SOCKET"`
	Display    string `envconfig:"WAYLAND_DISPLAY" default:"wayland-0"`
	RuntimeDir string `envconfig:"XDG_RUNTIME_DIR"`
	Debug      string `envconfig:"WAYLAND_DEBUG"`
}

// LoadConfig reads the wayland related environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "unable to read wayland environment")
	}
	return &cfg, nil
}

// Tracing reports whether wire messages should be logged.
func (cfg *Config) Tracing() bool {
	switch strings.TrimSpace(cfg.Debug) {
	case "1", "true", "all":
		return true
	}
	return strings.Contains(cfg.Debug, "client")
}

// SocketFD returns the inherited socket descriptor, or -1 if there is none.
func (cfg *Config) SocketFD() (int, error) {
	if cfg.Socket == "" {
		return -1, nil
	}
	fd, err := strconv.Atoi(cfg.Socket)
	if err != nil || fd < 0 {
		return -1, errors.Errorf("WAYLAND_SOCKET is not a file descriptor (%q)", cfg.Socket)
	}
	return fd, nil
}

// SocketPath resolves the display name to the compositor socket path.
func (cfg *Config) SocketPath() (string, error) {
	name := cfg.Display
	if name == "" {
		name = "wayland-0"
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	if cfg.RuntimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set in environment")
	}
	return filepath.Join(cfg.RuntimeDir, name), nil
}
