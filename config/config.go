/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	spfcbr "github.com/spf13/cobra"
	spfvpr "github.com/spf13/viper"

	"github.com/nabbar/mediagraphd/duration"
	logcfg "github.com/nabbar/mediagraphd/logger/config"
)

// Socket holds the daemon's listening-socket settings (spec.md §6.1:
// XDG_RUNTIME_DIR/PIPEWIRE_CORE resolution, lockfile, stale-socket
// removal).
type Socket struct {
	// RuntimeDir overrides XDG_RUNTIME_DIR; empty means use the
	// environment variable, falling back to /run/user/<uid>.
	RuntimeDir string `mapstructure:"runtimeDir" validate:"omitempty,dir"`
	// Name overrides PIPEWIRE_CORE; empty means "mediagraph-0".
	Name string `mapstructure:"name" validate:"omitempty,min=1"`
}

// Limits bounds per-client and per-registry resource usage so a single
// misbehaving client can't exhaust the daemon (spec.md §5's resource
// model).
type Limits struct {
	MaxClients    int `mapstructure:"maxClients" validate:"min=1"`
	MaxObjectsPer int `mapstructure:"maxObjectsPerClient" validate:"min=1"`
}

// Debug holds settings for the loopback diagnostic HTTP server
// (debughttp.Server). These are ambient server-lifecycle knobs, distinct
// from the core's deliberate absence of wall-clock timeouts on the
// protocol connection itself.
type Debug struct {
	// ReadHeaderTimeout bounds how long debughttp waits for a client's
	// request headers.
	ReadHeaderTimeout duration.Duration `mapstructure:"readHeaderTimeout"`
	// ShutdownGrace bounds how long mediagraphd waits for the debug
	// server to drain in-flight requests on shutdown before abandoning it.
	ShutdownGrace duration.Duration `mapstructure:"shutdownGrace"`
}

// Config is the daemon's full configuration tree.
type Config struct {
	Socket Socket         `mapstructure:"socket"`
	Limits Limits         `mapstructure:"limits"`
	Debug  Debug          `mapstructure:"debug"`
	Log    logcfg.Options `mapstructure:"log"`
}

// Default returns a Config with the daemon's built-in defaults, the
// same values RegisterFlags binds as cobra flag defaults.
func Default() *Config {
	return &Config{
		Socket: Socket{Name: "mediagraph-0"},
		Limits: Limits{MaxClients: 64, MaxObjectsPer: 4096},
		Debug: Debug{
			ReadHeaderTimeout: duration.Duration(5 * time.Second),
			ShutdownGrace:     duration.Duration(5 * time.Second),
		},
	}
}

// SocketPath resolves the full socket path per spec.md §6.1: RuntimeDir
// (or $XDG_RUNTIME_DIR, or /run/user/<uid>) joined with Name (or
// $PIPEWIRE_CORE, or "mediagraph-0").
func (c *Config) SocketPath() string {
	dir := c.Socket.RuntimeDir
	if dir == "" {
		dir = os.Getenv("XDG_RUNTIME_DIR")
	}
	if dir == "" {
		dir = fmt.Sprintf("/run/user/%d", os.Getuid())
	}
	name := c.Socket.Name
	if name == "" {
		name = os.Getenv("PIPEWIRE_CORE")
	}
	if name == "" {
		name = "mediagraph-0"
	}
	return filepath.Join(dir, name)
}

// Validate runs struct-tag validation over the whole tree, per the
// teacher's config/components pattern of validating after unmarshal.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// RegisterFlags adds the daemon's persistent flags to cmd and binds them
// into v, so flag > env > file > default precedence falls out of
// viper's own resolution order.
func RegisterFlags(cmd *spfcbr.Command, v *spfvpr.Viper) error {
	cmd.PersistentFlags().String("socket.runtimeDir", "", "override XDG_RUNTIME_DIR for the listening socket")
	cmd.PersistentFlags().String("socket.name", "mediagraph-0", "socket name, overrides PIPEWIRE_CORE")
	cmd.PersistentFlags().Int("limits.maxClients", 64, "maximum simultaneously connected clients")
	cmd.PersistentFlags().Int("limits.maxObjectsPerClient", 4096, "maximum live objects per client")
	cmd.PersistentFlags().String("debug.readHeaderTimeout", "5s", "debug HTTP server request-header read timeout")
	cmd.PersistentFlags().String("debug.shutdownGrace", "5s", "grace period for draining the debug HTTP server on shutdown")

	for _, key := range []string{
		"socket.runtimeDir", "socket.name",
		"limits.maxClients", "limits.maxObjectsPerClient",
		"debug.readHeaderTimeout", "debug.shutdownGrace",
	} {
		if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(key)); err != nil {
			return fmt.Errorf("config: bind flag %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the config file (if one was found by viper), environment
// variables prefixed MEDIAGRAPHD_, and bound flags into a Config, then
// validates it.
func Load(v *spfvpr.Viper) (*Config, error) {
	v.SetEnvPrefix("MEDIAGRAPHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	if err := v.Unmarshal(cfg, spfvpr.DecodeHook(duration.ViperDecoderHook())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}
