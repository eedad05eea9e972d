// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package configs contains the Microtron configuration. The configuration
// is read from an optional TOML file, then from the environment.
package configs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/komkom/toml"

	"codeberg.org/microtron/microtron/internal/httpclient"
)

// EnvPrefix is the prefix of every configuration environment variable.
const EnvPrefix = "MICROTRON_"

var (
	version   = "dev"
	buildTime = ""
	startTime = time.Now().UTC()
)

// Duration is a [time.Duration] read from its string form ("10s").
type Duration time.Duration

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Duration returns the [time.Duration] value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type config struct {
	Main    configMain    `json:"main" envPrefix:"MAIN_"`
	Server  configServer  `json:"server" envPrefix:"SERVER_"`
	Extract configExtract `json:"extract" envPrefix:"EXTRACT_"`
	Fetch   configFetch   `json:"fetch" envPrefix:"FETCH_"`
}

type configMain struct {
	LogLevel slog.Level `json:"log_level" env:"LOG_LEVEL"`
	DevMode  bool       `json:"dev_mode" env:"DEV_MODE"`
}

type configServer struct {
	Host           string   `json:"host" env:"HOST"`
	Port           int      `json:"port" env:"PORT"`
	TrustedProxies []string `json:"trusted_proxies" env:"TRUSTED_PROXIES"`
	MaxBodySize    int64    `json:"max_body_size" env:"MAX_BODY_SIZE"`
	trustedProxies []*net.IPNet
}

type configExtract struct {
	Schema        string `json:"schema" env:"SCHEMA"`
	Strict        bool   `json:"strict" env:"STRICT"`
	CollectErrors bool   `json:"collect_errors" env:"COLLECT_ERRORS"`
	LooseDates    bool   `json:"loose_dates" env:"LOOSE_DATES"`
	MaxDepth      int    `json:"max_depth" env:"MAX_DEPTH"`
	Workers       int    `json:"workers" env:"WORKERS"`
}

type configFetch struct {
	Timeout   Duration `json:"timeout" env:"TIMEOUT"`
	DeniedIPs []string `json:"denied_ips" env:"DENIED_IPS"`
	deniedIPs []*net.IPNet
}

// Config holds the configuration data.
var Config = newConfig()

func newConfig() config {
	return config{
		Main: configMain{
			LogLevel: slog.LevelInfo,
		},
		Server: configServer{
			Host:           "127.0.0.1",
			Port:           8000,
			TrustedProxies: []string{"127.0.0.1/8", "::1/128"},
			MaxBodySize:    32 << 20,
		},
		Extract: configExtract{
			MaxDepth: 64,
			Workers:  4,
		},
		Fetch: configFetch{
			Timeout: Duration(10 * time.Second),
			DeniedIPs: []string{
				"0.0.0.0/8", "127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12",
				"192.168.0.0/16", "169.254.0.0/16", "100.64.0.0/10",
				"::/128", "::1/128", "fc00::/7", "fe80::/10",
			},
		},
	}
}

// LoadConfiguration loads the configuration file. A missing file is not
// an error.
func LoadConfiguration(filename string) error {
	if filename == "" {
		return nil
	}

	fd, err := os.Open(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer fd.Close() //nolint:errcheck

	return decodeConfiguration(fd)
}

func decodeConfiguration(r io.Reader) error {
	dec := json.NewDecoder(toml.New(r))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// InitConfiguration applies the environment variables on top of
// the loaded configuration, then checks and prepares the values.
func InitConfiguration() error {
	return initConfiguration(env.Options{Prefix: EnvPrefix})
}

func initConfiguration(opts env.Options) error {
	if err := env.ParseWithOptions(&Config, opts); err != nil {
		return err
	}

	var err error
	if Config.Server.trustedProxies, err = httpclient.ParseNetworks(Config.Server.TrustedProxies...); err != nil {
		return fmt.Errorf("server.trusted_proxies: %w", err)
	}
	if Config.Fetch.deniedIPs, err = httpclient.ParseNetworks(Config.Fetch.DeniedIPs...); err != nil {
		return fmt.Errorf("fetch.denied_ips: %w", err)
	}

	if Config.Extract.Workers < 1 {
		Config.Extract.Workers = 1
	}

	return nil
}

// Reset restores the default configuration.
func Reset() {
	Config = newConfig()
}

// TrustedProxies returns the trusted proxies networks.
func TrustedProxies() []*net.IPNet {
	return Config.Server.trustedProxies
}

// DeniedIPs returns the networks the fetcher can't reach.
func DeniedIPs() []*net.IPNet {
	return Config.Fetch.deniedIPs
}

// ListenAddr returns the server listen address.
func ListenAddr() string {
	return net.JoinHostPort(Config.Server.Host, fmt.Sprint(Config.Server.Port))
}

// Version returns the current version.
func Version() string {
	return version
}

// BuildTime returns the build time or, if empty, the time
// when the application started.
func BuildTime() time.Time {
	if t, err := time.Parse(time.RFC3339, buildTime); err == nil {
		return t
	}
	return startTime
}
