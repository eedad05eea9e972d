// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package configs

import (
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	assert := require.New(t)
	assert.NoError(initConfiguration(env.Options{Environment: map[string]string{}}))

	assert.Equal(slog.LevelInfo, Config.Main.LogLevel)
	assert.Equal("127.0.0.1:8000", ListenAddr())
	assert.Equal(64, Config.Extract.MaxDepth)
	assert.Equal(10*time.Second, time.Duration(Config.Fetch.Timeout))
	assert.Len(TrustedProxies(), 2)
	assert.Len(DeniedIPs(), 11)
}

func TestDefaultDeniedIPs(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	require.NoError(t, initConfiguration(env.Options{Environment: map[string]string{}}))

	blocked := func(ip string) bool {
		for _, n := range DeniedIPs() {
			if n.Contains(net.ParseIP(ip)) {
				return true
			}
		}
		return false
	}

	for _, ip := range []string{
		"0.0.0.0", "0.1.2.3", "127.0.0.1", "10.1.2.3", "172.16.5.4", "192.168.1.1",
		"169.254.169.254", "100.64.0.1", "::", "::1", "fd00::1", "fe80::1",
		"::ffff:127.0.0.1",
	} {
		require.True(t, blocked(ip), ip)
	}

	for _, ip := range []string{"192.0.2.1", "93.184.216.34", "2001:db8::1"} {
		require.False(t, blocked(ip), ip)
	}
}

func TestConfigurationFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	assert := require.New(t)
	err := decodeConfiguration(strings.NewReader(`
[main]
log_level = "debug"

[server]
port = 5000
trusted_proxies = ["10.0.0.0/8"]

[extract]
strict = true
workers = 0

[fetch]
timeout = "3s"
denied_ips = []
`))
	assert.NoError(err)
	assert.NoError(initConfiguration(env.Options{Environment: map[string]string{}}))

	assert.Equal(slog.LevelDebug, Config.Main.LogLevel)
	assert.Equal(5000, Config.Server.Port)
	assert.Equal("10.0.0.0/8", TrustedProxies()[0].String())
	assert.True(Config.Extract.Strict)
	assert.Equal(1, Config.Extract.Workers)
	assert.Equal(3*time.Second, time.Duration(Config.Fetch.Timeout))
	assert.Empty(DeniedIPs())
}

func TestConfigurationErrors(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Run("unknown key", func(t *testing.T) {
		err := decodeConfiguration(strings.NewReader("[main]\nfoo = 1\n"))
		require.ErrorContains(t, err, "invalid configuration")
	})

	t.Run("invalid network", func(t *testing.T) {
		err := initConfiguration(env.Options{Environment: map[string]string{
			"MICROTRON_FETCH_DENIED_IPS": "10.0.0.1",
		}, Prefix: EnvPrefix})
		require.ErrorContains(t, err, "fetch.denied_ips")
	})

	t.Run("missing file", func(t *testing.T) {
		require.NoError(t, LoadConfiguration(filepath.Join(t.TempDir(), "nope.toml")))
	})
}

func TestEnvironment(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	assert := require.New(t)

	filename := filepath.Join(t.TempDir(), "config.toml")
	assert.NoError(os.WriteFile(filename, []byte("[server]\nport = 5000\nhost = \"0.0.0.0\"\n"), 0o600))
	assert.NoError(LoadConfiguration(filename))

	assert.NoError(initConfiguration(env.Options{
		Prefix: EnvPrefix,
		Environment: map[string]string{
			"MICROTRON_MAIN_LOG_LEVEL":         "warn",
			"MICROTRON_SERVER_PORT":            "6000",
			"MICROTRON_EXTRACT_LOOSE_DATES":    "true",
			"MICROTRON_FETCH_TIMEOUT":          "1m",
			"MICROTRON_SERVER_TRUSTED_PROXIES": "192.168.0.0/16,10.0.0.0/8",
		},
	}))

	assert.Equal(slog.LevelWarn, Config.Main.LogLevel)
	assert.Equal("0.0.0.0:6000", ListenAddr())
	assert.True(Config.Extract.LooseDates)
	assert.Equal(time.Minute, time.Duration(Config.Fetch.Timeout))
	assert.Len(TrustedProxies(), 2)
}
