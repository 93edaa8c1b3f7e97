package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {

	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	// Test cases
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-d", "db", "-s", "secret", "-l", "50",
			"-t", "15", "-r", "7", "-e", "5", "-k", "sg-key", "-n", "Auth", "-f", "auth@example.com",
		}, expectPanic: false,
			expected: &Config{
				EndpointAddrHTTP:             "127.0.0.1:9090",
				DatabaseDSN:                  "db",
				SecretKey:                    "secret",
				ConnectionLimit:              50,
				AccessTokenValidityDuration:  15 * time.Minute,
				RefreshTokenValidityDuration: 7 * 24 * time.Hour,
				ResetTokenValidityDuration:   5 * time.Minute,
				SendgridAPIKey:               "sg-key",
				EmailFromName:                "Auth",
				EmailFromAddr:                "auth@example.com",
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {

				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
