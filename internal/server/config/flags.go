package config

import (
	"flag"
	"os"
	"time"

	"github.com/cghughes/authd/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-l int      database connection limit
//	-t int      access token validity, minutes
//	-r int      refresh token validity, days
//	-e int      reset token validity, minutes
//	-k string   SendGrid API key
//	-n string   outbound email from-name
//	-f string   outbound email from-address
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers and converted to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-l", "-t", "-r", "-e", "-k", "-n", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.IntVar(&config.ConnectionLimit, "l", config.ConnectionLimit, "database connection limit")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Hours()/24), "refresh token validity (in days)")
	resetTokenValidityDuration := fs.Int("e", int(config.ResetTokenValidityDuration.Minutes()), "reset token validity (in minutes)")

	fs.StringVar(&config.SendgridAPIKey, "k", config.SendgridAPIKey, "SendGrid API key")
	fs.StringVar(&config.EmailFromName, "n", config.EmailFromName, "outbound email from-name")
	fs.StringVar(&config.EmailFromAddr, "f", config.EmailFromAddr, "outbound email from-address")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * 24 * time.Hour
	config.ResetTokenValidityDuration = time.Duration(*resetTokenValidityDuration) * time.Minute
}
