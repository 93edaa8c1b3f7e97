package config

import (
	"encoding/json"
	"os"

	"github.com/cghughes/authd/internal/flagx"
	"github.com/cghughes/authd/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "30m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	ConnectionLimit              int            `json:"connection_limit"`
	BindingTTL                   timex.Duration `json:"binding_ttl"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	ResetTokenValidityDuration   timex.Duration `json:"reset_token_validity_duration"`
	SendgridAPIKey               string         `json:"sendgrid_api_key"`
	EmailFromName                string         `json:"email_from_name"`
	EmailFromAddr                string         `json:"email_from_addr"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; if
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics. Only non-zero JSON values
// overwrite the current Config.
func parseJson(config *Config) {
	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != "" {
		config.EndpointAddrHTTP = c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.ConnectionLimit > 0 {
		config.ConnectionLimit = c.ConnectionLimit
	}
	if c.BindingTTL.Std() > 0 {
		config.BindingTTL = c.BindingTTL.Std()
	}
	if c.AccessTokenValidityDuration.Std() > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Std()
	}
	if c.RefreshTokenValidityDuration.Std() > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Std()
	}
	if c.ResetTokenValidityDuration.Std() > 0 {
		config.ResetTokenValidityDuration = c.ResetTokenValidityDuration.Std()
	}
	if c.SendgridAPIKey != "" {
		config.SendgridAPIKey = c.SendgridAPIKey
	}
	if c.EmailFromName != "" {
		config.EmailFromName = c.EmailFromName
	}
	if c.EmailFromAddr != "" {
		config.EmailFromAddr = c.EmailFromAddr
	}
}
