package conf

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ValidateSettings checks the loaded settings for misconfigurations that
// would fail at runtime in hard-to-diagnose ways.
func ValidateSettings(settings *Settings) error {
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("no database backend enabled, enable output.sqlite or output.mysql")
	}
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return fmt.Errorf("both sqlite and mysql enabled, pick one")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must not be empty")
	}
	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Database == "" || settings.Output.MySQL.Host == "" {
			return fmt.Errorf("output.mysql requires database and host")
		}
	}

	if settings.WebServer.Port == "" {
		return fmt.Errorf("webserver.port must not be empty")
	}

	if cost := settings.Security.BcryptCost; cost != 0 &&
		(cost < bcrypt.MinCost || cost > bcrypt.MaxCost) {
		return fmt.Errorf("security.bcryptcost %d outside valid range %d..%d",
			cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if settings.Security.SessionMaxAge < 0 {
		return fmt.Errorf("security.sessionmaxage must not be negative")
	}

	if settings.Summary.Enabled {
		if settings.Summary.Endpoint == "" {
			return fmt.Errorf("summary.endpoint must not be empty when summary is enabled")
		}
		if settings.Summary.MaxTokens <= 0 {
			return fmt.Errorf("summary.maxtokens must be positive")
		}
	}

	if settings.Capture.MaxTranscriptBytes <= 0 {
		return fmt.Errorf("capture.maxtranscriptbytes must be positive")
	}

	return nil
}
