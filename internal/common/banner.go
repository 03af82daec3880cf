package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective endpoints
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Harmonia", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("host", config.Server.Host).
		Int("port", config.Server.Port).
		Str("storage", config.Storage.Type).
		Str("polling", config.Polling.Strategy).
		Str("interval", config.Polling.Interval).
		Msg("Harmonia starting")
}
