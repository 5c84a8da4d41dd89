package ulogger

import (
	"github.com/bsv-blockchain/chainstate/settings"
)

// InitLogger creates the logger for service from the logging settings.
func InitLogger(service string, tSettings *settings.Settings) Logger {
	return New(service,
		WithLevel(tSettings.LogLevel),
		WithLoggerType(tSettings.Logger),
		WithPretty(tSettings.PrettyLogs),
	)
}

// NewFactory returns a logger factory that applies the logging settings to every service.
func NewFactory(tSettings *settings.Settings) func(serviceName string) Logger {
	return func(serviceName string) Logger {
		return InitLogger(serviceName, tSettings)
	}
}
