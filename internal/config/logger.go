package config

import "go.uber.org/zap"

// NewLogger builds the process logger for the configured output format.
func (c *Config) NewLogger() (*zap.Logger, error) {
	if c.LogFormat == "json" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
