package main

import "github.com/elC0mpa/aws-teardown/service/settings"

// Config holds environment-based configuration for the MCP server
type Config struct {
	ConfigPath string
	AWSRegion  string
	AWSProfile string
}

// LoadConfig reads configuration from environment variables
func LoadConfig() *Config {
	env := settings.Env()
	return &Config{
		ConfigPath: env.ConfigPath,
		AWSRegion:  env.Region,
		AWSProfile: env.Profile,
	}
}
