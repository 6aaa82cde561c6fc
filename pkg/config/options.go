package config

import (
	"flag"

	"github.com/sentinelx/sentinelx/utils"
)

var (
	aiAPIKey = utils.GetEnvOrDefault("SENTINELX_AI_API_KEY", "")
	pulseKey = utils.GetEnvOrDefault("SENTINELX_PULSE_API_KEY", "")
)

type Options struct {
	HTTPPort             *string
	RulesPath            *string
	DatabasePath         *string
	ConfigPath           *string
	LogLevel             *string
	SyncIntervalHours    *int
	FailOnCompileWarning *bool
	MaximumFileSize      *int64
	AIEndpoint           *string
	AIKey                *string
	PulseKey             *string
}

func ParseOptions() (*Options, error) {
	options := &Options{
		HTTPPort:             flag.String("port", "8090", "HTTP API listen port"),
		RulesPath:            flag.String("rules-path", "/var/lib/sentinelx/rules", "All .yar and .yara files in the given directory will be compiled"),
		DatabasePath:         flag.String("db-path", "/var/lib/sentinelx/sentinelx.db", "Path of the sqlite database holding scans and rules"),
		ConfigPath:           flag.String("config-path", "", "Searches for config.yaml from given directory. If not set, built-in feed defaults are used"),
		LogLevel:             flag.String("log-level", "info", "Log levels are one of error, warn, info, debug. Only levels higher than the log-level are displayed"),
		SyncIntervalHours:    flag.Int("sync-interval", 24, "Threat feed sync interval in hours"),
		FailOnCompileWarning: flag.Bool("fail-on-rule-compile-warn", false, "Fail rebuild if yara rule compilation has warnings"),
		MaximumFileSize:      flag.Int64("maximum-file-size", 32*1024*1024, "Maximum upload size to scan in bytes"),
		AIEndpoint:           flag.String("ai-endpoint", "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent", "Text completion endpoint for fallback analysis and rule synthesis"),
		AIKey:                flag.String("ai-key", aiAPIKey, "API key for the completion endpoint, also supports env var SENTINELX_AI_API_KEY. Empty disables AI analysis"),
		PulseKey:             flag.String("pulse-key", pulseKey, "API key for the pulse feed, also supports env var SENTINELX_PULSE_API_KEY"),
	}
	flag.Parse()
	return options, nil
}

// NewDefaultOptions returns the default options without flag parsing
func NewDefaultOptions() *Options {
	var httpPort = "8090"
	var rulesPath = "/var/lib/sentinelx/rules"
	var dbPath = "/var/lib/sentinelx/sentinelx.db"
	var logLevel = "info"
	var syncInterval = 24
	var failOnCompileWarning = false
	var maximumFileSize = int64(32 * 1024 * 1024)
	var emptyValue = ""
	return &Options{
		HTTPPort:             &httpPort,
		RulesPath:            &rulesPath,
		DatabasePath:         &dbPath,
		ConfigPath:           &emptyValue,
		LogLevel:             &logLevel,
		SyncIntervalHours:    &syncInterval,
		FailOnCompileWarning: &failOnCompileWarning,
		MaximumFileSize:      &maximumFileSize,
		AIEndpoint:           &emptyValue,
		AIKey:                &aiAPIKey,
		PulseKey:             &pulseKey,
	}
}
