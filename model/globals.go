package model

// Globals contains global flags for the CLI.
type Globals struct {
	Version  VersionFlag `name:"version" help:"Print version information and quit"`
	Debug    bool        `name:"debug" env:"FEED_RSS_DEBUG" help:"Enable logging."`
	LogLevel string      `name:"log-level" env:"FEED_RSS_LOG_LEVEL" default:"info" enum:"error,warn,info,debug" help:"Log level."`
	JSONLogs bool        `name:"json-logs" env:"FEED_RSS_JSON_LOGS" help:"Write logs as JSON."`
}

// ConfigureLogging applies the logging flags to the default logger.
func (g *Globals) ConfigureLogging() {
	if g.Debug {
		SetDebugMode(true)
	}
	if g.LogLevel != "" {
		SetLogLevel(parseLogLevel(g.LogLevel))
	}
	if g.JSONLogs {
		defaultLogger.SetJSONMode(true)
	}
}
