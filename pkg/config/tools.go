package config

// ToolsConfig configures global tool availability (C6).
type ToolsConfig struct {
	// GloballyDisabled is a comma-separated tool-name list from
	// PIERRE_GLOBAL_DISABLED_TOOLS; empty/unset means no global disables.
	GloballyDisabled []string
}

func loadToolsConfig() ToolsConfig {
	return ToolsConfig{
		GloballyDisabled: getEnvStringSlice("PIERRE_GLOBAL_DISABLED_TOOLS", nil),
	}
}
