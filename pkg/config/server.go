package config

import "time"

// ServerConfig configures the HTTP/WS/SSE transport (C7). WSPort is
// separate from Port because mcp's WebSocket transport upgrades the
// raw connection via gorilla/websocket, which needs a genuine
// net/http.Server — fiber's fasthttp-based router has no hijack
// support an http.Hijacker-dependent upgrade can use, so WS is served
// off a second plain net/http listener rather than mounted on the
// fiber app the HTTP/SSE/REST/JSON-RPC routes share.
type ServerConfig struct {
	Host           string
	Port           int
	WSPort         int
	RequestTimeout time.Duration
	CORSOrigins    []string
	LogLevel       string
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:           getEnv("PIERRE_HOST", "0.0.0.0"),
		Port:           getEnvInt("PIERRE_PORT", 8080),
		WSPort:         getEnvInt("PIERRE_WS_PORT", 8081),
		RequestTimeout: getEnvDuration("PIERRE_REQUEST_TIMEOUT", 30*time.Second),
		CORSOrigins:    getEnvStringSlice("PIERRE_CORS_ORIGINS", []string{"*"}),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}
