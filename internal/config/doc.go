// Package config handles configuration loading for stockdeck.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by extension) with
// environment variable expansion. Load applies defaults and validates.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from STOCKDECK_CONFIG environment variable
//  2. ./config.yaml or ./config.toml (current directory)
//  3. ~/.config/stockdeck/config.yaml
//
// STOCKDECK_DB_PATH, when set, overrides database.path.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${STOCKDECK_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//	  secure_cookies: true         # behind a TLS-terminating proxy
//	  read_header_timeout: "10s"
//
//	tailscale:
//	  enabled: false
//	  hostname: "stockdeck"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//
//	database:
//	  path: "./data/stockdeck.db"
//
//	auth:
//	  jwt_secret: "${STOCKDECK_JWT_SECRET}"   # at least 32 bytes
//
//	market:
//	  base_url: "https://finnhub.io/api/v1"
//	  api_key: "${FINNHUB_API_KEY}"
//	  symbols: [AAPL, MSFT, NVDA]
//	  timeout: "10s"
//	  cache_ttl: "15s"
//
//	rate_limit:
//	  requests_per_minute: 10   # signup + login per client IP
//	  burst: 5
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// Durations use time.ParseDuration syntax.
package config
