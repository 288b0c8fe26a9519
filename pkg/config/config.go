// Package config loads service settings from the environment. The hub
// injects most of these when it spawns a managed service.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIURL           string
	APIToken         string
	ServiceName      string
	ServicePrefix    string
	ClientID         string
	OAuthCallbackURL string

	CookieSecret string

	SSLKeyFile      string
	SSLCertFile     string
	SSLClientCAFile string

	CacheMaxAge time.Duration
	OAuthScopes []string

	RedisAddr string
	LogLevel  string
	Port      string
}

func Load() *Config {
	cfg := &Config{
		APIURL:           getEnv("ELYSIUM_API_URL", "http://127.0.0.1:8081/hub/api"),
		APIToken:         getEnv("ELYSIUM_API_TOKEN", ""),
		ServiceName:      getEnv("ELYSIUM_SERVICE_NAME", ""),
		ServicePrefix:    getEnv("ELYSIUM_SERVICE_PREFIX", "/"),
		ClientID:         getEnv("ELYSIUM_CLIENT_ID", ""),
		OAuthCallbackURL: getEnv("ELYSIUM_OAUTH_CALLBACK_URL", ""),
		CookieSecret:     getEnv("ELYSIUM_COOKIE_SECRET", ""),
		SSLKeyFile:       getEnv("ELYSIUM_SSL_KEYFILE", ""),
		SSLCertFile:      getEnv("ELYSIUM_SSL_CERTFILE", ""),
		SSLClientCAFile:  getEnv("ELYSIUM_SSL_CLIENT_CA", ""),
		CacheMaxAge:      time.Duration(GetEnvInt("ELYSIUM_CACHE_MAX_AGE", 300)) * time.Second,
		OAuthScopes:      getEnvJSONList("ELYSIUM_OAUTH_SCOPES"),
		RedisAddr:        getEnv("ELYSIUM_REDIS_ADDR", ""),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		Port:             getEnv("PORT", "8080"),
	}
	if cfg.ClientID == "" && cfg.ServiceName != "" {
		cfg.ClientID = "service-" + cfg.ServiceName
	}
	if len(cfg.OAuthScopes) == 0 && cfg.ServiceName != "" {
		cfg.OAuthScopes = []string{"access:services!service=" + cfg.ServiceName}
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvJSONList parses a JSON array of strings, e.g. '["a","b"]'.
func getEnvJSONList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(value), &list); err != nil {
		return nil
	}
	return list
}
