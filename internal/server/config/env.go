package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseEnv overlays values from environment variables. Empty variables are
// treated as unset. Durations accept Go syntax ("10m") or a bare number of
// seconds.
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("PORT"); ok {
		config.HTTPAddr = ":" + v
	}
	if v, ok := get("HTTP_ADDR"); ok {
		config.HTTPAddr = v
	}
	if v, ok := get("DATABASE_URL"); ok {
		config.DatabaseDSN = v
	}
	if v, ok := get("SECRET_KEY"); ok {
		config.SecretKey = v
	}
	if v, ok := get("CACHE_URL"); ok {
		config.CacheURL = v
	}
	if v, ok := get("S3_ENDPOINT"); ok {
		config.S3BaseEndpoint = v
	}
	if v, ok := get("S3_PUBLIC_URL"); ok {
		config.S3PublicURL = v
	}
	if v, ok := get("S3_ACCESS_KEY"); ok {
		config.S3RootUser = v
	}
	if v, ok := get("S3_SECRET_KEY"); ok {
		config.S3RootPassword = v
	}
	if v, ok := get("S3_BUCKET"); ok {
		config.S3Bucket = v
	}
	if v, ok := get("S3_REGION"); ok {
		config.S3Region = v
	}
	if v, ok := get("CORS_ALLOWED_ORIGINS"); ok {
		config.CORSAllowedOrigins = splitCSV(v)
	}
	if v, ok := get("LOG_LEVEL"); ok {
		config.LogLevel = v
	}
	if v, ok := get("COOKIE_SECURE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		config.CookieSecure = b
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SESSION_TTL", &config.SessionTTL},
		{"RESET_TOKEN_TTL", &config.ResetTokenTTL},
		{"CACHE_TTL", &config.CacheTTL},
	}
	for _, d := range durations {
		v, ok := get(d.key)
		if !ok {
			continue
		}
		parsed, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	return nil
}

func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
