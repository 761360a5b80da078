package telemetry

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envEndpoint    = "RESTSTUDIO_OTEL_ENDPOINT"
	envInsecure    = "RESTSTUDIO_OTEL_INSECURE"
	envService     = "RESTSTUDIO_OTEL_SERVICE"
	envDialTimeout = "RESTSTUDIO_OTEL_DIAL_TIMEOUT"
	envHeaders     = "RESTSTUDIO_OTEL_HEADERS"

	defaultServiceName = "reststudio"
)

// Config selects the OTLP exporter. An empty Endpoint disables tracing.
type Config struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	Version     string
	DialTimeout time.Duration
	Headers     map[string]string
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// ConfigFromEnv reads RESTSTUDIO_OTEL_* through lookup, os.Getenv when nil.
// Malformed optional values fall back to their defaults.
func ConfigFromEnv(lookup func(string) string) Config {
	if lookup == nil {
		lookup = os.Getenv
	}
	cfg := Config{
		Endpoint:    strings.TrimSpace(lookup(envEndpoint)),
		ServiceName: strings.TrimSpace(lookup(envService)),
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if raw := strings.TrimSpace(lookup(envInsecure)); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Insecure = v
		}
	}
	if raw := strings.TrimSpace(lookup(envDialTimeout)); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.DialTimeout = d
		}
	}
	if headers, err := ParseHeaders(lookup(envHeaders)); err == nil {
		cfg.Headers = headers
	}
	return cfg
}

// ParseHeaders parses "k=v, k2=v2". A blank input yields nil.
func ParseHeaders(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header pair %q", part)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}
