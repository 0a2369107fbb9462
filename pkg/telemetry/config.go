package telemetry

import (
	"os"
	"strconv"
	"strings"
)

// Config is the tracing setup read from the standard OTEL_* variables.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	Endpoint string
	Protocol string // grpc or http/protobuf
	Headers  map[string]string
	Insecure bool

	Sampler    string
	SamplerArg string

	ResourceAttrs map[string]string
}

// LoadFromEnv reads the configuration from the process environment.
func LoadFromEnv() *Config {
	return loadFrom(os.Getenv)
}

func loadFrom(getenv func(string) string) *Config {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	flag := func(key string) bool {
		v, _ := strconv.ParseBool(get(key, "false"))
		return v
	}

	return &Config{
		Enabled:        flag("OTEL_ENABLED"),
		ServiceName:    get("OTEL_SERVICE_NAME", "oatdump"),
		ServiceVersion: get("OTEL_SERVICE_VERSION", "unknown"),
		Endpoint:       get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Protocol:       strings.ToLower(get("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		Headers:        parsePairs(getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Insecure:       flag("OTEL_EXPORTER_OTLP_INSECURE"),
		Sampler:        get("OTEL_TRACES_SAMPLER", "always_on"),
		SamplerArg:     get("OTEL_TRACES_SAMPLER_ARG", ""),
		ResourceAttrs:  parsePairs(getenv("OTEL_RESOURCE_ATTRIBUTES")),
	}
}

// parsePairs parses "k1=v1,k2=v2". Values may contain '='; entries without a key are dropped.
func parsePairs(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

// plaintext reports whether the exporter should skip TLS.
func (c *Config) plaintext() bool {
	return c.Insecure || strings.HasPrefix(c.Endpoint, "http://")
}

// hostPort strips any URL scheme from the endpoint.
func (c *Config) hostPort() string {
	ep := strings.TrimPrefix(c.Endpoint, "https://")
	return strings.TrimPrefix(ep, "http://")
}
