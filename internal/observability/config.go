package observability

import (
	"strings"

	"github.com/smallbiznis/console/internal/config"
	"github.com/spf13/viper"
)

// Config groups the settings for logs, traces and exported metrics.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	Log   LogSettings
	Trace TraceSettings
}

type LogSettings struct {
	Level  string
	Format string
}

type TraceSettings struct {
	Enabled       bool
	Endpoint      string
	Protocol      string
	SamplingRatio float64
}

// LoadConfig layers OTEL_* and LOG_* environment overrides on top of the
// application config.
func LoadConfig(cfg config.Config) Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DEPLOYMENT_ENV", cfg.Environment)
	v.SetDefault("SERVICE_VERSION", cfg.AppVersion)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_ENABLED", true)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	v.SetDefault("OTEL_SAMPLING_RATIO", 0.1)

	protocol := lower(v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL"))
	if traces := lower(v.GetString("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}
	ratio := v.GetFloat64("OTEL_SAMPLING_RATIO")
	if ratio < 0 || ratio > 1 {
		ratio = 0.1
	}

	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = "console"
	}
	return Config{
		ServiceName: name,
		Environment: strings.TrimSpace(v.GetString("DEPLOYMENT_ENV")),
		Version:     strings.TrimSpace(v.GetString("SERVICE_VERSION")),
		Log: LogSettings{
			Level:  lower(v.GetString("LOG_LEVEL")),
			Format: lower(v.GetString("LOG_FORMAT")),
		},
		Trace: TraceSettings{
			Enabled:       v.GetBool("OTEL_ENABLED"),
			Endpoint:      strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
			Protocol:      protocol,
			SamplingRatio: ratio,
		},
	}
}

// Debug reports whether verbose logging and gin debug mode should be on.
func (c Config) Debug() bool {
	if c.Log.Level == "debug" {
		return true
	}
	switch lower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
