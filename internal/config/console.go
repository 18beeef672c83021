package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DisplayConfig holds console presentation settings from console.yml.
type DisplayConfig struct {
	DefaultCurrency string `mapstructure:"defaultCurrency"`
	// FeaturedPlanIndex highlights one plan card; negative disables it.
	FeaturedPlanIndex int `mapstructure:"featuredPlanIndex"`
	// UsageWarningPercent and UsageCriticalPercent drive the usage bar level.
	UsageWarningPercent  int `mapstructure:"usageWarningPercent"`
	UsageCriticalPercent int `mapstructure:"usageCriticalPercent"`
}

func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		DefaultCurrency:      "usd",
		FeaturedPlanIndex:    1,
		UsageWarningPercent:  80,
		UsageCriticalPercent: 100,
	}
}

type DisplayConfigHolder struct {
	current atomic.Value // holds DisplayConfig
}

// NewDisplayConfigHolder reads console.yml and keeps it current on change.
// A missing file yields the defaults.
func NewDisplayConfigHolder(cfg Config, log *zap.Logger) (*DisplayConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("display-config")

	v := viper.New()
	v.SetConfigName("console")
	v.SetConfigType("yml")
	if path := strings.TrimSpace(cfg.DisplayConfigPath); path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("/etc/console")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultDisplayConfig()
	v.SetDefault("display.defaultCurrency", defaults.DefaultCurrency)
	v.SetDefault("display.featuredPlanIndex", defaults.FeaturedPlanIndex)
	v.SetDefault("display.usageWarningPercent", defaults.UsageWarningPercent)
	v.SetDefault("display.usageCriticalPercent", defaults.UsageCriticalPercent)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	current, err := decodeDisplayConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &DisplayConfigHolder{}
	holder.current.Store(current)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeDisplayConfig(v)
			if err != nil {
				log.Warn("invalid display config ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("display config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

// NewStaticDisplayConfigHolder pins cfg; used by the CLI and tests.
func NewStaticDisplayConfigHolder(cfg DisplayConfig) *DisplayConfigHolder {
	holder := &DisplayConfigHolder{}
	holder.current.Store(normalizeDisplayConfig(cfg))
	return holder
}

func (h *DisplayConfigHolder) Get() DisplayConfig {
	if h == nil {
		return DefaultDisplayConfig()
	}
	return h.current.Load().(DisplayConfig)
}

func decodeDisplayConfig(v *viper.Viper) (DisplayConfig, error) {
	var cfg DisplayConfig
	if err := v.UnmarshalKey("display", &cfg); err != nil {
		return DisplayConfig{}, err
	}
	cfg = normalizeDisplayConfig(cfg)
	if err := validateDisplayConfig(cfg); err != nil {
		return DisplayConfig{}, err
	}
	return cfg, nil
}

func normalizeDisplayConfig(cfg DisplayConfig) DisplayConfig {
	cfg.DefaultCurrency = strings.ToLower(strings.TrimSpace(cfg.DefaultCurrency))
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultDisplayConfig().DefaultCurrency
	}
	return cfg
}

func validateDisplayConfig(cfg DisplayConfig) error {
	if len(cfg.DefaultCurrency) != 3 {
		return errors.New("display.defaultCurrency must be a 3-letter ISO code")
	}
	if cfg.UsageWarningPercent <= 0 || cfg.UsageCriticalPercent <= 0 {
		return errors.New("display usage thresholds must be positive")
	}
	if cfg.UsageWarningPercent > cfg.UsageCriticalPercent {
		return errors.New("display.usageWarningPercent cannot exceed usageCriticalPercent")
	}
	return nil
}
