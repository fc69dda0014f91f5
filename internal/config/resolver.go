package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const DefaultSystemActor = "system:territory-resolver"

// Tie-break policies applied when several matching territories share the top
// effective priority.
const (
	TieBreakLowestID = "lowest_id"
	TieBreakOldest   = "oldest"
	TieBreakNewest   = "newest"
	TieBreakCode     = "code"
)

// ResolverConfig is the hot-reloadable resolution policy.
type ResolverConfig struct {
	TieBreak        string   `mapstructure:"tieBreak"`
	SystemActor     string   `mapstructure:"systemActor"`
	AssignableTypes []string `mapstructure:"assignableTypes"`
}

func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		TieBreak:    TieBreakLowestID,
		SystemActor: DefaultSystemActor,
	}
}

type ResolverConfigHolder struct {
	current atomic.Value // holds ResolverConfig
}

// NewResolverConfigHolder reads resolver.yml when present and keeps watching it.
// Without a file the defaults apply, optionally overridden by environment.
func NewResolverConfigHolder(appCfg Config, log *zap.Logger) (*ResolverConfigHolder, error) {
	log = log.Named("config.resolver")

	v := viper.New()
	v.SetConfigName("resolver")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/territorial")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TERRITORIAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultResolverConfig()
	if appCfg.SystemActorID != "" {
		defaults.SystemActor = appCfg.SystemActorID
	}
	v.SetDefault("resolver.tieBreak", defaults.TieBreak)
	v.SetDefault("resolver.systemActor", defaults.SystemActor)
	v.SetDefault("resolver.assignableTypes", parseList(os.Getenv("TERRITORIAL_RESOLVER_ASSIGNABLE_TYPES")))

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg ResolverConfig
	if err := v.UnmarshalKey("resolver", &cfg); err != nil {
		return nil, err
	}
	cfg = normalizeResolverConfig(cfg, defaults)
	if err := ValidateResolverConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticResolverConfigHolder(cfg)

	if fileLoaded && getenvBool("TERRITORIAL_RESOLVER_WATCH", true) {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated ResolverConfig
			if err := v.UnmarshalKey("resolver", &updated); err != nil {
				log.Warn("resolver config reload failed", zap.Error(err))
				return
			}
			updated = normalizeResolverConfig(updated, defaults)
			if err := ValidateResolverConfig(updated); err != nil {
				log.Warn("invalid resolver config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("resolver config reloaded", zap.String("file", e.Name), zap.String("tie_break", updated.TieBreak))
		})
	}

	log.Info("resolver config loaded",
		zap.Bool("from_file", fileLoaded),
		zap.String("tie_break", cfg.TieBreak),
	)

	return holder, nil
}

// NewStaticResolverConfigHolder returns a holder that never reloads.
func NewStaticResolverConfigHolder(cfg ResolverConfig) *ResolverConfigHolder {
	holder := &ResolverConfigHolder{}
	holder.current.Store(normalizeResolverConfig(cfg, DefaultResolverConfig()))
	return holder
}

func (h *ResolverConfigHolder) Get() ResolverConfig {
	if h == nil {
		return DefaultResolverConfig()
	}
	cfg, ok := h.current.Load().(ResolverConfig)
	if !ok {
		return DefaultResolverConfig()
	}
	return cfg
}

// Set replaces the current policy after validation.
func (h *ResolverConfigHolder) Set(cfg ResolverConfig) error {
	cfg = normalizeResolverConfig(cfg, DefaultResolverConfig())
	if err := ValidateResolverConfig(cfg); err != nil {
		return err
	}
	h.current.Store(cfg)
	return nil
}

func ValidateResolverConfig(cfg ResolverConfig) error {
	switch cfg.TieBreak {
	case TieBreakLowestID, TieBreakOldest, TieBreakNewest, TieBreakCode:
	default:
		return fmt.Errorf("resolver.tieBreak %q is not supported", cfg.TieBreak)
	}
	if strings.TrimSpace(cfg.SystemActor) == "" {
		return errors.New("resolver.systemActor cannot be empty")
	}
	return nil
}

func normalizeResolverConfig(cfg, defaults ResolverConfig) ResolverConfig {
	cfg.TieBreak = strings.ToLower(strings.TrimSpace(cfg.TieBreak))
	if cfg.TieBreak == "" {
		cfg.TieBreak = defaults.TieBreak
	}
	cfg.SystemActor = strings.TrimSpace(cfg.SystemActor)
	if cfg.SystemActor == "" {
		cfg.SystemActor = defaults.SystemActor
	}
	types := make([]string, 0, len(cfg.AssignableTypes))
	for _, t := range cfg.AssignableTypes {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	cfg.AssignableTypes = types
	return cfg
}
