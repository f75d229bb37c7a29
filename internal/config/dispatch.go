package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DispatchConfig holds the tunable scheduling and penalty rules.
type DispatchConfig struct {
	WindowStartMinute int     `mapstructure:"windowStartMinute"`
	WindowEndMinute   int     `mapstructure:"windowEndMinute"`
	SlotMinutes       int     `mapstructure:"slotMinutes"`
	ShortJobMinutes   int     `mapstructure:"shortJobMinutes"`
	LongJobMinutes    int     `mapstructure:"longJobMinutes"`
	TonnageThreshold  float64 `mapstructure:"tonnageThreshold"`
	SaturatedMinutes  int     `mapstructure:"saturatedMinutes"`
	BusyMinutes       int     `mapstructure:"busyMinutes"`
	ReleasePenalty    int     `mapstructure:"releasePenalty"`
}

func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		WindowStartMinute: 10 * 60,
		WindowEndMinute:   16 * 60,
		SlotMinutes:       30,
		ShortJobMinutes:   90,
		LongJobMinutes:    180,
		TonnageThreshold:  2,
		SaturatedMinutes:  5 * 60,
		BusyMinutes:       3 * 60,
		ReleasePenalty:    10,
	}
}

type DispatchConfigHolder struct {
	current atomic.Value // holds DispatchConfig
}

func NewDispatchConfigHolder() (*DispatchConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("dispatch")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/fieldops/config")
	v.AddConfigPath("/etc/fieldops")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FIELDOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultDispatchConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("dispatch.windowStartMinute", defaults.WindowStartMinute)
		v.SetDefault("dispatch.windowEndMinute", defaults.WindowEndMinute)
		v.SetDefault("dispatch.slotMinutes", defaults.SlotMinutes)
		v.SetDefault("dispatch.shortJobMinutes", defaults.ShortJobMinutes)
		v.SetDefault("dispatch.longJobMinutes", defaults.LongJobMinutes)
		v.SetDefault("dispatch.tonnageThreshold", defaults.TonnageThreshold)
		v.SetDefault("dispatch.saturatedMinutes", defaults.SaturatedMinutes)
		v.SetDefault("dispatch.busyMinutes", defaults.BusyMinutes)
		v.SetDefault("dispatch.releasePenalty", defaults.ReleasePenalty)
	}

	var cfg DispatchConfig
	if err := v.UnmarshalKey("dispatch", &cfg); err != nil {
		return nil, err
	}
	if err := validateDispatchConfig(cfg); err != nil {
		return nil, err
	}

	holder := &DispatchConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated DispatchConfig
		if err := v.UnmarshalKey("dispatch", &updated); err != nil {
			log.Printf("[dispatch-config] reload failed: %v", err)
			return
		}
		if err := validateDispatchConfig(updated); err != nil {
			log.Printf("[dispatch-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[dispatch-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticDispatchConfigHolder returns a holder pinned to the given config.
// Used by tests and tools that must not watch the filesystem.
func NewStaticDispatchConfigHolder(cfg DispatchConfig) *DispatchConfigHolder {
	holder := &DispatchConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *DispatchConfigHolder) Get() DispatchConfig {
	return h.current.Load().(DispatchConfig)
}

func validateDispatchConfig(cfg DispatchConfig) error {
	if cfg.SlotMinutes <= 0 {
		return errors.New("dispatch.slotMinutes must be positive")
	}
	if cfg.WindowEndMinute < cfg.WindowStartMinute {
		return errors.New("dispatch.windowEndMinute must not precede windowStartMinute")
	}
	if cfg.ShortJobMinutes <= 0 || cfg.LongJobMinutes <= 0 {
		return errors.New("dispatch job durations must be positive")
	}
	if cfg.ReleasePenalty < 0 {
		return errors.New("dispatch.releasePenalty must not be negative")
	}
	return nil
}
