package settings

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
)

// Flags holds process-wide feature toggles backed by system_settings.
type Flags struct {
	settings   *Service
	killSwitch atomic.Bool
	logger     *slog.Logger
}

// NewFlags builds flags on top of the settings service. Call Load at startup.
func NewFlags(settings *Service, logger *slog.Logger) *Flags {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flags{settings: settings, logger: logger.With("component", "flags")}
}

// Load reads every flag from the store, skipping the cache.
func (f *Flags) Load(ctx context.Context) error {
	f.settings.Invalidate(KeyKillSwitch)
	value, found, err := f.settings.Lookup(ctx, KeyKillSwitch)
	if err != nil {
		return err
	}
	enabled := found && parseBool(value)
	f.killSwitch.Store(enabled)
	f.logger.Info("flags loaded", "kill_switch", enabled)
	return nil
}

// KillSwitchEnabled reports whether publishing is halted.
func (f *Flags) KillSwitchEnabled() bool {
	return f.killSwitch.Load()
}

// SetKillSwitch persists the toggle and applies it once stored.
func (f *Flags) SetKillSwitch(ctx context.Context, enabled bool) error {
	if err := f.settings.Set(ctx, KeyKillSwitch, strconv.FormatBool(enabled)); err != nil {
		return err
	}
	f.killSwitch.Store(enabled)
	f.logger.Warn("kill switch changed", "enabled", enabled)
	return nil
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(value)
	return err == nil && b
}
