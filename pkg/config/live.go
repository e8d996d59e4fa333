package config

import (
	"log/slog"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Live holds the settings that take effect without a restart. Values are
// refreshed whenever the watched config.toml changes.
type Live struct {
	v      *viper.Viper
	logger *slog.Logger

	vision atomic.Bool
}

// NewLive snapshots the live settings from v.
func NewLive(v *viper.Viper, logger *slog.Logger) *Live {
	l := &Live{v: v, logger: logger}
	l.Refresh()
	return l
}

// Vision reports whether image attachments are sent to the provider.
func (l *Live) Vision() bool {
	return l.vision.Load()
}

// Refresh re-reads the live settings from viper.
func (l *Live) Refresh() {
	vision := l.v.GetBool("relay.enable_vision")
	if l.vision.Swap(vision) != vision {
		l.logger.Info("live setting changed",
			"key", "relay.enable_vision",
			"value", vision,
		)
	}
}

// Watch starts watching the config file. It is a no-op when no config file
// was read.
func (l *Live) Watch() {
	if l.v.ConfigFileUsed() == "" {
		return
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.logger.Debug("config file changed",
			"file", e.Name,
			"op", e.Op.String(),
		)
		l.Refresh()
	})
	l.v.WatchConfig()
}
