package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch reloads config.toml on write and calls onChange with the same viper
// instance. It is a no-op when no config file was found.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(*viper.Viper)) bool {
	if v.ConfigFileUsed() == "" {
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Info("config changed", "file", e.Name, "op", e.Op.String())
		onChange(v)
	})
	v.WatchConfig()
	return true
}
