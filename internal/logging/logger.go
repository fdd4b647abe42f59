// Package logging configures the process-wide logrus logger.
package logging

import (
	log "github.com/sirupsen/logrus"

	"github.com/datatecnica/sampleshare/internal/config"
)

// InitLogger applies the configured level and a full-timestamp text format.
// Unknown level strings fall back to info.
func InitLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}
