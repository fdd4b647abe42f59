package logging

import (
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/datatecnica/sampleshare/internal/config"
)

func TestInitLogger(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	tests := []struct {
		logLevel string
		want     log.Level
	}{
		{"trace", log.TraceLevel},
		{"debug", log.DebugLevel},
		{"info", log.InfoLevel},
		{"warn", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"not-a-level", log.InfoLevel},
		{"", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			InitLogger(&config.Config{LogLevel: tt.logLevel})
			if got := log.GetLevel(); got != tt.want {
				t.Errorf("InitLogger(%q) set level %v, want %v", tt.logLevel, got, tt.want)
			}
		})
	}
}
