package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name        string
		development bool
		level       string
		wantDebug   bool
	}{
		{name: "development default", development: true, wantDebug: true},
		{name: "production default", development: false, wantDebug: false},
		{name: "production debug override", development: false, level: "debug", wantDebug: true},
		{name: "invalid level ignored", development: false, level: "loud", wantDebug: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := build(tt.development, tt.level)
			if err != nil {
				t.Fatalf("build() error = %v", err)
			}
			if got := l.Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}
