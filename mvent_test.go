package mvent

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestConfigureLoggingSetsVerboseLevel(t *testing.T) {
	ConfigureLogging(LoggingOptions{Verbose: true})
	if log.Logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %v", log.Logger.GetLevel())
	}
}

func TestConfigureLoggingDefaultsToInfoLevel(t *testing.T) {
	ConfigureLogging(LoggingOptions{})
	if log.Logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %v", log.Logger.GetLevel())
	}
}
