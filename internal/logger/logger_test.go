package logger

import (
    "testing"

    "github.com/rs/zerolog"

    "github.com/omursimsek/JIRA-metrics/internal/config"
)

func TestNewAppliesLevel(t *testing.T) {
    lg := New(config.Config{AppEnv: "prod", LogLevel: "warn"})
    if lg.GetLevel() != zerolog.WarnLevel {
        t.Fatalf("level = %v, want warn", lg.GetLevel())
    }
    lg = New(config.Config{AppEnv: "dev", LogLevel: "debug"})
    if lg.GetLevel() != zerolog.DebugLevel {
        t.Fatalf("level = %v, want debug", lg.GetLevel())
    }
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
    lg := New(config.Config{AppEnv: "prod", LogLevel: "chatty"})
    if lg.GetLevel() != zerolog.InfoLevel {
        t.Fatalf("level = %v, want info", lg.GetLevel())
    }
    lg = New(config.Config{AppEnv: "prod"})
    if lg.GetLevel() != zerolog.InfoLevel {
        t.Fatalf("empty level = %v, want info", lg.GetLevel())
    }
}
