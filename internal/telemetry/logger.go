package telemetry

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Service    string
	Level      string
	JSON       bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var log = zerolog.Nop()

func Init(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var console io.Writer = os.Stdout
	if !cfg.JSON {
		console = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.TimeFormat = time.RFC3339
		})
	}

	out := console
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    ifZero(cfg.MaxSizeMB, 10),
			MaxBackups: ifZero(cfg.MaxBackups, 3),
			MaxAge:     ifZero(cfg.MaxAgeDays, 28),
			Compress:   cfg.Compress,
		}
		out = zerolog.MultiLevelWriter(console, rotator)
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	l := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	log = l.Level(level)
	return log
}

func L() *zerolog.Logger { return &log }

// Req returns the global logger tagged with a request id.
func Req(rid string) *zerolog.Logger {
	l := log.With().Str("req_id", rid).Logger()
	return &l
}

func FromEnv(get func(string, string) string) Config {
	return Config{
		Service:    get("SERVICE_NAME", "course_service"),
		Level:      get("LOG_LEVEL", "info"),
		JSON:       parseBool(get("LOG_JSON", "true")),
		File:       get("LOG_FILE", ""),
		MaxSizeMB:  atoi(get("LOG_MAX_SIZE_MB", "10")),
		MaxBackups: atoi(get("LOG_MAX_BACKUPS", "3")),
		MaxAgeDays: atoi(get("LOG_MAX_AGE_DAYS", "28")),
		Compress:   parseBool(get("LOG_COMPRESS", "true")),
	}
}

func ifZero[T ~int](v T, d T) T {
	if v == 0 {
		return d
	}
	return v
}
func atoi(s string) int       { i, _ := strconv.Atoi(s); return i }
func parseBool(s string) bool { b, _ := strconv.ParseBool(s); return b }
