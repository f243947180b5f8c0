package logs

import (
	"io"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"github.com/reusedev/detect-hub/config"
	"github.com/rs/zerolog"
)

var (
	// Logger discards until InitLogger runs.
	Logger = zerolog.Nop()
)

func InitLogger() {
	cfg := config.GConfig
	Logger = New(cfg)
}

func New(cfg *config.Config) zerolog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	if cfg.LogFile != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSize,    // MB
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAge,     // days
			Compress:   true,
		})
	}
	// console output in debug, or when there is nowhere else to write
	if level <= zerolog.DebugLevel || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout})
	}

	return zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
}

func parseLogLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(levelStr) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}
