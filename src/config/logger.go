package config

import (
	"io"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SupervisorLogger adapts a zerolog logger to the printf-style interface
// the oversight tree expects.
type SupervisorLogger struct {
	*zerolog.Logger
}

func (self *SupervisorLogger) Printf(format string, v ...interface{}) {
	self.Logger.Printf(format, v...)
}

func (self *SupervisorLogger) Println(v ...interface{}) {
	self.Logger.Print(v...)
}

// LoggerConfig is read from CONSOLE_LOGGING_ENABLED, FILE_LOGGING_ENABLED
// and the LOGS_* variables. File fields only matter when file logging is
// on.
type LoggerConfig struct {
	ConsoleLoggingEnabled bool
	DebugModeEnabled      bool

	FileLoggingEnabled bool
	Directory          string
	Filename           string
	// MaxSize is megabytes before a roll, MaxAge days before a rolled
	// file is dropped.
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

func buildLoggerConfig(debugModeEnabled bool) (*LoggerConfig, error) {
	conf := LoggerConfig{
		DebugModeEnabled: debugModeEnabled,
		Directory:        "logs",
		Filename:         "portal.log",
		MaxSize:          10,
		MaxBackups:       10,
		MaxAge:           10,
	}

	if v, err := GetenvBool("CONSOLE_LOGGING_ENABLED"); err != nil {
		return nil, err
	} else if v != nil {
		conf.ConsoleLoggingEnabled = *v
	}

	if v, err := GetenvBool("FILE_LOGGING_ENABLED"); err != nil {
		return nil, err
	} else if v == nil || !*v {
		return &conf, nil
	}
	conf.FileLoggingEnabled = true

	if v := GetenvStr("LOGS_DIRECTORY"); v != "" {
		conf.Directory = v
	}
	if v := GetenvStr("LOGS_FILE_NAME"); v != "" {
		conf.Filename = v
	}
	for _, scalar := range []struct {
		key  string
		into *int
	}{
		{"LOGS_MAX_SIZE", &conf.MaxSize},
		{"LOGS_MAX_BACKUPS", &conf.MaxBackups},
		{"LOGS_MAX_AGE", &conf.MaxAge},
	} {
		if v, err := GetenvInt(scalar.key); err != nil {
			return nil, err
		} else if v != nil {
			*scalar.into = *v
		}
	}

	return &conf, nil
}

func ConfigureLogger(debugModeEnabled bool) *zerolog.Logger {
	conf, err := buildLoggerConfig(debugModeEnabled)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not read logger configuration")
		return nil
	}

	var writers []io.Writer
	if conf.ConsoleLoggingEnabled {
		writers = append(writers, zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = time.RFC3339
		}))
	} else {
		writers = append(writers, os.Stderr)
	}
	if conf.FileLoggingEnabled {
		writers = append(writers, newRollingFile(conf))
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Logger()

	if debugModeEnabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	logger.Info().
		Bool("console", conf.ConsoleLoggingEnabled).
		Bool("debug", conf.DebugModeEnabled).
		Bool("file", conf.FileLoggingEnabled).
		Str("directory", conf.Directory).
		Str("filename", conf.Filename).
		Int("maxSizeMB", conf.MaxSize).
		Int("maxBackups", conf.MaxBackups).
		Int("maxAgeDays", conf.MaxAge).
		Msg("Logging configured")

	return &logger
}

// LogsDirectory is where rolled log files end up; used by the clean-logs
// maintenance command.
func LogsDirectory() string {
	if v := GetenvStr("LOGS_DIRECTORY"); v != "" {
		return v
	}
	return "logs"
}

func newRollingFile(conf *LoggerConfig) io.Writer {
	if err := os.MkdirAll(conf.Directory, 0o744); err != nil {
		log.Fatal().Err(err).Str("path", conf.Directory).Msg("Could not create log directory")
		return nil
	}

	return &lumberjack.Logger{
		Filename:   path.Join(conf.Directory, conf.Filename),
		MaxSize:    conf.MaxSize,
		MaxBackups: conf.MaxBackups,
		MaxAge:     conf.MaxAge,
	}
}
