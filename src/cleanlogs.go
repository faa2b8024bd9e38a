package portal

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/chcemvediet/portal/src/config"
)

// CleanLogsCmd removes rolled log files older than the given age.
// Lumberjack prunes by its own MaxAge but only while the process that
// owns the file runs; short-lived cron invocations leave backups behind.
type CleanLogsCmd struct {
	MaxAge time.Duration `arg:"--max-age" default:"240h"`
}

func (cmd *CleanLogsCmd) Run(logger *zerolog.Logger) error {
	dir := config.LogsDirectory()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WithMessagef(err, "While reading logs directory %q", dir)
	}

	cutoff := time.Now().Add(-cmd.MaxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), ".log") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return errors.WithMessagef(err, "While inspecting log file %q", entry.Name())
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		file := filepath.Join(dir, entry.Name())
		if err := os.Remove(file); err != nil {
			return errors.WithMessagef(err, "While removing log file %q", file)
		}
		removed += 1
	}

	logger.Info().Str("directory", dir).Int("removed", removed).Msg("Cleaned logs")
	return nil
}
