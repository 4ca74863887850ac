package engine

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

// savedVar is the value an environment variable had before the overlay
// touched it.
type savedVar struct {
	key     string
	value   string
	present bool
}

// overlay is a suite's environment and volatile-file scope around one test.
// It mutates the engine's own process environment, so tests must not run
// concurrently.
type overlay struct {
	logger   *slog.Logger
	saved    []savedVar
	volatile []string
}

// applyOverlay removes the volatile files and sets every KEY=VALUE entry in
// env. The returned overlay's revert undoes both.
func applyOverlay(logger *slog.Logger, env, volatile []string) *overlay {
	o := &overlay{logger: logger, volatile: volatile}
	o.removeVolatile()

	for _, entry := range env {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			logger.Warn("ignoring malformed environment entry", "entry", entry)
			continue
		}
		prev, present := os.LookupEnv(key)
		o.saved = append(o.saved, savedVar{key: key, value: prev, present: present})
		if err := os.Setenv(key, value); err != nil {
			logger.Warn("failed to set environment variable", "key", key, "error", err)
		}
	}
	return o
}

// revert restores the environment in reverse order, so a key set twice ends
// up with the value it had before the first set.
func (o *overlay) revert() {
	for i := len(o.saved) - 1; i >= 0; i-- {
		v := o.saved[i]
		var err error
		if v.present {
			err = os.Setenv(v.key, v.value)
		} else {
			err = os.Unsetenv(v.key)
		}
		if err != nil {
			o.logger.Warn("failed to restore environment variable", "key", v.key, "error", err)
		}
	}
	o.removeVolatile()
}

func (o *overlay) removeVolatile() {
	for _, path := range o.volatile {
		err := os.Remove(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			o.logger.Debug("could not remove volatile file", "path", path, "error", err)
		}
	}
}
