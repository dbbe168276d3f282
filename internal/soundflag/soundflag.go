// Package soundflag persists the single boolean that gates local alarm
// playback. The flag fails open: if the backing file is missing or
// unreadable, sound is reported as enabled.
package soundflag

import (
	"os"
	"path/filepath"
	"strings"

	logx "pirbot/pkg/logx"
)

const (
	valueOn  = "on"
	valueOff = "off"
)

type Flag struct {
	path string
	log  logx.Logger
}

func New(path string, log logx.Logger) *Flag {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Flag{path: path, log: log}
}

// Enabled reports whether alarm sound is on. Missing or unreadable state
// defaults to true.
func (f *Flag) Enabled() bool {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.log.Warn("sound flag missing; defaulting to enabled", logx.String("path", f.path))
		} else {
			f.log.Warn("sound flag unreadable; defaulting to enabled", logx.String("path", f.path), logx.Err(err))
		}
		return true
	}
	return strings.ToLower(strings.TrimSpace(string(b))) != valueOff
}

// Set persists the new value. The write goes through a temp file and a
// rename so concurrent readers never observe a torn value.
func (f *Flag) Set(enabled bool) error {
	v := valueOn
	if !enabled {
		v = valueOff
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".soundflag-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(v); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
