// Package alarm plays the local alarm sound and manages replacement of the
// sound file from chat uploads.
package alarm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	logx "pirbot/pkg/logx"
)

// acceptedExts are the upload formats installed as-is. There is no
// transcoding; the player has to cope with the format.
var acceptedExts = []string{".wav", ".mp3"}

type Player struct {
	soundPath string
	playerCmd string
	log       logx.Logger

	// playMu serializes playback so overlapping alerts don't stack
	// player processes.
	playMu sync.Mutex
}

func NewPlayer(soundPath, playerCmd string, log logx.Logger) *Player {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(playerCmd) == "" {
		playerCmd = "aplay"
	}
	return &Player{soundPath: soundPath, playerCmd: playerCmd, log: log}
}

func (p *Player) SoundPath() string { return p.soundPath }

// Play runs the configured player against the current sound file and waits
// for it to finish. Playback faults are returned, not fatal; the caller
// decides whether an inaudible alarm matters more than delivery.
func (p *Player) Play(ctx context.Context) error {
	p.playMu.Lock()
	defer p.playMu.Unlock()

	if _, err := os.Stat(p.soundPath); err != nil {
		return fmt.Errorf("alarm sound file: %w", err)
	}
	cmd := exec.CommandContext(ctx, p.playerCmd, p.soundPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w (%s)", p.playerCmd, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// AcceptedFileName reports whether name has an installable extension.
func AcceptedFileName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range acceptedExts {
		if ext == a {
			return true
		}
	}
	return false
}

// Replace installs src as the new alarm sound via rename, so a concurrent
// Play never sees a half-written file. src must be on the same filesystem;
// callers download into the alarm directory to guarantee that.
func (p *Player) Replace(src string) error {
	if !AcceptedFileName(src) {
		return fmt.Errorf("unsupported sound format %q", filepath.Ext(src))
	}
	if err := os.MkdirAll(filepath.Dir(p.soundPath), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, p.soundPath); err != nil {
		return fmt.Errorf("install alarm sound: %w", err)
	}
	p.log.Info("alarm sound replaced", logx.String("path", p.soundPath))
	return nil
}

// StagingPath returns where an upload named name should be downloaded
// before Replace, on the same filesystem as the sound file.
func (p *Player) StagingPath(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	return filepath.Join(filepath.Dir(p.soundPath), "incoming"+ext)
}
