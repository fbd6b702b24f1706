package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ferxalbs/termmux/internal/mux"
)

const shellsFile = "/etc/shells"

// Profiles returns the discovered shell profiles, scanning the system
// on first use.
func (h *Host) Profiles(ctx context.Context) ([]mux.ShellProfile, error) {
	h.profMu.Lock()
	defer h.profMu.Unlock()
	if h.profiles == nil {
		h.profiles = h.discoverProfiles()
	}
	out := make([]mux.ShellProfile, len(h.profiles))
	copy(out, h.profiles)
	return out, nil
}

// InitProfiles forces a rescan and returns the fresh list.
func (h *Host) InitProfiles(ctx context.Context) ([]mux.ShellProfile, error) {
	h.profMu.Lock()
	defer h.profMu.Unlock()
	h.profiles = h.discoverProfiles()
	out := make([]mux.ShellProfile, len(h.profiles))
	copy(out, h.profiles)
	return out, nil
}

// discoverProfiles builds the profile list from $SHELL and /etc/shells.
// The user's login shell always comes first; entries pointing at
// missing binaries are skipped.
func (h *Host) discoverProfiles() []mux.ShellProfile {
	seen := make(map[string]bool)
	var profiles []mux.ShellProfile

	add := func(command string) {
		if command == "" || seen[command] {
			return
		}
		if _, err := os.Stat(command); err != nil {
			return
		}
		seen[command] = true
		profiles = append(profiles, mux.ShellProfile{
			Name:    filepath.Base(command),
			Command: command,
		})
	}

	add(os.Getenv("SHELL"))

	data, err := os.ReadFile(shellsFile)
	if err != nil {
		h.log.Warn("Could not read shells file, using login shell only",
			zap.String("path", shellsFile),
			zap.Error(err),
		)
	} else {
		for _, command := range parseShells(data) {
			add(command)
		}
	}

	if len(profiles) == 0 {
		add("/bin/bash")
		add("/bin/sh")
	}
	return profiles
}

// parseShells extracts shell paths from /etc/shells content, ignoring
// comments and blank lines.
func parseShells(data []byte) []string {
	var shells []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		shells = append(shells, line)
	}
	return shells
}
