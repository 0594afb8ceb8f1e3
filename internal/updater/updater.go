// Package updater pulls the latest sources of a git checkout.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"videoenhancer/internal/runner"
)

// ErrNoRemote is returned when the checkout has no origin remote
var ErrNoRemote = errors.New("no remote repository configured")

// Updater runs git through a runner
type Updater struct {
	Runner runner.Runner
	Git    string
}

// New returns an updater using git from PATH
func New(r runner.Runner) *Updater {
	return &Updater{Runner: r, Git: "git"}
}

// RemoteURL returns the URL of origin for the checkout at dir
func (u *Updater) RemoteURL(ctx context.Context, dir string) (string, error) {
	out, err := u.Runner.Output(ctx, u.Git, "-C", dir, "config", "--get", "remote.origin.url")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		slog.Debug("git config failed", "dir", dir, "err", err)
		return "", ErrNoRemote
	}
	remote := strings.TrimSpace(string(out))
	if remote == "" {
		return "", ErrNoRemote
	}
	return remote, nil
}

// Update fast-forwards the checkout at dir from origin
func (u *Updater) Update(ctx context.Context, dir string) error {
	remote, err := u.RemoteURL(ctx, dir)
	if err != nil {
		return err
	}

	slog.Info("updating", "remote", remote, "dir", dir)
	if err := u.Runner.Run(ctx, u.Git, "-C", dir, "pull", "--ff-only"); err != nil {
		return fmt.Errorf("failed to update repository: %w", err)
	}
	return nil
}
