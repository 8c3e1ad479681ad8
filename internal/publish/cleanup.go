package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/process"
)

// ErrNotRemoved is returned when every removal strategy left the path behind.
var ErrNotRemoved = errors.New("directory could not be removed")

// StopGitProcesses kills git processes whose working directory lies inside dir.
// It returns how many were killed.
func StopGitProcesses(ctx context.Context, dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	self := int32(os.Getpid())
	killed := 0
	for _, p := range procs {
		if p.Pid == self {
			continue
		}

		name, err := p.NameWithContext(ctx)
		if err != nil || !strings.Contains(strings.ToLower(name), "git") {
			continue
		}

		cwd, err := p.CwdWithContext(ctx)
		if err != nil || !within(abs, cwd) {
			continue
		}

		if err := p.KillWithContext(ctx); err != nil {
			log.Debug().Err(err).Int32("pid", p.Pid).Msg("Failed to stop git process")
			continue
		}
		log.Info().Int32("pid", p.Pid).Str("name", name).Str("cwd", cwd).Msg("Stopped git process")
		killed++
	}

	return killed, nil
}

// strategy is one way of removing a directory tree.
type strategy struct {
	run  func(ctx context.Context, path string) error
	name string
}

// Remover deletes directories that resist a plain removal.
type Remover struct {
	git     *Git
	console *Console
	pause   time.Duration
}

// NewRemover creates a Remover. git may be nil, which skips the git clean strategy.
func NewRemover(git *Git, console *Console, pause time.Duration) *Remover {
	return &Remover{git: git, console: console, pause: pause}
}

func (r *Remover) strategies() []strategy {
	return []strategy{
		{name: "plain removal", run: func(_ context.Context, p string) error { return os.RemoveAll(p) }},
		{name: "make writable", run: removeWritable},
		{name: "git clean", run: r.gitClean},
		{name: "stop git processes", run: r.stopAndRemove},
		{name: "move to temp", run: moveAway},
	}
}

// ForceRemove tries each strategy in order until path no longer exists.
func (r *Remover) ForceRemove(ctx context.Context, path string) error {
	if !exists(path) {
		return nil
	}

	list := r.strategies()
	for i, s := range list {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.console.Info("Cleanup method %d/%d: %s", i+1, len(list), s.name)
		err := s.run(ctx, path)
		if !exists(path) {
			r.console.Success("Directory cleaned with method %d", i+1)
			return nil
		}

		log.Debug().Err(err).Str("path", path).Str("method", s.name).Msg("Removal attempt failed")
		if err != nil {
			r.console.Warn("Method %d failed: %v", i+1, err)
		}
		sleep(ctx, r.pause)
	}

	r.console.Error("Could not remove directory: %s", path)
	return fmt.Errorf("%w: %s", ErrNotRemoved, path)
}

func (r *Remover) gitClean(ctx context.Context, p string) error {
	if r.git == nil {
		return errors.New("git is not available")
	}
	if _, err := os.Stat(filepath.Join(p, ".git")); err == nil {
		if _, err := r.git.Run(ctx, p, "clean", "-fdx"); err != nil {
			log.Debug().Err(err).Msg("git clean failed")
		}
	}
	return removeWritable(ctx, p)
}

func (r *Remover) stopAndRemove(ctx context.Context, p string) error {
	n, err := StopGitProcesses(ctx, p)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to stop git processes")
	}
	if n > 0 {
		r.console.Success("Stopped %d git processes", n)
	}
	sleep(ctx, 2*r.pause)
	return removeWritable(ctx, p)
}

// removeWritable grants the owner write access on the whole tree, then removes it.
func removeWritable(_ context.Context, p string) error {
	_ = filepath.WalkDir(p, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		mode := os.FileMode(0o600)
		if d.IsDir() {
			mode = 0o700
		}
		_ = os.Chmod(name, mode)
		return nil
	})
	return os.RemoveAll(p)
}

// moveAway renames the tree into a fresh temp directory and removes it from there.
// Whatever survives is left to the system temp cleanup.
func moveAway(_ context.Context, p string) error {
	tmp, err := os.MkdirTemp("", "repopush-trash-")
	if err != nil {
		return err
	}
	if err := os.Rename(p, filepath.Join(tmp, "to_delete")); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	_ = os.RemoveAll(tmp)
	return nil
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
