package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog/log"
)

var (
	// ErrGitNotFound is returned when no git executable works.
	ErrGitNotFound = errors.New("git executable not found")

	// ErrRemoteNotFound is returned when git cannot find the remote repository.
	ErrRemoteNotFound = errors.New("remote repository not found")

	// ErrAuthentication is returned when the remote rejects the credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrPermission is returned when the credentials lack write access.
	ErrPermission = errors.New("permission denied")
)

// Git runs git commands, echoing each one with secrets redacted.
type Git struct {
	echo io.Writer
	path string
}

// FindGit returns a runner for the first candidate that answers --version,
// falling back to git on PATH.
func FindGit(ctx context.Context, candidates []string, echo io.Writer) (*Git, string, error) {
	for _, c := range append(append([]string(nil), candidates...), "git") {
		path, err := exec.LookPath(c)
		if err != nil {
			continue
		}

		out, err := exec.CommandContext(ctx, path, "--version").Output()
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Git found but failed to run")
			continue
		}

		return &Git{path: path, echo: echo}, strings.TrimSpace(string(out)), nil
	}

	return nil, "", ErrGitNotFound
}

// Path returns the git executable in use.
func (g *Git) Path() string {
	return g.path
}

// Run executes git with args in dir and returns the combined output.
func (g *Git) Run(ctx context.Context, dir string, args ...string) (string, error) {
	line := shellquote.Join(append([]string{"git"}, redact(args)...)...)
	if g.echo != nil {
		_, _ = fmt.Fprintf(g.echo, "$ %s\n", line)
	}

	cmd := exec.CommandContext(ctx, g.path, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		log.Debug().Str("cmd", line).Str("output", output).Msg("Git command failed")
		return output, classify(output, err)
	}

	return output, nil
}

// classify maps well-known git failures onto sentinel errors.
func classify(output string, err error) error {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "repository not found"):
		return fmt.Errorf("%w: %s", ErrRemoteNotFound, output)
	case strings.Contains(lower, "authentication failed"):
		return fmt.Errorf("%w: check the token", ErrAuthentication)
	case strings.Contains(lower, "permission denied") || strings.Contains(lower, "403"):
		return fmt.Errorf("%w: the token needs the repo scope", ErrPermission)
	}

	if output == "" {
		return fmt.Errorf("git: %w", err)
	}
	return fmt.Errorf("git: %w: %s", err, output)
}

// redact hides passwords embedded in URL arguments.
func redact(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = a
		if !strings.Contains(a, "://") {
			continue
		}
		if u, err := url.Parse(a); err == nil && u.User != nil {
			out[i] = u.Redacted()
		}
	}
	return out
}
