package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

const totalSteps = 7

// Summary reports a finished upload.
type Summary struct {
	Repo        string
	URL         string
	Elapsed     time.Duration
	Files       int
	Dirs        int
	Conflicts   int
	Killed      int
	Bytes       int64
	Created     bool
	ForcePushed bool
}

// Options wire a Publisher to its surroundings. Zero values select the defaults.
type Options struct {
	In         io.Reader
	Out        io.Writer
	HTTPClient *http.Client
	Now        func() time.Time

	// Settle is the pause given to GitHub after creating or deleting a repository.
	Settle time.Duration

	// AssumeYes accepts every confirmation.
	AssumeYes bool
}

// Publisher runs one upload.
type Publisher struct {
	cfg     Config
	remote  *Remote
	console *Console
	prompt  *Prompter
	git     *Git
	ignore  *Matcher
	now     func() time.Time
	settle  time.Duration
}

// New validates cfg and prepares a Publisher.
func New(cfg *Config, opts Options) (*Publisher, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ignore, err := NewMatcher(cfg.Ignore)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	remote, err := NewRemote(cfg.APIURL, cfg.Username, cfg.Token, opts.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &Publisher{
		cfg:     *cfg,
		remote:  remote,
		console: NewConsole(opts.Out),
		prompt:  NewPrompter(opts.In, opts.Out, opts.AssumeYes),
		ignore:  ignore,
		now:     opts.Now,
		settle:  opts.Settle,
	}, nil
}

// Console returns the printer of the Publisher.
func (p *Publisher) Console() *Console {
	return p.console
}

// Run executes the whole upload. Any failure removes the work directory before returning.
func (p *Publisher) Run(ctx context.Context) (summary *Summary, err error) {
	start := p.now()
	summary = &Summary{}

	defer func() {
		if err != nil {
			p.emergencyCleanup()
		}
	}()

	p.console.Step(0, totalSteps, "Pre-flight checks", "Checking for conflicts and preparing the environment")
	if err := p.preflight(ctx, summary); err != nil {
		return nil, err
	}

	p.console.Step(1, totalSteps, "Initializing environment", "Locating git and checking free space")
	if err := p.initialize(ctx); err != nil {
		return nil, err
	}

	p.console.Step(2, totalSteps, "Preparing workspace", "Cleaning previous attempts")
	if err := p.prepareWorkspace(ctx); err != nil {
		return nil, err
	}

	p.console.Step(3, totalSteps, "Managing GitHub repository", "Creating or updating the remote repository")
	if err := p.ensureRemote(ctx, summary); err != nil {
		return nil, err
	}

	p.console.Step(4, totalSteps, "Copying files", p.cfg.SourceDir)
	stats, err := CopyTree(p.cfg.SourceDir, p.cfg.WorkDir, p.ignore, p.console.Writer())
	if err != nil {
		return nil, fmt.Errorf("copy files: %w", err)
	}
	summary.Files, summary.Dirs, summary.Bytes = stats.Files, stats.Dirs, stats.Bytes
	if stats.Skipped > 0 {
		p.console.Warn("Skipped %d unreadable entries", stats.Skipped)
	}
	p.console.Success("Copied %d files (%s)", stats.Files, humanize.IBytes(uint64(stats.Bytes)))

	p.console.Step(5, totalSteps, "Initializing git repository", "Creating the local commit")
	if err := p.commit(ctx, stats); err != nil {
		return nil, err
	}

	p.console.Step(6, totalSteps, "Uploading to GitHub", "Pushing to the remote repository")
	if err := p.push(ctx, summary); err != nil {
		return nil, err
	}

	p.console.Step(7, totalSteps, "Final cleanup", "Removing temporary files")
	if err := NewRemover(p.git, p.console, time.Second).ForceRemove(ctx, p.cfg.WorkDir); err != nil {
		p.console.Warn("Could not fully clean %s, delete it manually", p.cfg.WorkDir)
	} else {
		p.console.Success("Temporary files cleaned up")
	}

	summary.Repo = p.cfg.RepoName
	summary.Elapsed = p.now().Sub(start)
	return summary, nil
}

func (p *Publisher) preflight(ctx context.Context, summary *Summary) error {
	killed, err := StopGitProcesses(ctx, p.cfg.WorkDir)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to inspect running processes")
	}
	summary.Killed = killed
	if killed > 0 {
		p.console.Success("Stopped %d git processes", killed)
	}

	exists, err := p.remote.Exists(ctx, p.cfg.RepoName)
	if err != nil {
		return fmt.Errorf("check repository: %w", err)
	}
	if exists {
		summary.Conflicts++
		name, err := p.resolveConflict(ctx, p.cfg.RepoName)
		if err != nil {
			return err
		}
		p.cfg.RepoName = name
	}

	p.console.Success("Pre-flight checks completed")
	return nil
}

func (p *Publisher) initialize(ctx context.Context) error {
	git, version, err := FindGit(ctx, p.cfg.GitPaths, p.console.Writer())
	if err != nil {
		return err
	}
	p.git = git
	p.console.Success("Git found: %s (%s)", git.Path(), version)

	_, size, err := Measure(p.cfg.SourceDir, p.ignore)
	if err != nil {
		return fmt.Errorf("measure source: %w", err)
	}

	free, err := FreeSpace(filepath.Dir(p.cfg.WorkDir))
	if err != nil {
		log.Debug().Err(err).Msg("Free space check skipped")
	} else if free < uint64(size)*2 {
		p.console.Warn("Low disk space. Available: %s, need: %s",
			humanize.IBytes(free), humanize.IBytes(uint64(size)*2))
	}

	p.console.Success("Environment initialized")
	return nil
}

func (p *Publisher) prepareWorkspace(ctx context.Context) error {
	if err := NewRemover(p.git, p.console, time.Second).ForceRemove(ctx, p.cfg.WorkDir); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.cfg.WorkDir = fmt.Sprintf("%s_%d", p.cfg.WorkDir, p.now().Unix())
		p.console.Warn("Using alternative directory: %s", p.cfg.WorkDir)
	}

	if err := os.MkdirAll(p.cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	p.console.Success("Workspace prepared")
	return nil
}

func (p *Publisher) ensureRemote(ctx context.Context, summary *Summary) error {
	created, err := p.remote.Create(ctx, p.cfg.RepoName, p.description(), p.cfg.Private)
	if err != nil {
		return err
	}
	summary.Created = created
	if created {
		p.console.Success("Repository '%s' created", p.cfg.RepoName)
		p.wait(ctx, p.settle)
	} else {
		p.console.Warn("Repository '%s' already exists, it will be updated", p.cfg.RepoName)
	}

	repo, err := p.remote.Get(ctx, p.cfg.RepoName)
	if err != nil {
		return fmt.Errorf("verify repository: %w", err)
	}
	summary.URL = repo.GetHTMLURL()
	p.console.Success("Repository verified: %s", repo.GetFullName())
	return nil
}

func (p *Publisher) commit(ctx context.Context, stats Stats) error {
	dir := p.cfg.WorkDir

	if _, err := p.git.Run(ctx, dir, "init"); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	if _, err := p.git.Run(ctx, dir, "checkout", "-B", p.cfg.Branch); err != nil {
		return fmt.Errorf("git branch: %w", err)
	}

	written, err := writeScaffold(dir, readmeData{
		Time:        p.now(),
		Name:        p.cfg.RepoName,
		Owner:       p.cfg.Username,
		Description: p.cfg.Description,
		CloneURL:    fmt.Sprintf("https://github.com/%s/%s.git", p.cfg.Username, p.cfg.RepoName),
		Stats:       stats,
	})
	if err != nil {
		return err
	}
	for _, f := range written {
		p.console.Info("Generated %s", f)
	}

	if _, err := p.git.Run(ctx, dir, "add", "."); err != nil {
		return fmt.Errorf("git add: %w", err)
	}

	// Identity for hosts without a global git config
	if _, err := p.git.Run(ctx, dir,
		"-c", "user.name="+p.cfg.Username,
		"-c", "user.email="+p.cfg.Username+"@users.noreply.github.com",
		"commit", "-m", p.cfg.CommitMessage,
	); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}

	p.console.Success("Git repository initialized")
	return nil
}

func (p *Publisher) push(ctx context.Context, summary *Summary) error {
	dir := p.cfg.WorkDir

	repo, err := p.remote.Get(ctx, p.cfg.RepoName)
	if errors.Is(err, ErrRepoMissing) {
		p.console.Error("Repository doesn't exist on GitHub: %s", p.cfg.RepoName)
		p.console.Info("Attempting to create it again...")
		if _, err := p.remote.Create(ctx, p.cfg.RepoName, p.description(), p.cfg.Private); err != nil {
			return err
		}
		p.wait(ctx, p.settle)
		repo, err = p.remote.Get(ctx, p.cfg.RepoName)
	}
	if err != nil {
		return fmt.Errorf("verify repository: %w", err)
	}

	pushURL, err := p.remote.PushURL(repo, p.cfg.Token)
	if err != nil {
		return err
	}

	_, _ = p.git.Run(ctx, dir, "remote", "remove", "origin")
	if _, err := p.git.Run(ctx, dir, "remote", "add", "origin", pushURL); err != nil {
		return fmt.Errorf("git remote: %w", err)
	}

	p.console.Info("Attempting normal push...")
	if _, err := p.git.Run(ctx, dir, "push", "-u", "origin", p.cfg.Branch); err != nil {
		if !p.cfg.ForcePush || errors.Is(err, ErrAuthentication) || errors.Is(err, ErrRemoteNotFound) {
			return fmt.Errorf("push: %w", err)
		}

		p.console.Warn("Normal push failed, trying force push...")
		if _, err := p.git.Run(ctx, dir, "push", "-f", "-u", "origin", p.cfg.Branch); err != nil {
			return fmt.Errorf("force push: %w", err)
		}
		summary.ForcePushed = true
	}

	if final, err := p.remote.Get(ctx, p.cfg.RepoName); err == nil && final.GetSize() == 0 {
		p.console.Warn("Push completed but the repository still reports no content")
	}

	summary.URL = repo.GetHTMLURL()
	p.console.Success("Uploaded to %s", summary.URL)
	return nil
}

func (p *Publisher) emergencyCleanup() {
	if p.cfg.WorkDir == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := NewRemover(p.git, p.console, 0).ForceRemove(ctx, p.cfg.WorkDir); err != nil {
		log.Warn().Err(err).Str("path", p.cfg.WorkDir).Msg("Emergency cleanup failed")
	}
}

func (p *Publisher) description() string {
	if p.cfg.Description != "" {
		return p.cfg.Description
	}
	return "Uploaded " + p.now().Format("2006-01-02 15:04")
}

func (p *Publisher) wait(ctx context.Context, d time.Duration) {
	sleep(ctx, d)
}
