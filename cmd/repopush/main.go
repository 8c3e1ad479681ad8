// main is the entry point of repopush, which uploads a local project directory to GitHub.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srvdash/internal/logger"
	"github.com/woozymasta/srvdash/internal/publish"
	"github.com/woozymasta/srvdash/internal/vars"
)

type options struct {
	// betteralign:ignore

	Config     string        `short:"c" long:"config" env:"REPOPUSH_CONFIG" description:"Upload configuration file (yaml, toml, json), defaults to ~/.repopush.yaml when present"`
	Source     string        `short:"s" long:"source" description:"Override source_dir"`
	Repo       string        `short:"r" long:"repo" description:"Override repo_name"`
	OnConflict string        `long:"on-conflict" description:"Override on_conflict" choice:"ask" choice:"update" choice:"rename" choice:"delete" choice:"abort"`
	Settle     time.Duration `long:"settle" description:"Pause after creating or deleting a repository" default:"3s"`
	Yes        bool          `short:"y" long:"yes" description:"Accept every confirmation"`

	Logger logger.Config `group:"Logger Options" namespace:"log" env-namespace:"REPOPUSH_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		vars.Print()
		os.Exit(0)
	}

	closeLog := logger.Setup(opts.Logger)
	defer func() { _ = closeLog() }()

	cfg, err := publish.LoadConfig(opts.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.Source != "" {
		cfg.SourceDir = opts.Source
	}
	if opts.Repo != "" {
		cfg.RepoName = opts.Repo
	}
	if opts.OnConflict != "" {
		cfg.OnConflict = publish.Action(opts.OnConflict)
	}

	pub, err := publish.New(cfg, publish.Options{
		Settle:    opts.Settle,
		AssumeYes: opts.Yes,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := pub.Run(ctx)
	switch {
	case errors.Is(err, publish.ErrAborted):
		pub.Console().Info("Upload cancelled")
		return
	case err != nil && ctx.Err() != nil:
		pub.Console().Warn("Upload interrupted")
		os.Exit(130)
	case err != nil:
		pub.Console().Error("Upload failed: %v", err)
		pub.Console().PrintTroubleshooting()
		os.Exit(1)
	}

	pub.Console().PrintSummary(summary)
}
