package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gihan9a/configdist/internal/config"
	xlog "gihan9a/configdist/internal/log"
	"gihan9a/configdist/internal/notify"
	"gihan9a/configdist/internal/reconcile"
)

// loadConfig reads the task file and merges the command line overrides.
// A missing default task file is fine when --dist and --own are given.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	path := opts.configFile
	explicit := path != ""
	if !explicit {
		path = config.DefaultFile
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		log := xlog.WithComponent("cli")
		log.Debug().Str("path", path).Msg("no task file, using defaults")
		cfg, _ = config.LoadConfig("")
	}

	overrides := config.Overrides{Dist: opts.dist, Own: opts.own}
	if cmd.Flags().Changed("indent") {
		overrides.Indent = &opts.indent
	}
	if err := cfg.Apply(overrides); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, opts *options, args []string, n notify.Notifier) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return usageError(err)
	}

	targets, err := cfg.Select(args...)
	if err != nil {
		return usageError(err)
	}

	r := reconcile.New(n,
		reconcile.WithIndent(cfg.Indent),
		reconcile.WithCheck(opts.check),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	drift := false
	for _, t := range targets {
		summary, err := r.Reconcile(ctx, t)
		if err != nil {
			return err
		}
		drift = drift || summary.Drift()
	}

	if opts.check && drift {
		return errDrift
	}
	if !opts.watch {
		return nil
	}
	return watch(ctx, r, targets, n)
}

func watch(ctx context.Context, r *reconcile.Reconciler, targets []config.Target, n notify.Notifier) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := reconcile.NewWatcher(r, targets)
	if err != nil {
		return failure(err)
	}

	n.Notify(notify.Record{
		Severity: notify.Info,
		Message:  fmt.Sprintf("Watching the dist files of %d target(s). Press Ctrl+C to stop.", len(targets)),
	})
	return w.Run(ctx)
}
