package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TFMV/panewatch/internal/panel"
	"github.com/TFMV/panewatch/internal/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// Watch command options
	watchRecursive     bool
	watchIncludeHidden bool
	watchTimeout       time.Duration
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [path...]",
	Short: "Keep a panel per directory refreshed",
	Long: `Open one panel per directory and print a fresh listing whenever the
directory may have changed.

Directories that cannot be watched (unsupported file systems, exhausted
notification limits) fall back to a single manual listing.

Examples:
  panewatch watch /path/to/dir
  panewatch watch --recursive --quiet-window=1s /path/to/tree
  panewatch watch --format=json /mnt/share /home/user`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("error getting current directory: %w", err)
			}
			args = []string{wd}
		}

		dirs := args
		if watchRecursive {
			dirs = nil
			for _, root := range args {
				sub, err := panel.Subdirectories(root, watchIncludeHidden)
				if err != nil {
					return err
				}
				dirs = append(dirs, sub...)
			}
		}
		return runWatch(cmd.Context(), cmd.OutOrStdout(), dirs)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchRecursive, "recursive", false, "Open a panel for every subdirectory")
	watchCmd.Flags().BoolVar(&watchIncludeHidden, "include-hidden", false, "Include hidden directories with --recursive")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "Duration to watch before exiting (e.g., 1h, 30m)")
}

func runWatch(ctx context.Context, w io.Writer, dirs []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := watch.NewLogger(logLevel())
	defer logger.Sync()

	opts, err := watchOptions(logger)
	if err != nil {
		return err
	}
	out := &printer{out: w, format: viper.GetString("format"), silent: viper.GetBool("silent")}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if watchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, watchTimeout)
		defer cancel()
	}

	coord := watch.New(opts)
	defer coord.Shutdown()

	var (
		panels []*panel.Panel
		failed []error
	)
	for _, dir := range dirs {
		p := panel.New(dir, out.listing(""), out.media, logger)
		panels = append(panels, p)
		if _, err := coord.RegisterWatch(dir, p, nil); err != nil {
			failed = append(failed, err)
			logger.Warn("falling back to manual refresh", zap.String("path", dir), zap.Error(err))
		}
	}
	if len(failed) == len(dirs) {
		for _, p := range panels {
			p.ListOnce()
		}
		return errors.Join(failed...)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, p := range panels {
		p := p
		g.Go(func() error { return p.Run(ctx) })
		p.Refresh()
	}

	if !out.silent && out.format == "text" {
		fmt.Fprintf(os.Stderr, "Watching %d directories. Press Ctrl+C to exit.\n", coord.Len())
	}

	err = g.Wait()
	coord.Shutdown()
	out.stats(coord.Stats())
	return err
}
