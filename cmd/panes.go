package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/TFMV/panewatch/internal/panel"
	"github.com/TFMV/panewatch/internal/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// panesCmd represents the panes command
var panesCmd = &cobra.Command{
	Use:   "panes <left> <right>",
	Short: "Run a dual-pane session driven from stdin",
	Long: `Open a left and a right panel and keep both refreshed. Commands are read
from stdin, one per line:

  cd left|right <path>   point a panel at another directory
  suspend | resume       bracket a bulk operation; panels refresh once at the end
  refresh                list both panels now
  eject|mount <root>     report media removal or arrival under root
  share                  report a network share change
  stats                  print watcher statistics
  quit                   exit`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPanes(cmd.Context(), args[0], args[1], cmd.InOrStdin())
	},
}

func init() {
	rootCmd.AddCommand(panesCmd)
}

// pane is one side of the session. entry is nil while the panel is in
// manual-refresh mode.
type pane struct {
	label string
	panel *panel.Panel
	entry *watch.WatchEntry
}

type session struct {
	coord  *watch.Coordinator
	logger *zap.Logger
	out    *printer
	panes  map[string]*pane
}

func runPanes(ctx context.Context, left, right string, in io.Reader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := watch.NewLogger(logLevel())
	defer logger.Sync()

	opts, err := watchOptions(logger)
	if err != nil {
		return err
	}
	out := &printer{out: os.Stdout, format: viper.GetString("format"), silent: viper.GetBool("silent")}

	s := &session{logger: logger, out: out, panes: make(map[string]*pane)}
	opts.OnExternalEvent = func() {
		for _, p := range s.panes {
			p.panel.Refresh()
		}
	}
	for label, dir := range map[string]string{"left": left, "right": right} {
		s.panes[label] = &pane{label: label, panel: panel.New(dir, out.listing(label), out.media, logger)}
	}

	s.coord = watch.New(opts)
	defer s.coord.Shutdown()

	for _, p := range s.panes {
		s.watch(p, p.panel.Path())
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range s.panes {
		p := p
		g.Go(func() error { return p.panel.Run(ctx) })
		p.panel.Refresh()
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					stop()
					return nil
				}
				if err := s.exec(line); err != nil {
					if errors.Is(err, errQuit) {
						stop()
						return nil
					}
					fmt.Fprintln(os.Stderr, "Error:", err)
				}
			}
		}
	})

	err = g.Wait()
	s.coord.Shutdown()
	out.stats(s.coord.Stats())
	return err
}

var errQuit = errors.New("quit")

// watch registers p for dir, or leaves it in manual-refresh mode.
func (s *session) watch(p *pane, dir string) {
	e, err := s.coord.RegisterWatch(dir, p.panel, p.label)
	if err != nil {
		s.logger.Warn("falling back to manual refresh", zap.String("pane", p.label), zap.Error(err))
		return
	}
	p.entry = e
}

func (s *session) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "cd":
		if len(fields) != 3 {
			return fmt.Errorf("usage: cd left|right <path>")
		}
		p, ok := s.panes[fields[1]]
		if !ok {
			return fmt.Errorf("unknown pane: %s", fields[1])
		}
		return s.cd(p, fields[2])
	case "suspend":
		s.coord.BeginSuspend()
	case "resume":
		s.coord.EndSuspend()
	case "refresh":
		for _, p := range s.panes {
			p.panel.Refresh()
		}
	case "eject", "mount":
		if len(fields) != 2 {
			return fmt.Errorf("usage: %s <root>", fields[0])
		}
		kind := watch.MediaRemoved
		if fields[0] == "mount" {
			kind = watch.MediaArrived
		}
		s.coord.PostMediaEvent(fields[1], kind)
	case "share":
		s.coord.PostExternalEvent()
	case "stats":
		s.out.stats(s.coord.Stats())
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command: %s", fields[0])
	}
	return nil
}

func (s *session) cd(p *pane, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	switch {
	case p.entry == nil:
		s.watch(p, dir)
	default:
		if err := s.coord.ChangeWatch(p.entry, dir); err != nil {
			// The old watch no longer matches what the panel shows.
			s.logger.Warn("falling back to manual refresh", zap.String("pane", p.label), zap.Error(err))
			if err := s.coord.UnregisterWatch(p.entry); err != nil {
				s.logger.Debug("unregister failed", zap.Error(err))
			}
			p.entry = nil
		}
	}
	p.panel.SetPath(dir, s.coord.Stamp())
	return nil
}
