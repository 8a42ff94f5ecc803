// ABOUTME: Board CLI commands talking to a running sponsordesk server
// ABOUTME: Opens the configured board cache and moves cards or starts the kanban TUI
package cli

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/sponsordesk/board"
	"github.com/harperreed/sponsordesk/config"
	"github.com/harperreed/sponsordesk/retry"
	"github.com/harperreed/sponsordesk/status"
	"github.com/harperreed/sponsordesk/tui"
	"go.uber.org/zap"
)

// OpenBoardCache opens the cache the config selects. The returned closer is
// never nil.
func OpenBoardCache(cfg config.BoardConfig) (board.Cache, io.Closer, error) {
	switch cfg.CacheDriver {
	case config.CacheMemory:
		return board.NewMemoryCache(), nopCloser{}, nil
	case config.CacheCharm:
		cache, err := board.OpenCharmCache(cfg.CharmHost, cfg.CharmAutoSync)
		if err != nil {
			return nil, nil, err
		}
		return cache, cache, nil
	default:
		cache, err := board.OpenBadgerCache(cfg.CacheDir)
		if err != nil {
			return nil, nil, err
		}
		return cache, cache, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (a *App) reconciler(cache board.Cache) *board.Reconciler {
	client := board.NewClient(board.ClientOptions{
		BaseURL: a.Config.Board.APIURL,
		Token:   a.Config.Board.Token,
		Retry: retry.Config{
			MaxTries:       a.Config.Retry.MaxTries,
			InitialBackoff: a.Config.Retry.InitialBackoff,
			MaxBackoff:     a.Config.Retry.MaxBackoff,
		},
	}, a.logger())
	return board.NewReconciler(cache, client, client, a.logger())
}

// MoveCommand drags one card to another column through the board cache.
func (a *App) MoveCommand(ctx context.Context, cache board.Cache, args []string) error {
	fs := a.flags("move")
	record := fs.String("record", "", "Pipeline record ID (required)")
	conference := fs.String("conference", "", "Conference ID; loads the board when it is not cached")
	axis := fs.String("axis", string(status.AxisPipeline), "Status axis")
	to := fs.String("to", "", "Target column (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recordID, err := argID(fs, "record", *record)
	if err != nil {
		return err
	}
	if *to == "" {
		return fmt.Errorf("--to is required")
	}

	r := a.reconciler(cache)
	if *conference != "" {
		confID, err := parseID("conference", *conference)
		if err != nil {
			return err
		}
		if _, err := r.Board(ctx, confID); err != nil {
			return fmt.Errorf("failed to load board: %w", err)
		}
	}

	drag, err := r.BeginDrag(recordID, status.Axis(*axis))
	if err != nil {
		return err
	}
	if err := r.Drop(ctx, drag, *to); err != nil {
		return fmt.Errorf("move rejected, board restored: %w", err)
	}

	a.printf("✓ Moved %s → %s\n", drag.Source, *to)
	return nil
}

// BoardCommand runs the interactive kanban board.
func (a *App) BoardCommand(ctx context.Context, cache board.Cache, args []string) error {
	fs := a.flags("board")
	conference := fs.String("conference", "", "Conference ID (required)")
	title := fs.String("title", "", "Board title")
	if err := fs.Parse(args); err != nil {
		return err
	}

	confID, err := argID(fs, "conference", *conference)
	if err != nil {
		return err
	}
	if *title == "" {
		*title = confID.String()
	}

	a.logger().Debug("starting board", zap.String("conference_id", confID.String()))
	p := tea.NewProgram(tui.NewModel(a.reconciler(cache), confID, *title), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
