package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/dyike/MarketPulse/internal/dashboard"
	"github.com/dyike/MarketPulse/internal/display"
	"github.com/dyike/MarketPulse/internal/models"
)

const (
	actionSearch    = "Search a ticker"
	actionRefresh   = "Refresh now"
	actionLiveOn    = "Turn live updates on"
	actionLiveOff   = "Turn live updates off"
	actionWatchlist = "Pick from watchlist"
	actionQuit      = "Quit"
)

// WatchSession drives a dashboard from menu prompts. Fetches started from
// the menu run in the session goroutine; auto-refresh results arrive via
// the dashboard subscription and are announced as one line.
type WatchSession struct {
	board  *dashboard.Dashboard
	view   *display.DashboardView
	prompt Prompter
	out    io.Writer
	clear  bool

	// busy is set while the menu itself is fetching.
	busy atomic.Bool
}

func NewWatchSession(board *dashboard.Dashboard, view *display.DashboardView, prompt Prompter, out io.Writer) *WatchSession {
	return &WatchSession{
		board:  board,
		view:   view,
		prompt: prompt,
		out:    out,
		clear:  shouldClear(),
	}
}

// Run mounts symbol (or the default symbol) and loops until the user quits
// or ctx is cancelled.
func (s *WatchSession) Run(ctx context.Context, symbol string) error {
	unsubscribe := s.board.Subscribe(s.onState)
	defer unsubscribe()

	if strings.TrimSpace(symbol) == "" {
		symbol = s.board.DefaultSymbol()
	}
	s.fetch(ctx, symbol)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		choice, err := s.prompt.SelectAction(menuOptions(s.board.State(), s.board.AutoRefresh()))
		if err != nil {
			return quitOrErr(err)
		}

		switch choice {
		case actionSearch:
			sym, err := s.prompt.InputSymbol()
			if err != nil {
				if isQuit(err) {
					s.redraw()
					continue
				}
				return err
			}
			s.fetch(ctx, sym)
		case actionRefresh:
			s.busy.Store(true)
			s.board.Refresh(ctx)
			s.busy.Store(false)
			s.redraw()
		case actionLiveOn, actionLiveOff:
			s.board.SetAutoRefresh(choice == actionLiveOn)
			s.redraw()
		case actionWatchlist:
			sym, err := s.pickPreset()
			if err != nil {
				if isQuit(err) {
					s.redraw()
					continue
				}
				return err
			}
			s.fetch(ctx, sym)
		case actionQuit:
			DisplayInfo(s.out, "Goodbye.")
			return nil
		default:
			return fmt.Errorf("unknown action %q", choice)
		}
	}
}

func (s *WatchSession) fetch(ctx context.Context, symbol string) {
	s.busy.Store(true)
	defer s.busy.Store(false)

	fmt.Fprintln(s.out, pendingStyle.Render(fmt.Sprintf("Fetching %s...", strings.ToUpper(strings.TrimSpace(symbol)))))
	s.board.Fetch(ctx, symbol)
	s.redraw()
}

func (s *WatchSession) pickPreset() (string, error) {
	presets := dashboard.Watchlist()
	options := make([]string, 0, len(presets))
	current := ""
	for _, p := range presets {
		label := presetLabel(p)
		options = append(options, label)
		if s.board.IsActive(p.Symbol) {
			current = label
		}
	}

	choice, err := s.prompt.SelectPreset(options, current)
	if err != nil {
		return "", err
	}
	for i, label := range options {
		if label == choice {
			return presets[i].Symbol, nil
		}
	}
	return "", fmt.Errorf("unknown preset %q", choice)
}

func (s *WatchSession) redraw() {
	if s.clear {
		ClearScreen(s.out)
	}
	_ = s.view.Print(s.out, s.board.State(), s.board.AutoRefresh())
}

// onState announces transitions the menu did not start itself.
func (s *WatchSession) onState(state models.RequestState) {
	if s.busy.Load() {
		return
	}
	switch state.Status {
	case models.StatusSuccess:
		q := state.Quote
		DisplaySuccess(s.out, fmt.Sprintf("%s %s %s at %s", q.Symbol, display.FormatPrice(q.Price),
			display.FormatChange(q.Change, q.ChangePercent), q.LastUpdated))
	case models.StatusError:
		DisplayWarning(s.out, truncateString(state.Error, 80))
	}
}

// menuOptions hides Refresh when nothing is loaded or a fetch is in flight.
func menuOptions(state models.RequestState, autoRefresh bool) []string {
	options := []string{actionSearch}
	if state.Quote != nil && !state.Loading() {
		options = append(options, actionRefresh)
	}
	if autoRefresh {
		options = append(options, actionLiveOff)
	} else {
		options = append(options, actionLiveOn)
	}
	return append(options, actionWatchlist, actionQuit)
}

func presetLabel(p dashboard.Preset) string {
	return fmt.Sprintf("%-11s %s (%s)", p.Symbol, p.Name, p.Exchange)
}

func isQuit(err error) bool {
	return errors.Is(err, errQuit) || errors.Is(err, io.EOF)
}

func quitOrErr(err error) error {
	if isQuit(err) {
		return nil
	}
	return err
}
