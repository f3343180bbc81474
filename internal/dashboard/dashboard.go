package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/internal/models"
)

// DefaultRefreshInterval is the auto-refresh period when none is configured.
const DefaultRefreshInterval = 60 * time.Second

const closeTimeout = 5 * time.Second

var errNoFetcher = errors.New("no quote fetcher configured")

// QuoteFetcher produces a quote for a symbol.
//
//go:generate mockgen -package=dashboard_test -destination=mock_fetcher_test.go -source=dashboard.go QuoteFetcher
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// Option configures a Dashboard.
type Option func(*Dashboard)

func WithDefaultSymbol(symbol string) Option {
	return func(d *Dashboard) {
		if s := strings.TrimSpace(symbol); s != "" {
			d.defaultSymbol = s
		}
	}
}

func WithRefreshInterval(interval time.Duration) Option {
	return func(d *Dashboard) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dashboard) {
		d.log = logger
	}
}

type subscriber struct {
	id int
	fn func(models.RequestState)
}

// Dashboard owns the single current RequestState and every way of changing
// it: manual search, initial load, manual refresh and auto-refresh. Only the
// most recently issued request may complete into the state.
type Dashboard struct {
	mu            sync.Mutex
	state         models.RequestState
	fetcher       QuoteFetcher
	fetcherGen    uint64
	lastID        uint64
	defaultSymbol string
	interval      time.Duration
	autoRefresh   bool
	closed        bool

	scheduler *cron.Cron
	entry     cron.EntryID
	armed     timerKey

	published   uint64
	notifyMu    sync.Mutex
	delivered   uint64
	subscribers []subscriber
	nextSubID   int

	baseCtx   context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	log       zerolog.Logger
}

// timerKey identifies what the armed auto-refresh entry was created for.
type timerKey struct {
	symbol     string
	fetcherGen uint64
	interval   time.Duration
}

func New(fetcher QuoteFetcher, opts ...Option) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		state:         models.RequestState{Status: models.StatusIdle},
		fetcher:       fetcher,
		defaultSymbol: config.DefaultSymbol,
		interval:      DefaultRefreshInterval,
		baseCtx:       ctx,
		cancel:        cancel,
		log:           log.With().Str("component", "dashboard").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}

	cronLog := cron.PrintfLogger(&d.log)
	d.scheduler = cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))
	d.scheduler.Start()
	return d
}

// NewFromConfig builds a dashboard with the configured default symbol and
// refresh interval.
func NewFromConfig(cfg config.Config, fetcher QuoteFetcher, opts ...Option) *Dashboard {
	base := []Option{
		WithDefaultSymbol(cfg.DefaultSymbol),
		WithRefreshInterval(cfg.RefreshInterval()),
	}
	return New(fetcher, append(base, opts...)...)
}

// State returns a copy of the current request state.
func (d *Dashboard) State() models.RequestState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Snapshot()
}

func (d *Dashboard) DefaultSymbol() string {
	return d.defaultSymbol
}

// Start loads the default symbol.
func (d *Dashboard) Start(ctx context.Context) models.RequestState {
	return d.Fetch(ctx, d.defaultSymbol)
}

// Refresh refetches the symbol of the loaded quote. It does nothing when no
// quote is loaded or a request is in flight.
func (d *Dashboard) Refresh(ctx context.Context) models.RequestState {
	d.mu.Lock()
	symbol := d.state.LoadedSymbol()
	loading := d.state.Loading()
	d.mu.Unlock()

	if symbol == "" || loading {
		return d.State()
	}
	return d.Fetch(ctx, symbol)
}

// Fetch requests a quote for symbol and records the outcome. Blank symbols
// are ignored. Errors never escape: they become the error state with a
// user-facing message and the previous quote is kept.
func (d *Dashboard) Fetch(ctx context.Context, symbol string) models.RequestState {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return d.State()
	}

	d.mu.Lock()
	if d.closed {
		defer d.mu.Unlock()
		return d.state.Snapshot()
	}
	d.lastID++
	id := d.lastID
	fetcher := d.fetcher
	d.state.Status = models.StatusLoading
	d.state.Error = ""
	d.state.Symbol = symbol
	d.state.RequestID = id
	d.publishLocked()

	started := time.Now()
	quote, err := d.call(ctx, fetcher, symbol)

	d.mu.Lock()
	if id != d.lastID || d.closed {
		d.log.Debug().Uint64("request_id", id).Uint64("latest_id", d.lastID).Str("symbol", symbol).Msg("discarding stale completion")
		defer d.mu.Unlock()
		return d.state.Snapshot()
	}

	if err != nil {
		d.state.Status = models.StatusError
		d.state.Error = UserMessage(err)
		d.log.Warn().Err(err).Uint64("request_id", id).Str("symbol", symbol).Dur("elapsed", time.Since(started)).Msg("fetch failed")
	} else {
		d.state.Status = models.StatusSuccess
		d.state.Quote = quote
		d.state.Error = ""
		d.log.Info().Uint64("request_id", id).Str("symbol", quote.Symbol).Dur("elapsed", time.Since(started)).Msg("fetch succeeded")
	}
	d.rearmLocked()
	return d.publishLocked()
}

func (d *Dashboard) call(ctx context.Context, fetcher QuoteFetcher, symbol string) (quote *models.Quote, err error) {
	if fetcher == nil {
		return nil, errNoFetcher
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("quote fetcher panicked: %v", r)
		}
	}()

	quote, err = fetcher.FetchQuote(ctx, symbol)
	if err == nil && quote == nil {
		err = errors.New("quote fetcher returned no quote")
	}
	return quote, err
}

// SetAutoRefresh turns periodic refetching of the loaded symbol on or off.
func (d *Dashboard) SetAutoRefresh(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.autoRefresh = enabled
	d.rearmLocked()
}

func (d *Dashboard) AutoRefresh() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.autoRefresh
}

// SetRefreshInterval changes the auto-refresh period.
func (d *Dashboard) SetRefreshInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interval = interval
	d.rearmLocked()
}

func (d *Dashboard) RefreshInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

// SetFetcher swaps the quote source. Requests already in flight complete
// normally; the auto-refresh timer is re-armed against the new fetcher.
func (d *Dashboard) SetFetcher(fetcher QuoteFetcher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fetcher = fetcher
	d.fetcherGen++
	d.rearmLocked()
}

// ActiveTimers reports how many auto-refresh entries are scheduled: 0 or 1.
func (d *Dashboard) ActiveTimers() int {
	return len(d.scheduler.Entries())
}

// Subscribe registers fn to receive every state transition. fn runs
// synchronously and must not call Fetch, Start or Refresh itself.
func (d *Dashboard) Subscribe(fn func(models.RequestState)) (unsubscribe func()) {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()
	d.nextSubID++
	id := d.nextSubID
	d.subscribers = append(d.subscribers, subscriber{id: id, fn: fn})

	return func() {
		d.notifyMu.Lock()
		defer d.notifyMu.Unlock()
		for i, s := range d.subscribers {
			if s.id == id {
				d.subscribers = append(d.subscribers[:i:i], d.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Close cancels the auto-refresh timer and stops the scheduler. Later
// fetches are ignored.
func (d *Dashboard) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.disarmLocked()
		d.mu.Unlock()

		d.cancel()
		select {
		case <-d.scheduler.Stop().Done():
		case <-time.After(closeTimeout):
			d.log.Warn().Msg("auto-refresh job still running after close")
		}
	})
}

// publishLocked snapshots the state, releases d.mu and notifies subscribers.
// A snapshot older than one already delivered is dropped, so subscribers
// never see the state move backwards.
func (d *Dashboard) publishLocked() models.RequestState {
	d.published++
	seq := d.published
	snap := d.state.Snapshot()
	d.mu.Unlock()

	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()
	if seq <= d.delivered {
		return snap
	}
	d.delivered = seq
	for _, s := range d.subscribers {
		s.fn(snap)
	}
	return snap
}

// rearmLocked keeps at most one auto-refresh entry, matching the current
// toggle, loaded symbol, fetcher and interval.
func (d *Dashboard) rearmLocked() {
	symbol := d.state.LoadedSymbol()
	if d.closed || !d.autoRefresh || symbol == "" {
		d.disarmLocked()
		return
	}

	key := timerKey{symbol: symbol, fetcherGen: d.fetcherGen, interval: d.interval}
	if d.entry != 0 && d.armed == key {
		return
	}
	d.disarmLocked()

	d.entry = d.scheduler.Schedule(cron.Every(d.interval), cron.FuncJob(func() {
		d.Fetch(d.baseCtx, symbol)
	}))
	d.armed = key
	d.log.Debug().Str("symbol", symbol).Dur("interval", d.interval).Msg("auto-refresh armed")
}

func (d *Dashboard) disarmLocked() {
	if d.entry == 0 {
		return
	}
	d.scheduler.Remove(d.entry)
	d.log.Debug().Str("symbol", d.armed.symbol).Msg("auto-refresh disarmed")
	d.entry = 0
	d.armed = timerKey{}
}
