package dashboard_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dyike/MarketPulse/internal/dashboard"
	"github.com/dyike/MarketPulse/internal/models"
	"github.com/dyike/MarketPulse/internal/processing"
)

func quoteFor(symbol string, price float64) *models.Quote {
	return &models.Quote{
		Symbol:      symbol,
		CompanyName: symbol + " Corp",
		Price:       price,
		Currency:    "USD",
		ChartData:   []models.ChartPoint{{Time: "09:30", Price: price}},
		News:        []models.NewsItem{},
		LastUpdated: "10:00:00",
	}
}

func newDashboard(t *testing.T, fetcher dashboard.QuoteFetcher, opts ...dashboard.Option) *dashboard.Dashboard {
	t.Helper()
	d := dashboard.New(fetcher, append([]dashboard.Option{dashboard.WithLogger(zerolog.Nop())}, opts...)...)
	t.Cleanup(d.Close)
	return d
}

// recorder collects every published state.
type recorder struct {
	mu     sync.Mutex
	states []models.RequestState
}

func (r *recorder) record(s models.RequestState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) statuses() []models.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Status, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s.Status)
	}
	return out
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	// Arrange: a fetcher that answers for the trimmed symbol.
	ctrl := gomock.NewController(t)
	fetcher := NewMockQuoteFetcher(ctrl)
	fetcher.EXPECT().
		FetchQuote(gomock.Any(), "tsla").
		Return(quoteFor("TSLA", 242.1), nil).
		Times(1)

	d := newDashboard(t, fetcher)
	rec := &recorder{}
	d.Subscribe(rec.record)

	// Act
	state := d.Fetch(context.Background(), " tsla ")

	// Assert: loading then success, with the quote and no error.
	assert.Equal(t, []models.Status{models.StatusLoading, models.StatusSuccess}, rec.statuses())
	assert.Equal(t, models.StatusSuccess, state.Status)
	require.NotNil(t, state.Quote)
	assert.Equal(t, "TSLA", state.Quote.Symbol)
	assert.Empty(t, state.Error)
	assert.Equal(t, "tsla", state.Symbol)
	assert.True(t, d.IsActive("tsla"))
}

func TestFetchErrorKeepsPreviousQuote(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := NewMockQuoteFetcher(ctrl)
	gomock.InOrder(
		fetcher.EXPECT().FetchQuote(gomock.Any(), "AAPL").Return(quoteFor("AAPL", 150.2), nil),
		fetcher.EXPECT().FetchQuote(gomock.Any(), "ZZZZ").Return(nil, errors.New("upstream 500")),
	)
	d := newDashboard(t, fetcher)

	d.Fetch(context.Background(), "AAPL")
	state := d.Fetch(context.Background(), "ZZZZ")

	assert.Equal(t, models.StatusError, state.Status)
	assert.Equal(t, dashboard.FallbackMessage, state.Error)
	require.NotNil(t, state.Quote)
	assert.Equal(t, "AAPL", state.Quote.Symbol)
}

func TestFetchParserErrorMessagePassesThrough(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := NewMockQuoteFetcher(ctrl)
	fetcher.EXPECT().
		FetchQuote(gomock.Any(), "AAPL").
		Return(nil, fmt.Errorf("parse reply for AAPL: %w", &processing.ExtractionError{Length: 12}))
	d := newDashboard(t, fetcher)

	state := d.Fetch(context.Background(), "AAPL")

	assert.Equal(t, models.StatusError, state.Status)
	assert.Equal(t, "Failed to parse market data from AI response.", state.Error)
	assert.Nil(t, state.Quote)
}

func TestFetchIgnoresBlankSymbol(t *testing.T) {
	t.Parallel()

	// Arrange: no calls are expected.
	ctrl := gomock.NewController(t)
	d := newDashboard(t, NewMockQuoteFetcher(ctrl))

	state := d.Fetch(context.Background(), "   ")

	assert.Equal(t, models.StatusIdle, state.Status)
	assert.Zero(t, state.RequestID)
}

func TestFetchRecoversFromPanickingFetcher(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := NewMockQuoteFetcher(ctrl)
	fetcher.EXPECT().
		FetchQuote(gomock.Any(), "AAPL").
		DoAndReturn(func(context.Context, string) (*models.Quote, error) {
			panic("boom")
		})
	d := newDashboard(t, fetcher)

	state := d.Fetch(context.Background(), "AAPL")

	assert.Equal(t, models.StatusError, state.Status)
	assert.Equal(t, dashboard.FallbackMessage, state.Error)
}

func TestStaleCompletionIsDiscarded(t *testing.T) {
	t.Parallel()

	// Arrange: the first request blocks until released, the second answers at once.
	ctrl := gomock.NewController(t)
	fetcher := NewMockQuoteFetcher(ctrl)
	started := make(chan struct{})
	release := make(chan struct{})
	fetcher.EXPECT().
		FetchQuote(gomock.Any(), "AAPL").
		DoAndReturn(func(context.Context, string) (*models.Quote, error) {
			close(started)
			<-release
			return quoteFor("AAPL", 150.2), nil
		})
	fetcher.EXPECT().
		FetchQuote(gomock.Any(), "MSFT").
		Return(quoteFor("MSFT", 410.5), nil)
	d := newDashboard(t, fetcher)

	// Act: issue AAPL, then MSFT while AAPL is in flight, then let AAPL finish.
	done := make(chan models.RequestState, 1)
	go func() { done <- d.Fetch(context.Background(), "AAPL") }()
	<-started
	latest := d.Fetch(context.Background(), "MSFT")
	close(release)
	<-done

	// Assert: the older AAPL completion did not overwrite MSFT.
	state := d.State()
	assert.Equal(t, latest.RequestID, state.RequestID)
	assert.Equal(t, models.StatusSuccess, state.Status)
	require.NotNil(t, state.Quote)
	assert.Equal(t, "MSFT", state.Quote.Symbol)
}

func TestStartLoadsDefaultSymbol(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := NewMockQuoteFetcher(ctrl)
	fetcher.EXPECT().FetchQuote(gomock.Any(), "TATAMOTORS").Return(quoteFor("TATAMOTORS", 981.4), nil)
	d := newDashboard(t, fetcher)

	state := d.Start(context.Background())

	assert.Equal(t, models.StatusSuccess, state.Status)
	assert.Equal(t, "TATAMOTORS", d.DefaultSymbol())
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := NewMockQuoteFetcher(ctrl)
	fetcher.EXPECT().FetchQuote(gomock.Any(), "nvda").Return(quoteFor("NVDA", 880), nil)
	fetcher.EXPECT().FetchQuote(gomock.Any(), "NVDA").Return(quoteFor("NVDA", 884), nil)
	d := newDashboard(t, fetcher)

	// Refresh with nothing loaded is a no-op.
	assert.Equal(t, models.StatusIdle, d.Refresh(context.Background()).Status)

	d.Fetch(context.Background(), "nvda")
	state := d.Refresh(context.Background())

	require.NotNil(t, state.Quote)
	assert.Equal(t, 884.0, state.Quote.Price)
}

func TestAutoRefreshTimerLifecycle(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := NewMockQuoteFetcher(ctrl)
	fetcher.EXPECT().FetchQuote(gomock.Any(), gomock.Any()).Return(quoteFor("AAPL", 150.2), nil).AnyTimes()
	d := newDashboard(t, fetcher, dashboard.WithRefreshInterval(time.Hour))

	// Toggle on without a quote: nothing to refresh.
	d.SetAutoRefresh(true)
	assert.Equal(t, 0, d.ActiveTimers())

	// A loaded quote arms exactly one timer.
	d.Fetch(context.Background(), "AAPL")
	assert.Equal(t, 1, d.ActiveTimers())

	// Swapping the fetcher or the interval re-arms without piling up timers.
	d.SetFetcher(fetcher)
	assert.Equal(t, 1, d.ActiveTimers())
	d.SetRefreshInterval(30 * time.Minute)
	assert.Equal(t, 1, d.ActiveTimers())
	d.Fetch(context.Background(), "AAPL")
	assert.Equal(t, 1, d.ActiveTimers())

	// Toggle off clears it.
	d.SetAutoRefresh(false)
	assert.Equal(t, 0, d.ActiveTimers())

	// Close clears it for good.
	d.SetAutoRefresh(true)
	assert.Equal(t, 1, d.ActiveTimers())
	d.Close()
	assert.Equal(t, 0, d.ActiveTimers())
}

func TestAutoRefreshRefetchesLoadedSymbol(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := NewMockQuoteFetcher(ctrl)
	fetcher.EXPECT().FetchQuote(gomock.Any(), "aapl").Return(quoteFor("AAPL", 150.2), nil)
	fetcher.EXPECT().FetchQuote(gomock.Any(), "AAPL").Return(quoteFor("AAPL", 151.0), nil).MinTimes(1)
	d := newDashboard(t, fetcher, dashboard.WithRefreshInterval(time.Second))

	refreshed := make(chan models.RequestState, 8)
	d.Subscribe(func(s models.RequestState) {
		if s.Status == models.StatusSuccess && s.Quote != nil && s.Quote.Price == 151.0 {
			select {
			case refreshed <- s:
			default:
			}
		}
	})

	d.Fetch(context.Background(), "aapl")
	d.SetAutoRefresh(true)

	select {
	case s := <-refreshed:
		assert.Equal(t, "AAPL", s.Symbol)
	case <-time.After(3 * time.Second):
		t.Fatal("auto-refresh did not fire")
	}
	d.Close()
}

func TestClosedDashboardIgnoresFetch(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	d := newDashboard(t, NewMockQuoteFetcher(ctrl))
	d.Close()

	state := d.Fetch(context.Background(), "AAPL")
	assert.Equal(t, models.StatusIdle, state.Status)
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := NewMockQuoteFetcher(ctrl)
	fetcher.EXPECT().FetchQuote(gomock.Any(), "AAPL").Return(quoteFor("AAPL", 150.2), nil).Times(2)
	d := newDashboard(t, fetcher)

	rec := &recorder{}
	unsubscribe := d.Subscribe(rec.record)
	d.Fetch(context.Background(), "AAPL")
	unsubscribe()
	d.Fetch(context.Background(), "AAPL")

	assert.Len(t, rec.statuses(), 2)
}

func TestFetchWithoutFetcher(t *testing.T) {
	t.Parallel()

	d := newDashboard(t, nil)
	state := d.Fetch(context.Background(), "AAPL")
	assert.Equal(t, models.StatusError, state.Status)
	assert.Equal(t, dashboard.FallbackMessage, state.Error)
}
