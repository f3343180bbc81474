package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/dyike/MarketPulse/internal/dashboard"
	"github.com/dyike/MarketPulse/internal/models"
)

const (
	DefaultWidth = 96
	minWidth     = 40

	emptyNews   = "No recent news found."
	emptyPrompt = "Search for a stock to begin"
)

// DashboardView renders a request state as a terminal dashboard.
type DashboardView struct {
	width   int
	model   string
	sources []string
}

type ViewOption func(*DashboardView)

func WithWidth(width int) ViewOption {
	return func(v *DashboardView) {
		if width >= minWidth {
			v.width = width
		}
	}
}

// WithModelName sets the model badge under the analysis panel.
func WithModelName(name string) ViewOption {
	return func(v *DashboardView) {
		v.model = name
	}
}

// WithSources sets the grounding badge under the analysis panel.
func WithSources(names []string) ViewOption {
	return func(v *DashboardView) {
		v.sources = append([]string(nil), names...)
	}
}

func NewDashboardView(opts ...ViewOption) *DashboardView {
	v := &DashboardView{width: DefaultWidth}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Print writes the rendered state to w.
func (v *DashboardView) Print(w io.Writer, state models.RequestState, autoRefresh bool) error {
	_, err := fmt.Fprintln(w, v.Render(state, autoRefresh))
	return err
}

// Render draws the header, the error banner, the quote panels and the
// watchlist. While loading, the previous quote stays visible beneath the
// loading line.
func (v *DashboardView) Render(state models.RequestState, autoRefresh bool) string {
	sections := []string{v.header(state, autoRefresh)}

	if state.Status == models.StatusError && state.Error != "" {
		sections = append(sections, errorBannerStyle.Width(v.width-2).Render("! "+state.Error))
	}
	if state.Loading() {
		sections = append(sections, loadingStyle.Render(fmt.Sprintf("⟳ Fetching %s...", state.Symbol)))
	}

	switch {
	case state.Quote != nil:
		sections = append(sections, v.quote(state.Quote, state.Loading()))
	case state.Status == models.StatusIdle:
		sections = append(sections, mutedStyle.Render(emptyPrompt))
	}

	sections = append(sections, RenderWatchlist(dashboard.Watchlist(), state.LoadedSymbol(), state.Loading()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *DashboardView) header(state models.RequestState, autoRefresh bool) string {
	live := mutedStyle.Render("○ Live Updates Off")
	if autoRefresh {
		live = upStyle.Render("● Live Updates On")
	}
	title := titleStyle.Render("MarketPulse")
	sub := subtitleStyle.Render("AI-powered market intelligence")
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", sub, "  ", live)
}

func (v *DashboardView) quote(q *models.Quote, dimmed bool) string {
	changeStyle := upStyle
	if !q.IsUp() {
		changeStyle = downStyle
	}

	var price strings.Builder
	price.WriteString(fmt.Sprintf("%s  %s\n", activeStyle.Render(q.Symbol), mutedStyle.Render(q.Currency)))
	price.WriteString(q.CompanyName + "\n\n")
	price.WriteString(lipgloss.NewStyle().Bold(true).Render(FormatPrice(q.Price)) + "\n")
	price.WriteString(changeStyle.Render(FormatChange(q.Change, q.ChangePercent)) + "\n\n")
	price.WriteString(mutedStyle.Render("Last Updated") + "\n")
	price.WriteString(q.LastUpdated)

	chartWidth := v.width - 36
	if chartWidth < 10 {
		chartWidth = 10
	}
	chart := fmt.Sprintf("%s %s\n\n%s\n%s",
		sectionStyle.Render("Intraday Movement"), mutedStyle.Render("1D"),
		changeStyle.Render(Sparkline(q.ChartData, chartWidth)),
		mutedStyle.Render(chartAxis(q.ChartData, chartWidth)),
	)

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Width(30).Render(price.String()),
		panelStyle.Render(chart),
	)

	stats := lipgloss.JoinHorizontal(lipgloss.Top,
		statCard("Market Cap", q.MarketCap),
		statCard("Volume", q.Volume),
		statCard("Open", FormatPrice(q.Open)),
		statCard("Day Range", FormatPrice(q.Low)+" - "+FormatPrice(q.High)),
	)

	analysis := sectionStyle.Render("AI Market Analysis") + "\n\n" + q.Analysis
	if badges := v.badges(); badges != "" {
		analysis += "\n\n" + badges
	}

	out := lipgloss.JoinVertical(lipgloss.Left,
		top,
		stats,
		panelStyle.Width(v.width-2).Render(analysis),
		panelStyle.Width(v.width-2).Render(renderNews(q.News)),
	)
	if dimmed {
		return mutedStyle.Faint(true).Render(out)
	}
	return out
}

func (v *DashboardView) badges() string {
	var parts []string
	if len(v.sources) > 0 {
		parts = append(parts, badgeStyle.Render("Grounding: "+strings.Join(v.sources, ", ")))
	}
	if v.model != "" {
		parts = append(parts, badgeStyle.Render("Model: "+v.model))
	}
	return strings.Join(parts, " ")
}

func statCard(label, value string) string {
	if value == "" {
		value = "-"
	}
	return cardStyle.Width(20).Render(mutedStyle.Render(label) + "\n" + value)
}

func renderNews(items []models.NewsItem) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Relevant News"))
	b.WriteString("\n\n")
	if len(items) == 0 {
		b.WriteString(mutedStyle.Italic(true).Render(emptyNews))
		return b.String()
	}
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(item.Title)
		if item.TimeAgo != "" {
			b.WriteString("  " + mutedStyle.Render(item.TimeAgo))
		}
		b.WriteString("\n" + mutedStyle.Render(item.Source))
		if item.URL != "" {
			b.WriteString(mutedStyle.Render(" · " + item.URL))
		}
	}
	return b.String()
}

// RenderWatchlist lists the presets, marking the one whose symbol is on
// screen. Entries are shown dimmed while a fetch is in flight.
func RenderWatchlist(presets []dashboard.Preset, active string, loading bool) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Watchlist"))
	for _, p := range presets {
		marker := "  "
		line := fmt.Sprintf("%-11s %-28s %s", p.Symbol, p.Name, p.Exchange)
		switch {
		case strings.EqualFold(p.Symbol, active):
			marker = "▶ "
			line = activeStyle.Render(line)
		case loading:
			line = mutedStyle.Render(line)
		}
		b.WriteString("\n" + marker + line)
	}
	return panelStyle.Render(b.String())
}

// FormatPrice renders a price with two decimals.
func FormatPrice(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatChange renders "+1.25 (0.84%)" for gains and "-1.30 (-0.86%)" for
// losses.
func FormatChange(change, percent float64) string {
	sign := ""
	if change >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%s (%s%%)", sign,
		decimal.NewFromFloat(change).StringFixed(2),
		decimal.NewFromFloat(percent).StringFixed(2))
}
