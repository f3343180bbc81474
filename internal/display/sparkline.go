package display

import (
	"strings"

	"github.com/dyike/MarketPulse/internal/models"
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws chart prices as block runes, at most width runes wide.
// Longer series are sampled evenly, always keeping the first and last point.
func Sparkline(points []models.ChartPoint, width int) string {
	if len(points) == 0 || width <= 0 {
		return ""
	}
	sampled := sample(points, width)

	lo, hi := sampled[0].Price, sampled[0].Price
	for _, p := range sampled[1:] {
		lo = min(lo, p.Price)
		hi = max(hi, p.Price)
	}

	var b strings.Builder
	top := len(sparkRunes) - 1
	for _, p := range sampled {
		idx := top / 2
		if hi > lo {
			idx = int((p.Price - lo) / (hi - lo) * float64(top))
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

func sample(points []models.ChartPoint, width int) []models.ChartPoint {
	if len(points) <= width {
		return points
	}
	if width == 1 {
		return points[len(points)-1:]
	}
	out := make([]models.ChartPoint, width)
	step := float64(len(points)-1) / float64(width-1)
	for i := range out {
		out[i] = points[int(float64(i)*step+0.5)]
	}
	return out
}

// chartAxis labels the first and last sample times under the sparkline.
func chartAxis(points []models.ChartPoint, width int) string {
	if len(points) == 0 {
		return ""
	}
	first, last := points[0].Time, points[len(points)-1].Time
	span := min(len(points), width)
	gap := span - len(first) - len(last)
	if gap < 1 {
		return first + " " + last
	}
	return first + strings.Repeat(" ", gap) + last
}
