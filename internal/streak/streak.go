// Package streak computes consecutive-day streaks and the two-week heatmap
// from a habit's sparse date record.
package streak

import (
	"strings"
	"time"

	"github.com/julianstephens/streaktoot/internal/constants"
	"github.com/julianstephens/streaktoot/internal/models"
)

// day anchors t at noon of its calendar day so AddDate steps never land on a
// DST gap.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, t.Location())
}

// Compute returns the number of consecutive done days ending at asOf,
// inclusive. It is 0 when asOf itself is not done. Day keys are formatted in
// asOf's location.
func Compute(records models.Records, asOf time.Time) int {
	count := 0
	for d := day(asOf); records.Done(models.DayKey(d)); d = d.AddDate(0, 0, -1) {
		count++
	}
	return count
}

// Heatmap renders the most recent HeatmapDays days ending at asOf, oldest
// first, as two rows of HeatmapRowLen glyphs.
func Heatmap(records models.Records, asOf time.Time, doneGlyph, emptyGlyph string) [2]string {
	start := day(asOf).AddDate(0, 0, -(constants.HeatmapDays - 1))

	var rows [2]strings.Builder
	for i := 0; i < constants.HeatmapDays; i++ {
		glyph := emptyGlyph
		if records.Done(models.DayKey(start.AddDate(0, 0, i))) {
			glyph = doneGlyph
		}
		rows[i/constants.HeatmapRowLen].WriteString(glyph)
	}
	return [2]string{rows[0].String(), rows[1].String()}
}

// HeatmapText is the heatmap as a single newline-joined string, the value of
// the {heatmap} placeholder.
func HeatmapText(records models.Records, asOf time.Time, doneGlyph, emptyGlyph string) string {
	rows := Heatmap(records, asOf, doneGlyph, emptyGlyph)
	return rows[0] + "\n" + rows[1]
}

// Refresh recomputes the derived counters of h as of asOf and returns the
// current streak. BestStreak is only ever raised.
func Refresh(h *models.Habit, asOf time.Time) int {
	if h.Records == nil {
		h.Records = models.Records{}
	}
	current := Compute(h.Records, asOf)
	h.TotalDone = h.Records.Total()
	if current > h.BestStreak {
		h.BestStreak = current
	}
	return current
}
