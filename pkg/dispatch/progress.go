package dispatch

import (
	"fmt"
	"io"

	"freelaw.courtlistener.cl-update-index/pkg/monitoring"
	"freelaw.courtlistener.cl-update-index/pkg/records"
)

// Progress rewrites a single "Processed n/total (p%)" line on w. A nil writer only updates the gauge.
type Progress struct {
	w   io.Writer
	typ records.Type
}

func NewProgress(w io.Writer, typ records.Type) *Progress {
	return &Progress{w: w, typ: typ}
}

// Percent is n/total as a whole percentage
func Percent(n, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(n) * 100 / float64(total)
}

func (p *Progress) Update(n, total int) {
	pct := Percent(n, total)
	monitoring.SetGauge(monitoring.ProgressGauge, pct/100, p.typ.String())
	if p.w != nil {
		fmt.Fprintf(p.w, "\rProcessed %d/%d (%.0f%%)", n, total, pct)
	}
}

// Done ends the progress line
func (p *Progress) Done() {
	if p.w != nil {
		fmt.Fprintln(p.w)
	}
}
