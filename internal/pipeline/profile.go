package pipeline

import (
	"sync/atomic"
)

// Profiler aggregates counters and timers across decodes.
type Profiler struct {
	ImagesProcessed atomic.Int64
	BarDecodes      atomic.Int64
	GlyphReads      atomic.Int64
	Mismatches      atomic.Int64
	StageErrors     atomic.Int64
	DecodeTimeNs    atomic.Int64
	GlyphTimeNs     atomic.Int64
	TotalTimeNs     atomic.Int64
}

// Record adds one result. A nil profiler ignores it.
func (p *Profiler) Record(res *Result) {
	if p == nil || res == nil {
		return
	}
	p.ImagesProcessed.Add(1)
	if res.BarNumber != nil {
		p.BarDecodes.Add(1)
	}
	if res.GlyphNumber != nil {
		p.GlyphReads.Add(1)
	}
	if res.Mismatch {
		p.Mismatches.Add(1)
	}
	p.StageErrors.Add(int64(len(res.Errors)))
	p.DecodeTimeNs.Add(res.Timing.DecodeNs)
	p.GlyphTimeNs.Add(res.Timing.GlyphsNs)
	p.TotalTimeNs.Add(res.Timing.TotalNs)
}

// Snapshot returns cumulative metrics in milliseconds for readability.
func (p *Profiler) Snapshot() map[string]any {
	imgs := p.ImagesProcessed.Load()
	total := p.TotalTimeNs.Load()
	out := map[string]any{
		"images":          imgs,
		"bar_decodes":     p.BarDecodes.Load(),
		"glyph_reads":     p.GlyphReads.Load(),
		"mismatches":      p.Mismatches.Load(),
		"stage_errors":    p.StageErrors.Load(),
		"decode_ms_total": p.DecodeTimeNs.Load() / 1_000_000,
		"glyph_ms_total":  p.GlyphTimeNs.Load() / 1_000_000,
		"total_ms_total":  total / 1_000_000,
	}
	if imgs > 0 {
		out["ms_per_image"] = float64(total) / 1_000_000.0 / float64(imgs)
		out["decode_rate"] = float64(p.BarDecodes.Load()) / float64(imgs)
	}
	return out
}
