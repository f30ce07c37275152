package quant

// vwapSample is one oracle trade retained in the rolling VWAP window.
type vwapSample struct {
	tsMs     int64
	priceQty float64
	qty      float64
}

// VWAP maintains a sliding-window volume-weighted average price over the
// last windowMs milliseconds, using running sums so reads are O(1)
// amortized. Eviction follows the same cutoff-index slice-truncation idiom
// used elsewhere in the pack for rolling windows: scan forward for the
// first still-valid sample and re-slice from there.
type VWAP struct {
	windowMs int64
	samples  []vwapSample

	sumPriceQty float64
	sumQty      float64
}

// NewVWAP builds a VWAP tracker with the given window (default 60s ->
// windowMs=60000).
func NewVWAP(windowMs int64) *VWAP {
	return &VWAP{
		windowMs: windowMs,
		samples:  make([]vwapSample, 0, 256),
	}
}

// Push records a new oracle trade and evicts samples that have fallen out
// of the window.
func (w *VWAP) Push(price, qty float64, tsMs int64) {
	s := vwapSample{tsMs: tsMs, priceQty: price * qty, qty: qty}
	w.samples = append(w.samples, s)
	w.sumPriceQty += s.priceQty
	w.sumQty += s.qty
	w.evict(tsMs)
}

func (w *VWAP) evict(nowMs int64) {
	cutoff := nowMs - w.windowMs

	validIdx := -1
	for i, s := range w.samples {
		if s.tsMs >= cutoff {
			validIdx = i
			break
		}
	}

	if validIdx == -1 {
		w.samples = w.samples[:0]
		w.sumPriceQty = 0
		w.sumQty = 0
		return
	}

	if validIdx > 0 {
		for _, s := range w.samples[:validIdx] {
			w.sumPriceQty -= s.priceQty
			w.sumQty -= s.qty
		}
		w.samples = w.samples[validIdx:]
	}
}

// Value returns the current VWAP and whether the window has any samples.
func (w *VWAP) Value() (float64, bool) {
	if w.sumQty <= 0 {
		return 0, false
	}
	return w.sumPriceQty / w.sumQty, true
}
