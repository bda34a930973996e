package types

// ============================================================================
// AGGREGATE RECORD - PER-STATION RUNNING STATISTICS
// ============================================================================

// Record holds the running minimum, maximum and mean of every sample folded
// into one key. It contains no pointers so it can be carved out of an arena.
//
// INVARIANTS (once Count ≥ 1):
//   - Min ≤ Mean ≤ Max
//   - Count equals the number of samples folded in
type Record struct {
	Min   float64 // smallest sample seen
	Max   float64 // largest sample seen
	Mean  float64 // online arithmetic mean
	Count uint64  // samples folded in
}

// ============================================================================
// UPDATE RULES
// ============================================================================

// Seed initialises a record from its first sample.
//
//go:nosplit
//go:inline
func (r *Record) Seed(sample float64) {
	r.Min, r.Max, r.Mean, r.Count = sample, sample, sample, 1
}

// Observe folds one more sample in place:
//
//	min' = min(min, s)   max' = max(max, s)
//	mean' = (mean·count + s) / (count+1)   count' = count + 1
//
// The pre-increment count scales the old mean and the post-increment count
// divides; the result is clamped to [min', max'] so a last-ulp rounding step
// can never break the bounds invariant.
//
//go:nosplit
//go:inline
func (r *Record) Observe(sample float64) {
	if sample < r.Min {
		r.Min = sample
	}
	if sample > r.Max {
		r.Max = sample
	}
	n := float64(r.Count)
	r.Mean = clamp((r.Mean*n+sample)/(n+1), r.Min, r.Max)
	r.Count++
}

// Merge folds another record for the same key into r: min of mins, max of
// maxes, count-weighted mean. Merging an empty record is a no-op.
func (r *Record) Merge(o *Record) {
	if o.Count == 0 {
		return
	}
	if r.Count == 0 {
		*r = *o
		return
	}
	if o.Min < r.Min {
		r.Min = o.Min
	}
	if o.Max > r.Max {
		r.Max = o.Max
	}
	a, b := float64(r.Count), float64(o.Count)
	r.Mean = clamp((r.Mean*a+o.Mean*b)/(a+b), r.Min, r.Max)
	r.Count += o.Count
}

// Valid reports whether the record satisfies its invariants.
func (r *Record) Valid() bool {
	return r.Count > 0 && r.Min <= r.Mean && r.Mean <= r.Max
}

//go:nosplit
//go:inline
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
