package matrix

// Kahan is a compensated accumulator.
type Kahan struct {
	Sum  float64
	Corr float64
}

// Add folds v into the accumulator.
func (k *Kahan) Add(v float64) {
	k.Sum, k.Corr = KahanAdd(k.Sum, k.Corr, v)
}

// KahanAdd adds v to (sum, corr) and returns the new pair.
func KahanAdd(sum, corr, v float64) (float64, float64) {
	c := v + corr
	s := sum + c
	return s, c - (s - sum)
}
