package interp

import "math"

// EMA is an exponential moving average over the last n values, tracking
// variance so callers can read the standard deviation of the stream.
type EMA struct {
	alpha       float64
	initialized bool

	Value             float64
	Variance          float64
	StandardDeviation float64
}

// NewEMA returns an average weighted over roughly the last n samples.
func NewEMA(n int) *EMA {
	return &EMA{alpha: 2.0 / (float64(n) + 1)}
}

// Add folds one sample into the average.
func (e *EMA) Add(value float64) {
	if e.initialized {
		delta := value - e.Value
		e.Value += e.alpha * delta
		e.Variance = (1 - e.alpha) * (e.Variance + e.alpha*delta*delta)
		e.StandardDeviation = math.Sqrt(e.Variance)
	} else {
		e.Value = value
		e.initialized = true
	}
}

// Reset discards all accumulated state.
func (e *EMA) Reset() {
	e.initialized = false
	e.Value = 0
	e.Variance = 0
	e.StandardDeviation = 0
}
