package metrics

import "time"

// WelfordState holds a running mean using Welford's online algorithm, in O(1)
// time and space without storing the observations.
type WelfordState struct {
	Count int     // n - number of observations
	Mean  float64 // running mean
}

// Update adds a new observation.
// Reference: https://en.wikipedia.org/wiki/Algorithms_for_calculating_variance#Welford's_online_algorithm
func (w *WelfordState) Update(newValue float64) {
	w.Count++
	w.Mean += (newValue - w.Mean) / float64(w.Count)
}

// UpdateDuration adds a duration observation, measured in seconds.
func (w *WelfordState) UpdateDuration(d time.Duration) {
	w.Update(d.Seconds())
}

// GetMean returns the current mean.
func (w *WelfordState) GetMean() float64 {
	return w.Mean
}

// GetCount returns the number of observations.
func (w *WelfordState) GetCount() int {
	return w.Count
}
