package helper

import "math"

// Clamp зажимает v в [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RoundDownToStep — количество вниз до шага лота, чтобы биржа не отбила ордер.
func RoundDownToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	steps := math.Floor(qty/step + 1e-12)
	return steps * step
}
