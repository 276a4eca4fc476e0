// Package fx converts amounts between currencies using a rate table keyed
// as "units of currency per one unit of the base currency" (the base maps
// to 1).
package fx

import (
	"fmt"

	"github.com/bobmcallan/keel/internal/models"
)

// Convert converts amount from one currency to another. Both currencies
// must be present in the rate table; otherwise the conversion fails with
// models.ErrRateUnavailable and the caller decides on a fallback.
func Convert(amount float64, from, to string, rates map[string]float64) (float64, error) {
	if from == to {
		return amount, nil
	}
	fromRate, ok := rates[from]
	if !ok || fromRate == 0 {
		return 0, fmt.Errorf("%w: %s", models.ErrRateUnavailable, from)
	}
	toRate, ok := rates[to]
	if !ok {
		return 0, fmt.Errorf("%w: %s", models.ErrRateUnavailable, to)
	}
	inBase := amount / fromRate
	return inBase * toRate, nil
}

// ConvertOrFallback converts like Convert but treats a missing rate as 1
// (amount passes through unconverted). It reports whether the fallback was
// taken so the caller can log and surface the degradation explicitly —
// a missing rate is never silent.
func ConvertOrFallback(amount float64, from, to string, rates map[string]float64) (value float64, fellBack bool) {
	v, err := Convert(amount, from, to, rates)
	if err != nil {
		return amount, true
	}
	return v, false
}
