package pricing

import (
	"errors"
	"fmt"
	"math"
)

// OptionType identifies the side of an option contract.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// ErrNonPositiveInput is returned when the standard Black-Scholes branch
// receives a spot or strike that is zero or negative.
var ErrNonPositiveInput = errors.New("pricing: spot and strike must be positive")

// Delta calculates the Black-Scholes delta of a European option.
//
// Parameters:
//   - optType: Call or Put
//   - S: spot price of the underlying asset
//   - K: strike price of the option
//   - sigma: implied volatility (annual, as a decimal)
//   - T: time to expiry in years
//   - r: risk-free interest rate (annual)
//
// Returns:
//
//	Call delta in [0, 1] or put delta in [-1, 0], rounded to 4 decimals.
//	When sigma or T is zero or negative the delta collapses to the
//	intrinsic indicator (call: 1 if S > K, put: -1 if S < K, else 0)
//	and no error is possible. Otherwise S and K must be positive.
//
// No dividend yield and no early-exercise adjustment is applied.
func Delta(
	optType OptionType,
	S float64, // spot
	K float64, // strike
	sigma float64, // implied volatility
	T float64, // time to expiry in years
	r float64, // risk-free rate
) (float64, error) {

	if sigma <= 0 || T <= 0 {
		if optType == Call {
			if S > K {
				return 1.0, nil
			}
			return 0.0, nil
		}
		if S < K {
			return -1.0, nil
		}
		return 0.0, nil
	}

	if S <= 0 || K <= 0 {
		return 0, fmt.Errorf("%w: spot=%v strike=%v", ErrNonPositiveInput, S, K)
	}

	n := normCDF(d1(S, K, T, r, sigma))
	if optType == Call {
		return Round(n, 4), nil
	}
	return Round(n-1, 4), nil
}

// Price calculates the premium of a European option using the Black-Scholes model.
// If time to expiry or volatility is zero or negative it returns the intrinsic value.
func Price(
	optType OptionType,
	S float64, // spot
	K float64, // strike
	sigma float64, // volatility
	T float64, // time to expiry in years
	r float64, // risk-free rate
) float64 {

	if T <= 0 || sigma <= 0 {
		if optType == Call {
			return math.Max(0, S-K)
		}
		return math.Max(0, K-S)
	}

	d1 := d1(S, K, T, r, sigma)
	d2 := d1 - sigma*math.Sqrt(T)

	if optType == Call {
		return S*normCDF(d1) - K*math.Exp(-r*T)*normCDF(d2)
	}
	return K*math.Exp(-r*T)*normCDF(-d2) - S*normCDF(-d1)
}

// Round rounds x to the given number of decimal places, half away from zero.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func d1(S, K, T, r, sigma float64) float64 {
	return (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
}

// normCDF computes the cumulative distribution function of the standard normal distribution
// for a given value x using the error function.
func normCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}
