// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package perc implements fixed-point percentage arithmetic over a
// divisor of 1,000,000: one unit is 1/1,000,000 = 0.0001%.
package perc

import (
	"math/big"

	"github.com/pkg/errors"
)

// Divisor is the fixed-point scale. A fraction of Divisor expresses 100%.
const Divisor = 1000000

var bigDivisor = big.NewInt(Divisor)

// Valid reports whether frac is a valid percentage, i.e. in [0, Divisor].
func Valid(frac *big.Int) bool {
	return frac.Sign() >= 0 && frac.Cmp(bigDivisor) <= 0
}

// Points converts the fraction fracNum/fracDenom to percentage points
// scaled by Divisor, truncating: floor(fracNum * Divisor / fracDenom).
func Points(fracNum, fracDenom *big.Int) (*big.Int, error) {
	if fracDenom.Sign() == 0 {
		return nil, errors.New("zero denominator")
	}
	if fracNum.Sign() < 0 || fracDenom.Sign() < 0 {
		return nil, errors.New("negative fraction")
	}
	points := new(big.Int).Mul(fracNum, bigDivisor)
	return points.Quo(points, fracDenom), nil
}

// PercOf returns the portion of amount given by fracNum/fracDenom.
//
// The computation truncates twice: the fraction is first converted to
// percentage points, then applied to the amount. Collapsing the two steps
// into amount*fracNum/fracDenom yields different roundings and must not
// be done; callers replaying historical distributions depend on the
// two-step result.
func PercOf(amount, fracNum, fracDenom *big.Int) (*big.Int, error) {
	points, err := Points(fracNum, fracDenom)
	if err != nil {
		return nil, err
	}
	return PercOfPoints(amount, points)
}

// PercOfPoints applies a Divisor-scaled fraction directly:
// floor(amount * fracPoints / Divisor).
func PercOfPoints(amount, fracPoints *big.Int) (*big.Int, error) {
	if amount.Sign() < 0 || fracPoints.Sign() < 0 {
		return nil, errors.New("negative value")
	}
	res := new(big.Int).Mul(amount, fracPoints)
	return res.Quo(res, bigDivisor), nil
}
