// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package perc

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValid(t *testing.T) {
	assert.True(t, Valid(big.NewInt(0)))
	assert.True(t, Valid(big.NewInt(500000)))
	assert.True(t, Valid(big.NewInt(Divisor)))
	assert.False(t, Valid(big.NewInt(Divisor+1)))
	assert.False(t, Valid(big.NewInt(-1)))
}

func TestPercOfTwoStepTruncation(t *testing.T) {
	// floor(1000000 * floor(1*1000000/3) / 1000000) = 333333,
	// not round(1000000/3); the intermediate truncation is part of the
	// arithmetic contract.
	res, err := PercOf(big.NewInt(1000000), big.NewInt(1), big.NewInt(3))
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(333333), res)

	// single-step division would give 333333 as well for this amount,
	// but differs for amounts not divisible by the denominator
	res, err = PercOf(big.NewInt(1000001), big.NewInt(1), big.NewInt(3))
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(333333), res)
}

func TestPercOf(t *testing.T) {
	tests := []struct {
		amount, num, denom, want int64
	}{
		{100, 1, 2, 50},
		{100, 0, 2, 0},
		{0, 1, 2, 0},
		{1000, 3, 4, 750},
		{90, 1000, 1000, 90},
	}
	for _, tt := range tests {
		res, err := PercOf(big.NewInt(tt.amount), big.NewInt(tt.num), big.NewInt(tt.denom))
		assert.NoError(t, err)
		assert.Equal(t, big.NewInt(tt.want), res, "percOf(%d,%d,%d)", tt.amount, tt.num, tt.denom)
	}
}

func TestPercOfPoints(t *testing.T) {
	// 10% of 100
	res, err := PercOfPoints(big.NewInt(100), big.NewInt(100000))
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(10), res)
}

func TestPercOfErrors(t *testing.T) {
	_, err := PercOf(big.NewInt(100), big.NewInt(1), big.NewInt(0))
	assert.Error(t, err, "zero denominator must fail")

	_, err = PercOf(big.NewInt(-1), big.NewInt(1), big.NewInt(2))
	assert.Error(t, err)

	_, err = PercOfPoints(big.NewInt(1), big.NewInt(-1))
	assert.Error(t, err)
}
