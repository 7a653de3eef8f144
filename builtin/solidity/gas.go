// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

// Storage access costs, charged per 32-byte word.
const (
	SloadGas       = uint64(200)
	SstoreSetGas   = uint64(20000)
	SstoreResetGas = uint64(5000)
)

// toWordSize converts a byte length to the number of 32-byte words it occupies.
func toWordSize(length int) uint64 {
	return (uint64(length) + 31) / 32
}
