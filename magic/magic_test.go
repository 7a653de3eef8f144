// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package magic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddress(t *testing.T) {
	addr := BytesToAddress([]byte("addr"))
	assert.Equal(t, "0x0000000000000000000000000000000061646472", addr.String())
	assert.False(t, addr.IsZero())
	assert.True(t, Address{}.IsZero())

	parsed, err := ParseAddress(addr.String())
	assert.NoError(t, err)
	assert.Equal(t, addr, *parsed)

	_, err = ParseAddress("0x123")
	assert.Error(t, err)
	_, err = ParseAddress("zz1234567890123456789012345678901234567890")
	assert.Error(t, err)

	data, err := json.Marshal(&addr)
	assert.NoError(t, err)
	var back Address
	assert.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, addr, back)
}

func TestBytes32(t *testing.T) {
	b := BytesToBytes32([]byte{1})
	assert.Equal(t, byte(1), b[31])
	assert.False(t, b.IsZero())

	parsed, err := ParseBytes32(b.String())
	assert.NoError(t, err)
	assert.Equal(t, b, parsed)

	// cropped from the left when oversized
	long := make([]byte, 40)
	long[39] = 7
	assert.Equal(t, byte(7), BytesToBytes32(long)[31])
}

func TestBlake2b(t *testing.T) {
	h1 := Blake2b([]byte("hello"), []byte("world"))
	h2 := Blake2b([]byte("helloworld"))
	assert.Equal(t, h2, h1, "chunking does not change the digest")
	assert.NotEqual(t, Blake2b([]byte("hello")), h1)
}
