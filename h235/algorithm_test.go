// The MIT License (MIT)
//
// Copyright (c) 2021 Winlin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
package h235

import (
	"testing"

	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupAlgorithm(t *testing.T) {
	for _, tc := range []struct {
		oid       string
		id        AlgorithmID
		keyLen    int
		blockSize int
	}{
		{OIDAES128, AlgorithmAES128, 16, 16},
		{OIDAES192, AlgorithmAES192, 24, 16},
		{OIDAES256, AlgorithmAES256, 32, 16},
	} {
		id := LookupAlgorithm(tc.oid)
		assert.Equal(t, tc.id, id)
		assert.True(t, id.Valid())
		assert.Equal(t, tc.keyLen, id.KeyLen())
		assert.Equal(t, tc.blockSize, id.BlockSize())
		assert.Equal(t, tc.oid, id.OID())
	}

	id := LookupAlgorithm("1.2.3.4")
	assert.Equal(t, AlgorithmUnknown, id)
	assert.False(t, id.Valid())
	assert.Equal(t, 0, id.KeyLen())
	assert.Equal(t, "Unknown(0)", id.String())
}

func TestParseAlgorithm(t *testing.T) {
	for v, expect := range map[string]AlgorithmID{
		"aes128":      AlgorithmAES128,
		"AES-192":     AlgorithmAES192,
		"aes-256-cbc": AlgorithmAES256,
		OIDAES192:     AlgorithmAES192,
	} {
		id, err := ParseAlgorithm(v)
		require.NoError(t, err, v)
		assert.Equal(t, expect, id, v)
	}

	_, err := ParseAlgorithm("des")
	assert.Equal(t, ErrUnsupportedAlgorithm, errors.Cause(err))
}
