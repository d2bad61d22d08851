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

import "encoding/binary"

// IVSequenceLen is the size of the per packet IV seed, 2 bytes sequence number and
// 4 bytes timestamp.
const IVSequenceLen = 6

// IVSequence is the per packet value tiled into the IV.
type IVSequence [IVSequenceLen]byte

func NewIVSequence(sequenceNumber uint16, timestamp uint32) *IVSequence {
	var v IVSequence
	binary.BigEndian.PutUint16(v[0:2], sequenceNumber)
	binary.BigEndian.PutUint32(v[2:6], timestamp)
	return &v
}

// DeriveIV returns a size bytes IV. A nil seq gives all zeros, otherwise seq is repeated
// size/6 times and the first size%6 bytes of seq fill the tail.
func DeriveIV(size int, seq *IVSequence) []byte {
	iv := make([]byte, size)
	fillIV(iv, seq)
	return iv
}

func fillIV(iv []byte, seq *IVSequence) {
	if seq == nil {
		for i := range iv {
			iv[i] = 0
		}
		return
	}

	n := len(iv) / IVSequenceLen
	for i := 0; i < n; i++ {
		copy(iv[i*IVSequenceLen:], seq[:])
	}
	if tail := len(iv) % IVSequenceLen; tail > 0 {
		copy(iv[len(iv)-tail:], seq[:tail])
	}
}
