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

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalFrame(t *testing.T) {
	frame := newFrame(1, 2, pattern(16))
	frame.Padding = true

	b, err := MarshalFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, 28, len(b))
	assert.NotZero(t, b[0]&rtpPaddingBit)
	assert.Equal(t, pattern(16), b[12:])
	assert.True(t, frame.Padding)

	frame.Padding = false
	b, err = MarshalFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, 28, len(b))
	assert.Zero(t, b[0]&rtpPaddingBit)
}

func TestUnmarshalFrame(t *testing.T) {
	frame := newFrame(1, 2, pattern(16))
	frame.Padding = true
	b, err := MarshalFrame(frame)
	require.NoError(t, err)

	// The last byte 0x6c is far beyond the payload, it must not be taken as a pad count.
	assert.Equal(t, byte(0x6c), b[len(b)-1])

	received := &rtp.Packet{}
	require.NoError(t, UnmarshalFrame(received, b))
	assert.True(t, received.Padding)
	assert.Equal(t, byte(0), received.PaddingSize)
	assert.Equal(t, pattern(16), received.Payload)
	assert.Equal(t, uint16(1), received.SequenceNumber)
	assert.Equal(t, uint32(2), received.Timestamp)

	// The input keeps its padding bit.
	assert.NotZero(t, b[0]&rtpPaddingBit)

	assert.Error(t, UnmarshalFrame(&rtp.Packet{}, []byte{0xa0, 0x00}))
}
