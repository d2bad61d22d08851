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
	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/pion/rtp"
)

// The P bit in the first byte of the RTP header.
const rtpPaddingBit = 0x20

// MarshalFrame serialises a frame from WriteFrame. A padded frame carries the padding bit
// with the ciphertext as is: the last byte is ciphertext, not an RTP pad count, so no pad
// bytes are appended.
func MarshalFrame(frame *rtp.Packet) ([]byte, error) {
	padded := frame.Padding

	// Marshal derives the bit from PaddingSize, so set it on the bytes afterwards.
	b, err := frame.Marshal()
	frame.Padding = padded
	if err != nil {
		return nil, errors.Wrapf(err, "marshal seq=%v", frame.SequenceNumber)
	}

	if padded {
		b[0] |= rtpPaddingBit
	} else {
		b[0] &^= rtpPaddingBit
	}
	return b, nil
}

// UnmarshalFrame parses a frame for ReadFrame. The padding bit is kept but the payload is
// not trimmed, whatever its last byte is. The b is not modified.
func UnmarshalFrame(frame *rtp.Packet, b []byte) error {
	padded := len(b) > 0 && b[0]&rtpPaddingBit != 0
	if padded {
		b = append([]byte(nil), b...)
		b[0] &^= rtpPaddingBit
	}

	if err := frame.Unmarshal(b); err != nil {
		return errors.Wrapf(err, "unmarshal %vB", len(b))
	}

	frame.Padding = padded
	frame.PaddingSize = 0
	return nil
}
