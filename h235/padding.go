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

import "github.com/ossrs/go-oryx-lib/errors"

// paddingMode is how a direction handles the last block of a payload.
type paddingMode int

const (
	// Block aligned payload, no padding.
	paddingNone paddingMode = iota
	// Payload shorter than a block, padded the RTP way: the last byte is the count.
	paddingRTP
	// Payload not block aligned, ciphertext stealing.
	paddingStealing
)

func (v paddingMode) String() string {
	switch v {
	case paddingNone:
		return "none"
	case paddingRTP:
		return "rtp"
	case paddingStealing:
		return "cts"
	}
	return "unknown"
}

// padRTP appends n bytes of value n so the result is block aligned, 1 <= n <= bl. This
// is PKCS#7, and the trailing count is also what RTP padding expects.
func padRTP(dst, src []byte, bl int) []byte {
	n := bl - len(src)%bl
	dst = append(dst[:0], src...)
	for i := 0; i < n; i++ {
		dst = append(dst, byte(n))
	}
	return dst
}

// unpadRelaxed returns how many bytes of the final block are plaintext.
//
// Only the count byte is checked. The pad bytes themselves are not compared against
// the count, because some endpoints (Polycom m100 and PVX) fill them wrongly. This
// weakens padding oracle resistance, so callers that need integrity must add it
// outside this package.
func unpadRelaxed(final []byte) (int, error) {
	bl := len(final)
	if bl == 0 {
		return 0, errors.Wrapf(ErrNotBlockAligned, "wrong final block length")
	}

	n := int(final[bl-1])
	if n == 0 || n > bl {
		return 0, errors.Wrapf(ErrBadPadding, "pad count %v, block %v", n, bl)
	}
	return bl - n, nil
}
