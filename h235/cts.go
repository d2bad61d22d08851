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
	"crypto/cipher"

	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/pion/transport/v2/utils/xor"
)

// CipherMode is the block chaining mode used by the ciphertext stealing codec.
type CipherMode int

const (
	ModeECB CipherMode = iota + 1
	ModeCBC
)

func (v CipherMode) String() string {
	switch v {
	case ModeECB:
		return "ECB"
	case ModeCBC:
		return "CBC"
	}
	return "Unknown"
}

// blockChain runs a block primitive in ECB or CBC mode. Unlike cipher.BlockMode, the
// chaining register is visible, because the CBC stealing decoder has to undo it.
type blockChain struct {
	block   cipher.Block
	mode    CipherMode
	decrypt bool
	// The IV, then the last ciphertext block processed.
	iv []byte
	// Scratch for in place CBC decryption.
	saved []byte
}

func newBlockChain(block cipher.Block, mode CipherMode, decrypt bool, iv []byte) *blockChain {
	bl := block.BlockSize()
	v := &blockChain{
		block: block, mode: mode, decrypt: decrypt,
		iv: make([]byte, bl), saved: make([]byte, bl),
	}
	copy(v.iv, iv)
	return v
}

// crypt processes whole blocks of src into dst, which may overlap exactly.
func (v *blockChain) crypt(dst, src []byte) error {
	bl := v.block.BlockSize()
	if len(src)%bl != 0 {
		return errors.Wrapf(ErrNotBlockAligned, "crypt %v bytes", len(src))
	}

	switch v.mode {
	case ModeECB:
		for i := 0; i < len(src); i += bl {
			if v.decrypt {
				v.block.Decrypt(dst[i:i+bl], src[i:i+bl])
			} else {
				v.block.Encrypt(dst[i:i+bl], src[i:i+bl])
			}
		}
	case ModeCBC:
		for i := 0; i < len(src); i += bl {
			in, out := src[i:i+bl], dst[i:i+bl]
			if v.decrypt {
				copy(v.saved, in)
				v.block.Decrypt(out, in)
				xor.XorBytes(out, out, v.iv)
				copy(v.iv, v.saved)
			} else {
				xor.XorBytes(out, in, v.iv)
				v.block.Encrypt(out, out)
				copy(v.iv, out)
			}
		}
	default:
		return errors.Wrapf(ErrCtsUnsupportedMode, "mode %v", v.mode)
	}
	return nil
}

func (v *blockChain) reset(iv []byte) {
	copy(v.iv, iv)
}

func (v *blockChain) zero() {
	zeroBytes(v.iv)
	zeroBytes(v.saved)
}

// CtsCodec is ciphertext stealing over ECB or CBC, so the output is exactly as long as
// the input. Feed data with Update, then call Final once. The codec always holds back
// one full block (final) and a partial block (buf) for Final, so Final needs at least
// one block plus one byte of input in total.
//
// A codec is not safe for concurrent use.
type CtsCodec struct {
	chain *blockChain
	bl    int

	buf    []byte
	bufLen int

	final     []byte
	finalUsed bool
}

// NewCtsEncoder creates a stealing encoder, the iv is ignored in ECB mode.
func NewCtsEncoder(block cipher.Block, mode CipherMode, iv []byte) *CtsCodec {
	return newCtsCodec(block, mode, false, iv)
}

// NewCtsDecoder creates a stealing decoder.
func NewCtsDecoder(block cipher.Block, mode CipherMode, iv []byte) *CtsCodec {
	return newCtsCodec(block, mode, true, iv)
}

func newCtsCodec(block cipher.Block, mode CipherMode, decrypt bool, iv []byte) *CtsCodec {
	bl := block.BlockSize()
	return &CtsCodec{
		chain: newBlockChain(block, mode, decrypt, iv),
		bl:    bl,
		buf:   make([]byte, bl),
		final: make([]byte, bl),
	}
}

// Reset drops any buffered data and installs a new IV.
func (v *CtsCodec) Reset(iv []byte) {
	v.chain.reset(iv)
	v.bufLen = 0
	v.finalUsed = false
}

// Update consumes in and writes the blocks that are ready to out, returning how many
// bytes were written. The out must hold len(in)+BlockSize bytes.
func (v *CtsCodec) Update(out, in []byte) (int, error) {
	bl := v.bl

	// Still no more than one block, only buffer it.
	if v.bufLen+len(in) <= bl {
		copy(v.buf[v.bufLen:], in)
		v.bufLen += len(in)
		return 0, nil
	}

	// More than one block, so the held block is no longer the last one.
	var n int
	if v.finalUsed {
		if err := v.chain.crypt(out[:bl], v.final); err != nil {
			return n, err
		}
		out, n = out[bl:], n+bl
		v.finalUsed = false
	}

	fill := bl - v.bufLen
	copy(v.buf[v.bufLen:], in[:fill])
	in = in[fill:]
	v.bufLen = bl

	if len(in) <= bl {
		copy(v.final, v.buf)
		v.finalUsed = true
		v.bufLen = copy(v.buf, in)
		return n, nil
	}

	if err := v.chain.crypt(out[:bl], v.buf); err != nil {
		return n, err
	}
	out, n = out[bl:], n+bl

	// Split the rest as body, then one held block, then 1 to bl bytes for Final.
	leftover := len(in) % bl
	if leftover == 0 {
		leftover = bl
	}
	body := len(in) - bl - leftover

	v.bufLen = copy(v.buf, in[body+bl:])
	copy(v.final, in[body:body+bl])
	v.finalUsed = true

	if err := v.chain.crypt(out[:body], in[:body]); err != nil {
		return n, err
	}
	return n + body, nil
}

// Final steals from the held block to complete the partial one, and writes the last
// BlockSize+leftover bytes to out. The codec is empty afterwards.
func (v *CtsCodec) Final(out []byte) (int, error) {
	if !v.finalUsed {
		return 0, errors.Wrapf(ErrCtsMissingState, "expecting previous block")
	}
	if v.bufLen == 0 {
		return 0, errors.Wrapf(ErrCtsMissingState, "expecting leftover bytes")
	}

	bl, leftover := v.bl, v.bufLen
	defer func() {
		v.bufLen, v.finalUsed = 0, false
	}()

	var err error
	switch v.chain.mode {
	case ModeECB:
		err = v.finalECB(out, bl, leftover)
	case ModeCBC:
		if v.chain.decrypt {
			err = v.finalDecodeCBC(out, bl, leftover)
		} else {
			err = v.finalEncodeCBC(out, bl, leftover)
		}
	default:
		err = errors.Wrapf(ErrCtsUnsupportedMode, "mode %v", v.chain.mode)
	}
	if err != nil {
		return 0, err
	}

	return bl + leftover, nil
}

// finalECB is its own inverse: the held block is transformed, its tail completes the
// partial block, and the head is stolen as the last leftover bytes.
func (v *CtsCodec) finalECB(out []byte, bl, leftover int) error {
	tmp := make([]byte, bl)
	if err := v.chain.crypt(tmp, v.final); err != nil {
		return err
	}

	copy(v.buf[leftover:], tmp[leftover:])
	if err := v.chain.crypt(out[:bl], v.buf); err != nil {
		return err
	}

	copy(out[bl:bl+leftover], tmp[:leftover])
	return nil
}

// finalEncodeCBC zero pads the partial block, the CBC chaining with the previous
// ciphertext does the mixing ECB does by copying.
func (v *CtsCodec) finalEncodeCBC(out []byte, bl, leftover int) error {
	tmp := make([]byte, bl)
	if err := v.chain.crypt(tmp, v.final); err != nil {
		return err
	}

	zeroBytes(v.buf[leftover:])
	if err := v.chain.crypt(out[:bl], v.buf); err != nil {
		return err
	}

	copy(out[bl:bl+leftover], tmp[:leftover])
	return nil
}

// finalDecodeCBC holds C(n-1) in final and the short C(n) in buf, and the chaining
// register still holds C(n-2), the block two positions back.
func (v *CtsCodec) finalDecodeCBC(out []byte, bl, leftover int) error {
	prev := make([]byte, bl)
	copy(prev, v.chain.iv)

	// C(n) plus zeros.
	zeroBytes(v.buf[leftover:])

	// Decrypt C(n-1), then undo the chaining with C(n-2), then xor with C(n) plus zeros,
	// which gives P(n) plus the stolen tail.
	tmp := make([]byte, bl)
	if err := v.chain.crypt(tmp, v.final); err != nil {
		return err
	}
	xor.XorBytes(tmp, tmp, prev)
	xor.XorBytes(tmp, tmp, v.buf)

	// C(n) plus the stolen tail, decrypt it and undo the chaining with C(n-1), then
	// chain with C(n-2) to get P(n-1).
	copy(v.buf[leftover:], tmp[leftover:])
	if err := v.chain.crypt(out[:bl], v.buf); err != nil {
		return err
	}
	xor.XorBytes(out[:bl], out[:bl], v.final)
	xor.XorBytes(out[:bl], out[:bl], prev)

	copy(out[bl:bl+leftover], tmp[:leftover])
	return nil
}

func (v *CtsCodec) zero() {
	v.chain.zero()
	zeroBytes(v.buf)
	zeroBytes(v.final)
	v.bufLen = 0
	v.finalUsed = false
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
