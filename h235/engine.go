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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/ossrs/go-oryx-lib/errors"
)

// cipherState is the state of one direction. The encrypt and decrypt states never share
// buffers, so one goroutine may encrypt while another decrypts.
type cipherState struct {
	decrypt bool
	block   cipher.Block
	iv      []byte
	padding paddingMode
	// For the block aligned and RTP padded payloads.
	chain *blockChain
	// For the payloads that are not block aligned.
	cts *CtsCodec
}

func (v *cipherState) setup(block cipher.Block) {
	bl := block.BlockSize()
	v.block = block
	v.iv = make([]byte, bl)
	v.padding = paddingNone
	v.chain = newBlockChain(block, ModeCBC, v.decrypt, v.iv)
	v.cts = newCtsCodec(block, ModeCBC, v.decrypt, v.iv)
}

func (v *cipherState) zero() {
	zeroBytes(v.iv)
	if v.chain != nil {
		v.chain.zero()
	}
	if v.cts != nil {
		v.cts.zero()
	}
	v.block, v.chain, v.cts = nil, nil, nil
}

// CipherEngine encrypts and decrypts media payloads with AES-CBC, without expanding
// payloads of one block or more.
//
// The engine keeps no state between calls, every call derives its own IV. Encrypt and
// Decrypt may run concurrently with each other, but two concurrent Encrypt calls (or two
// Decrypt calls) must be serialised by the caller, usually one send and one receive
// goroutine per engine. SetKey and Close must not run concurrently with anything.
type CipherEngine struct {
	algorithm AlgorithmID
	key       []byte
	closed    bool

	enc cipherState
	dec cipherState
}

func NewCipherEngine(algorithm AlgorithmID) *CipherEngine {
	return &CipherEngine{
		algorithm: algorithm,
		enc:       cipherState{decrypt: false},
		dec:       cipherState{decrypt: true},
	}
}

func NewCipherEngineWithKey(algorithm AlgorithmID, key []byte) (*CipherEngine, error) {
	v := NewCipherEngine(algorithm)
	if err := v.SetKey(key); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *CipherEngine) Algorithm() AlgorithmID {
	return v.algorithm
}

// SetKey validates the key and sets up both directions with it. The IV is not part of
// the key state, it is supplied on each call.
func (v *CipherEngine) SetKey(key []byte) error {
	if v.closed {
		return ErrEngineClosed
	}
	if !v.algorithm.Valid() {
		return errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %v", v.algorithm)
	}
	if len(key) != v.algorithm.KeyLen() {
		return errors.Wrapf(ErrInvalidKeyLength, "%v requires %v bytes, actual %v",
			v.algorithm, v.algorithm.KeyLen(), len(key))
	}

	encBlock, err := aes.NewCipher(key)
	if err != nil {
		return errors.Wrapf(err, "encrypt cipher")
	}
	decBlock, err := aes.NewCipher(key)
	if err != nil {
		return errors.Wrapf(err, "decrypt cipher")
	}

	zeroBytes(v.key)
	v.key = append([]byte(nil), key...)

	v.enc.setup(encBlock)
	v.dec.setup(decBlock)
	return nil
}

// GenerateRandomKey creates a key of the algorithm's size from crypto/rand and installs
// it. The returned slice belongs to the caller.
func (v *CipherEngine) GenerateRandomKey() ([]byte, error) {
	if !v.algorithm.Valid() {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %v", v.algorithm)
	}

	key := make([]byte, v.algorithm.KeyLen())
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrapf(err, "read random")
	}

	if err := v.SetKey(key); err != nil {
		zeroBytes(key)
		return nil, err
	}
	return key, nil
}

// Encrypt returns the ciphertext of plaintext. A nil seq means a zero IV.
//
// Payloads shorter than a block are padded to one block and rtpPadding is true, the
// caller must then set the RTP padding bit. Longer payloads keep their length, using
// ciphertext stealing when they are not block aligned.
func (v *CipherEngine) Encrypt(plaintext []byte, seq *IVSequence) (ciphertext []byte, rtpPadding bool, err error) {
	s := &v.enc
	if err := v.ready(s); err != nil {
		return nil, false, err
	}

	bl := s.block.BlockSize()
	fillIV(s.iv, seq)

	switch {
	case len(plaintext) < bl:
		s.padding = paddingRTP
	case len(plaintext)%bl != 0:
		s.padding = paddingStealing
	default:
		s.padding = paddingNone
	}

	switch s.padding {
	case paddingRTP:
		ciphertext = padRTP(make([]byte, 0, bl), plaintext, bl)
		s.chain.reset(s.iv)
		if err := s.chain.crypt(ciphertext, ciphertext); err != nil {
			return nil, false, errors.Wrapf(err, "encrypt padded %v bytes", len(plaintext))
		}
		return ciphertext, true, nil
	case paddingStealing:
		if ciphertext, err = v.steal(s, plaintext); err != nil {
			return nil, false, errors.Wrapf(err, "encrypt cts %v bytes", len(plaintext))
		}
		return ciphertext, false, nil
	default:
		ciphertext = make([]byte, len(plaintext))
		s.chain.reset(s.iv)
		if err := s.chain.crypt(ciphertext, plaintext); err != nil {
			return nil, false, errors.Wrapf(err, "encrypt %v bytes", len(plaintext))
		}
		return ciphertext, false, nil
	}
}

// Decrypt returns the plaintext of ciphertext, where rtpPadding is the RTP padding bit
// of the packet. A nil seq means a zero IV.
//
// The final block of a padded payload is checked in the relaxed way, see unpadRelaxed.
func (v *CipherEngine) Decrypt(ciphertext []byte, seq *IVSequence, rtpPadding bool) ([]byte, error) {
	s := &v.dec
	if err := v.ready(s); err != nil {
		return nil, err
	}

	bl := s.block.BlockSize()
	fillIV(s.iv, seq)

	switch {
	case !rtpPadding && len(ciphertext)%bl != 0:
		s.padding = paddingStealing
	case rtpPadding:
		s.padding = paddingRTP
	default:
		s.padding = paddingNone
	}

	if s.padding == paddingStealing {
		plaintext, err := v.steal(s, ciphertext)
		if err != nil {
			return nil, errors.Wrapf(err, "decrypt cts %v bytes", len(ciphertext))
		}
		return plaintext, nil
	}

	if len(ciphertext)%bl != 0 {
		return nil, errors.Wrapf(ErrNotBlockAligned, "decrypt %v bytes, padding=%v", len(ciphertext), rtpPadding)
	}
	if s.padding == paddingRTP && len(ciphertext) == 0 {
		return nil, errors.Wrapf(ErrNotBlockAligned, "wrong final block length")
	}

	plaintext := make([]byte, len(ciphertext))
	s.chain.reset(s.iv)
	if err := s.chain.crypt(plaintext, ciphertext); err != nil {
		return nil, errors.Wrapf(err, "decrypt %v bytes", len(ciphertext))
	}

	if s.padding == paddingRTP {
		last := len(plaintext) - bl
		keep, err := unpadRelaxed(plaintext[last:])
		if err != nil {
			zeroBytes(plaintext)
			return nil, errors.Wrapf(err, "decrypt %v bytes", len(ciphertext))
		}
		plaintext = plaintext[:last+keep]
	}

	return plaintext, nil
}

// steal runs the payload through the direction's stealing codec in one pass.
func (v *CipherEngine) steal(s *cipherState, in []byte) ([]byte, error) {
	out := make([]byte, len(in)+s.block.BlockSize())

	s.cts.Reset(s.iv)
	n, err := s.cts.Update(out, in)
	if err != nil {
		return nil, err
	}

	m, err := s.cts.Final(out[n:])
	if err != nil {
		return nil, err
	}

	if n+m != len(in) {
		return nil, errors.Errorf("cts output %v bytes, input %v bytes", n+m, len(in))
	}
	return out[:n+m], nil
}

func (v *CipherEngine) ready(s *cipherState) error {
	if v.closed {
		return ErrEngineClosed
	}
	if !v.algorithm.Valid() {
		return errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %v", v.algorithm)
	}
	if s.block == nil {
		return ErrKeyNotSet
	}
	return nil
}

// Close zeroes the key and both direction states. The engine is unusable afterwards.
// The expanded key schedule inside crypto/aes cannot be wiped, it is dropped for the GC.
func (v *CipherEngine) Close() error {
	zeroBytes(v.key)
	v.key = nil
	v.enc.zero()
	v.dec.zero()
	v.closed = true
	return nil
}
