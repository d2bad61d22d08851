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
package dh

import (
	"crypto/rand"

	"github.com/ossrs/go-oryx-lib/errors"
	"golang.org/x/crypto/curve25519"
)

// X25519 is an exchange over Curve25519, for endpoints that are not bound to the
// H.235.6 finite field groups.
type X25519 struct {
	priv   []byte
	pub    []byte
	remote []byte
}

func NewX25519() (*X25519, error) {
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(priv); err != nil {
		return nil, errors.Wrapf(err, "generate private key")
	}

	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, errors.Wrapf(err, "public key")
	}

	return &X25519{priv: priv, pub: pub}, nil
}

func (v *X25519) PublicKey() []byte {
	return append([]byte(nil), v.pub...)
}

func (v *X25519) SetRemoteKey(pub []byte) error {
	if len(pub) != curve25519.PointSize {
		return errors.Wrapf(ErrInvalidPublicKey, "x25519 requires %v bytes, actual %v",
			curve25519.PointSize, len(pub))
	}

	v.remote = append([]byte(nil), pub...)
	return nil
}

// ComputeSessionKey fails for low order remote points, whose result is all zeros.
func (v *X25519) ComputeSessionKey() ([]byte, error) {
	if v.remote == nil {
		return nil, ErrNoRemoteKey
	}

	secret, err := curve25519.X25519(v.priv, v.remote)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPublicKey, "x25519, %v", err)
	}
	return secret, nil
}
