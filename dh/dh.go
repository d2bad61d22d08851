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

// Package dh implements the Diffie-Hellman key agreements used to key H.235 media
// sessions: the finite field groups of H.235.6, and X25519.
package dh

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/ossrs/go-oryx-lib/errors"
)

var (
	ErrNoRemoteKey      = errors.New("dh: remote public key not set")
	ErrInvalidPublicKey = errors.New("dh: invalid public key")
	ErrUnknownGroup     = errors.New("dh: unknown group")
)

// Agreement is a two party key agreement, one per call leg.
type Agreement interface {
	// PublicKey is the local value sent to the peer.
	PublicKey() []byte
	// SetRemoteKey sets the value received from the peer.
	SetRemoteKey(pub []byte) error
	// ComputeSessionKey returns the shared secret, a fresh copy on every call.
	ComputeSessionKey() ([]byte, error)
}

// Group is a finite field Diffie-Hellman group with generator g and prime p.
type Group struct {
	Name string
	P    *big.Int
	G    *big.Int
}

// Size is the length of public values and secrets in bytes.
func (v *Group) Size() int {
	return (v.P.BitLen() + 7) / 8
}

func mustPrime(hex string) *big.Int {
	p, ok := new(big.Int).SetString(strings.Join(strings.Fields(hex), ""), 16)
	if !ok {
		panic("dh: bad prime " + hex)
	}
	return p
}

// DH1024 is the RFC 2409 Oakley group 2, the 1024 bits group of H.235.6.
var DH1024 = &Group{
	Name: "dh1024",
	G:    big.NewInt(2),
	P: mustPrime(`
		FFFFFFFF FFFFFFFF C90FDAA2 2168C234 C4C6628B 80DC1CD1
		29024E08 8A67CC74 020BBEA6 3B139B22 514A0879 8E3404DD
		EF9519B3 CD3A431B 302B0A6D F25F1437 4FE1356D 6D51C245
		E485B576 625E7EC6 F44C42E9 A637ED6B 0BFF5CB6 F406B7ED
		EE386BFB 5A899FA5 AE9F2411 7C4B1FE6 49286651 ECE65381
		FFFFFFFF FFFFFFFF`),
}

// DH1536 is the RFC 3526 group 5.
var DH1536 = &Group{
	Name: "dh1536",
	G:    big.NewInt(2),
	P: mustPrime(`
		FFFFFFFF FFFFFFFF C90FDAA2 2168C234 C4C6628B 80DC1CD1
		29024E08 8A67CC74 020BBEA6 3B139B22 514A0879 8E3404DD
		EF9519B3 CD3A431B 302B0A6D F25F1437 4FE1356D 6D51C245
		E485B576 625E7EC6 F44C42E9 A637ED6B 0BFF5CB6 F406B7ED
		EE386BFB 5A899FA5 AE9F2411 7C4B1FE6 49286651 ECE45B3D
		C2007CB8 A163BF05 98DA4836 1C55D39A 69163FA8 FD24CF5F
		83655D23 DCA3AD96 1C62F356 208552BB 9ED52907 7096966D
		670C354E 4ABC9804 F1746C08 CA237327 FFFFFFFF FFFFFFFF`),
}

// DH2048 is the RFC 3526 group 14.
var DH2048 = &Group{
	Name: "dh2048",
	G:    big.NewInt(2),
	P: mustPrime(`
		FFFFFFFF FFFFFFFF C90FDAA2 2168C234 C4C6628B 80DC1CD1
		29024E08 8A67CC74 020BBEA6 3B139B22 514A0879 8E3404DD
		EF9519B3 CD3A431B 302B0A6D F25F1437 4FE1356D 6D51C245
		E485B576 625E7EC6 F44C42E9 A637ED6B 0BFF5CB6 F406B7ED
		EE386BFB 5A899FA5 AE9F2411 7C4B1FE6 49286651 ECE45B3D
		C2007CB8 A163BF05 98DA4836 1C55D39A 69163FA8 FD24CF5F
		83655D23 DCA3AD96 1C62F356 208552BB 9ED52907 7096966D
		670C354E 4ABC9804 F1746C08 CA18217C 32905E46 2E36CE3B
		E39E772C 180E8603 9B2783A2 EC07A28F B5C55DF0 6F4C52C9
		DE2BCBF6 95581718 3995497C EA956AE5 15D22618 98FA0510
		15728E5A 8AACAA68 FFFFFFFF FFFFFFFF`),
}

// DiffieHellman is one side of a finite field exchange.
type DiffieHellman struct {
	group  *Group
	priv   *big.Int
	pub    *big.Int
	remote *big.Int
}

// New generates a key pair in group.
func New(group *Group) (*DiffieHellman, error) {
	// A private exponent in [2, p-2].
	max := new(big.Int).Sub(group.P, big.NewInt(3))
	x, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, errors.Wrapf(err, "generate private key")
	}
	x.Add(x, big.NewInt(2))

	return &DiffieHellman{
		group: group,
		priv:  x,
		pub:   new(big.Int).Exp(group.G, x, group.P),
	}, nil
}

func (v *DiffieHellman) Group() *Group {
	return v.group
}

func (v *DiffieHellman) PublicKey() []byte {
	return leftPad(v.pub.Bytes(), v.group.Size())
}

// SetRemoteKey accepts a peer value y with 1 < y < p-1.
func (v *DiffieHellman) SetRemoteKey(pub []byte) error {
	y := new(big.Int).SetBytes(pub)

	one := big.NewInt(1)
	pMinusOne := new(big.Int).Sub(v.group.P, one)
	if y.Cmp(one) <= 0 || y.Cmp(pMinusOne) >= 0 {
		return errors.Wrapf(ErrInvalidPublicKey, "out of range, %v bytes", len(pub))
	}

	v.remote = y
	return nil
}

// ComputeSessionKey returns y^x mod p, big endian and padded to the group size.
func (v *DiffieHellman) ComputeSessionKey() ([]byte, error) {
	if v.remote == nil {
		return nil, ErrNoRemoteKey
	}

	z := new(big.Int).Exp(v.remote, v.priv, v.group.P)
	return leftPad(z.Bytes(), v.group.Size()), nil
}

func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// Lookup creates an agreement by name: dh1024, dh1536, dh2048 or x25519.
func Lookup(name string) (Agreement, error) {
	switch strings.ToLower(name) {
	case DH1024.Name:
		return New(DH1024)
	case DH1536.Name:
		return New(DH1536)
	case DH2048.Name:
		return New(DH2048)
	case "x25519":
		return NewX25519()
	}
	return nil, errors.Wrapf(ErrUnknownGroup, "name %v", name)
}
