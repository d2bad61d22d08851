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

// Package h235 encrypts RTP media payloads the H.235.6 way: AES-CBC with ciphertext
// stealing so payloads keep their length, and a media key carried from the master to
// the slave under the Diffie-Hellman secret of the call.
package h235

import (
	"fmt"
	"strings"

	"github.com/ossrs/go-oryx-lib/errors"
)

// The OIDs of the AES-CBC media encryption algorithms, as carried in H.235 capabilities.
const (
	OIDAES128 = "2.16.840.1.101.3.4.1.2"
	OIDAES192 = "2.16.840.1.101.3.4.1.22"
	OIDAES256 = "2.16.840.1.101.3.4.1.42"
)

// AlgorithmID identifies the media cipher. The zero value is AlgorithmUnknown.
type AlgorithmID int

const (
	AlgorithmUnknown AlgorithmID = iota
	AlgorithmAES128
	AlgorithmAES192
	AlgorithmAES256
)

type algorithmInfo struct {
	oid       string
	name      string
	keyLen    int
	blockSize int
}

var algorithms = map[AlgorithmID]algorithmInfo{
	AlgorithmAES128: {oid: OIDAES128, name: "AES-128-CBC", keyLen: 16, blockSize: 16},
	AlgorithmAES192: {oid: OIDAES192, name: "AES-192-CBC", keyLen: 24, blockSize: 16},
	AlgorithmAES256: {oid: OIDAES256, name: "AES-256-CBC", keyLen: 32, blockSize: 16},
}

// LookupAlgorithm maps an OID to the algorithm. Unrecognised OIDs yield AlgorithmUnknown,
// which is rejected later by SetKey and GenerateRandomKey.
func LookupAlgorithm(oid string) AlgorithmID {
	for id, info := range algorithms {
		if info.oid == oid {
			return id
		}
	}
	return AlgorithmUnknown
}

// ParseAlgorithm accepts a short name like aes128 or an OID.
func ParseAlgorithm(v string) (AlgorithmID, error) {
	switch strings.ToLower(strings.ReplaceAll(v, "-", "")) {
	case "aes128", "aes128cbc":
		return AlgorithmAES128, nil
	case "aes192", "aes192cbc":
		return AlgorithmAES192, nil
	case "aes256", "aes256cbc":
		return AlgorithmAES256, nil
	}

	if id := LookupAlgorithm(v); id != AlgorithmUnknown {
		return id, nil
	}
	return AlgorithmUnknown, errors.Wrapf(ErrUnsupportedAlgorithm, "parse %v", v)
}

func (v AlgorithmID) Valid() bool {
	_, ok := algorithms[v]
	return ok
}

// KeyLen returns the key size in bytes, or 0 for an unknown algorithm.
func (v AlgorithmID) KeyLen() int {
	return algorithms[v].keyLen
}

// BlockSize returns the cipher block size in bytes, which is also the IV size.
func (v AlgorithmID) BlockSize() int {
	return algorithms[v].blockSize
}

func (v AlgorithmID) OID() string {
	return algorithms[v].oid
}

func (v AlgorithmID) String() string {
	if info, ok := algorithms[v]; ok {
		return info.name
	}
	return fmt.Sprintf("Unknown(%d)", int(v))
}
