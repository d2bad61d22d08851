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

// Errors returned by the cipher engine. Compare with errors.Cause(err).
var (
	ErrUnsupportedAlgorithm = errors.New("h235: unsupported algorithm")
	ErrInvalidKeyLength     = errors.New("h235: invalid key length")
	ErrKeyNotSet            = errors.New("h235: key not set")
	ErrBadPadding           = errors.New("h235: bad padding")
	ErrNotBlockAligned      = errors.New("h235: data not a multiple of block length")
	ErrEngineClosed         = errors.New("h235: engine closed")
)

// Errors returned by the ciphertext stealing codec.
var (
	ErrCtsMissingState    = errors.New("h235: cts missing previous block")
	ErrCtsUnsupportedMode = errors.New("h235: cts unsupported mode")
)

// Errors returned by the media session.
var (
	ErrNotInitialised     = errors.New("h235: session not initialised")
	ErrAlreadyInitialised = errors.New("h235: session already initialised")
	ErrKeyTransportFailed = errors.New("h235: media key transport failed")
)
