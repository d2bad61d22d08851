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
	"github.com/pion/logging"
	"github.com/pion/rtp"
)

// KeyAgreement is the Diffie-Hellman exchange of the call, owned by the caller. The
// peer's public value must already be set when ComputeSessionKey is called.
type KeyAgreement interface {
	ComputeSessionKey() ([]byte, error)
}

type sessionState int

const (
	sessionUninitialised sessionState = iota
	sessionActive
	sessionClosed
)

func (v sessionState) String() string {
	switch v {
	case sessionUninitialised:
		return "Uninitialised"
	case sessionActive:
		return "Active"
	case sessionClosed:
		return "Closed"
	}
	return "Unknown"
}

// SessionOption configures a MediaSession.
type SessionOption func(*MediaSession)

// WithLoggerFactory sets the pion logger factory, the scope is h235.
func WithLoggerFactory(f logging.LoggerFactory) SessionOption {
	return func(v *MediaSession) {
		v.log = f.NewLogger("h235")
	}
}

// WithZeroIV uses an all zero IV for every frame instead of one derived from the RTP
// sequence number and timestamp. Older H.323 endpoints do this, but it repeats the IV
// for every frame under the same key.
func WithZeroIV() SessionOption {
	return func(v *MediaSession) {
		v.zeroIV = true
	}
}

// MediaSession secures the media of one call leg. The Diffie-Hellman secret keys the
// transport engine, which carries the media key from master to slave, and the media
// engine encrypts the RTP payloads.
//
// WriteFrame and ReadFrame may be called from different goroutines, but each of them
// must have a single caller at a time. The handshake methods and Close must not race
// with anything.
type MediaSession struct {
	dh        KeyAgreement
	algorithm AlgorithmID

	// Keyed by the Diffie-Hellman secret, only carries the media key.
	transport *CipherEngine
	// Keyed by the media key, encrypts the frames.
	media *CipherEngine

	state    sessionState
	master   bool
	mediaKey []byte
	zeroIV   bool

	log logging.LeveledLogger
}

// NewMediaSession creates a session bound to the algorithm OID. An unrecognised OID is
// reported by CreateSession.
func NewMediaSession(dh KeyAgreement, oid string, opts ...SessionOption) *MediaSession {
	algorithm := LookupAlgorithm(oid)
	v := &MediaSession{
		dh:        dh,
		algorithm: algorithm,
		transport: NewCipherEngine(algorithm),
		media:     NewCipherEngine(algorithm),
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.log == nil {
		v.log = logging.NewDefaultLoggerFactory().NewLogger("h235")
	}
	return v
}

func (v *MediaSession) Algorithm() AlgorithmID {
	return v.algorithm
}

func (v *MediaSession) IsInitialised() bool {
	return v.state == sessionActive
}

func (v *MediaSession) IsMaster() bool {
	return v.master
}

// MediaKey returns a copy of the plaintext media key, nil before it is known.
func (v *MediaSession) MediaKey() []byte {
	if v.mediaKey == nil {
		return nil
	}
	return append([]byte(nil), v.mediaKey...)
}

// CreateSession keys the transport engine with the Diffie-Hellman secret, and for the
// master generates the media key. It succeeds once per session.
func (v *MediaSession) CreateSession(isMaster bool) error {
	switch v.state {
	case sessionActive:
		return ErrAlreadyInitialised
	case sessionClosed:
		return errors.Wrapf(ErrNotInitialised, "session closed")
	}

	if !v.algorithm.Valid() {
		return errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %v", v.algorithm)
	}

	secret, err := v.dh.ComputeSessionKey()
	if err != nil {
		return errors.Wrapf(err, "compute dh secret")
	}
	defer zeroBytes(secret)

	keyLen := v.algorithm.KeyLen()
	if len(secret) < keyLen {
		return errors.Wrapf(ErrInvalidKeyLength, "dh secret %v bytes, %v requires %v",
			len(secret), v.algorithm, keyLen)
	}

	// The transport key is the head of the secret, keyLen bytes.
	if err := v.transport.SetKey(secret[:keyLen]); err != nil {
		return errors.Wrapf(err, "set transport key")
	}

	if isMaster {
		key, err := v.media.GenerateRandomKey()
		if err != nil {
			return errors.Wrapf(err, "generate media key")
		}
		v.mediaKey = key
	}

	v.master = isMaster
	v.state = sessionActive
	v.log.Debugf("session created, algorithm=%v, master=%v, dh=%vB", v.algorithm, isMaster, len(secret))
	return nil
}

// EncodeMediaKey encrypts the media key under the transport key, to be sent to the slave.
func (v *MediaSession) EncodeMediaKey() ([]byte, error) {
	if v.state != sessionActive {
		return nil, ErrNotInitialised
	}
	if len(v.mediaKey) == 0 {
		return nil, errors.Wrapf(ErrKeyTransportFailed, "no media key")
	}

	ciphertext, _, err := v.transport.Encrypt(v.mediaKey, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrKeyTransportFailed, "encrypt media key, %v", err)
	}

	v.log.Tracef("media key encoded, plaintext=%vB, ciphertext=%vB", len(v.mediaKey), len(ciphertext))
	return ciphertext, nil
}

// DecodeMediaKey decrypts the media key sent by the master and keys the media engine.
func (v *MediaSession) DecodeMediaKey(ciphertext []byte) error {
	if v.state != sessionActive {
		return ErrNotInitialised
	}

	key, err := v.transport.Decrypt(ciphertext, nil, false)
	if err != nil {
		return errors.Wrapf(ErrKeyTransportFailed, "decrypt media key, %v", err)
	}

	if err := v.media.SetKey(key); err != nil {
		zeroBytes(key)
		return errors.Wrapf(ErrKeyTransportFailed, "install media key, %v", err)
	}

	zeroBytes(v.mediaKey)
	v.mediaKey = key

	v.log.Tracef("media key decoded, ciphertext=%vB, plaintext=%vB", len(ciphertext), len(key))
	return nil
}

// WriteFrame encrypts the payload of an outgoing frame in place, and sets the padding
// bit when the payload was padded to one block. Use MarshalFrame to put it on the wire,
// Packet.Marshal drops the bit.
func (v *MediaSession) WriteFrame(frame *rtp.Packet) error {
	if v.state != sessionActive {
		return ErrNotInitialised
	}

	ciphertext, rtpPadding, err := v.media.Encrypt(frame.Payload, v.frameIV(frame))
	if err != nil {
		return errors.Wrapf(err, "write frame seq=%v, %vB", frame.SequenceNumber, len(frame.Payload))
	}

	frame.Payload = append(frame.Payload[:0], ciphertext...)
	frame.Padding = rtpPadding
	// The ciphertext is the whole payload, there are no RTP pad bytes to append.
	frame.PaddingSize = 0
	return nil
}

// ReadFrame decrypts the payload of an incoming frame in place. The padding bit selects
// the padded decode, and is cleared afterwards. The frame may come from UnmarshalFrame
// or from Packet.Unmarshal.
func (v *MediaSession) ReadFrame(frame *rtp.Packet) error {
	if v.state != sessionActive {
		return ErrNotInitialised
	}

	// Packet.Unmarshal took the last byte of a padded payload as the RTP pad count and
	// cut that many bytes off, but for a padded frame it is ciphertext. Put them back.
	if frame.PaddingSize != 0 {
		n := len(frame.Payload) + int(frame.PaddingSize)
		if n > cap(frame.Payload) {
			return errors.Wrapf(ErrNotBlockAligned, "read frame seq=%v, pad %vB beyond payload %vB",
				frame.SequenceNumber, frame.PaddingSize, len(frame.Payload))
		}
		frame.Payload = frame.Payload[:n]
		frame.PaddingSize = 0
		frame.Padding = true
	}

	plaintext, err := v.media.Decrypt(frame.Payload, v.frameIV(frame), frame.Padding)
	if err != nil {
		return errors.Wrapf(err, "read frame seq=%v, %vB, padding=%v",
			frame.SequenceNumber, len(frame.Payload), frame.Padding)
	}

	frame.Payload = append(frame.Payload[:0], plaintext...)
	frame.Padding = false
	return nil
}

func (v *MediaSession) frameIV(frame *rtp.Packet) *IVSequence {
	if v.zeroIV {
		return nil
	}
	return NewIVSequence(frame.SequenceNumber, frame.Timestamp)
}

// Close zeroes the media key and both engines. The DH object belongs to the caller.
func (v *MediaSession) Close() error {
	zeroBytes(v.mediaKey)
	v.mediaKey = nil

	v.transport.Close()
	v.media.Close()

	if v.state != sessionClosed {
		v.log.Debugf("session closed, was %v", v.state)
	}
	v.state = sessionClosed
	return nil
}
