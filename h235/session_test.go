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
	"bytes"
	"testing"

	"github.com/kenlab-chung/h323plus/dh"
	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/pion/logging"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgreement struct {
	secret []byte
	err    error
}

func (v *fakeAgreement) ComputeSessionKey() ([]byte, error) {
	if v.err != nil {
		return nil, v.err
	}
	return append([]byte(nil), v.secret...), nil
}

func newSilentSession(agreement KeyAgreement, oid string, opts ...SessionOption) *MediaSession {
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = logging.LogLevelDisabled
	return NewMediaSession(agreement, oid, append([]SessionOption{WithLoggerFactory(f)}, opts...)...)
}

// newSessionPair runs the exchange of a call leg and returns the keyed master and slave.
func newSessionPair(t *testing.T, group string, oid string, opts ...SessionOption) (*MediaSession, *MediaSession) {
	a, err := dh.Lookup(group)
	require.NoError(t, err)
	b, err := dh.Lookup(group)
	require.NoError(t, err)

	require.NoError(t, a.SetRemoteKey(b.PublicKey()))
	require.NoError(t, b.SetRemoteKey(a.PublicKey()))

	master, slave := newSilentSession(a, oid, opts...), newSilentSession(b, oid, opts...)
	require.NoError(t, master.CreateSession(true))
	require.NoError(t, slave.CreateSession(false))

	ciphertext, err := master.EncodeMediaKey()
	require.NoError(t, err)
	require.NoError(t, slave.DecodeMediaKey(ciphertext))
	return master, slave
}

func newFrame(seq uint16, ts uint32, payload []byte) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version: 2, PayloadType: 8, SequenceNumber: seq, Timestamp: ts, SSRC: 0x1234,
		},
		Payload: append([]byte(nil), payload...),
	}
}

func TestSessionHandshake(t *testing.T) {
	for _, oid := range []string{OIDAES128, OIDAES192, OIDAES256} {
		for _, group := range []string{"dh1024", "dh2048", "x25519"} {
			t.Run(oid+"/"+group, func(t *testing.T) {
				master, slave := newSessionPair(t, group, oid)
				defer master.Close()
				defer slave.Close()

				assert.True(t, master.IsInitialised())
				assert.True(t, master.IsMaster())
				assert.False(t, slave.IsMaster())

				alg := LookupAlgorithm(oid)
				assert.Equal(t, alg, master.Algorithm())
				assert.Equal(t, alg.KeyLen(), len(master.MediaKey()))
				assert.Equal(t, master.MediaKey(), slave.MediaKey())
			})
		}
	}
}

func TestSessionFrames(t *testing.T) {
	master, slave := newSessionPair(t, "dh1024", OIDAES128)
	defer master.Close()
	defer slave.Close()

	for i, size := range []int{1, 15, 16, 17, 160, 161, 1024} {
		payload := pattern(size)
		frame := newFrame(uint16(100+i), uint32(160*i), payload)

		require.NoError(t, master.WriteFrame(frame))
		assert.Equal(t, size < 16, frame.Padding)
		assert.NotEqual(t, payload, frame.Payload)

		// Through the wire and back, the padding bit is on the wire and nothing is appended.
		b, err := MarshalFrame(frame)
		require.NoError(t, err)
		assert.Equal(t, size < 16, b[0]&0x20 != 0)
		assert.Equal(t, 12+len(frame.Payload), len(b))

		received := &rtp.Packet{}
		require.NoError(t, UnmarshalFrame(received, b))
		assert.Equal(t, frame.Padding, received.Padding)
		assert.Equal(t, frame.Payload, received.Payload)

		require.NoError(t, slave.ReadFrame(received))
		assert.Equal(t, payload, received.Payload)
		assert.False(t, received.Padding)
	}

	// Media flows both ways with the one key.
	frame := newFrame(7, 8, []byte("slave to master audio"))
	require.NoError(t, slave.WriteFrame(frame))
	require.NoError(t, master.ReadFrame(frame))
	assert.Equal(t, []byte("slave to master audio"), frame.Payload)
}

// A peer parsing with Packet.Unmarshal takes the last ciphertext byte of a padded frame
// as the pad count and trims the payload, ReadFrame undoes it.
func TestSessionReadFrameTrimmedByUnmarshal(t *testing.T) {
	master, slave := newSessionPair(t, "x25519", OIDAES128)
	defer master.Close()
	defer slave.Close()

	// Find a frame whose last ciphertext byte is a plausible pad count.
	var b []byte
	for seq := 0; seq < 4096 && b == nil; seq++ {
		frame := newFrame(uint16(seq), 160, []byte("short"))
		require.NoError(t, master.WriteFrame(frame))
		require.True(t, frame.Padding)

		if n := frame.Payload[15]; n >= 1 && n <= 16 {
			v, err := MarshalFrame(frame)
			require.NoError(t, err)
			b = v
		}
	}
	require.NotNil(t, b)

	received := &rtp.Packet{}
	require.NoError(t, received.Unmarshal(b))
	assert.True(t, received.Padding)
	assert.Equal(t, 16-int(received.PaddingSize), len(received.Payload))

	require.NoError(t, slave.ReadFrame(received))
	assert.Equal(t, []byte("short"), received.Payload)
	assert.False(t, received.Padding)
	assert.Equal(t, byte(0), received.PaddingSize)
}

func TestSessionReadFramePaddingSize(t *testing.T) {
	master, slave := newSessionPair(t, "x25519", OIDAES256)
	defer master.Close()
	defer slave.Close()

	frame := newFrame(9, 1440, []byte("abc"))
	require.NoError(t, master.WriteFrame(frame))
	ciphertext := append([]byte(nil), frame.Payload...)

	// The packet as left by Unmarshal with a pad count of 4.
	received := newFrame(9, 1440, nil)
	received.Payload = ciphertext[:12]
	received.PaddingSize = 4
	received.Padding = true
	require.NoError(t, slave.ReadFrame(received))
	assert.Equal(t, []byte("abc"), received.Payload)

	// A pad count beyond the buffer is rejected, not read past.
	received = newFrame(9, 1440, nil)
	received.Payload = append([]byte(nil), ciphertext[:12]...)[:12:12]
	received.PaddingSize = 4
	received.Padding = true
	assert.Equal(t, ErrNotBlockAligned, errors.Cause(slave.ReadFrame(received)))
}

func TestSessionFrameIV(t *testing.T) {
	master, slave := newSessionPair(t, "x25519", OIDAES128)

	// The same payload in two frames differs on the wire.
	a, b := newFrame(1, 160, pattern(32)), newFrame(2, 320, pattern(32))
	require.NoError(t, master.WriteFrame(a))
	require.NoError(t, master.WriteFrame(b))
	assert.NotEqual(t, a.Payload, b.Payload)

	// A frame read under the wrong header does not decrypt.
	a.SequenceNumber = 9
	require.NoError(t, slave.ReadFrame(a))
	assert.NotEqual(t, pattern(32), a.Payload)
}

func TestSessionZeroIV(t *testing.T) {
	master, slave := newSessionPair(t, "x25519", OIDAES128, WithZeroIV())

	a, b := newFrame(1, 160, pattern(32)), newFrame(2, 320, pattern(32))
	require.NoError(t, master.WriteFrame(a))
	require.NoError(t, master.WriteFrame(b))
	assert.Equal(t, a.Payload, b.Payload)

	// Any plain engine with the media key and a zero IV reads the frame.
	peer, err := NewCipherEngineWithKey(AlgorithmAES128, master.MediaKey())
	require.NoError(t, err)
	plaintext, err := peer.Decrypt(a.Payload, nil, a.Padding)
	require.NoError(t, err)
	assert.Equal(t, pattern(32), plaintext)

	require.NoError(t, slave.ReadFrame(b))
	assert.Equal(t, pattern(32), b.Payload)
}

func TestSessionCreateErrors(t *testing.T) {
	// Twice.
	v := newSilentSession(&fakeAgreement{secret: pattern(128)}, OIDAES128)
	require.NoError(t, v.CreateSession(true))
	assert.Equal(t, ErrAlreadyInitialised, errors.Cause(v.CreateSession(true)))
	assert.True(t, v.IsInitialised())

	// Unknown algorithm.
	v = newSilentSession(&fakeAgreement{secret: pattern(128)}, "1.3.14.3.2.7")
	assert.Equal(t, AlgorithmUnknown, v.Algorithm())
	assert.Equal(t, ErrUnsupportedAlgorithm, errors.Cause(v.CreateSession(true)))
	assert.False(t, v.IsInitialised())

	// Secret shorter than the key.
	v = newSilentSession(&fakeAgreement{secret: pattern(24)}, OIDAES256)
	assert.Equal(t, ErrInvalidKeyLength, errors.Cause(v.CreateSession(false)))
	assert.False(t, v.IsInitialised())

	// The exchange itself failed.
	v = newSilentSession(&fakeAgreement{err: dh.ErrNoRemoteKey}, OIDAES128)
	assert.Equal(t, dh.ErrNoRemoteKey, errors.Cause(v.CreateSession(true)))
	assert.False(t, v.IsInitialised())
}

// The transport key is the head of the secret, so two sessions with secrets that only
// share the head still exchange the media key.
func TestSessionTransportKey(t *testing.T) {
	head := pattern(16)
	master := newSilentSession(&fakeAgreement{secret: append(head, bytes.Repeat([]byte{1}, 100)...)}, OIDAES128)
	slave := newSilentSession(&fakeAgreement{secret: append(pattern(16), bytes.Repeat([]byte{2}, 100)...)}, OIDAES128)
	require.NoError(t, master.CreateSession(true))
	require.NoError(t, slave.CreateSession(false))

	ciphertext, err := master.EncodeMediaKey()
	require.NoError(t, err)
	assert.Equal(t, 16, len(ciphertext))
	assert.NotEqual(t, master.MediaKey(), ciphertext)

	transport, err := NewCipherEngineWithKey(AlgorithmAES128, head)
	require.NoError(t, err)
	key, err := transport.Decrypt(ciphertext, nil, false)
	require.NoError(t, err)
	assert.Equal(t, master.MediaKey(), key)

	require.NoError(t, slave.DecodeMediaKey(ciphertext))
	assert.Equal(t, master.MediaKey(), slave.MediaKey())
}

func TestSessionNotInitialised(t *testing.T) {
	v := newSilentSession(&fakeAgreement{secret: pattern(128)}, OIDAES128)

	_, err := v.EncodeMediaKey()
	assert.Equal(t, ErrNotInitialised, errors.Cause(err))
	assert.Equal(t, ErrNotInitialised, errors.Cause(v.DecodeMediaKey(pattern(16))))
	assert.Equal(t, ErrNotInitialised, errors.Cause(v.WriteFrame(newFrame(1, 1, pattern(20)))))
	assert.Equal(t, ErrNotInitialised, errors.Cause(v.ReadFrame(newFrame(1, 1, pattern(20)))))
	assert.Nil(t, v.MediaKey())
}

func TestSessionKeyTransportFailed(t *testing.T) {
	slave := newSilentSession(&fakeAgreement{secret: pattern(128)}, OIDAES128)
	require.NoError(t, slave.CreateSession(false))

	// The slave has no media key to send.
	_, err := slave.EncodeMediaKey()
	assert.Equal(t, ErrKeyTransportFailed, errors.Cause(err))

	// Too short to decrypt.
	assert.Equal(t, ErrKeyTransportFailed, errors.Cause(slave.DecodeMediaKey(pattern(5))))

	// Decrypts to a key of the wrong length.
	assert.Equal(t, ErrKeyTransportFailed, errors.Cause(slave.DecodeMediaKey(pattern(32))))
	assert.Nil(t, slave.MediaKey())

	// No media key yet, so frames fail.
	assert.Equal(t, ErrKeyNotSet, errors.Cause(slave.WriteFrame(newFrame(1, 1, pattern(20)))))
}

func TestSessionClose(t *testing.T) {
	master, slave := newSessionPair(t, "x25519", OIDAES192)
	key := master.mediaKey

	require.NoError(t, master.Close())
	require.NoError(t, slave.Close())
	assert.Equal(t, make([]byte, 24), key)
	assert.Nil(t, master.MediaKey())
	assert.False(t, master.IsInitialised())

	assert.Equal(t, ErrNotInitialised, errors.Cause(master.WriteFrame(newFrame(1, 1, pattern(20)))))
	assert.Equal(t, ErrNotInitialised, errors.Cause(master.CreateSession(true)))

	// Closing twice is fine.
	require.NoError(t, master.Close())
}

func TestSessionLogs(t *testing.T) {
	var buf bytes.Buffer
	f := logging.NewDefaultLoggerFactory()
	f.Writer = &buf
	f.DefaultLogLevel = logging.LogLevelDebug

	v := NewMediaSession(&fakeAgreement{secret: pattern(128)}, OIDAES128, WithLoggerFactory(f))
	require.NoError(t, v.CreateSession(true))
	require.NoError(t, v.Close())

	assert.Contains(t, buf.String(), "h235")
	assert.Contains(t, buf.String(), "session created, algorithm=AES-128-CBC, master=true")
	assert.Contains(t, buf.String(), "session closed, was Active")
}
