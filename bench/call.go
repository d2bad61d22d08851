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
package bench

import (
	"bytes"
	"context"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/kenlab-chung/h323plus/dh"
	"github.com/kenlab-chung/h323plus/h235"
	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/ossrs/go-oryx-lib/logger"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

const (
	// The RTP MTU of the packetizer, one frame fits in one packet.
	rtpMTU = 1200
	// G.711 A-law, 8kHz.
	pcmaPayloadType = 8
	pcmaClockRate   = 8000
)

// callLeg is the two ends of one secured call, keyed by a fresh exchange.
type callLeg struct {
	master *h235.MediaSession
	slave  *h235.MediaSession
}

func newCallLeg(ctx context.Context, algorithm h235.AlgorithmID, group string, zeroIV bool) (*callLeg, error) {
	a, err := dh.Lookup(group)
	if err != nil {
		return nil, errors.Wrapf(err, "master dh")
	}
	b, err := dh.Lookup(group)
	if err != nil {
		return nil, errors.Wrapf(err, "slave dh")
	}

	// The public values travel in the signaling, exchange them directly.
	if err := a.SetRemoteKey(b.PublicKey()); err != nil {
		return nil, errors.Wrapf(err, "master set remote")
	}
	if err := b.SetRemoteKey(a.PublicKey()); err != nil {
		return nil, errors.Wrapf(err, "slave set remote")
	}

	var opts []h235.SessionOption
	if zeroIV {
		opts = append(opts, h235.WithZeroIV())
	}

	v := &callLeg{
		master: h235.NewMediaSession(a, algorithm.OID(), opts...),
		slave:  h235.NewMediaSession(b, algorithm.OID(), opts...),
	}

	if err := v.master.CreateSession(true); err != nil {
		v.Close()
		return nil, errors.Wrapf(err, "create master")
	}
	if err := v.slave.CreateSession(false); err != nil {
		v.Close()
		return nil, errors.Wrapf(err, "create slave")
	}

	mediaKey, err := v.master.EncodeMediaKey()
	if err != nil {
		v.Close()
		return nil, errors.Wrapf(err, "encode media key")
	}
	if err := v.slave.DecodeMediaKey(mediaKey); err != nil {
		v.Close()
		return nil, errors.Wrapf(err, "decode media key")
	}

	logger.Tf(ctx, "call leg keyed, algorithm=%v, dh=%v, zero-iv=%v, media-key=%vB",
		algorithm, group, zeroIV, len(mediaKey))
	return v, nil
}

func (v *callLeg) Close() error {
	v.master.Close()
	v.slave.Close()
	return nil
}

// verify decrypts a frame from the wire on the slave and compares it with the sent payload.
func (v *callLeg) verify(b []byte, expect []byte) error {
	frame := &rtp.Packet{}
	if err := h235.UnmarshalFrame(frame, b); err != nil {
		return errors.Wrapf(err, "unmarshal frame")
	}

	if err := v.slave.ReadFrame(frame); err != nil {
		return errors.Wrapf(err, "read frame")
	}

	if !bytes.Equal(frame.Payload, expect) {
		return errors.Errorf("frame seq=%v mismatch, %vB, expect %vB",
			frame.SequenceNumber, len(frame.Payload), len(expect))
	}
	return nil
}

// startCall runs one call leg, sending G.711 frames from master to slave over a
// loopback UDP socket.
func startCall(ctx context.Context, algorithm h235.AlgorithmID, group string) error {
	ctx = logger.WithContext(ctx)

	leg, err := newCallLeg(ctx, algorithm, group, zeroIV)
	if err != nil {
		return errors.Wrapf(err, "new call leg")
	}
	defer leg.Close()

	rx, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return errors.Wrapf(err, "listen udp")
	}
	defer rx.Close()

	tx, err := net.DialUDP("udp", nil, rx.LocalAddr().(*net.UDPAddr))
	if err != nil {
		return errors.Wrapf(err, "dial %v", rx.LocalAddr())
	}
	defer tx.Close()

	logger.Tf(ctx, "call leg %v => %v, packets=%v, size=%v, interval=%vms",
		tx.LocalAddr(), rx.LocalAddr(), packets, size, interval)

	// The payloads sent, by sequence number.
	var expects sync.Map
	var sent int

	var wg sync.WaitGroup
	defer wg.Wait()

	senderDone := make(chan struct{})
	receiverErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		receiverErr <- receiveFrames(ctx, leg, rx, &expects, senderDone)
	}()

	err = func() error {
		defer close(senderDone)

		packetizer := rtp.NewPacketizer(rtpMTU, pcmaPayloadType, rand.Uint32(),
			&codecs.G711Payloader{}, rtp.NewRandomSequencer(), pcmaClockRate)

		for i := 0; i < packets && ctx.Err() == nil; i++ {
			// Random sizes cover the padded, aligned and stolen payloads.
			payload := make([]byte, 1+rand.Intn(size))
			rand.Read(payload)

			for _, frame := range packetizer.Packetize(payload, uint32(len(payload))) {
				expects.Store(frame.SequenceNumber, append([]byte(nil), frame.Payload...))

				if err := leg.master.WriteFrame(frame); err != nil {
					return errors.Wrapf(err, "write frame %v", i)
				}

				b, err := h235.MarshalFrame(frame)
				if err != nil {
					return errors.Wrapf(err, "marshal frame %v", i)
				}

				if _, err := tx.Write(b); err != nil {
					return errors.Wrapf(err, "send frame %v", i)
				}

				sent++
				gStatH235.update(func(v *statH235) {
					v.Frames.Sent++
					if frame.Padding {
						v.Frames.Padded++
					}
				})
			}

			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(interval) * time.Millisecond):
			}
		}
		return nil
	}()
	if err != nil {
		return err
	}

	if err := <-receiverErr; err != nil {
		return err
	}

	logger.Tf(ctx, "call leg done, sent=%v", sent)
	return ctx.Err()
}

// receiveFrames verifies the frames until the sender is done and the socket is idle.
func receiveFrames(ctx context.Context, leg *callLeg, rx *net.UDPConn, expects *sync.Map, senderDone <-chan struct{}) error {
	b := make([]byte, 1500)
	for ctx.Err() == nil {
		if err := rx.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
			return errors.Wrapf(err, "set deadline")
		}

		n, err := rx.Read(b)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				select {
				case <-senderDone:
					return nil
				default:
					continue
				}
			}
			return errors.Wrapf(err, "read udp")
		}

		var seq uint16
		if n >= 4 {
			seq = uint16(b[2])<<8 | uint16(b[3])
		}

		gStatH235.update(func(v *statH235) {
			v.Frames.Received++
		})

		expect, ok := expects.LoadAndDelete(seq)
		if !ok {
			logger.Wf(ctx, "ignore unknown frame seq=%v, %vB", seq, n)
			continue
		}

		if err := leg.verify(b[:n], expect.([]byte)); err != nil {
			gStatH235.update(func(v *statH235) {
				v.Failures++
			})
			logger.Wf(ctx, "verify err %+v", err)
			continue
		}

		gStatH235.update(func(v *statH235) {
			v.Frames.Verified++
		})
	}
	return nil
}
