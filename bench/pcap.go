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
	"context"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/kenlab-chung/h323plus/h235"
	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/ossrs/go-oryx-lib/logger"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// parseRTCP returns the RTCP packets of a datagram, and false when it is RTP. RTCP
// shares the port with RTP, the packet types 200 to 206 tell them apart.
func parseRTCP(b []byte) ([]rtcp.Packet, bool, error) {
	var h rtcp.Header
	if err := h.Unmarshal(b); err != nil {
		return nil, false, nil
	}
	if h.Type < rtcp.TypeSenderReport || h.Type > rtcp.TypePayloadSpecificFeedback {
		return nil, false, nil
	}

	pkts, err := rtcp.Unmarshal(b)
	if err != nil {
		return nil, true, errors.Wrapf(err, "rtcp %v %vB", h.Type, len(b))
	}
	return pkts, true, nil
}

// replayPcap pushes the RTP payloads captured in a pcapng file through a call leg, each
// frame encrypted by the master and verified by the slave.
func replayPcap(ctx context.Context, filename string, algorithm h235.AlgorithmID, group string) error {
	ctx = logger.WithContext(ctx)

	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "open pcap %v", filename)
	}
	defer f.Close()

	return replayFrom(ctx, f, algorithm, group)
}

func replayFrom(ctx context.Context, f io.Reader, algorithm h235.AlgorithmID, group string) error {
	r, err := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if err != nil {
		return errors.Wrapf(err, "new reader")
	}

	leg, err := newCallLeg(ctx, algorithm, group, zeroIV)
	if err != nil {
		return errors.Wrapf(err, "new call leg")
	}
	defer leg.Close()

	gStatH235.update(func(v *statH235) {
		v.Legs.Expect++
		v.Legs.Alive++
	})
	defer gStatH235.update(func(v *statH235) {
		v.Legs.Alive--
	})

	var packetNumber, frames, failures uint64
	var starttime time.Time
	source := gopacket.NewPacketSource(r, r.LinkType())
	for packet := range source.Packets() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		packetNumber++

		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok {
			continue
		}

		// RTCP is not encrypted by the media session, count it and skip.
		if pkts, ok, err := parseRTCP(udp.Payload); ok {
			if err != nil {
				logger.Wf(ctx, "#%v UDP %v=>%v ignore err %+v",
					packetNumber, uint16(udp.SrcPort), uint16(udp.DstPort), err)
			}
			gStatH235.update(func(v *statH235) {
				v.RTCP += len(pkts)
			})
			continue
		}

		frame := &rtp.Packet{}
		if len(udp.Payload) < 12 {
			continue
		}
		if err := frame.Unmarshal(append([]byte(nil), udp.Payload...)); err != nil || frame.Version != 2 {
			continue
		}
		expect := append([]byte(nil), frame.Payload...)

		if frames == 0 {
			starttime = packet.Metadata().CaptureInfo.Timestamp
		}
		frames++

		if err := leg.master.WriteFrame(frame); err != nil {
			return errors.Wrapf(err, "write frame #%v", packetNumber)
		}
		b, err := h235.MarshalFrame(frame)
		if err != nil {
			return errors.Wrapf(err, "marshal frame #%v", packetNumber)
		}

		gStatH235.update(func(v *statH235) {
			v.Frames.Sent++
			v.Frames.Received++
			if frame.Padding {
				v.Frames.Padded++
			}
		})

		if err := leg.verify(b, expect); err != nil {
			failures++
			gStatH235.update(func(v *statH235) {
				v.Failures++
			})
			logger.Wf(ctx, "#%v UDP %v=>%v verify err %+v",
				packetNumber, uint16(udp.SrcPort), uint16(udp.DstPort), err)
			continue
		}

		gStatH235.update(func(v *statH235) {
			v.Frames.Verified++
		})
	}

	logger.Tf(ctx, "replay %v packets, %v frames, %v failures, since %v",
		packetNumber, frames, failures, starttime.Format("15:04:05.000"))
	if failures > 0 {
		return errors.Errorf("%v of %v frames failed", failures, frames)
	}
	return nil
}
