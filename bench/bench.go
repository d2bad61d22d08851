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
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kenlab-chung/h323plus/dh"
	"github.com/kenlab-chung/h323plus/h235"
	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/ossrs/go-oryx-lib/logger"
)

var algorithmName, group string

var legs, delay int

var packets, size, interval int

var zeroIV bool

var statListen, pcapFile string

var forceQuit time.Duration

// Parse loads the .env defaults and the flags, and exits when they are invalid.
func Parse(ctx context.Context) {
	if err := loadEnvFile(ctx); err != nil {
		logger.Ef(ctx, "Load env err %+v", err)
		os.Exit(-1)
	}
	setupDefaultEnv(ctx)

	fl := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	bindFlags(fl)

	fl.Usage = func() {
		fmt.Println(fmt.Sprintf("Usage: %v [Options]", os.Args[0]))
		fmt.Println(fmt.Sprintf("Options:"))
		fmt.Println(fmt.Sprintf("   -alg      The media cipher, aes128, aes192, aes256 or the OID. Default: %v", envAlgorithm()))
		fmt.Println(fmt.Sprintf("   -dh       The key agreement, dh1024, dh1536, dh2048 or x25519. Default: %v", envGroup()))
		fmt.Println(fmt.Sprintf("   -nn       The number of call legs to simulate. Default: %v", envLegs()))
		fmt.Println(fmt.Sprintf("   -delay    The start delay in ms for each call leg. Default: %v", envDelay()))
		fmt.Println(fmt.Sprintf("   -stat     [Optional] The stat server API listen port."))
		fmt.Println(fmt.Sprintf("   -force-quit [Optional] The time to stop after a signal, then force to exit. Default: %v", envForceQuitTimeout()))
		fmt.Println(fmt.Sprintf("Loopback:"))
		fmt.Println(fmt.Sprintf("   -packets  The frames to send for each call leg. Default: %v", envPackets()))
		fmt.Println(fmt.Sprintf("   -size     The max payload of a frame in bytes. Default: %v", envSize()))
		fmt.Println(fmt.Sprintf("   -interval The interval in ms between frames. Default: %v", envInterval()))
		fmt.Println(fmt.Sprintf("   -zero-iv  [Optional] Whether use the all zero IV of older endpoints. Default: %v", envZeroIV()))
		fmt.Println(fmt.Sprintf("Replay:"))
		fmt.Println(fmt.Sprintf("   -f        [Optional] The pcapng file to replay RTP from, like ./t.pcapng"))
		fmt.Println(fmt.Sprintf("\nFor example, 1 call leg with AES-128 and DH1024:"))
		fmt.Println(fmt.Sprintf("   %v -alg aes128 -dh dh1024", os.Args[0]))
		fmt.Println(fmt.Sprintf("\nFor example, 10 call legs with AES-256 and X25519, stat at 8080:"))
		fmt.Println(fmt.Sprintf("   %v -alg aes256 -dh x25519 -nn 10 -stat 8080", os.Args[0]))
		fmt.Println(fmt.Sprintf("\nFor example, replay a capture:"))
		fmt.Println(fmt.Sprintf("   %v -f ./t.pcapng", os.Args[0]))
		fmt.Println()
	}
	if err := fl.Parse(os.Args[1:]); err != nil {
		os.Exit(-1)
	}

	if err := checkFlags(); err != nil {
		logger.Ef(ctx, "Check flags err %+v", err)
		fl.Usage()
		os.Exit(-1)
	}

	if statListen != "" && !strings.Contains(statListen, ":") {
		statListen = ":" + statListen
	}

	logger.Tf(ctx, "Run benchmark with alg=%v, dh=%v, legs=%v, delay=%v, packets=%v, size=%v, interval=%v, "+
		"zero-iv=%v, stat=%v, pcap=%v, force-quit=%v",
		algorithmName, group, legs, delay, packets, size, interval, zeroIV, statListen, pcapFile, forceQuit)
}

func bindFlags(fl *flag.FlagSet) {
	fl.StringVar(&algorithmName, "alg", envAlgorithm(), "")
	fl.StringVar(&group, "dh", envGroup(), "")

	fl.IntVar(&legs, "nn", envLegs(), "")
	fl.IntVar(&delay, "delay", envDelay(), "")

	fl.IntVar(&packets, "packets", envPackets(), "")
	fl.IntVar(&size, "size", envSize(), "")
	fl.IntVar(&interval, "interval", envInterval(), "")
	fl.BoolVar(&zeroIV, "zero-iv", envZeroIV(), "")

	fl.StringVar(&statListen, "stat", envStat(), "")
	fl.StringVar(&pcapFile, "f", envPcap(), "")

	fl.DurationVar(&forceQuit, "force-quit", envForceQuitTimeout(), "")
}

func checkFlags() error {
	if forceQuit <= 0 {
		return errors.Errorf("Force quit timeout should >0, actual %v", forceQuit)
	}

	if _, err := h235.ParseAlgorithm(algorithmName); err != nil {
		return errors.Wrapf(err, "alg")
	}

	switch strings.ToLower(group) {
	case dh.DH1024.Name, dh.DH1536.Name, dh.DH2048.Name, "x25519":
	default:
		return errors.Wrapf(dh.ErrUnknownGroup, "dh %v", group)
	}

	if pcapFile != "" {
		return nil
	}

	if legs <= 0 || packets <= 0 {
		return errors.Errorf("Should >0, legs=%v, packets=%v", legs, packets)
	}
	if size <= 0 || size > rtpMTU-12 {
		return errors.Errorf("Size should in (0, %v], actual %v", rtpMTU-12, size)
	}
	if interval < 0 || delay < 0 {
		return errors.Errorf("Should >=0, interval=%v, delay=%v", interval, delay)
	}
	return nil
}

// Run starts the stat server and all call legs, or replays the pcap file, and returns
// when they are done. It fails when any frame did not verify.
func Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runDone := make(chan struct{})
	defer close(runDone)

	// Once cancelled, the legs get forceQuit to stop or the process exits.
	go func() {
		select {
		case <-runDone:
			return
		case <-ctx.Done():
		}

		select {
		case <-runDone:
		case <-time.After(forceQuit):
			logger.Wf(ctx, "Force to exit by timeout %v", forceQuit)
			os.Exit(1)
		}
	}()

	algorithm, err := h235.ParseAlgorithm(algorithmName)
	if err != nil {
		return errors.Wrapf(err, "parse %v", algorithmName)
	}

	gStatH235.update(func(v *statH235) {
		v.Algorithm, v.Group = algorithm.String(), group
	})

	// Run tasks.
	var wg sync.WaitGroup

	// Run STAT API server.
	statDone := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()

		if statListen == "" {
			return
		}

		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", statListen)
		if err != nil {
			logger.Ef(ctx, "stat listen err+%v", err)
			cancel()
			return
		}

		mux := http.NewServeMux()
		handleStat(ctx, mux, statListen)

		srv := &http.Server{
			Handler: mux,
			BaseContext: func(listener net.Listener) context.Context {
				return ctx
			},
		}

		go func() {
			select {
			case <-ctx.Done():
			case <-statDone:
			}
			srv.Shutdown(context.Background())
		}()

		logger.Tf(ctx, "Stat listen at %v", statListen)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			if ctx.Err() == nil {
				logger.Ef(ctx, "stat serve err+%v", err)
				cancel()
			}
			return
		}
	}()

	// Replay the capture, or run all call legs.
	var replayErr error
	if pcapFile != "" {
		replayErr = replayPcap(ctx, pcapFile, algorithm, group)
	}

	var legsWG sync.WaitGroup
	for i := 0; pcapFile == "" && i < legs && ctx.Err() == nil; i++ {
		gStatH235.update(func(v *statH235) {
			v.Legs.Expect++
			v.Legs.Alive++
		})

		legsWG.Add(1)
		go func() {
			defer legsWG.Done()
			defer gStatH235.update(func(v *statH235) {
				v.Legs.Alive--
			})

			if err := startCall(ctx, algorithm, group); err != nil {
				if errors.Cause(err) != context.Canceled {
					gStatH235.update(func(v *statH235) {
						v.Failures++
					})
					logger.Wf(ctx, "Run err %+v", err)
				}
			}
		}()

		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(delay) * time.Millisecond):
		}
	}
	legsWG.Wait()

	close(statDone)
	wg.Wait()

	var failures int
	gStatH235.update(func(v *statH235) {
		failures = v.Failures
		logger.Tf(ctx, "Done, rid=%v, legs=%v, sent=%v, received=%v, verified=%v, padded=%v, rtcp=%v, failures=%v",
			v.RunID, v.Legs.Expect, v.Frames.Sent, v.Frames.Received, v.Frames.Verified, v.Frames.Padded,
			v.RTCP, v.Failures)
	})
	if replayErr != nil {
		return errors.Wrapf(replayErr, "replay %v", pcapFile)
	}
	if failures > 0 {
		return errors.Errorf("%v failures", failures)
	}
	return nil
}
