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
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/ossrs/go-oryx-lib/logger"
)

// loadEnvFile loads the environment variables from the .env file in the work dir.
func loadEnvFile(ctx context.Context) error {
	workDir, err := os.Getwd()
	if err != nil {
		return errors.Wrapf(err, "getpwd")
	}

	envFile := path.Join(workDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Overload(envFile); err != nil {
			return errors.Wrapf(err, "load %v", envFile)
		}
		logger.Tf(ctx, "load env from %v", envFile)
	}

	return nil
}

func setupDefaultEnv(ctx context.Context) {
	// The media cipher, aes128, aes192, aes256 or an OID.
	setEnvDefault("H235_ALG", "aes128")
	// The key agreement, dh1024, dh1536, dh2048 or x25519.
	setEnvDefault("H235_DH", "dh1024")
	// The number of call legs.
	setEnvDefault("H235_LEGS", "1")
	// The start delay in ms for each call leg.
	setEnvDefault("H235_DELAY", "50")
	// The frames to send for each call leg.
	setEnvDefault("H235_PACKETS", "100")
	// The max payload of a frame in bytes.
	setEnvDefault("H235_SIZE", "160")
	// The interval in ms between frames.
	setEnvDefault("H235_INTERVAL", "20")
	// Whether use the all zero IV of older endpoints.
	setEnvDefault("H235_ZERO_IV", "off")
	// Force to exit when the legs do not stop in time after a signal.
	setEnvDefault("H235_FORCE_QUIT_TIMEOUT", "10s")

	logger.Tf(ctx, "load env as H235_ALG=%v, H235_DH=%v, H235_LEGS=%v, H235_DELAY=%v, "+
		"H235_PACKETS=%v, H235_SIZE=%v, H235_INTERVAL=%v, H235_ZERO_IV=%v, H235_STAT=%v, H235_PCAP=%v, "+
		"H235_FORCE_QUIT_TIMEOUT=%v",
		envAlgorithm(), envGroup(), envLegs(), envDelay(),
		envPackets(), envSize(), envInterval(), envZeroIV(), envStat(), envPcap(),
		envForceQuitTimeout(),
	)
}

func envAlgorithm() string {
	return os.Getenv("H235_ALG")
}

func envGroup() string {
	return os.Getenv("H235_DH")
}

func envLegs() int {
	return envInt("H235_LEGS")
}

func envDelay() int {
	return envInt("H235_DELAY")
}

func envPackets() int {
	return envInt("H235_PACKETS")
}

func envSize() int {
	return envInt("H235_SIZE")
}

func envInterval() int {
	return envInt("H235_INTERVAL")
}

func envZeroIV() bool {
	switch strings.ToLower(os.Getenv("H235_ZERO_IV")) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func envStat() string {
	return os.Getenv("H235_STAT")
}

func envPcap() string {
	return os.Getenv("H235_PCAP")
}

// envForceQuitTimeout returns 0 when the env is not a duration, which checkFlags rejects.
func envForceQuitTimeout() time.Duration {
	d, _ := time.ParseDuration(os.Getenv("H235_FORCE_QUIT_TIMEOUT"))
	return d
}

// envInt returns the env as an int, 0 when unset or invalid.
func envInt(key string) int {
	v, _ := strconv.Atoi(os.Getenv(key))
	return v
}

// setEnvDefault set env key=value if not set.
func setEnvDefault(key, value string) {
	if os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}
