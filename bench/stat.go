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
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ossrs/go-oryx-lib/logger"
)

type statH235 struct {
	lock sync.Mutex

	RunID     string `json:"rid"`
	Algorithm string `json:"algorithm"`
	Group     string `json:"dh"`
	Legs      struct {
		Expect int `json:"expect"`
		Alive  int `json:"alive"`
	} `json:"legs"`
	Frames struct {
		Sent     int `json:"sent"`
		Received int `json:"received"`
		Verified int `json:"verified"`
		Padded   int `json:"padded"`
	} `json:"frames"`
	// RTCP packets seen in a replay, passed through unencrypted.
	RTCP     int `json:"rtcp"`
	Failures int `json:"failures"`
}

var gStatH235 = newStatH235()

func newStatH235() *statH235 {
	return &statH235{RunID: uuid.NewString()}
}

func (v *statH235) update(fn func(v *statH235)) {
	v.lock.Lock()
	defer v.lock.Unlock()
	fn(v)
}

// snapshot returns the json of the current stat.
func (v *statH235) snapshot() ([]byte, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	return json.Marshal(&struct {
		Code int       `json:"code"`
		Data *statH235 `json:"data"`
	}{
		0, v,
	})
}

func handleStat(ctx context.Context, mux *http.ServeMux, l string) {
	if strings.HasPrefix(l, ":") {
		l = "127.0.0.1" + l
	}

	logger.Tf(ctx, "Handle http://%v/api/v1/h235/stat", l)
	mux.HandleFunc("/api/v1/h235/stat", func(w http.ResponseWriter, r *http.Request) {
		b, err := gStatH235.snapshot()
		if err != nil {
			logger.Wf(ctx, "marshal stat err %+v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	})
}
