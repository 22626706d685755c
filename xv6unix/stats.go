// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xv6unix

import (
	"fmt"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

const maxSamples = 1 << 16

// schedstats records dispatch latency: the time from a process
// becoming RUNNABLE to a scheduler putting it on a CPU. Recording
// happens under the process lock in the scheduler, so this uses a
// plain mutex of its own rather than joining the kernel's lock
// order.
type schedstats struct {
	mu   sync.Mutex
	lats []time.Duration
}

func (st *schedstats) dispatch(d time.Duration) {
	st.mu.Lock()
	if len(st.lats) < maxSamples {
		st.lats = append(st.lats, d)
	}
	st.mu.Unlock()
}

// A SchedSummary describes the dispatch latency distribution, in
// milliseconds.
type SchedSummary struct {
	N      int
	Mean   float64
	Median float64
	P90    float64
	P99    float64
	Max    float64
}

func (s SchedSummary) String() string {
	return fmt.Sprintf("dispatches %d mean %.3fms median %.3fms 90%% %.3fms 99%% %.3fms max %.3fms",
		s.N, s.Mean, s.Median, s.P90, s.P99, s.Max)
}

// SchedStats summarizes dispatch latency since boot.
func (sys *System) SchedStats() (SchedSummary, error) {
	st := sys.stats
	st.mu.Lock()
	data := make([]float64, len(st.lats))
	for i, l := range st.lats {
		data[i] = float64(l.Microseconds()) / 1000.0
	}
	st.mu.Unlock()

	if len(data) == 0 {
		return SchedSummary{}, errors.New("no dispatches recorded")
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return SchedSummary{}, errors.Wrap(err, "mean")
	}
	median, err := stats.Percentile(data, 50)
	if err != nil {
		return SchedSummary{}, errors.Wrap(err, "percentile 50")
	}
	p90, err := stats.Percentile(data, 90)
	if err != nil {
		return SchedSummary{}, errors.Wrap(err, "percentile 90")
	}
	p99, err := stats.Percentile(data, 99)
	if err != nil {
		return SchedSummary{}, errors.Wrap(err, "percentile 99")
	}
	max, err := stats.Max(data)
	if err != nil {
		return SchedSummary{}, errors.Wrap(err, "max")
	}
	return SchedSummary{
		N:      len(data),
		Mean:   mean,
		Median: median,
		P90:    p90,
		P99:    p99,
		Max:    max,
	}, nil
}
