// Copyright 2019 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package metrics instruments rkv's read and write transactions with
// prometheus histograms, named and shaped after the per-transaction
// key/byte counters a storage layer reports to observe how much work each
// transaction actually did.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector accumulates per-transaction read/write histograms. The zero
// value is not usable; construct one with NewCollector. A nil *Collector is
// safe to call every method on (all become no-ops), so code that takes an
// optional Collector doesn't need an "if metrics != nil" at every call site.
type Collector struct {
	keysReadPerRead  prometheus.Histogram
	bytesReadPerRead prometheus.Histogram

	keysReadPerWrite    prometheus.Histogram
	keysWrittenPerWrite prometheus.Histogram
	keysDeletedPerWrite prometheus.Histogram
	bytesReadPerWrite   prometheus.Histogram
	bytesWrittenPerWrite prometheus.Histogram
}

// NewCollector constructs a Collector with fresh, unregistered histograms.
// Call Register to expose them through a prometheus.Registerer.
func NewCollector() *Collector {
	return &Collector{
		keysReadPerRead:      newHist("rkv_keys_read_per_read_txn", "How many keys were read in a read transaction"),
		bytesReadPerRead:     newHist("rkv_bytes_read_per_read_txn", "How many value bytes were read in a read transaction"),
		keysReadPerWrite:     newHist("rkv_keys_read_per_write_txn", "How many keys were read in a write transaction"),
		keysWrittenPerWrite:  newHist("rkv_keys_written_per_write_txn", "How many keys were written in a write transaction"),
		keysDeletedPerWrite:  newHist("rkv_keys_deleted_per_write_txn", "How many keys were deleted in a write transaction"),
		bytesReadPerWrite:    newHist("rkv_bytes_read_per_write_txn", "How many value bytes were read in a write transaction"),
		bytesWrittenPerWrite: newHist("rkv_bytes_written_per_write_txn", "How many value bytes were written in a write transaction"),
	}
}

func newHist(name, help string) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
}

// Register exposes every histogram through reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	if c == nil {
		return nil
	}
	for _, h := range []prometheus.Histogram{
		c.keysReadPerRead, c.bytesReadPerRead,
		c.keysReadPerWrite, c.keysWrittenPerWrite, c.keysDeletedPerWrite,
		c.bytesReadPerWrite, c.bytesWrittenPerWrite,
	} {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRead reports the totals accumulated over one completed read
// transaction.
func (c *Collector) ObserveRead(keysRead, bytesRead uint64) {
	if c == nil {
		return
	}
	c.keysReadPerRead.Observe(float64(keysRead))
	c.bytesReadPerRead.Observe(float64(bytesRead))
}

// ObserveWrite reports the totals accumulated over one completed write
// transaction.
func (c *Collector) ObserveWrite(keysRead, keysWritten, keysDeleted, bytesRead, bytesWritten uint64) {
	if c == nil {
		return
	}
	c.keysReadPerWrite.Observe(float64(keysRead))
	c.keysWrittenPerWrite.Observe(float64(keysWritten))
	c.keysDeletedPerWrite.Observe(float64(keysDeleted))
	c.bytesReadPerWrite.Observe(float64(bytesRead))
	c.bytesWrittenPerWrite.Observe(float64(bytesWritten))
}
