/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package xorfilter implements a dynamic, concurrent-safe approximate
// membership filter: an immutable static XOR filter (3-hypergraph
// peeling) with a pending-add/pending-remove overlay that buffers
// mutations and triggers rebuilds, plus a self-describing binary
// persistence format.
//
// Reads never block: Contains and Size consult atomically-published
// snapshot and overlay references without taking a lock. Writes (Add,
// Remove, AddAll, RemoveAll, Compact) are serialized by a single writer
// mutex and publish their results by swapping those references.
package xorfilter

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Filter is a dynamic XOR filter: an immutable snapshot plus a mutable
// overlay of pending adds/removes. The zero value is not usable; obtain
// a Filter via New or NewFromKeys.
type Filter struct {
	cfg config

	snap    atomic.Pointer[snapshot]
	overlay atomic.Pointer[overlay]

	writerMu sync.Mutex
	compact  singleflight.Group
}

// New creates a filter with an empty base snapshot (spec.md section 6:
// "Constructing with capacity == 0 yields an empty snapshot with no
// build work"). Options configure fingerprint width, load factor, auto
// rebuild, and seed.
func New(opts ...Option) (*Filter, error) {
	return NewFromKeys(nil, opts...)
}

// NewFromKeys creates a filter whose base snapshot is built immediately
// from the supplied keys (any mix of []byte, string, or values rendered
// via their stable textual form).
func NewFromKeys(keys []any, opts ...Option) (*Filter, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bits < 4 || cfg.bits > 16 {
		return nil, fmt.Errorf("%w: fingerprint_bits must be in [4, 16], got %d", ErrInvalidArgument, cfg.bits)
	}
	if cfg.loadFactor <= 1.0 {
		return nil, fmt.Errorf("%w: load factor must be greater than 1.0, got %f", ErrInvalidArgument, cfg.loadFactor)
	}

	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[canonicalKey(k)] = struct{}{}
	}

	var snap *snapshot
	var err error
	if len(keySet) == 0 {
		snap = emptySnapshot(cfg.bits)
	} else {
		snap, err = buildSnapshot(keySet, cfg.buildOptions()...)
		if err != nil {
			return nil, err
		}
	}

	f := &Filter{cfg: cfg}
	f.snap.Store(snap)
	f.overlay.Store(emptyOverlay())
	return f, nil
}

// Contains reports whether value might be in the effective set. Never
// blocks; runs entirely against atomically-read references.
func (f *Filter) Contains(value any) bool {
	key := canonicalKey(value)
	ov := f.overlay.Load()
	s := f.snap.Load()
	return containsKey(ov, s, key)
}

// Size returns the effective set's cardinality: |snapshot.keys| +
// |pending_adds| - |pending_removes|. Lock-free; may be mildly
// inconsistent under a concurrent writer but is always non-negative.
func (f *Filter) Size() int {
	ov := f.overlay.Load()
	s := f.snap.Load()
	return effectiveSize(s, ov)
}

// effectiveSize computes |snapshot.keys| + |pending_adds| - |pending_removes|,
// clamped to zero. A torn read of snap and ov taken on either side of a
// concurrent rebuild's publish (e.g. the old overlay's removes paired with
// the new, already-folded snapshot) can otherwise go negative even though
// neither pairing that ever actually existed would.
func effectiveSize(s *snapshot, ov *overlay) int {
	n := s.size() + len(ov.adds) - len(ov.removes)
	if n < 0 {
		return 0
	}
	return n
}

// Stats reports the filter's current shape: table capacity, fingerprint
// width, effective size, and how much is buffered in the overlay.
// Mirrors the teacher's Capacity/NumHashes/Seed/BitsUsed state-query
// quartet, generalized to the dynamic overlay.
type Stats struct {
	Capacity       uint32
	Bits           uint8
	EffectiveSize  int
	PendingAdds    int
	PendingRemoves int
	LoadFactor     float64
}

// Stats returns a snapshot of the filter's current shape.
func (f *Filter) Stats() Stats {
	ov := f.overlay.Load()
	s := f.snap.Load()
	return Stats{
		Capacity:       s.m,
		Bits:           s.bits,
		EffectiveSize:  effectiveSize(s, ov),
		PendingAdds:    len(ov.adds),
		PendingRemoves: len(ov.removes),
		LoadFactor:     f.cfg.loadFactor,
	}
}

// Add inserts value into the effective set. Returns true iff value was
// newly recorded as a pending add (spec.md section 4.4's add contract).
// Re-adding a base-snapshot key whose removal is pending cancels that
// removal and returns false.
func (f *Filter) Add(value any) bool {
	return f.addKey(canonicalKey(value))
}

// Remove deletes value from the effective set. Returns true iff the
// effective set changed.
func (f *Filter) Remove(value any) bool {
	return f.removeKey(canonicalKey(value))
}

// AddAll inserts every value in values, applying the same per-key
// decisions as Add but publishing a single overlay update and running
// the rebuild policy once at the end.
func (f *Filter) AddAll(values []any) {
	f.writerMu.Lock()
	defer f.writerMu.Unlock()

	base := f.snap.Load()
	start := f.overlay.Load()
	cur := start
	for _, v := range values {
		cur, _ = applyAdd(base, cur, canonicalKey(v))
	}
	if cur != start {
		f.overlay.Store(cur)
	}
	f.maybeRebuildLocked()
}

// RemoveAll deletes every value in values, applying the same per-key
// decisions as Remove but publishing a single overlay update and running
// the rebuild policy once at the end.
func (f *Filter) RemoveAll(values []any) {
	f.writerMu.Lock()
	defer f.writerMu.Unlock()

	base := f.snap.Load()
	cur := f.overlay.Load()
	changed := false
	for _, v := range values {
		var didChange bool
		cur, didChange = applyRemove(base, cur, canonicalKey(v))
		changed = changed || didChange
	}
	if changed {
		f.overlay.Store(cur)
	}
	f.maybeRebuildLocked()
}

func (f *Filter) addKey(key string) bool {
	f.writerMu.Lock()
	defer f.writerMu.Unlock()

	base := f.snap.Load()
	cur := f.overlay.Load()
	next, changed := applyAdd(base, cur, key)
	if next != cur {
		f.overlay.Store(next)
	}
	f.maybeRebuildLocked()
	return changed
}

func (f *Filter) removeKey(key string) bool {
	f.writerMu.Lock()
	defer f.writerMu.Unlock()

	base := f.snap.Load()
	cur := f.overlay.Load()
	next, changed := applyRemove(base, cur, key)
	if next != cur {
		f.overlay.Store(next)
	}
	f.maybeRebuildLocked()
	return changed
}

// Compact forces an immediate rebuild regardless of the auto-rebuild
// threshold (spec.md section 4.4's compact!). Concurrent callers share
// one in-flight rebuild via singleflight rather than each queuing a
// redundant rebuild behind the writer mutex.
func (f *Filter) Compact() error {
	_, err, _ := f.compact.Do("compact", func() (any, error) {
		f.writerMu.Lock()
		defer f.writerMu.Unlock()
		return nil, f.rebuildLocked()
	})
	return err
}

// maybeRebuildLocked implements spec.md section 4.4's rebuild policy.
// Caller must hold writerMu.
func (f *Filter) maybeRebuildLocked() {
	if !f.cfg.autoRebuild {
		return
	}
	base := f.snap.Load()
	ov := f.overlay.Load()
	if ov.pendingCount() >= rebuildThreshold(base.size()) {
		_ = f.rebuildLocked()
	}
}

// rebuildLocked folds the overlay into a fresh snapshot and publishes it.
// Per spec.md section 4.4/5: the new snapshot is published *before* the
// overlay is cleared, so a reader that observes the cleared overlay
// necessarily also observes the new snapshot (atomic.Pointer's Store and
// Load provide the required release/acquire ordering). Caller must hold
// writerMu.
func (f *Filter) rebuildLocked() error {
	base := f.snap.Load()
	ov := f.overlay.Load()
	if ov.pendingCount() == 0 {
		return nil
	}

	newKeys := effectiveKeys(base, ov)
	var snap *snapshot
	var err error
	if len(newKeys) == 0 {
		snap = emptySnapshot(f.cfg.bits)
	} else {
		cfg := f.cfg
		cfg.initialStats = nil
		snap, err = buildSnapshot(newKeys, cfg.buildOptions()...)
		if err != nil {
			return err
		}
	}

	f.snap.Store(snap)
	f.overlay.Store(emptyOverlay())
	return nil
}
