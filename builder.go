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

package xorfilter

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dynxor/xorfilter/internal"
)

// DefaultLoadFactor is the table-length-to-key-count ratio used when the
// caller does not request one explicitly. 1.23 is the lower bound at
// which 3-hypergraph peeling succeeds with high probability.
const DefaultLoadFactor = 1.23

// seedsPerRound is the number of fresh random seeds tried at a given
// table size before growing it (spec.md section 4.2: "try up to 10 fresh
// random seeds at the current m").
const seedsPerRound = 10

// maxGrowthRounds bounds the builder's retry loop so a build can never
// spin forever; exceeding it surfaces ErrBuildFailure. In practice a
// handful of rounds suffice at the default load factor.
const maxGrowthRounds = 1000

// BuildStats reports what the static builder had to do to succeed:
// how many seeds it tried in total, how many times it grew the table,
// and the final table length. Populated by buildSnapshot when a non-nil
// *BuildStats is supplied via withBuildStats.
type BuildStats struct {
	SeedsTried   int
	GrowthRounds int
	FinalM       uint32
}

type buildOptions struct {
	bits       uint8
	loadFactor float64
	seed       *uint64
	stats      *BuildStats
}

// buildOption configures a single static build invocation. Unexported:
// the builder is plumbing behind Filter's public Option set (options.go),
// not a separate surface a caller configures directly.
type buildOption func(*buildOptions)

// withBits sets the fingerprint width in [4, 16]. Default 8.
func withBits(bits uint8) buildOption {
	return func(o *buildOptions) { o.bits = bits }
}

// withLoadFactor sets the table-length-to-key-count ratio. Default 1.23.
func withLoadFactor(l float64) buildOption {
	return func(o *buildOptions) { o.loadFactor = l }
}

// withPinnedSeed pins the first seed the builder tries, instead of
// drawing one at random. Retries after a peel failure still draw fresh
// seeds.
func withPinnedSeed(seed uint64) buildOption {
	return func(o *buildOptions) { o.seed = &seed }
}

// withBuildStats populates stats with the builder's retry/growth
// bookkeeping once the build completes.
func withBuildStats(stats *BuildStats) buildOption {
	return func(o *buildOptions) { o.stats = stats }
}

func defaultBuildOptions() buildOptions {
	return buildOptions{bits: 8, loadFactor: DefaultLoadFactor}
}

func randomSeed() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("xorfilter: failed to generate random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// buildSnapshot runs the peeling construction algorithm (spec.md section
// 4.2) over keys and returns the resulting immutable snapshot. keys is
// consumed read-only; the returned snapshot owns a fresh copy of the set.
func buildSnapshot(keys map[string]struct{}, opts ...buildOption) (*snapshot, error) {
	o := defaultBuildOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.bits < 4 || o.bits > 16 {
		return nil, fmt.Errorf("%w: fingerprint_bits must be in [4, 16], got %d", ErrInvalidArgument, o.bits)
	}
	if o.loadFactor <= 1.0 {
		return nil, fmt.Errorf("%w: load factor must be greater than 1.0, got %f", ErrInvalidArgument, o.loadFactor)
	}

	keySet := make(map[string]struct{}, len(keys))
	for k := range keys {
		keySet[k] = struct{}{}
	}

	n := len(keySet)
	mask := uint32((1 << o.bits) - 1)
	if n == 0 {
		return &snapshot{bits: o.bits, mask: mask, keys: keySet}, nil
	}

	keyBytes := make([][]byte, 0, n)
	for k := range keySet {
		keyBytes = append(keyBytes, []byte(k))
	}

	m := uint32(math.Max(1, math.Ceil(float64(n)*o.loadFactor)))

	seed, err := nextSeed(o.seed)
	if err != nil {
		return nil, err
	}

	seedsTried := 0
	growthRounds := 0
	for {
		for attempt := 0; attempt < seedsPerRound; attempt++ {
			seedsTried++
			table, order, ok := peel(keyBytes, seed, m)
			if ok {
				assign(table, order, keyBytes, seed, mask)
				if o.stats != nil {
					o.stats.SeedsTried = seedsTried
					o.stats.GrowthRounds = growthRounds
					o.stats.FinalM = m
				}
				return &snapshot{
					seed:  seed,
					bits:  o.bits,
					mask:  mask,
					m:     m,
					table: table,
					keys:  keySet,
				}, nil
			}
			seed, err = randomSeed()
			if err != nil {
				return nil, err
			}
		}
		growthRounds++
		if growthRounds > maxGrowthRounds {
			return nil, fmt.Errorf("%w: exceeded %d growth rounds at n=%d", ErrBuildFailure, maxGrowthRounds, n)
		}
		m = uint32(math.Ceil(float64(m) * 1.1))
	}
}

func nextSeed(pinned *uint64) (uint64, error) {
	if pinned != nil {
		return *pinned, nil
	}
	return randomSeed()
}

// peelEdge is a recorded (edge key index, vertex) pair from the peel log,
// in the order vertices were peeled.
type peelEdge struct {
	keyIdx int
	vertex uint32
}

// peel runs one attempt of the 3-hypergraph peeling algorithm (spec.md
// section 4.2, steps 2-6) for the given seed and table length m. It
// returns the zero-valued table (callers assign into it afterwards), the
// peel log in peel order, and whether every key was peeled.
func peel(keys [][]byte, seed uint64, m uint32) (table []uint16, order []peelEdge, ok bool) {
	count := make([]uint32, m)
	xorIdx := make([]uint64, m) // xor of incident key indices, packed so 0 is a safe sentinel via +1 offset

	edgeOf := make([][3]uint32, len(keys))
	for j, k := range keys {
		i0, i1, i2 := internal.Indices(k, seed, m)
		edgeOf[j] = [3]uint32{i0, i1, i2}
		for _, v := range edgeOf[j] {
			count[v]++
			xorIdx[v] ^= uint64(j) + 1
		}
	}

	queue := make([]uint32, 0, m)
	for v := uint32(0); v < m; v++ {
		if count[v] == 1 {
			queue = append(queue, v)
		}
	}

	order = make([]peelEdge, 0, len(keys))
	for len(queue) > 0 {
		v := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if count[v] != 1 {
			continue
		}
		j := int(xorIdx[v]) - 1
		order = append(order, peelEdge{keyIdx: j, vertex: v})
		for _, u := range edgeOf[j] {
			if count[u] == 0 {
				continue
			}
			count[u]--
			xorIdx[u] ^= uint64(j) + 1
			if count[u] == 1 {
				queue = append(queue, u)
			}
		}
		count[v] = 0
	}

	return make([]uint16, m), order, len(order) == len(keys)
}

// assign performs the reverse pass (spec.md section 4.2 "Assignment"):
// walking the peel log back to front, each vertex is given the
// fingerprint its edge needs once its two siblings' slots are known.
func assign(table []uint16, order []peelEdge, keys [][]byte, seed uint64, mask uint32) {
	for i := len(order) - 1; i >= 0; i-- {
		e := order[i]
		key := keys[e.keyIdx]
		i0, i1, i2 := internal.Indices(key, seed, uint32(len(table)))
		f := internal.Fingerprint(key, seed) & mask

		var other1, other2 uint32
		switch e.vertex {
		case i0:
			other1, other2 = i1, i2
		case i1:
			other1, other2 = i0, i2
		default:
			other1, other2 = i0, i1
		}
		table[e.vertex] = uint16(f) ^ table[other1] ^ table[other2]
	}
}
