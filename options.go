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

// config holds the construction-time parameters a Filter is built or
// rebuilt with (bits, loadFactor and seed apply to every build and
// rebuild; autoRebuild is consulted after every mutation; initialStats
// is filled by the initial build only).
type config struct {
	bits         uint8
	loadFactor   float64
	autoRebuild  bool
	seed         *uint64
	initialStats *BuildStats
}

func defaultConfig() config {
	return config{
		bits:        8,
		loadFactor:  DefaultLoadFactor,
		autoRebuild: true,
	}
}

// Option configures a Filter at construction time. Grounded on the
// teacher's functional-option constructors (bloom_filter_builder.go's
// BloomFilterOption / WithSeed).
type Option func(*config)

// WithFingerprintBits sets the fingerprint width in [4, 16]. Default 8.
// Governs the filter's false-positive rate (~2^-bits).
func WithFingerprintBits(bits uint8) Option {
	return func(c *config) { c.bits = bits }
}

// WithLoadFactor sets the table-length-to-key-count ratio used on every
// build and rebuild. Default 1.23, the lower bound for reliable peeling.
func WithLoadFactor(l float64) Option {
	return func(c *config) { c.loadFactor = l }
}

// WithAutoRebuild enables or disables the automatic rebuild policy
// (spec.md section 4.4's maybe_rebuild). Default true. When false, the
// overlay only shrinks back into a snapshot via an explicit Compact.
func WithAutoRebuild(enabled bool) Option {
	return func(c *config) { c.autoRebuild = enabled }
}

// WithSeed pins the seed the initial build starts from, instead of
// drawing one from crypto/rand. Rebuilds still retry with fresh seeds
// on peel failure.
func WithSeed(seed uint64) Option {
	return func(c *config) { c.seed = &seed }
}

// WithBuildStats populates stats with the initial build's retry/growth
// bookkeeping. Has no effect on later rebuilds triggered by mutations.
func WithBuildStats(stats *BuildStats) Option {
	return func(c *config) { c.initialStats = stats }
}

func (c config) buildOptions() []buildOption {
	opts := []buildOption{withBits(c.bits), withLoadFactor(c.loadFactor)}
	if c.seed != nil {
		opts = append(opts, withPinnedSeed(*c.seed))
	}
	if c.initialStats != nil {
		opts = append(opts, withBuildStats(c.initialStats))
	}
	return opts
}
