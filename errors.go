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

import "errors"

// Sentinel errors. Wrapped with additional context via fmt.Errorf("...: %w", ...)
// so callers can still errors.Is against these.
var (
	// ErrInvalidArgument is returned when a constructor parameter is out of range.
	ErrInvalidArgument = errors.New("xorfilter: invalid argument")

	// ErrBuildFailure is returned when the static builder exhausts its
	// retry-and-growth budget without a successful peel.
	ErrBuildFailure = errors.New("xorfilter: build exhausted retry budget")

	// ErrInvalidFormat is returned when a loaded file does not start with
	// the expected magic bytes.
	ErrInvalidFormat = errors.New("xorfilter: invalid file format")

	// ErrUnsupportedVersion is returned when a loaded file declares a
	// format version this implementation does not know how to decode.
	ErrUnsupportedVersion = errors.New("xorfilter: unsupported format version")

	// ErrCorruptData is returned when a loaded file is truncated, has a
	// malformed blob, or fails its integrity checksum.
	ErrCorruptData = errors.New("xorfilter: corrupt data")
)
