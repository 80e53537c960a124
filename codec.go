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
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Binary format (spec.md section 6, little-endian throughout):
//
//	magic                 4B    "XORF"
//	format_version        u4    1
//	seed                  u8
//	fingerprint_bits      u1
//	table_size (m)        u8
//	table[m]              m*u2
//	keys_blob_len         u8
//	keys_blob             variable
//	pending_adds_len      u8
//	pending_adds_blob     variable
//	pending_removes_len   u8
//	pending_removes_blob  variable
//	checksum              u8    xxhash64 of everything preceding it
//
// The checksum trailer is an addition beyond spec.md's literal table
// (see SPEC_FULL.md section 10): it gives Load a cheap way to detect
// truncation or bit rot and return ErrCorruptData before trusting the
// decoded fields, using the xxhash dependency the teacher's filters
// package already carries for a different purpose.
var magic = [4]byte{'X', 'O', 'R', 'F'}

const formatVersion uint32 = 1

// Save writes the filter's current snapshot and overlay verbatim to
// path. Does not rebuild; the overlay is persisted as-is.
func (f *Filter) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err := f.EncodeTo(w); err != nil {
		return err
	}
	return w.Flush()
}

// Load reconstructs a filter from a file written by Save. The loaded
// filter's overlay is restored exactly as persisted; no rebuild occurs.
func Load(path string, opts ...Option) (*Filter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return DecodeFrom(bufio.NewReader(file), opts...)
}

// EncodeTo writes the filter's current snapshot and overlay to w using
// the binary format documented above.
func (f *Filter) EncodeTo(w io.Writer) error {
	s := f.snap.Load()
	ov := f.overlay.Load()

	var buf bytes.Buffer
	buf.Write(magic[:])
	writeU32(&buf, formatVersion)
	writeU64(&buf, s.seed)
	buf.WriteByte(s.bits)
	writeU64(&buf, uint64(s.m))
	for _, slot := range s.table {
		writeU16(&buf, slot)
	}
	writeKeyBlob(&buf, s.keys)
	writeKeyBlob(&buf, ov.adds)
	writeKeyBlob(&buf, ov.removes)

	sum := xxhash.Sum64(buf.Bytes())
	writeU64(&buf, sum)

	_, err := w.Write(buf.Bytes())
	return err
}

// DecodeFrom reconstructs a filter from r using the binary format
// documented above, verifying the trailing checksum before trusting any
// decoded field.
func DecodeFrom(r io.Reader, opts ...Option) (*Filter, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw) < len(magic)+8 {
		return nil, fmt.Errorf("%w: truncated header", ErrCorruptData)
	}

	body, wantSum := raw[:len(raw)-8], raw[len(raw)-8:]
	gotSum := xxhash.Sum64(body)
	if binary.LittleEndian.Uint64(wantSum) != gotSum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptData)
	}

	br := bytes.NewReader(body)

	var gotMagic [4]byte
	if _, err := io.ReadFull(br, gotMagic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	if gotMagic != magic {
		return nil, ErrInvalidFormat
	}

	version, err := readU32(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	seed, err := readU64(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	bits, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	if bits < 4 || bits > 16 {
		return nil, fmt.Errorf("%w: fingerprint_bits out of range: %d", ErrCorruptData, bits)
	}
	m, err := readU64(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	if m > 1<<32 {
		return nil, fmt.Errorf("%w: table size out of range: %d", ErrCorruptData, m)
	}

	table := make([]uint16, m)
	for i := range table {
		slot, err := readU16(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
		}
		table[i] = slot
	}

	keys, err := readKeyBlob(br)
	if err != nil {
		return nil, err
	}
	adds, err := readKeyBlob(br)
	if err != nil {
		return nil, err
	}
	removes, err := readKeyBlob(br)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &Filter{cfg: cfg}
	f.snap.Store(&snapshot{
		seed:  seed,
		bits:  bits,
		mask:  uint32(1<<bits - 1),
		m:     uint32(m),
		table: table,
		keys:  keys,
	})
	f.overlay.Store(&overlay{adds: adds, removes: removes})
	return f, nil
}

// writeKeyBlob writes a length-prefixed blob: u64 byte-length of what
// follows, then a u8 count and count repetitions of (u8 length, bytes) —
// spec.md section 6's recommended interoperable blob schema.
func writeKeyBlob(buf *bytes.Buffer, keys map[string]struct{}) {
	var body bytes.Buffer
	// Spec's blob schema caps count at a single byte; split larger sets
	// across multiple count-prefixed groups within the same blob so the
	// on-disk format still round-trips for key sets above 255 entries.
	keyList := make([]string, 0, len(keys))
	for k := range keys {
		keyList = append(keyList, k)
	}
	for i := 0; i < len(keyList); i += 255 {
		end := i + 255
		if end > len(keyList) {
			end = len(keyList)
		}
		group := keyList[i:end]
		body.WriteByte(byte(len(group)))
		for _, k := range group {
			body.WriteByte(byte(len(k)))
			body.WriteString(k)
		}
	}
	if len(keyList) == 0 {
		body.WriteByte(0)
	}

	writeU64(buf, uint64(body.Len()))
	buf.Write(body.Bytes())
}

// readKeyBlob reads the inverse of writeKeyBlob: a u64 blob length,
// then exactly that many bytes, parsed as one or more
// (u8 count, count*(u8 length, bytes)) groups.
func readKeyBlob(r *bytes.Reader) (map[string]struct{}, error) {
	blobLen, err := readU64(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	body := make([]byte, blobLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}

	out := map[string]struct{}{}
	pos := 0
	for pos < len(body) {
		count := int(body[pos])
		pos++
		for i := 0; i < count; i++ {
			if pos >= len(body) {
				return nil, fmt.Errorf("%w: truncated key blob", ErrCorruptData)
			}
			length := int(body[pos])
			pos++
			if pos+length > len(body) {
				return nil, fmt.Errorf("%w: truncated key blob", ErrCorruptData)
			}
			out[string(body[pos:pos+length])] = struct{}{}
			pos += length
		}
	}
	return out, nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
