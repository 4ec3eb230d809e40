// Copyright 2026 The Chainmap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// package chainmap implements a fixed-capacity hash table mapping byte-string
// keys to byte-string values, using separate chaining to handle collisions.
// If you're not familiar with separate chaining see
// https://en.wikipedia.org/wiki/Hash_table#Separate_chaining.
//
// A Map is created with a fixed number of buckets that never changes: there
// is no growth and no rehashing. Each bucket holds a singly-linked chain of
// entries. The bucket for a key is always hash(key) % capacity, so chains
// grow as the load factor rises but lookups remain correct at any load. Keys
// and values are bounded to 65535 bytes each and are always copied on
// insertion, so every entry exclusively owns its buffers and the caller's
// slices may be reused immediately after Put returns. The value slice
// returned by Get is borrowed: it aliases the entry's buffer and becomes
// invalid once that key is deleted or the map is closed.
//
// The default hash function is Robert Sedgewick's RS string hash, a small
// multiplicative hash with good distribution on short keys (see
// http://www.partow.net/programming/hashfunctions/). A different function
// can be specified using the WithHash option. Memory management can be
// observed or replaced through the Allocator interface and the
// WithAllocator option; see CountingAllocator for the diagnostic case.
//
// A Map is NOT goroutine-safe. Concurrent Get calls are fine as long as no
// Put, Delete, or Close runs at the same time; anything more requires
// external synchronization.
package chainmap

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

const (
	// invariants gates the consistency checks performed after every
	// mutation. They traverse the whole table and are far too slow to leave
	// on outside of debugging sessions.
	invariants = false

	// MaxKeyLen and MaxValueLen bound the size of keys and values. Lengths
	// are carried as 16-bit quantities, matching the bound the surrounding
	// application enforces on its payloads.
	MaxKeyLen   = 1<<16 - 1
	MaxValueLen = 1<<16 - 1
)

var (
	// ErrInvalidCapacity is returned by New for a non-positive capacity.
	ErrInvalidCapacity = errors.New("chainmap: capacity must be positive")
	// ErrAllocFailed is returned when the configured Allocator could not
	// satisfy an allocation. No partially-initialized entry is left behind.
	ErrAllocFailed = errors.New("chainmap: allocation failed")
	// ErrClosed is returned by Put on a nil or closed Map.
	ErrClosed = errors.New("chainmap: map is nil or closed")
	// ErrKeyTooLong is returned by Put for keys longer than MaxKeyLen.
	ErrKeyTooLong = errors.New("chainmap: key exceeds MaxKeyLen")
	// ErrValueTooLong is returned by Put for values longer than MaxValueLen.
	ErrValueTooLong = errors.New("chainmap: value exceeds MaxValueLen")
)

// Entry holds a key and value in a bucket chain. Its fields are managed by
// the Map; the type is exported only so that Allocator implementations can
// construct and recycle entries.
type Entry struct {
	// key is sized exactly to the key it was created with and never changes
	// afterwards.
	key []byte
	// value has len equal to the current value length and cap equal to the
	// allocated buffer size. Overwrites reuse the buffer when the new value
	// fits and reallocate when it does not.
	value []byte
	// next links the chain within a bucket. nil at the tail.
	next *Entry
}

// Map is a fixed-capacity hash table from byte-string keys to byte-string
// values with Put, Get, and Delete operations. The capacity is set at New
// and is immutable: the table never grows, shrinks, or rehashes.
//
// A Map is NOT goroutine-safe.
type Map struct {
	// The hash function applied to keys. Defaults to rsHash.
	hash func(key []byte) uint32
	// The allocator used for the bucket slice, entry records, and key/value
	// buffers.
	allocator Allocator
	// buckets has immutable length equal to the capacity. Each element is
	// the head of a chain, or nil for an empty bucket. A nil buckets slice
	// marks a closed map.
	buckets []*Entry
	// The number of distinct keys in the map.
	len int
}

// rsHash is Robert Sedgewick's RS string hash. All arithmetic wraps at 32
// bits. The function is deterministic within a process, which is all the
// table needs: nothing derived from it is persisted or transmitted.
func rsHash(key []byte) uint32 {
	const b uint32 = 378551
	var (
		hash uint32
		a    uint32 = 63689
	)
	for _, c := range key {
		hash = hash*a + uint32(c)
		a *= b
	}
	return hash
}

// New constructs a Map with the specified fixed capacity (bucket count).
// A non-positive capacity is rejected with ErrInvalidCapacity. The zero
// value for a Map is not usable.
func New(capacity int, options ...option) (*Map, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	m := &Map{
		hash:      rsHash,
		allocator: defaultAllocator{},
	}
	for _, op := range options {
		op.apply(m)
	}
	m.buckets = m.allocator.AllocBuckets(capacity)
	if m.buckets == nil {
		return nil, ErrAllocFailed
	}
	return m, nil
}

// Close closes the map, releasing every entry's key buffer, value buffer,
// and entry record back to the configured allocator, followed by the bucket
// slice itself. It is unnecessary to close a map using the default
// allocator. It is invalid to use a Map after it has been closed, though
// Close itself is idempotent and safe on a nil Map.
func (m *Map) Close() {
	if m == nil || m.buckets == nil {
		return
	}
	for i, e := range m.buckets {
		for e != nil {
			next := e.next
			m.freeEntry(e)
			e = next
		}
		m.buckets[i] = nil
	}
	m.allocator.FreeBuckets(m.buckets)
	m.buckets = nil
	m.len = 0
}

// Put inserts an entry into the map, overwriting the value in place if an
// entry with the same key already exists. The key and value bytes are
// copied; the caller's slices are not retained.
func (m *Map) Put(key, value []byte) error {
	if m == nil || m.buckets == nil {
		return ErrClosed
	}
	if len(key) > MaxKeyLen {
		return ErrKeyTooLong
	}
	if len(value) > MaxValueLen {
		return ErrValueTooLong
	}

	i := m.hash(key) % uint32(len(m.buckets))
	// Walk the chain looking for the key, remembering the tail so a miss
	// can append there. bytes.Equal compares lengths before any bytes, so
	// entries with a different key length are skipped without a byte
	// comparison.
	var prev *Entry
	for e := m.buckets[i]; e != nil; e = e.next {
		if bytes.Equal(e.key, key) {
			return m.setValue(e, value)
		}
		prev = e
	}

	e, err := m.newEntry(key, value)
	if err != nil {
		return err
	}
	if prev == nil {
		m.buckets[i] = e
	} else {
		prev.next = e
	}
	m.len++
	m.checkInvariants()
	return nil
}

// Get retrieves the value for the specified key, returning ok=false if the
// key is not present. The returned slice is a borrowed view of the entry's
// buffer: it must not be modified and is only valid until the key is
// deleted or the map is closed. Get performs no allocation and no mutation.
func (m *Map) Get(key []byte) (value []byte, ok bool) {
	if m == nil || m.buckets == nil {
		return nil, false
	}
	for e := m.buckets[m.hash(key)%uint32(len(m.buckets))]; e != nil; e = e.next {
		if bytes.Equal(e.key, key) {
			return e.value, true
		}
	}
	return nil, false
}

// Delete deletes the entry corresponding to the specified key from the map,
// releasing its buffers back to the allocator. It is a noop to delete a
// non-existent key or to delete from a nil or closed map.
func (m *Map) Delete(key []byte) {
	if m == nil || m.buckets == nil {
		return
	}
	i := m.hash(key) % uint32(len(m.buckets))
	var prev *Entry
	for e := m.buckets[i]; e != nil; e = e.next {
		if bytes.Equal(e.key, key) {
			// Unlink before freeing so the chain never references a
			// released entry.
			if prev == nil {
				m.buckets[i] = e.next
			} else {
				prev.next = e.next
			}
			m.freeEntry(e)
			m.len--
			m.checkInvariants()
			return
		}
		prev = e
	}
}

// Len returns the number of distinct keys in the map.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return m.len
}

// Capacity returns the fixed bucket count the map was created with, or 0
// for a nil or closed map.
func (m *Map) Capacity() int {
	if m == nil {
		return 0
	}
	return len(m.buckets)
}

// setValue replaces e's value in place. The existing buffer is reused when
// the new value fits its capacity and reallocated through the allocator
// when it does not. The recorded length always becomes len(value), so a
// shrink is reflected rather than leaving the stale longer length. On
// reallocation failure the entry keeps its previous value.
func (m *Map) setValue(e *Entry, value []byte) error {
	if n := len(value); n <= cap(e.value) {
		e.value = e.value[:n]
	} else {
		buf := m.allocator.ReallocBytes(e.value, n)
		if buf == nil {
			return ErrAllocFailed
		}
		e.value = buf[:n]
	}
	copy(e.value, value)
	m.checkInvariants()
	return nil
}

// newEntry allocates an entry owning copies of key and value. On any
// allocation failure the pieces acquired so far are returned to the
// allocator and ErrAllocFailed is reported, leaving nothing reachable.
func (m *Map) newEntry(key, value []byte) (*Entry, error) {
	e := m.allocator.AllocEntry()
	if e == nil {
		return nil, ErrAllocFailed
	}
	if e.key = m.allocator.AllocBytes(len(key)); e.key == nil {
		m.allocator.FreeEntry(e)
		return nil, ErrAllocFailed
	}
	if e.value = m.allocator.AllocBytes(len(value)); e.value == nil {
		m.allocator.FreeBytes(e.key)
		e.key = nil
		m.allocator.FreeEntry(e)
		return nil, ErrAllocFailed
	}
	copy(e.key, key)
	copy(e.value, value)
	e.next = nil
	return e, nil
}

// freeEntry returns e's buffers and record to the allocator. The fields are
// cleared first so a recycled Entry carries no stale references.
func (m *Map) freeEntry(e *Entry) {
	m.allocator.FreeBytes(e.key)
	m.allocator.FreeBytes(e.value)
	e.key, e.value, e.next = nil, nil, nil
	m.allocator.FreeEntry(e)
}

func (m *Map) checkInvariants() {
	if invariants {
		var n int
		for i, head := range m.buckets {
			for e := head; e != nil; e = e.next {
				n++
				if want := m.hash(e.key) % uint32(len(m.buckets)); uint32(i) != want {
					panic(fmt.Sprintf("invariant failed: key %q in bucket %d, expected %d\n%s",
						e.key, i, want, m.debugString()))
				}
				for d := e.next; d != nil; d = d.next {
					if bytes.Equal(d.key, e.key) {
						panic(fmt.Sprintf("invariant failed: duplicate key %q in bucket %d\n%s",
							e.key, i, m.debugString()))
					}
				}
			}
		}
		if n != m.len {
			panic(fmt.Sprintf("invariant failed: found %d entries, but len is %d\n%s",
				n, m.len, m.debugString()))
		}
	}
}

func (m *Map) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  len=%d\n", len(m.buckets), m.len)
	for i, head := range m.buckets {
		if head == nil {
			continue
		}
		fmt.Fprintf(&buf, "  %4d:", i)
		for e := head; e != nil; e = e.next {
			fmt.Fprintf(&buf, " %q=%q", e.key, e.value)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
