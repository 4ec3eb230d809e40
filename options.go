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

package chainmap

// option provide an interface to do work on Map while it is being created.
type option interface {
	apply(m *Map)
}

type hashOption struct {
	hash func(key []byte) uint32
}

func (op hashOption) apply(m *Map) {
	m.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Map. The
// function must be deterministic for the lifetime of the map: the same key
// must hash identically on every call, or entries become unfindable.
func WithHash(hash func(key []byte) uint32) option {
	return hashOption{hash}
}

// Allocator specifies an interface for allocating and releasing the memory
// used by a Map: the bucket slice, entry records, and key/value buffers.
// The default allocator utilizes Go's builtin make() and allows the GC to
// reclaim memory.
//
// An Alloc or Realloc method returning nil signals allocation failure; the
// Map surfaces it as ErrAllocFailed and releases anything acquired for the
// failed operation. On success the methods must return non-nil results,
// including for zero-length requests.
//
// If the allocator is manually managing memory and requires that entries
// and buffers be freed then Map.Close must be called in order to ensure the
// Free methods are called for every live entry.
type Allocator interface {
	// AllocBuckets should return a slice equivalent to make([]*Entry, n).
	AllocBuckets(n int) []*Entry

	// AllocEntry should return a zeroed entry record, equivalent to
	// new(Entry).
	AllocEntry() *Entry

	// AllocBytes should return a slice equivalent to make([]byte, n).
	AllocBytes(n int) []byte

	// ReallocBytes should return a slice of length n carrying the prefix of
	// buf that fits, equivalent to C's realloc. buf is guaranteed to have
	// been allocated by AllocBytes or a previous ReallocBytes.
	ReallocBytes(buf []byte, n int) []byte

	// FreeBuckets can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocBuckets.
	FreeBuckets(buf []*Entry)

	// FreeEntry can optionally recycle an entry record that is guaranteed
	// to have been allocated by AllocEntry. Its fields are cleared before
	// the call.
	FreeEntry(e *Entry)

	// FreeBytes can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocBytes or ReallocBytes.
	FreeBytes(buf []byte)
}

type defaultAllocator struct{}

func (defaultAllocator) AllocBuckets(n int) []*Entry {
	return make([]*Entry, n)
}

func (defaultAllocator) AllocEntry() *Entry {
	return new(Entry)
}

func (defaultAllocator) AllocBytes(n int) []byte {
	return make([]byte, n)
}

func (defaultAllocator) ReallocBytes(buf []byte, n int) []byte {
	b := make([]byte, n)
	copy(b, buf)
	return b
}

func (defaultAllocator) FreeBuckets(buf []*Entry) {
}

func (defaultAllocator) FreeEntry(e *Entry) {
}

func (defaultAllocator) FreeBytes(buf []byte) {
}

type allocatorOption struct {
	allocator Allocator
}

func (op allocatorOption) apply(m *Map) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map.
func WithAllocator(allocator Allocator) option {
	return allocatorOption{allocator}
}

// CountingAllocator wraps an Allocator and counts every allocation,
// reallocation, and free it forwards. It is a diagnostic aid for verifying
// that a Map's memory traffic balances; it never alters results. A
// CountingAllocator counts calls, not outcomes, so a failed allocation
// still increments the allocation count.
type CountingAllocator struct {
	wrapped  Allocator
	allocs   uint64
	reallocs uint64
	frees    uint64
}

// NewCountingAllocator returns a CountingAllocator forwarding to wrapped,
// or to the default allocator if wrapped is nil.
func NewCountingAllocator(wrapped Allocator) *CountingAllocator {
	if wrapped == nil {
		wrapped = defaultAllocator{}
	}
	return &CountingAllocator{wrapped: wrapped}
}

// Counts returns the number of allocations, reallocations, and frees
// observed so far.
func (a *CountingAllocator) Counts() (allocs, reallocs, frees uint64) {
	return a.allocs, a.reallocs, a.frees
}

func (a *CountingAllocator) AllocBuckets(n int) []*Entry {
	a.allocs++
	return a.wrapped.AllocBuckets(n)
}

func (a *CountingAllocator) AllocEntry() *Entry {
	a.allocs++
	return a.wrapped.AllocEntry()
}

func (a *CountingAllocator) AllocBytes(n int) []byte {
	a.allocs++
	return a.wrapped.AllocBytes(n)
}

func (a *CountingAllocator) ReallocBytes(buf []byte, n int) []byte {
	a.reallocs++
	return a.wrapped.ReallocBytes(buf, n)
}

func (a *CountingAllocator) FreeBuckets(buf []*Entry) {
	a.frees++
	a.wrapped.FreeBuckets(buf)
}

func (a *CountingAllocator) FreeEntry(e *Entry) {
	a.frees++
	a.wrapped.FreeEntry(e)
}

func (a *CountingAllocator) FreeBytes(buf []byte) {
	a.frees++
	a.wrapped.FreeBytes(buf)
}
