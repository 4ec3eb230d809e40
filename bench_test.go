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

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/aclements/go-perfevent/perfbench"
	"github.com/cespare/xxhash/v2"
)

func BenchmarkMapGetHit(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapGetHit))
	b.Run("impl=chainMap", benchSizes(benchmarkChainMapGetHit))
}

func BenchmarkMapGetMiss(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapGetMiss))
	b.Run("impl=chainMap", benchSizes(benchmarkChainMapGetMiss))
}

func BenchmarkMapPutDelete(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapPutDelete))
	b.Run("impl=chainMap", benchSizes(benchmarkChainMapPutDelete))
}

func BenchmarkHash(b *testing.B) {
	b.Run("hash=rs", benchKeySizes(func(b *testing.B, key []byte) {
		cs := perfbench.Open(b)
		var h uint32
		for i := 0; i < b.N; i++ {
			h += rsHash(key)
		}
		cs.Stop()
		fmt.Fprint(io.Discard, h)
	}))
	b.Run("hash=xxhash", benchKeySizes(func(b *testing.B, key []byte) {
		cs := perfbench.Open(b)
		var h uint64
		for i := 0; i < b.N; i++ {
			h += xxhash.Sum64(key)
		}
		cs.Stop()
		fmt.Fprint(io.Discard, h)
	}))
}

// benchSizes runs f across a grid of element counts. The counts are powers
// of two so the benchmark loops can mask rather than mod. The table
// capacity matches the element count, i.e. an average load factor of 1.
func benchSizes(f func(b *testing.B, n int)) func(*testing.B) {
	var cases = []int{16, 128, 1024, 8192, 1 << 16}

	return func(b *testing.B) {
		for _, n := range cases {
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) { f(b, n) })
		}
	}
}

func benchKeySizes(f func(b *testing.B, key []byte)) func(*testing.B) {
	return func(b *testing.B) {
		for _, n := range []int{8, 32, 128, 1024} {
			key := bytes.Repeat([]byte("k"), n)
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) { f(b, key) })
		}
	}
}

func genKeys(start, end int) [][]byte {
	keys := make([][]byte, end-start)
	for i := range keys {
		keys[i] = []byte(strconv.Itoa(start + i))
	}
	return keys
}

func benchmarkRuntimeMapGetHit(b *testing.B, n int) {
	m := make(map[string][]byte, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[string(k)] = k
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	var v []byte
	for i := 0; i < b.N; i++ {
		v = m[string(keys[i&(n-1)])]
	}
	cs.Stop()
	b.StopTimer()
	fmt.Fprint(io.Discard, len(v))
}

func benchmarkChainMapGetHit(b *testing.B, n int) {
	m, err := New(n)
	if err != nil {
		b.Fatal(err)
	}
	defer m.Close()
	keys := genKeys(0, n)
	for _, k := range keys {
		if err := m.Put(k, k); err != nil {
			b.Fatal(err)
		}
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m.Get(keys[i&(n-1)])
	}
	cs.Stop()
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkRuntimeMapGetMiss(b *testing.B, n int) {
	m := make(map[string][]byte, n)
	keys := genKeys(0, n)
	miss := genKeys(-n, 0)
	for _, k := range keys {
		m[string(k)] = k
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	var v []byte
	for i := 0; i < b.N; i++ {
		v = m[string(miss[i&(n-1)])]
	}
	cs.Stop()
	b.StopTimer()
	fmt.Fprint(io.Discard, len(v))
}

func benchmarkChainMapGetMiss(b *testing.B, n int) {
	m, err := New(n)
	if err != nil {
		b.Fatal(err)
	}
	defer m.Close()
	keys := genKeys(0, n)
	miss := genKeys(-n, 0)
	for _, k := range keys {
		if err := m.Put(k, k); err != nil {
			b.Fatal(err)
		}
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m.Get(miss[i&(n-1)])
	}
	cs.Stop()
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkRuntimeMapPutDelete(b *testing.B, n int) {
	m := make(map[string][]byte, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[string(k)] = k
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i & (n - 1)
		delete(m, string(keys[j]))
		m[string(keys[j])] = keys[j]
	}
	cs.Stop()
}

func benchmarkChainMapPutDelete(b *testing.B, n int) {
	m, err := New(n)
	if err != nil {
		b.Fatal(err)
	}
	defer m.Close()
	keys := genKeys(0, n)
	for _, k := range keys {
		if err := m.Put(k, k); err != nil {
			b.Fatal(err)
		}
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i & (n - 1)
		m.Delete(keys[j])
		if err := m.Put(keys[j], keys[j]); err != nil {
			b.Fatal(err)
		}
	}
	cs.Stop()
}
