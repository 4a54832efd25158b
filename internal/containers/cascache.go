/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package containers

import (
	"github.com/go-errors/errors"
	"github.com/gookit/goutil/reflects"
	"github.com/samber/lo"
	"reflect"
	"sync/atomic"
)

// CasCache is a copy-on-write map optimized for frequent reads
// and rare writes. Readers never block, writers replace the
// whole map with a compare-and-swap.
type CasCache[K comparable, V any] struct {
	mapPtr atomic.Pointer[map[K]V]
}

func NewCasCache[K comparable, V any]() *CasCache[K, V] {
	return &CasCache[K, V]{
		mapPtr: atomic.Pointer[map[K]V]{},
	}
}

func (cc *CasCache[K, V]) Get(key K) (value V, ok bool) {
	m := cc.mapPtr.Load()
	if m == nil {
		return lo.Empty[V](), false
	}

	value, ok = (*m)[key]
	return
}

// GetOrCompute returns the cached value or stores the produced
// one. If another writer stored a value concurrently, that value
// wins and the produced one is discarded.
func (cc *CasCache[K, V]) GetOrCompute(key K, producer func() (V, error)) (V, error) {
	if v, present := cc.Get(key); present {
		return v, nil
	}

	v, err := producer()
	if err != nil {
		return lo.Empty[V](), err
	}

	for {
		m := cc.mapPtr.Load()
		if m != nil {
			if existing, present := (*m)[key]; present {
				return existing, nil
			}
		}

		n := cc.copyOf(m, 1)
		n[key] = v
		if cc.mapPtr.CompareAndSwap(m, &n) {
			return v, nil
		}
	}
}

func (cc *CasCache[K, V]) Set(key K, value V) {
	for {
		o := cc.mapPtr.Load()
		n := cc.copyOf(o, 1)
		n[key] = value
		if cc.mapPtr.CompareAndSwap(o, &n) {
			break
		}
	}
}

// SetAll stores all entries, replacing existing values of the same keys
func (cc *CasCache[K, V]) SetAll(m map[K]V) {
	for {
		o := cc.mapPtr.Load()
		n := cc.copyOf(o, len(m))
		for k, v := range m {
			n[k] = v
		}
		if cc.mapPtr.CompareAndSwap(o, &n) {
			break
		}
	}
}

// TransformSetAndGet replaces the value of an existing key with
// the transformer's result. The transformer may be called multiple
// times under contention and must not have side effects.
func (cc *CasCache[K, V]) TransformSetAndGet(key K, transformer func(old V) (V, error)) (V, error) {
	for {
		m := cc.mapPtr.Load()
		if m == nil {
			return lo.Empty[V](), errors.Errorf(
				"Key %v not present", reflects.String(reflect.ValueOf(key)),
			)
		}

		v, present := (*m)[key]
		if !present {
			return lo.Empty[V](), errors.Errorf(
				"Key %v not present", reflects.String(reflect.ValueOf(key)),
			)
		}

		vnew, err := transformer(v)
		if err != nil {
			return lo.Empty[V](), err
		}

		n := cc.copyOf(m, 0)
		n[key] = vnew
		if cc.mapPtr.CompareAndSwap(m, &n) {
			return vnew, nil
		}
	}
}

// Values returns a snapshot of all cached values in no particular order
func (cc *CasCache[K, V]) Values() []V {
	m := cc.mapPtr.Load()
	if m == nil {
		return []V{}
	}
	return lo.Values(*m)
}

func (cc *CasCache[K, V]) Length() int {
	m := cc.mapPtr.Load()
	if m == nil {
		return 0
	}
	return len(*m)
}

func (cc *CasCache[K, V]) copyOf(m *map[K]V, additional int) map[K]V {
	if m == nil {
		return make(map[K]V, additional)
	}
	n := make(map[K]V, len(*m)+additional)
	for k, v := range *m {
		n[k] = v
	}
	return n
}
