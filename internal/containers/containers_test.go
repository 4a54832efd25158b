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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sort"
	"sync"
	"testing"
)

func Test_Cas_Cache_Get_Or_Compute(t *testing.T) {
	cache := NewCasCache[int32, string]()

	calls := 0
	producer := func() (string, error) {
		calls++
		return "value", nil
	}

	v, err := cache.GetOrCompute(1, producer)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = cache.GetOrCompute(1, producer)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, cache.Length())
}

func Test_Cas_Cache_Producer_Error_Is_Not_Cached(t *testing.T) {
	cache := NewCasCache[int32, string]()

	_, err := cache.GetOrCompute(1, func() (string, error) {
		return "", errors.New("failed")
	})
	assert.Error(t, err)
	_, present := cache.Get(1)
	assert.False(t, present)
}

func Test_Cas_Cache_Set_All_Overrides_Existing(t *testing.T) {
	cache := NewCasCache[int32, string]()
	cache.Set(1, "old")
	cache.SetAll(map[int32]string{1: "new", 2: "other"})

	v, _ := cache.Get(1)
	assert.Equal(t, "new", v)

	values := cache.Values()
	sort.Strings(values)
	assert.Equal(t, []string{"new", "other"}, values)
}

func Test_Cas_Cache_Transform(t *testing.T) {
	cache := NewCasCache[int32, int]()

	_, err := cache.TransformSetAndGet(1, func(old int) (int, error) {
		return old + 1, nil
	})
	assert.Error(t, err)

	cache.Set(1, 41)
	v, err := cache.TransformSetAndGet(1, func(old int) (int, error) {
		return old + 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func Test_Cas_Cache_Concurrent_Writers(t *testing.T) {
	cache := NewCasCache[int, int]()

	wg := sync.WaitGroup{}
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cache.Set(i, i)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 32, cache.Length())
}

func Test_Concurrent_Map_Length(t *testing.T) {
	m := NewConcurrentMap[string, int]()
	m.Store("a", 1)
	m.Store("a", 2)
	_, loaded := m.LoadOrStore("b", 3)
	assert.False(t, loaded)
	assert.Equal(t, 2, m.Len())

	v, loaded := m.LoadAndDelete("a")
	assert.True(t, loaded)
	assert.Equal(t, 2, v)

	_, loaded = m.LoadAndDelete("missing")
	assert.False(t, loaded)
	assert.Equal(t, 1, m.Len())

	keys := make([]string, 0)
	m.Range(func(key string, _ int) bool {
		keys = append(keys, key)
		return true
	})
	assert.Equal(t, []string{"b"}, keys)
}
