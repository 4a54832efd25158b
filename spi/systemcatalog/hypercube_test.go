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

package systemcatalog

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func Test_Slice_Covers_Is_Half_Open(t *testing.T) {
	slice := NewSlice(1, 10, 20)
	assert.True(t, slice.Covers(10))
	assert.True(t, slice.Covers(19))
	assert.False(t, slice.Covers(20))
	assert.False(t, slice.Covers(9))
}

func Test_Slice_Covers_Max_Value_In_Last_Slice(t *testing.T) {
	slice := NewSlice(1, 100, SliceMaxValue)
	assert.True(t, slice.Covers(SliceMaxValue))
}

func Test_Slice_Collides(t *testing.T) {
	slice := NewSlice(1, 10, 20)
	assert.True(t, slice.Collides(NewSlice(1, 15, 25)))
	assert.True(t, slice.Collides(NewSlice(1, 0, 11)))
	assert.False(t, slice.Collides(NewSlice(1, 20, 30)))
	assert.False(t, slice.Collides(NewSlice(1, 0, 10)))
}

func Test_Slice_Cut_Below_Coordinate(t *testing.T) {
	slice := NewSlice(1, 10, 20)
	assert.True(t, slice.Cut(NewSlice(1, 5, 12), 15))
	assert.Equal(t, int64(12), slice.Start())
	assert.Equal(t, int64(20), slice.End())
}

func Test_Slice_Cut_Above_Coordinate(t *testing.T) {
	slice := NewSlice(1, 10, 20)
	assert.True(t, slice.Cut(NewSlice(1, 18, 30), 15))
	assert.Equal(t, int64(10), slice.Start())
	assert.Equal(t, int64(18), slice.End())
}

func Test_Slice_Cut_Covering_Slice_Fails(t *testing.T) {
	slice := NewSlice(1, 10, 20)
	assert.False(t, slice.Cut(NewSlice(1, 12, 18), 15))
}

func Test_Hypercube_Covers_And_Collides(t *testing.T) {
	cube := NewHypercube(NewSlice(1, 0, 10), NewSlice(2, 0, 100))

	assert.True(t, cube.Covers(Point{5, 50}))
	assert.False(t, cube.Covers(Point{10, 50}))
	assert.False(t, cube.Covers(Point{5}))

	assert.True(t, cube.Collides(NewHypercube(NewSlice(1, 5, 15), NewSlice(2, 50, 150))))
	assert.False(t, cube.Collides(NewHypercube(NewSlice(1, 5, 15), NewSlice(2, 100, 150))))
}

func Test_Hypercube_Copy_Is_Independent(t *testing.T) {
	cube := NewHypercube(NewSlice(1, 0, 10))
	other := cube.Copy()
	other.Slice(0).Cut(NewSlice(1, 0, 2), 5)

	assert.Equal(t, int64(0), cube.Slice(0).Start())
	assert.Equal(t, int64(2), other.Slice(0).Start())
	assert.False(t, cube.Equal(other))
	assert.Equal(t, "1:[0,10)", cube.Signature())
}
