// Copyright 2024 Matrix Origin
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

package hashtable

// Set is a Map without values.
type Set[K any] struct {
	m *Map[K, struct{}]
}

func NewSet[K any](hasher Hasher[K], initialCapacity int, maxLoadFactor float64, opts ...Option) (*Set[K], error) {
	m, err := NewMap[K, struct{}](hasher, initialCapacity, maxLoadFactor, opts...)
	if err != nil {
		return nil, err
	}
	return &Set[K]{m: m}, nil
}

// Add inserts key and reports whether it was absent.
func (s *Set[K]) Add(key K) (bool, error) {
	_, replaced, err := s.m.Insert(key, struct{}{})
	if err != nil {
		return false, err
	}
	return !replaced, nil
}

func (s *Set[K]) Contains(key K) bool {
	return s.m.Contains(key)
}

// Delete removes key and reports whether it was present.
func (s *Set[K]) Delete(key K) bool {
	_, ok := s.m.Remove(key)
	return ok
}

func (s *Set[K]) Size() int {
	return s.m.Size()
}

func (s *Set[K]) Capacity() uint64 {
	return s.m.Capacity()
}

func (s *Set[K]) Range(fn func(key K) bool) {
	s.m.Range(func(key K, _ struct{}) bool {
		return fn(key)
	})
}

func (s *Set[K]) Stats() Stats {
	return s.m.Stats()
}
