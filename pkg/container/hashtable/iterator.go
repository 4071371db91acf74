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

import (
	"github.com/AiLang-Author/AiLang-Public-Library/pkg/common/moerr"
)

// Iterator walks the entries of a Map in slot order. Each entry is yielded
// exactly once as long as the table is not modified; any insert of a new
// key, remove, resize or clear invalidates the iterator.
type Iterator[K any, V any] struct {
	table   *Map[K, V]
	pos     uint64
	version uint64
}

func (it *Iterator[K, V]) Init(m *Map[K, V]) {
	it.table = m
	it.pos = 0
	it.version = m.version
}

// Next returns the next entry. The end of the table is signalled with
// moerr.GetOkExpectedEOF(), and a table changed since Init with an
// ErrInvalidState error.
func (it *Iterator[K, V]) Next() (key K, value V, err error) {
	if it.table.version != it.version {
		return key, value, moerr.NewInvalidStateNoCtx("hashtable modified during iteration")
	}
	for it.pos < it.table.capacity {
		e := &it.table.slots[it.pos]
		it.pos++
		if e.used {
			return e.key, e.value, nil
		}
	}
	return key, value, moerr.GetOkExpectedEOF()
}

// Iterate returns an iterator positioned before the first entry.
func (m *Map[K, V]) Iterate() *Iterator[K, V] {
	it := &Iterator[K, V]{}
	it.Init(m)
	return it
}
