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
	"math/bits"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Stats is a point-in-time summary of a table's shape.
type Stats struct {
	Size       uint64
	Capacity   uint64
	LoadFactor float64
	Grows      uint64
	Shrinks    uint64

	MaxProbeDistance  uint32
	MeanProbeDistance float64
	// ProbeDistances[d] is the number of entries d slots away from home.
	ProbeDistances []uint64
	// Outliers counts entries further than log2(Capacity) from home.
	Outliers uint64
}

// Stats scans the whole table, so it costs O(capacity).
func (m *Map[K, V]) Stats() Stats {
	s := Stats{
		Size:       m.count,
		Capacity:   m.capacity,
		LoadFactor: m.LoadFactor(),
		Grows:      m.grows,
		Shrinks:    m.shrinks,
	}
	limit := uint32(bits.Len64(m.capacity) - 1)
	var total uint64
	for i := range m.slots {
		e := &m.slots[i]
		if !e.used {
			continue
		}
		for uint32(len(s.ProbeDistances)) <= e.dist {
			s.ProbeDistances = append(s.ProbeDistances, 0)
		}
		s.ProbeDistances[e.dist]++
		total += uint64(e.dist)
		if e.dist > s.MaxProbeDistance {
			s.MaxProbeDistance = e.dist
		}
		if e.dist > limit {
			s.Outliers++
		}
	}
	if m.count > 0 {
		s.MeanProbeDistance = float64(total) / float64(m.count)
	}
	return s
}

// merge folds other into s. Grows and shrinks are summed across shards.
func (s *Stats) merge(other Stats) {
	total := s.MeanProbeDistance*float64(s.Size) + other.MeanProbeDistance*float64(other.Size)
	s.Size += other.Size
	s.Capacity += other.Capacity
	s.Grows += other.Grows
	s.Shrinks += other.Shrinks
	s.Outliers += other.Outliers
	if other.MaxProbeDistance > s.MaxProbeDistance {
		s.MaxProbeDistance = other.MaxProbeDistance
	}
	for len(s.ProbeDistances) < len(other.ProbeDistances) {
		s.ProbeDistances = append(s.ProbeDistances, 0)
	}
	for d, n := range other.ProbeDistances {
		s.ProbeDistances[d] += n
	}
	if s.Capacity > 0 {
		s.LoadFactor = float64(s.Size) / float64(s.Capacity)
	}
	if s.Size > 0 {
		s.MeanProbeDistance = total / float64(s.Size)
	}
}

// MarshalLogObject lets a Stats be logged with zap.Object.
func (s Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("size", s.Size)
	enc.AddUint64("capacity", s.Capacity)
	enc.AddFloat64("load-factor", s.LoadFactor)
	enc.AddUint64("grows", s.Grows)
	enc.AddUint64("shrinks", s.Shrinks)
	enc.AddUint32("max-probe-distance", s.MaxProbeDistance)
	enc.AddFloat64("mean-probe-distance", s.MeanProbeDistance)
	enc.AddUint64("outliers", s.Outliers)
	return nil
}

var _ zapcore.ObjectMarshaler = Stats{}

// LogStats writes the table summary at info level.
func (m *Map[K, V]) LogStats(msg string) {
	m.logger.Info(msg, zap.Object("stats", m.Stats()))
}
