// seehuhn.de/go/glyphcov - find characters which are missing from fonts
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package store

import (
	"bytes"
	"context"
	"sync"
)

// Memory is an in-memory store.  If a capacity is set, the least recently
// used entries are dropped when the store is full.
type Memory struct {
	mu          sync.Mutex
	capacity    int
	entries     map[string]*memoryEntry
	first, last *memoryEntry
}

type memoryEntry struct {
	prev, next *memoryEntry
	key        string
	value      []byte
}

// NewMemory creates a new in-memory store which holds at most capacity
// entries.  A capacity of 0 means no limit.
func NewMemory(capacity int) *Memory {
	return &Memory{
		capacity: max(capacity, 0),
		entries:  make(map[string]*memoryEntry),
	}
}

// Get implements the [Store] interface and marks the entry as recently used.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	m.moveToFront(ent)
	return bytes.Clone(ent.value), true, nil
}

// Put implements the [Store] interface.
func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	value = bytes.Clone(value)
	if value == nil {
		value = []byte{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ent, ok := m.entries[key]; ok {
		ent.value = value
		m.moveToFront(ent)
		return nil
	}

	ent := &memoryEntry{
		key:   key,
		value: value,
	}
	m.entries[key] = ent
	m.moveToFront(ent)

	if m.capacity > 0 && len(m.entries) > m.capacity {
		m.remove(m.last)
	}
	return nil
}

// Delete implements the [Store] interface.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ent, ok := m.entries[key]; ok {
		m.remove(ent)
	}
	return nil
}

// Keys implements the [Store] interface.
func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	return keys, nil
}

// Len returns the number of entries in the store.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) moveToFront(ent *memoryEntry) {
	if ent == m.first {
		return
	}
	m.unlink(ent)

	ent.next = m.first
	if m.first != nil {
		m.first.prev = ent
	}
	m.first = ent
	if m.last == nil {
		m.last = ent
	}
}

func (m *Memory) remove(ent *memoryEntry) {
	m.unlink(ent)
	delete(m.entries, ent.key)
}

// unlink takes ent out of the usage list.  The map is not changed.
func (m *Memory) unlink(ent *memoryEntry) {
	if ent.prev != nil {
		ent.prev.next = ent.next
	} else if m.first == ent {
		m.first = ent.next
	}
	if ent.next != nil {
		ent.next.prev = ent.prev
	} else if m.last == ent {
		m.last = ent.prev
	}
	ent.prev = nil
	ent.next = nil
}
