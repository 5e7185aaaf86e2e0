// Package store keeps recordings for the pipeline's
// persist-after-each-stage rule. Durable persistence belongs to an
// external layer; this in-memory store backs single-process runs and
// the retry pass.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"sound-memos-go/internal/types"
)

var ErrNotFound = errors.New("recording not found")

type Memory struct {
	mu   sync.RWMutex
	recs map[string]types.Recording
}

func NewMemory() *Memory {
	return &Memory{recs: map[string]types.Recording{}}
}

// Save stores a snapshot of the recording.
func (m *Memory) Save(_ context.Context, rec *types.Recording) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ID] = cloneRecording(rec)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*types.Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRecording(&rec)
	return &out, nil
}

// ListUnfinalized returns recordings whose title was never finalized,
// ordered by ID for deterministic retry passes.
func (m *Memory) ListUnfinalized(_ context.Context) ([]*types.Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Recording
	for _, rec := range m.recs {
		if !rec.TitleFinal {
			c := cloneRecording(&rec)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) All(_ context.Context) ([]*types.Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Recording
	for _, rec := range m.recs {
		c := cloneRecording(&rec)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func cloneRecording(rec *types.Recording) types.Recording {
	c := *rec
	c.Tags = append([]string(nil), rec.Tags...)
	return c
}
