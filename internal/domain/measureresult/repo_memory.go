package measureresult

import (
	"context"
	"sync"
)

// MemoryStore keeps fact rows in memory. It backs DATA_MODE=mock and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	rows []FactRow
}

func NewMemoryStore(rows ...FactRow) *MemoryStore {
	s := &MemoryStore{}
	s.InsertFacts(context.Background(), rows)
	return s
}

// QueryFacts returns the raw matching rows, one per data source.
func (s *MemoryStore) QueryFacts(ctx context.Context, q FactQuery) ([]FactRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	measures := toSet(q.MeasureIDs)
	sources := toSet(q.DataSourceIDs)
	var orgs map[string]struct{}
	if q.OrgIDs != nil {
		orgs = toSet(q.OrgIDs)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []FactRow{}
	for _, row := range s.rows {
		if row.Date.Before(q.From) || row.Date.After(q.To) {
			continue
		}
		if _, ok := measures[row.MeasureID]; !ok {
			continue
		}
		if _, ok := sources[row.DataSourceID]; !ok {
			continue
		}
		if orgs != nil {
			if _, ok := orgs[row.OrgID]; !ok {
				continue
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// InsertFacts appends rows, moving each date to the first of its month.
func (s *MemoryStore) InsertFacts(ctx context.Context, rows []FactRow) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		row.Date = monthStart(row.Date.UTC())
		s.rows = append(s.rows, row)
	}
	return len(rows), nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
