package repository

import (
	"context"
	"sync"

	"github.com/GoPolymarket/safeboard/internal/model"
)

// RunJournal stores finished orchestration runs for inspection.
type RunJournal interface {
	Record(ctx context.Context, rec *model.RunRecord) error
	List(ctx context.Context, limit int) ([]*model.RunRecord, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}

// MemoryRunJournal keeps the most recent runs in a ring buffer.
type MemoryRunJournal struct {
	mu      sync.Mutex
	records []*model.RunRecord
	next    int
	full    bool
}

func NewMemoryRunJournal(size int) *MemoryRunJournal {
	if size <= 0 {
		size = 500
	}
	return &MemoryRunJournal{records: make([]*model.RunRecord, size)}
}

func (j *MemoryRunJournal) Record(_ context.Context, rec *model.RunRecord) error {
	if rec == nil {
		return nil
	}
	cp := *rec
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records[j.next] = &cp
	j.next = (j.next + 1) % len(j.records)
	if j.next == 0 {
		j.full = true
	}
	return nil
}

// List returns the newest records first.
func (j *MemoryRunJournal) List(_ context.Context, limit int) ([]*model.RunRecord, error) {
	limit = normalizeLimit(limit)
	j.mu.Lock()
	defer j.mu.Unlock()

	count := j.next
	if j.full {
		count = len(j.records)
	}
	if limit > count {
		limit = count
	}
	out := make([]*model.RunRecord, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (j.next - 1 - i + len(j.records)) % len(j.records)
		cp := *j.records[idx]
		out = append(out, &cp)
	}
	return out, nil
}
