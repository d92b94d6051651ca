package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GoPolymarket/safeboard/internal/model"
	"github.com/GoPolymarket/safeboard/internal/pkg/logger"
	"github.com/GoPolymarket/safeboard/internal/repository"
)

// JournalService writes run records off the request path. Records always
// land in an in-memory buffer; a durable repo is optional.
type JournalService struct {
	recChan chan *model.RunRecord
	buffer  *repository.MemoryRunJournal
	repo    repository.RunJournal
	log     *slog.Logger

	// mu guards closed; Record holds it shared while sending so Close never
	// closes recChan under a sender.
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewJournalService(repo repository.RunJournal, log *slog.Logger) *JournalService {
	s := &JournalService{
		recChan: make(chan *model.RunRecord, 256),
		buffer:  repository.NewMemoryRunJournal(500),
		repo:    repo,
		log:     logger.OrDefault(log),
		done:    make(chan struct{}),
	}
	go s.process()
	return s
}

// Record never blocks. A full queue drops the durable write; the buffer still has it.
func (s *JournalService) Record(rec *model.RunRecord) {
	if rec == nil {
		return
	}
	cp := *rec
	_ = s.buffer.Record(context.Background(), &cp)
	if s.repo == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.log.Warn("Run journal closed, record kept in memory only", "run_id", rec.ID)
		return
	}
	select {
	case s.recChan <- &cp:
	default:
		s.log.Warn("Run journal queue full, dropping durable write", "run_id", rec.ID)
	}
}

func (s *JournalService) List(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, limit)
		if err == nil {
			return records, nil
		}
		s.log.Warn("Run journal read failed, serving buffer", "error", err)
	}
	return s.buffer.List(ctx, limit)
}

func (s *JournalService) process() {
	defer close(s.done)
	for rec := range s.recChan {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Record(ctx, rec); err != nil {
			s.log.Error("Failed to write run record", "run_id", rec.ID, "error", err)
		}
		cancel()
	}
}

// Close drains pending writes. Records arriving afterwards stay in memory.
func (s *JournalService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.recChan)
	s.mu.Unlock()
	<-s.done
}
