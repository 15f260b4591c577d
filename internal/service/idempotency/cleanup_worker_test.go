package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmoralesdiaz/almacen/internal/domain"
)

type stubCleanupRepo struct {
	mu sync.Mutex

	deleteResults []int
	deleteErrors  []error
	callCount     int
}

var _ domain.IdempotencyRepository = (*stubCleanupRepo)(nil)

func (s *stubCleanupRepo) CreateProcessing(string, string, time.Time) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (s *stubCleanupRepo) Get(string) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (s *stubCleanupRepo) MarkDone(string, []byte, int) error {
	panic("not implemented")
}

func (s *stubCleanupRepo) MarkFailed(string, []byte, int) error {
	panic("not implemented")
}

func (s *stubCleanupRepo) DeleteExpired(_ time.Time, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++

	if len(s.deleteErrors) > 0 {
		err := s.deleteErrors[0]
		s.deleteErrors = s.deleteErrors[1:]
		if err != nil {
			return 0, err
		}
	}

	if len(s.deleteResults) == 0 {
		return 0, nil
	}
	result := s.deleteResults[0]
	s.deleteResults = s.deleteResults[1:]
	return result, nil
}

func (s *stubCleanupRepo) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func TestCleanupWorker_DeleteExpired_DrainsInBatches(t *testing.T) {
	t.Parallel()

	// Два полных батча и один неполный: после него цикл останавливается.
	repo := &stubCleanupRepo{deleteResults: []int{2, 2, 1}}
	worker := NewCleanupWorker(repo, WithBatchSize(2))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)
	assert.Equal(t, 3, repo.calls())
}

func TestCleanupWorker_DeleteExpired_RepoError(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{deleteErrors: []error{errors.New("connection reset")}}
	worker := NewCleanupWorker(repo, WithBatchSize(10))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	assert.Error(t, err)
	assert.Zero(t, deleted)
}

func TestCleanupWorker_DeleteExpired_ContextCanceled(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{}
	worker := NewCleanupWorker(repo, WithBatchSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := worker.DeleteExpired(ctx, time.Now().UTC())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, repo.calls())
}

func TestCleanupWorker_OptionsNormalization(t *testing.T) {
	t.Parallel()

	worker := NewCleanupWorker(&stubCleanupRepo{}, WithInterval(-time.Minute), WithBatchSize(0))

	assert.Equal(t, defaultCleanupInterval, worker.opts.Interval)
	assert.Equal(t, defaultCleanupBatchSize, worker.opts.BatchSize)
	assert.NotNil(t, worker.opts.Logger)
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{deleteResults: []int{0, 0, 0}}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond), WithBatchSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	assert.NotZero(t, repo.calls())
}
