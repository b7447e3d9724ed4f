package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/vaultpilot/vaultpilot/internal/executor"
	"github.com/vaultpilot/vaultpilot/internal/pkg/logger"
	"github.com/vaultpilot/vaultpilot/internal/pkg/metrics"
	"github.com/vaultpilot/vaultpilot/internal/signer"
)

var (
	ErrQueueFull   = errors.New("relayer queue is full")
	ErrJobNotFound = errors.New("job not found")
)

var relayerLog = logger.Component("relayer")

// Service queues signed rebalance payloads and drives them through the
// executor on background workers. Submission is fire-and-poll: the caller
// gets a job id immediately and checks status later.
type Service struct {
	store JobStore
	exec  *executor.Executor
	queue chan *Job
	wg    sync.WaitGroup
	stop  chan struct{}
	once  sync.Once
}

func NewService(store JobStore, exec *executor.Executor, queueSize int) *Service {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Service{
		store: store,
		exec:  exec,
		queue: make(chan *Job, queueSize),
		stop:  make(chan struct{}),
	}
}

func (s *Service) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.run()
	}
	relayerLog.Info("relayer workers started", "workers", workers)
}

func (s *Service) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// Submit validates nothing itself; every check belongs to the verifier, so a
// bad payload surfaces as a failed job rather than a rejected submission.
func (s *Service) Submit(ctx context.Context, vaultID uint64, payload *signer.RebalancePayload, signature string) (*Job, error) {
	now := time.Now()
	job := &Job{
		ID:        uuid.New().String(),
		VaultID:   vaultID,
		Payload:   payload,
		Signature: signature,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(ctx, job); err != nil {
		return nil, err
	}

	select {
	case s.queue <- job:
		metrics.JobQueueDepth.Set(float64(len(s.queue)))
		// The worker owns the queued job from here on; hand the caller a
		// snapshot so reading the response never races with processing.
		snapshot := *job
		return &snapshot, nil
	default:
		job.Status = StatusFailed
		job.Error = ErrQueueFull.Error()
		job.UpdatedAt = time.Now()
		_ = s.store.Put(ctx, job)
		return nil, ErrQueueFull
	}
}

func (s *Service) Status(ctx context.Context, id string) (*Job, error) {
	job, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *Service) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case job := <-s.queue:
			metrics.JobQueueDepth.Set(float64(len(s.queue)))
			s.process(job)
		}
	}
}

func (s *Service) process(job *Job) {
	ctx := context.Background()

	job.Status = StatusPending
	job.UpdatedAt = time.Now()
	_ = s.store.Put(ctx, job)

	err := s.exec.ExecuteRebalance(job.VaultID, job.Payload, job.Signature)
	job.UpdatedAt = time.Now()
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		relayerLog.Warn("job failed", "job_id", job.ID, "vault_id", job.VaultID, "error", err)
	} else {
		job.Status = StatusCompleted
		job.TxHash = pseudoTxHash(job)
		relayerLog.Info("job completed", "job_id", job.ID, "vault_id", job.VaultID, "tx_hash", job.TxHash)
	}
	_ = s.store.Put(ctx, job)
}

// pseudoTxHash derives a stable identifier for a completed execution. There
// is no real chain inclusion in the demo deployment, but callers expect a
// transaction-hash shaped receipt.
func pseudoTxHash(job *Job) string {
	seed := fmt.Sprintf("%s:%d:%d", job.ID, job.VaultID, job.Payload.Nonce)
	return crypto.Keccak256Hash([]byte(seed), job.Payload.ActionData).Hex()
}
