package relayer

import (
	"context"
	"sync"
	"time"

	"github.com/vaultpilot/vaultpilot/internal/signer"
)

type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusPending   JobStatus = "pending"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job tracks one submitted rebalance payload through the relayer pipeline.
type Job struct {
	ID        string                   `json:"id"`
	VaultID   uint64                   `json:"vault_id"`
	Payload   *signer.RebalancePayload `json:"payload"`
	Signature string                   `json:"signature"`
	Status    JobStatus                `json:"status"`
	TxHash    string                   `json:"tx_hash,omitempty"`
	Error     string                   `json:"error,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// JobStore persists job state. There are no durability guarantees beyond the
// backing store's own; the in-memory implementation forgets on restart.
type JobStore interface {
	Put(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, bool, error)
}

// MemoryJobStore is the default store when no Redis is configured.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*Job)}
}

func (s *MemoryJobStore) Put(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (*Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false, nil
	}
	cp := *job
	return &cp, true, nil
}
