package index

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Mutation op codes. The op selects which Client call the synchronizer
// makes and which fields of the mutation are meaningful.
const (
	OpUpsert               = "upsert"
	OpDeleteVersion        = "delete_version"
	OpDeleteRepresentation = "delete_representation"
	OpDeleteRecord         = "delete_record"
	OpAddDataSet           = "add_data_set"
	OpRemoveDataSet        = "remove_data_set"
	OpRemoveDataSetAll     = "remove_data_set_all"
)

// Mutation is one asynchronous index update. It is JSON-serializable so
// failed mutations survive in the journal across restarts.
type Mutation struct {
	Op        string    `json:"op"`
	Document  *Document `json:"document,omitempty"`
	CloudID   string    `json:"cloudId,omitempty"`
	Schema    string    `json:"schema,omitempty"`
	VersionID string    `json:"versionId,omitempty"`
	DataSet   string    `json:"dataSet,omitempty"`
}

// SynchronizerConfig tunes the worker pool and the journal sweep.
type SynchronizerConfig struct {
	Workers       int
	QueueSize     int
	SweepInterval time.Duration
}

// Synchronizer applies index mutations asynchronously through a bounded
// queue and a fixed worker pool. Callers never see index errors: a
// failed mutation is logged and journaled, and a periodic sweep replays
// the journal once the index is reachable again.
type Synchronizer struct {
	client  Client
	journal *Journal
	logger  *slog.Logger

	queue chan Mutation
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool

	sweepInterval time.Duration
	stopSweep     chan struct{}

	closeOnce sync.Once
}

// NewSynchronizer starts the worker pool and, when a journal is
// provided, the sweep loop. journal may be nil, in which case failed
// mutations are only logged.
func NewSynchronizer(client Client, journal *Journal, logger *slog.Logger, cfg SynchronizerConfig) *Synchronizer {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	s := &Synchronizer{
		client:        client,
		journal:       journal,
		logger:        logger,
		queue:         make(chan Mutation, cfg.QueueSize),
		sweepInterval: cfg.SweepInterval,
		stopSweep:     make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	if journal != nil {
		s.wg.Add(1)
		go s.sweepLoop()
	}
	return s
}

// Submit enqueues a mutation. It never blocks the caller: when the
// queue is full, or the synchronizer is already closed, the mutation
// goes straight to the journal and a later sweep picks it up.
func (s *Synchronizer) Submit(m Mutation) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("index synchronizer closed, journaling mutation", "op", m.Op)
		s.journalMutation(m)
		return
	}
	select {
	case s.queue <- m:
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		s.logger.Warn("index queue full, journaling mutation", "op", m.Op)
		s.journalMutation(m)
	}
}

// Close drains the queue, applies the remaining mutations, and stops
// the workers and the sweep loop. Submissions after Close land in the
// journal.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		close(s.stopSweep)
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
		s.wg.Wait()
	})
}

func (s *Synchronizer) worker() {
	defer s.wg.Done()
	for m := range s.queue {
		if err := s.apply(m); err != nil {
			s.logger.Warn("index update failed, journaling mutation",
				"op", m.Op, "error", err)
			s.journalMutation(m)
		}
	}
}

func (s *Synchronizer) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopSweep:
			return
		}
	}
}

// Sweep replays journaled mutations against the index. Safe to call
// directly, e.g. from an operator command.
func (s *Synchronizer) Sweep() {
	if s.journal == nil {
		return
	}
	replayed, err := s.journal.Replay(s.apply)
	if err != nil {
		s.logger.Warn("index journal replay stopped",
			"replayed", replayed, "error", err)
		return
	}
	if replayed > 0 {
		s.logger.Info("replayed journaled index mutations", "count", replayed)
	}
}

func (s *Synchronizer) journalMutation(m Mutation) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Append(m); err != nil {
		s.logger.Error("failed to journal index mutation",
			"op", m.Op, "error", err)
	}
}

func (s *Synchronizer) apply(m Mutation) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch m.Op {
	case OpUpsert:
		return s.client.UpsertDocument(ctx, m.Document)
	case OpDeleteVersion:
		return s.client.DeleteDocument(ctx, m.VersionID)
	case OpDeleteRepresentation:
		return s.client.DeleteByRepresentation(ctx, m.CloudID, m.Schema)
	case OpDeleteRecord:
		return s.client.DeleteByRecord(ctx, m.CloudID)
	case OpAddDataSet:
		return s.client.AddDataSet(ctx, m.VersionID, m.DataSet)
	case OpRemoveDataSet:
		return s.client.RemoveDataSet(ctx, m.VersionID, m.DataSet)
	case OpRemoveDataSetAll:
		return s.client.RemoveDataSetEverywhere(ctx, m.DataSet)
	default:
		s.logger.Error("unknown index mutation op", "op", m.Op)
		return nil
	}
}
