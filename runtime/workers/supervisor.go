package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"my-chat-backend/contract"
	"my-chat-backend/errors"
)

const DefaultRestartInterval = 200 * time.Millisecond

// Supervisor runs each worker in its own goroutine, restarts it after a
// panic or an error, and stops everything when its context is canceled.
// A worker returning nil is finished and never restarted.
type Supervisor struct {
	mu              sync.Mutex
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	log             *slog.Logger
	workers         []contract.Worker
	restartInterval time.Duration
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = DefaultRestartInterval
	}
	return &Supervisor{log: log, restartInterval: restartInterval}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run blocks until every worker is finished or the context is canceled.
// Stop cancels only the workers of this supervisor.
func (s *Supervisor) Run(ctx context.Context) {
	// Child of the parent ctx: the parent still stops us,
	// Stop only reaches our own workers.
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	// Release the context once every worker returned
	defer cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

// Start runs one worker under supervision.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	name := contract.GetWorkerName(worker)
	log := s.log.With("worker", name)

	go func() {
		defer s.wg.Done()
		for {
			if ctx.Err() != nil {
				log.Info("Stopping worker")
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
					}
				}()
				// Only this call is retried after a crash,
				// the supervising goroutine stays alive
				return worker.Run(ctx)
			}()

			if err == nil {
				// Clean exit, no restart
				log.Info("Worker finished")
				return
			}
			if ctx.Err() != nil {
				log.Info("Worker stopped (context canceled)")
				return
			}

			log.Warn("Worker crashed, restarting", "error", err, "in", s.restartInterval)
			select {
			case <-ctx.Done():
				// Shutdown wins over the restart delay
				return
			case <-time.After(s.restartInterval):
				// Still running, restart
			}
		}
	}()
}

// Stop cancels the supervised context; Run returns once the workers did.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
