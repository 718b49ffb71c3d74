// ABOUTME: Adapts the queue worker's blocking Run loop to a supervised service
// ABOUTME: Reports an unexpected worker exit as an error so the supervisor restarts it
package supervisor

import (
	"context"
	"fmt"
)

// Worker is satisfied by queue.QueueRunner. Closing it stays with the owner.
type Worker interface {
	Run(ctx context.Context) error
}

type WorkerService struct {
	worker Worker
	name   string
}

func NewWorkerService(worker Worker) *WorkerService {
	return &WorkerService{worker: worker, name: "sync-worker"}
}

// Serve consumes jobs until ctx ends. A worker that stops on its own is restarted.
func (s *WorkerService) Serve(ctx context.Context) error {
	if err := s.worker.Run(ctx); err != nil {
		return fmt.Errorf("sync worker: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("sync worker stopped unexpectedly")
}

func (s *WorkerService) String() string { return s.name }
