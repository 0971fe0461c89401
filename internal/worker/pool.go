package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"reconstruction-service/internal/service"
)

// Pool runs up to N concurrent job workers fed from the scheduler queue.
// One job is handled by exactly one worker for its entire lifetime.
type Pool struct {
	queue      service.Queue
	processor  *Processor
	workers    int
	claimDelay time.Duration
}

func NewPool(queue service.Queue, processor *Processor, workers int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
	}
}

// Run blocks until ctx is cancelled, then waits for in-flight jobs.
func (p *Pool) Run(ctx context.Context) {
	log.Printf("[worker] pool started workers=%d", p.workers)

	jobCh := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for jobID := range jobCh {
				if err := p.processor.Process(ctx, jobID); err != nil {
					log.Printf("[worker-%d] process job %s error: %v", n, jobID, err)
				}
				// Ack regardless: the job already reached a terminal status,
				// or the stale reaper will return the id to the queue.
				if ackErr := p.queue.Ack(ctx, jobID); ackErr != nil {
					log.Printf("[worker-%d] ack job %s error: %v", n, jobID, ackErr)
				}
			}
		}(i + 1)
	}

	for {
		select {
		case <-ctx.Done():
			close(jobCh)
			wg.Wait()
			log.Println("[worker] pool stopped")
			return
		default:
			jobID, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
			if err != nil {
				// empty queue or ctx cancel; loop decides
				continue
			}
			select {
			case jobCh <- jobID:
			case <-ctx.Done():
				close(jobCh)
				wg.Wait()
				return
			}
		}
	}
}
