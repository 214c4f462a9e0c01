package queue

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DeliveryHandler processes one queued notification payload
type DeliveryHandler func(ctx context.Context, payload []byte) error

// Worker drains the redis notification queue with a small pool of
// goroutines. Delivery failures are logged and dropped; the ledger never
// depends on a notification arriving.
type Worker struct {
	queue      *RedisQueue
	handler    DeliveryHandler
	numWorkers int
	log        *logrus.Logger
	wg         sync.WaitGroup
	quit       chan struct{}
}

// NewWorker creates a new worker pool
func NewWorker(queue *RedisQueue, handler DeliveryHandler, numWorkers int, log *logrus.Logger) *Worker {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Worker{
		queue:      queue,
		handler:    handler,
		numWorkers: numWorkers,
		log:        log,
		quit:       make(chan struct{}),
	}
}

// Start starts the worker goroutines
func (w *Worker) Start() {
	w.log.WithField("workers", w.numWorkers).Info("starting notification workers")
	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}
}

// Stop stops the workers and waits for them to exit
func (w *Worker) Stop() {
	close(w.quit)
	w.wg.Wait()
}

// process pulls payloads until stopped
func (w *Worker) process(workerID int) {
	defer w.wg.Done()

	ctx := context.Background()
	for {
		select {
		case <-w.quit:
			return
		default:
			payload, err := w.queue.Pop(ctx, time.Second)
			if err != nil {
				w.log.WithError(err).Error("error dequeueing notification")
				time.Sleep(time.Second)
				continue
			}
			if payload == nil {
				continue
			}

			if err := w.handler(ctx, payload); err != nil {
				w.log.WithError(err).WithField("worker", workerID).
					Warn("notification delivery failed")
			}
		}
	}
}
