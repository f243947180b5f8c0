package queue

import (
	"context"
	"sync"
	"time"

	"github.com/reusedev/detect-hub/internal/modules/logs"
)

type Task interface {
	Name() string
	Execute(ctx context.Context) error
}

// Queue runs tasks in the background, one goroutine per task. After the
// context is cancelled it stops accepting tasks and drains what is queued.
type Queue struct {
	tasks     chan Task
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

var ThumbnailQueue = New(100)

func New(size int) *Queue {
	return &Queue{tasks: make(chan Task, size)}
}

// Enqueue never blocks; it reports false when the queue is full or closed.
func (q *Queue) Enqueue(task Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.tasks <- task:
		return true
	default:
		logs.Logger.Warn().Str("task", task.Name()).Msg("task queue full, task dropped")
		return false
	}
}

func (q *Queue) close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.tasks)
		q.mu.Unlock()
		logs.Logger.Info().Msg("task queue closed")
	})
}

func (q *Queue) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	// queued tasks still finish after shutdown starts
	taskCtx := context.WithoutCancel(ctx)
	done := ctx.Done()
	for {
		select {
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				start := time.Now()
				if err := task.Execute(taskCtx); err != nil {
					logs.Logger.Err(err).Str("task", task.Name()).Msg("task failed")
					return
				}
				logs.Logger.Debug().Str("task", task.Name()).Dur("consume_ms", time.Since(start)).Msg("task done")
			}()
		case <-done:
			q.close()
			done = nil
		}
	}
}

func (q *Queue) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go q.run(ctx, wg)
}

func InitThumbnailQueue(ctx context.Context, wg *sync.WaitGroup) {
	ThumbnailQueue.Start(ctx, wg)
}
