package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"reklamai-generation/internal/domain/ports/adapter"
)

var (
	ErrNilTask   = errors.New("nil task")
	ErrQueueFull = errors.New("worker queue full")
)

var _ adapter.TaskRunner = (*Pool)(nil)

// A small worker pool that runs submitted tasks.

type Task func(ctx context.Context) error

// job pairs a task with the context of whoever queued it. A nil ctx means the
// worker's own context.
type job struct {
	ctx  context.Context
	task Task
}

type Pool struct {
	wg   sync.WaitGroup
	jobs chan job
	quit chan struct{}
	once sync.Once
	n    int
	log  *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Pool{jobs: make(chan job, workers*4), quit: make(chan struct{}), n: workers, log: logger}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case j := <-p.jobs:
					if j.task == nil {
						continue
					}
					runCtx := ctx
					if j.ctx != nil {
						runCtx = j.ctx
					}
					if err := j.task(runCtx); err != nil {
						p.log.Debug().Err(err).Int("worker", id).Msg("task error")
					}
				}
			}
		}(i)
	}
}

func (p *Pool) Stop() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit enqueues task without blocking; a saturated queue drops it.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	select {
	case p.jobs <- job{task: task}:
		return nil
	default:
		return ErrQueueFull
	}
}

// RunAll enqueues every task, waiting for queue space, and returns once all of
// them finished or ctx is done. Tasks run with ctx, so cancelling it reaches
// tasks already picked up; tasks that did not finish report ctx's error.
func (p *Pool) RunAll(ctx context.Context, tasks []func(ctx context.Context) error) []error {
	var (
		mu       sync.Mutex
		errs     = make([]error, len(tasks))
		finished = make([]bool, len(tasks))
		returned bool
		pending  sync.WaitGroup
	)
	record := func(i int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if !returned {
			errs[i], finished[i] = err, true
		}
	}

enqueue:
	for i, fn := range tasks {
		if fn == nil {
			record(i, ErrNilTask)
			continue
		}
		i, fn := i, fn
		pending.Add(1)
		task := func(ctx context.Context) error {
			defer pending.Done()
			if err := ctx.Err(); err != nil {
				record(i, err)
				return err
			}
			err := fn(ctx)
			record(i, err)
			return err
		}
		select {
		case p.jobs <- job{ctx: ctx, task: task}:
		case <-ctx.Done():
			pending.Done()
			break enqueue
		case <-p.quit:
			pending.Done()
			record(i, ErrQueueFull)
		}
	}

	all := make(chan struct{})
	go func() {
		pending.Wait()
		close(all)
	}()
	select {
	case <-all:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	returned = true
	out := make([]error, len(tasks))
	for i := range tasks {
		if finished[i] {
			out[i] = errs[i]
		} else {
			out[i] = ctx.Err()
		}
	}
	return out
}
