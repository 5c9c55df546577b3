package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const jobQueueSize = 64

// Job блокирующая работа, выполняемая воркером.
type Job func(ctx context.Context) (string, error)

type jobResult struct {
	text string
	err  error
}

type dispatchJob struct {
	ctx  context.Context
	run  Job
	done chan jobResult
}

// Dispatcher выполняет блокирующие задачи в пуле фиксированного размера
// и ждёт результат не дольше заданного таймаута.
type Dispatcher struct {
	jobs     chan *dispatchJob
	quit     chan struct{}
	stopped  chan struct{}
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
	once     sync.Once
	inflight atomic.Int64
}

// NewDispatcher запускает workers горутин.
func NewDispatcher(workers int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		jobs:    make(chan *dispatchJob, jobQueueSize),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		timeout: timeout,
		logger:  logger,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Dispatch отдаёт задачу в пул и ждёт завершения, таймаута или отмены ctx.
// После таймаута уже запущенная задача продолжает работу, её результат отбрасывается.
func (d *Dispatcher) Dispatch(ctx context.Context, run Job) (string, error) {
	select {
	case <-d.quit:
		return "", errStopped()
	default:
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	j := &dispatchJob{ctx: jobCtx, run: run, done: make(chan jobResult, 1)}

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case d.jobs <- j:
	case <-timer.C:
		return "", d.timedOut()
	case <-ctx.Done():
		return "", d.abandoned(ctx.Err())
	case <-d.quit:
		return "", errStopped()
	}

	select {
	case res := <-j.done:
		return d.result(res)
	case <-timer.C:
		return "", d.timedOut()
	case <-ctx.Done():
		return "", d.abandoned(ctx.Err())
	case <-d.stopped:
		// Воркеры вышли: задача либо успела выполниться, либо осталась в очереди.
		select {
		case res := <-j.done:
			return d.result(res)
		default:
			return "", errStopped()
		}
	}
}

func (d *Dispatcher) result(res jobResult) (string, error) {
	if res.err != nil {
		return "", d.classify(res.err)
	}
	return res.text, nil
}

// InFlight число задач, выполняющихся прямо сейчас.
func (d *Dispatcher) InFlight() int {
	return int(d.inflight.Load())
}

// Close останавливает воркеры после завершения текущих задач.
// Задачи, которые остались в очереди, завершаются с FailureUnavailable.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.quit)
		d.wg.Wait()
		close(d.stopped)
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case j := <-d.jobs:
			// Ожидающий уже ушёл, пока задача стояла в очереди.
			if j.ctx.Err() != nil {
				continue
			}
			select {
			case <-d.quit:
				return
			default:
			}
			j.done <- d.execute(j)
		case <-d.quit:
			return
		}
	}
}

func (d *Dispatcher) execute(j *dispatchJob) (res jobResult) {
	d.inflight.Add(1)
	defer d.inflight.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			res = jobResult{err: fmt.Errorf("panic in job: %v", r)}
		}
	}()

	text, err := j.run(j.ctx)
	return jobResult{text: text, err: err}
}

func (d *Dispatcher) classify(err error) error {
	if errors.Is(err, ErrModelNotLoaded) {
		d.logger.Error("runtime error during report generation", "error", err)
		return &Failure{Kind: FailureUnavailable, Err: err}
	}

	d.logger.Error("unexpected error during report generation", "error", err)
	return &Failure{Kind: FailureInternal, Err: err}
}

func errStopped() error {
	return &Failure{Kind: FailureUnavailable, Err: errors.New("dispatcher is stopped")}
}

func (d *Dispatcher) timedOut() error {
	d.logger.Error("report generation timed out", "timeout_seconds", d.timeout.Seconds())
	return &Failure{Kind: FailureTimeout, Err: fmt.Errorf("no result within %s", d.timeout)}
}

func (d *Dispatcher) abandoned(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: FailureTimeout, Err: err}
	}
	return &Failure{Kind: FailureInternal, Err: err}
}
