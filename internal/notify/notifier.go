package notify

import (
	"container/heap"
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/telemetry"
)

// Значения по умолчанию.
const (
	defaultAttemptTimeout = 10 * time.Second
	defaultRetryInterval  = 500 * time.Millisecond
	drainPollInterval     = 10 * time.Millisecond
)

// Tracker — получатель обновлений взаимодействий.
type Tracker interface {
	Update(ctx context.Context, task domain.InteractionTask) error
}

// Config — конфигурация Notifier.
type Config struct {
	Tracker Tracker

	// Retries — повторы после первой неудачной попытки. 0 — без повторов.
	Retries int

	// RetryInterval — начальный интервал между повторами.
	RetryInterval time.Duration

	// Rate — максимум обращений к трекеру в секунду. 0 — без ограничения.
	Rate float64

	// AttemptTimeout — таймаут одной попытки.
	AttemptTimeout time.Duration

	Logger *slog.Logger
}

// Notifier — очередь обновлений взаимодействий с одним обработчиком.
type Notifier struct {
	tracker        Tracker
	retries        int
	retryInterval  time.Duration
	attemptTimeout time.Duration
	limiter        *rate.Limiter
	logger         *slog.Logger

	mu    sync.Mutex
	queue taskHeap
	seq   uint64
	busy  bool
	wake  chan struct{}

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// New создаёт Notifier. Обработка начинается после Start.
func New(cfg Config) *Notifier {
	n := &Notifier{
		tracker:        cfg.Tracker,
		retries:        cfg.Retries,
		retryInterval:  cfg.RetryInterval,
		attemptTimeout: cfg.AttemptTimeout,
		logger:         cfg.Logger,
		wake:           make(chan struct{}, 1),
	}
	if n.retryInterval <= 0 {
		n.retryInterval = defaultRetryInterval
	}
	if n.attemptTimeout <= 0 {
		n.attemptTimeout = defaultAttemptTimeout
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	if cfg.Rate > 0 {
		n.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return n
}

// Start запускает обработчик очереди. Обработчик работает до отмены ctx
// или до Stop.
func (n *Notifier) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	n.cancelFunc = cancel

	n.wg.Add(1)
	go n.run(ctx)

	n.logger.Info("notifier started", "retries", n.retries)
}

// Stop останавливает обработчик и ждёт завершения текущей задачи.
func (n *Notifier) Stop() {
	if n.cancelFunc != nil {
		n.cancelFunc()
	}
	n.wg.Wait()

	n.mu.Lock()
	dropped := n.queue.Len()
	n.queue = nil
	n.mu.Unlock()

	if dropped > 0 {
		telemetry.NotifyTotal.WithLabelValues("dropped").Add(float64(dropped))
		telemetry.NotifyQueueDepth.Set(0)
		n.logger.Warn("notifier stopped with pending tasks", "dropped", dropped)
	}
	n.logger.Info("notifier stopped")
}

// Drain ждёт, пока очередь опустеет и текущая задача завершится.
// Возвращает ctx.Err(), если ctx истёк раньше.
func (n *Notifier) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		n.mu.Lock()
		idle := n.queue.Len() == 0 && !n.busy
		n.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Enqueue ставит задачу в очередь. Не блокирует.
func (n *Notifier) Enqueue(task domain.InteractionTask) {
	n.mu.Lock()
	n.seq++
	heap.Push(&n.queue, item{task: task, seq: n.seq})
	depth := n.queue.Len()
	n.mu.Unlock()

	telemetry.NotifyQueueDepth.Set(float64(depth))

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// Len возвращает число задач в очереди.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.queue.Len()
}

// run — единственный обработчик очереди.
func (n *Notifier) run(ctx context.Context) {
	defer n.wg.Done()

	for {
		task, ok := n.next(ctx)
		if !ok {
			return
		}
		n.process(ctx, task)

		n.mu.Lock()
		n.busy = false
		n.mu.Unlock()
	}
}

// next ждёт задачу или отмену контекста.
func (n *Notifier) next(ctx context.Context) (domain.InteractionTask, bool) {
	for {
		n.mu.Lock()
		if n.queue.Len() > 0 {
			it := heap.Pop(&n.queue).(item)
			n.busy = true
			depth := n.queue.Len()
			n.mu.Unlock()
			telemetry.NotifyQueueDepth.Set(float64(depth))
			return it.task, true
		}
		n.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.InteractionTask{}, false
		case <-n.wake:
		}
	}
}

// process отправляет задачу трекеру. Ошибка и паника трекера только логируются.
func (n *Notifier) process(ctx context.Context, task domain.InteractionTask) {
	logger := n.logger.With(
		"flow_id", task.FlowID,
		"interaction_id", task.InteractionID,
		"txn_id", task.TxnID,
		"remote_txn_id", task.RemoteTxnID,
	)

	defer func() {
		if r := recover(); r != nil {
			telemetry.NotifyTotal.WithLabelValues("failed").Inc()
			logger.Error("tracker panic recovered",
				"error", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return
		}
	}

	logger.Debug("update interaction", "status", task.Status)

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = n.retryInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, n.attemptTimeout)
		defer cancel()
		return struct{}{}, n.tracker.Update(attemptCtx, task)
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(n.retries+1)),
	)
	if err != nil {
		telemetry.NotifyTotal.WithLabelValues("failed").Inc()
		logger.Error("update interaction failed", "error", err)
		return
	}

	telemetry.NotifyTotal.WithLabelValues("ok").Inc()
	logger.Debug("interaction updated", "status", task.Status)
}
