package audit

/*
Recorder: неблокирующий журнал событий аутентификации.

- Хендлер кладет событие в буферизированный канал и сразу отвечает клиенту;
  задержки записи в БД не влияют на время ответа.
- Воркер копит события и пишет пачкой по таймеру или при достижении лимита.
- Stop закрывает канал и ждет финального flush: при остановке сервиса события не теряются.
- При переполнении буфера событие уходит в структурный лог (load shedding).
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/orbit-auth/internal/infra"
	"go.uber.org/zap"
)

// Storage определяет, куда физически сохраняются события
type Storage interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []AuthEvent) error
}

type Auditor interface {
	Record(event AuthEvent)
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

type Recorder struct {
	ch      chan AuthEvent
	repo    Storage
	logger  *zap.Logger
	metrics *infra.Metrics
	opts    Options
	wg      sync.WaitGroup
	// Защита от Record после Stop
	isClosed atomic.Bool
	// Защищает close(ch) от гонки с отправкой
	mu sync.RWMutex
}

func NewRecorder(repo Storage, logger *zap.Logger, metrics *infra.Metrics, opts Options) *Recorder {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	return &Recorder{
		ch:      make(chan AuthEvent, opts.BufferSize),
		repo:    repo,
		logger:  logger.Named("audit"),
		metrics: metrics,
		opts:    opts,
	}
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.worker()
}

// Stop «запирает» вход и ждет, пока воркер все допишет.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.isClosed.Swap(true) {
		r.mu.Unlock()
		return
	}
	r.logger.Info("stopping auditor: closing channel and flushing buffer...")
	close(r.ch)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("auditor stopped gracefully")
}

func (r *Recorder) Record(event AuthEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.isClosed.Load() {
		r.logger.Warn("audit event dropped: auditor is stopping", zap.String("id", event.ID))
		return
	}

	select {
	case r.ch <- event:
		r.metrics.AuditBufferFill.Set(float64(len(r.ch)))
	default:
		// Backpressure: не теряем событие совсем, оставляем след в логе
		r.logger.Error("audit_buffer_overflow",
			zap.String("action", event.Action),
			zap.String("user_id", event.UserID),
			zap.String("outcome", event.Outcome),
		)
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	batch := make([]AuthEvent, 0, r.opts.BatchSize)
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: основной контекст при остановке уже может быть отменен
		if err := r.repo.WriteBatch(context.Background(), batch); err != nil {
			r.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = make([]AuthEvent, 0, r.opts.BatchSize)
		r.metrics.AuditBufferFill.Set(float64(len(r.ch)))
	}

	for {
		select {
		case event, ok := <-r.ch:
			if !ok {
				flush() // финальный сброс
				r.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= r.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// LogStorage пишет события в структурный лог (драйвер memory).
type LogStorage struct {
	logger *zap.Logger
}

func NewLogStorage(logger *zap.Logger) *LogStorage {
	return &LogStorage{logger: logger.Named("audit-log")}
}

func (s *LogStorage) WriteBatch(_ context.Context, events []AuthEvent) error {
	for _, e := range events {
		s.logger.Info("auth event",
			zap.String("id", e.ID),
			zap.String("request_id", e.RequestID),
			zap.String("action", e.Action),
			zap.String("outcome", e.Outcome),
			zap.String("user_id", e.UserID),
			zap.String("email", e.Email),
			zap.String("remote_ip", e.RemoteIP),
			zap.String("detail", e.Detail),
			zap.Time("timestamp", e.Timestamp),
		)
	}
	return nil
}
