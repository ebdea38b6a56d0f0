package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"PriceCast/internal/domain/models"
	drepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/services/predictor"
	applogger "PriceCast/pkg/logger"
)

// ModelTrainer fits a complete new model.
type ModelTrainer interface {
	Train(ctx context.Context) (*predictor.Model, error)
}

// Locker serialises training across replicas sharing one artifact store.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// RegistryOption configures ModelRegistry.
type RegistryOption func(*ModelRegistry)

func WithTrainingTimeout(d time.Duration) RegistryOption {
	return func(r *ModelRegistry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLocker enables the cross-replica training lock.
func WithLocker(l Locker) RegistryOption {
	return func(r *ModelRegistry) { r.locker = l }
}

// WithRetryBackoff sets how long a failed training run blocks the next
// automatic attempt.
func WithRetryBackoff(d time.Duration) RegistryOption {
	return func(r *ModelRegistry) {
		if d > 0 {
			r.retryAfter = d
		}
	}
}

func WithRegistryLogger(l *applogger.Logger) RegistryOption {
	return func(r *ModelRegistry) {
		if l != nil {
			r.log = l
		}
	}
}

// ModelRegistry serves the current model and replaces it after retraining.
// Readers never block: the model pointer is swapped atomically once the new
// artifact has been persisted.
type ModelRegistry struct {
	store   drepo.ArtifactStore
	trainer ModelTrainer
	metrics drepo.Metrics
	key     string
	locker  Locker
	timeout time.Duration
	log     *applogger.Logger
	now     func() time.Time

	retryAfter time.Duration

	current  atomic.Pointer[predictor.Model]
	training atomic.Bool
	wg       sync.WaitGroup

	mu       sync.Mutex
	lastErr  error
	failedAt time.Time
}

func NewModelRegistry(store drepo.ArtifactStore, trainer ModelTrainer, metrics drepo.Metrics, key string, opts ...RegistryOption) *ModelRegistry {
	r := &ModelRegistry{
		store:   store,
		trainer: trainer,
		metrics: metrics,
		key:     key,
		timeout: 15 * time.Minute,
		log:     applogger.Nop(),
		now:     time.Now,

		retryAfter: time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(applogger.String("component", "model_registry"))
	return r
}

// Warmup loads the persisted model. When none is usable it starts training in
// the background and returns nil; the service answers "training" meanwhile.
func (r *ModelRegistry) Warmup(ctx context.Context) error {
	err := r.load(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrArtifactNotFound), models.IsArtifactMismatch(err):
		r.log.Warn("no usable model artifact, training", applogger.Error(err))
		r.StartTraining("warmup", false)
		return nil
	default:
		return err
	}
}

// Current returns the serving model. Without one it reports
// models.ErrModelTraining while a run is in flight, or starts a run on first
// use. After a failed run it reports models.ErrModelUnavailable with the cause
// until the retry backoff has passed.
func (r *ModelRegistry) Current() (*predictor.Model, error) {
	if m := r.current.Load(); m != nil {
		return m, nil
	}
	if r.training.Load() {
		return nil, models.ErrModelTraining
	}
	if at, lastErr := r.lastFailure(); lastErr != nil && r.now().Sub(at) < r.retryAfter {
		if models.IsTraining(lastErr) {
			// another replica holds the training lock
			return nil, models.ErrModelTraining
		}
		return nil, fmt.Errorf("%w: last training failed: %w", models.ErrModelUnavailable, lastErr)
	}
	r.StartTraining("first use", false)
	return nil, models.ErrModelTraining
}

// StartTraining launches a background run unless one is already in flight.
// With force unset the run first tries the artifact store, so a model trained
// by another replica is picked up instead of being fit again.
func (r *ModelRegistry) StartTraining(reason string, force bool) bool {
	if !r.training.CompareAndSwap(false, true) {
		return false
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.training.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if !force && r.load(ctx) == nil {
			return
		}
		if _, err := r.retrain(ctx, reason); err != nil {
			r.log.Error("background training failed", applogger.String("reason", reason), applogger.Error(err))
		}
	}()
	return true
}

// Retrain trains synchronously and returns the new model.
func (r *ModelRegistry) Retrain(ctx context.Context, reason string) (*predictor.Model, error) {
	if !r.training.CompareAndSwap(false, true) {
		return nil, models.ErrModelTraining
	}
	defer r.training.Store(false)
	return r.retrain(ctx, reason)
}

// Wait blocks until background training has finished.
func (r *ModelRegistry) Wait() { r.wg.Wait() }

func (r *ModelRegistry) Training() bool { return r.training.Load() }

func (r *ModelRegistry) Status() models.ModelStatus {
	st := models.ModelStatus{Training: r.training.Load()}
	r.mu.Lock()
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	r.mu.Unlock()

	m := r.current.Load()
	if m == nil {
		return st
	}
	a := m.Artifact()
	trainedAt := a.TrainedAt
	st.Ready = true
	st.Version = a.Version
	st.Variant = a.Variant
	st.TrainedAt = &trainedAt
	st.Symbols = a.Symbols
	st.Evaluation = a.Evaluation
	return st
}

func (r *ModelRegistry) retrain(ctx context.Context, reason string) (*predictor.Model, error) {
	lockKey := "train-lock:" + r.key
	if r.locker != nil {
		ok, err := r.locker.TryLock(ctx, lockKey, r.timeout)
		if err != nil {
			return nil, r.fail(fmt.Errorf("acquire training lock: %w", err))
		}
		if !ok {
			return nil, r.fail(fmt.Errorf("another instance holds the training lock: %w", models.ErrModelTraining))
		}
		defer func() {
			if err := r.locker.Unlock(context.Background(), lockKey); err != nil {
				r.log.Warn("release training lock", applogger.Error(err))
			}
		}()
	}

	r.log.Info("training started", applogger.String("reason", reason))
	start := time.Now()
	m, err := r.trainer.Train(ctx)
	if err != nil {
		return nil, r.fail(fmt.Errorf("train: %w", err))
	}
	if err := r.store.Save(ctx, r.key, m.Artifact()); err != nil {
		return nil, r.fail(fmt.Errorf("save artifact: %w", err))
	}
	r.swap(m)
	r.clearErr()
	r.log.Info("training finished",
		applogger.String("version", m.Version()),
		applogger.Duration("elapsed", time.Since(start)))
	return m, nil
}

func (r *ModelRegistry) load(ctx context.Context) error {
	a, err := r.store.Load(ctx, r.key)
	if err != nil {
		return err
	}
	m, err := predictor.ModelFromArtifact(a)
	if err != nil {
		return err
	}
	r.swap(m)
	r.log.Info("model loaded", applogger.String("version", m.Version()))
	return nil
}

func (r *ModelRegistry) swap(m *predictor.Model) {
	r.current.Store(m)
	r.metrics.SetModelInfo(string(m.Variant), m.Version())
}

func (r *ModelRegistry) fail(err error) error {
	r.metrics.RecordError("retrain")
	r.mu.Lock()
	r.lastErr = err
	r.failedAt = r.now()
	r.mu.Unlock()
	return err
}

func (r *ModelRegistry) lastFailure() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failedAt, r.lastErr
}

func (r *ModelRegistry) clearErr() {
	r.mu.Lock()
	r.lastErr = nil
	r.mu.Unlock()
}
