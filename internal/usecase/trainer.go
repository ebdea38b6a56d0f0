package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"PriceCast/internal/domain/models"
	drepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/predictor"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

// TrainerConfig selects the corpus and the predictor to fit.
type TrainerConfig struct {
	Symbols      []string
	PeriodDays   int
	TestFraction float64
	Seed         int64
	Variant      predictor.Variant
	Options      predictor.Options
	Fetchers     int
}

// Trainer downloads the training corpus and fits a new model.
type Trainer struct {
	source  drepo.PriceSource
	metrics drepo.Metrics
	log     *applogger.Logger
	cfg     TrainerConfig
	now     func() time.Time
}

func NewTrainer(source drepo.PriceSource, metrics drepo.Metrics, l *applogger.Logger, cfg TrainerConfig) *Trainer {
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.Fetchers <= 0 {
		cfg.Fetchers = 4
	}
	return &Trainer{source: source, metrics: metrics, log: l, cfg: cfg, now: time.Now}
}

// Train fits one model on every symbol that could be fetched. Symbols that
// fail to download or are too short are skipped; if none remain it returns
// models.ErrNoTrainingData.
func (t *Trainer) Train(ctx context.Context) (*predictor.Model, error) {
	start := time.Now()
	m, err := t.train(ctx)
	result := "ok"
	if err != nil {
		result = "error"
		t.metrics.RecordError("training")
	}
	t.metrics.RecordTraining(string(t.cfg.Variant), result, time.Since(start).Seconds())
	return m, err
}

func (t *Trainer) train(ctx context.Context) (*predictor.Model, error) {
	builder, err := features.NewBuilder(t.cfg.Options.Family(t.cfg.Variant), t.cfg.Options.LookBack)
	if err != nil {
		return nil, err
	}

	corpus, err := t.collect(ctx, builder.LookBack+1)
	if err != nil {
		return nil, err
	}

	var all []float64
	symbols := make([]string, 0, len(corpus))
	for _, s := range corpus {
		all = append(all, s.Closes()...)
		symbols = append(symbols, s.Symbol)
	}
	scaler, err := features.FitScaler(all)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}

	// Pairs never straddle two symbols.
	var pairs features.TrainingSet
	for _, s := range corpus {
		ts, err := builder.TrainingPairs(scaler.TransformAll(s.Closes()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Symbol, err)
		}
		pairs = pairs.Append(ts)
	}

	train, test := predictor.Split(pairs, t.cfg.TestFraction, t.cfg.Seed)
	t.log.Info("fitting model",
		applogger.String("variant", string(t.cfg.Variant)),
		applogger.Strings("symbols", symbols),
		applogger.Int("train_pairs", train.Len()),
		applogger.Int("test_pairs", test.Len()),
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := predictor.Fit(t.cfg.Variant, train, t.cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", t.cfg.Variant, err)
	}
	ev, err := predictor.Evaluate(p, test, scaler)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	ev.TrainSize = train.Len()
	t.log.Info("model evaluated",
		applogger.Float64("r2", ev.R2),
		applogger.Float64("rmse", ev.RMSE),
		applogger.Float64("within_two_pct", ev.WithinTwoPct),
	)

	return predictor.NewModel(p, scaler, builder, predictor.ModelMeta{
		Symbols:    symbols,
		Evaluation: &ev,
		TrainedAt:  t.now(),
	})
}

// collect fetches the corpus concurrently and keeps configured symbol order.
func (t *Trainer) collect(ctx context.Context, minPoints int) ([]models.PriceSeries, error) {
	from, to := util.DayRange(t.now(), t.cfg.PeriodDays)
	fetched := make([]models.PriceSeries, len(t.cfg.Symbols))

	var mu sync.Mutex
	var failures []error
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Fetchers)
	for i, sym := range t.cfg.Symbols {
		g.Go(func() error {
			s, err := t.source.DailyCloses(gctx, sym, from, to)
			if err == nil {
				err = s.Validate()
			}
			if err == nil && s.Len() < minPoints {
				err = fmt.Errorf("%w: %d points", models.ErrInsufficientData, s.Len())
			}
			if err != nil {
				t.log.Warn("skipping training symbol", applogger.String("symbol", sym), applogger.Error(err))
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", sym, err))
				mu.Unlock()
				return nil
			}
			s.Symbol = sym
			fetched[i] = s
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]models.PriceSeries, 0, len(fetched))
	for _, s := range fetched {
		if s.Len() > 0 {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		if len(failures) == 0 {
			return nil, models.ErrNoTrainingData
		}
		return nil, fmt.Errorf("%w: %w", models.ErrNoTrainingData, errors.Join(failures...))
	}
	return out, nil
}
