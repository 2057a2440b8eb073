package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gnidc/Sheet-Manager-sub001/internal/backoff"
	"github.com/gnidc/Sheet-Manager-sub001/internal/cache"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

// Provider wraps a Source with a per-call timeout, a single retry on
// transient failures, shared pacing and a short-lived cache.
type Provider struct {
	Source      Source
	Cache       cache.Store
	CacheTTL    time.Duration
	CallTimeout time.Duration
	Policy      backoff.Policy
	Pacer       *backoff.Pacer
	Logger      *zap.Logger

	now func() time.Time
}

type ProviderOptions struct {
	CallTimeout   time.Duration
	MaxAttempts   int
	RetryDelay    time.Duration
	InterCallWait time.Duration
	CacheTTL      time.Duration
}

func NewProvider(src Source, store cache.Store, opts ProviderOptions, logger *zap.Logger) *Provider {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 2
	}
	return &Provider{
		Source:      src,
		Cache:       store,
		CacheTTL:    opts.CacheTTL,
		CallTimeout: opts.CallTimeout,
		Policy: backoff.Policy{
			MaxAttempts: opts.MaxAttempts,
			BaseDelay:   opts.RetryDelay,
			Retryable:   func(err error) bool { return errors.Is(err, ErrTransient) },
		},
		Pacer:  backoff.NewPacer(opts.InterCallWait),
		Logger: logger,
		now:    time.Now,
	}
}

// GetBars returns up to lookback daily bars for symbol, oldest first.
// Errors are per symbol; callers decide whether to skip the symbol.
func (p *Provider) GetBars(ctx context.Context, symbol string, lookback int) ([]models.PriceBar, error) {
	if p == nil || p.Source == nil {
		return nil, errors.New("price provider not configured")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if lookback <= 0 {
		lookback = 80
	}

	now := p.clock()
	key := fmt.Sprintf("bars:%s:%s:%d:%s", p.Source.Name(), symbol, lookback, now.Format("2006-01-02"))
	if p.CacheTTL > 0 {
		var cached []models.PriceBar
		if ok, err := cache.GetJSON(ctx, p.Cache, key, &cached); err == nil && ok && len(cached) > 0 {
			return cached, nil
		} else if err != nil && p.Logger != nil {
			p.Logger.Warn("bar cache read failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	start := now.Add(-calendarSpan(lookback))
	var bars []models.PriceBar
	attempts, err := p.Policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if err := p.Pacer.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		callCtx, cancel := context.WithTimeout(ctx, p.CallTimeout)
		defer cancel()
		got, err := p.Source.FetchDaily(callCtx, symbol, start, now)
		if err != nil {
			// A per-call timeout is transient; the caller's own deadline is not.
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("%w: call timeout", ErrTransient)
			}
			return err
		}
		bars = got
		return nil
	})
	if err != nil {
		if p.Logger != nil {
			p.Logger.Warn("bars fetch failed",
				zap.String("symbol", symbol),
				zap.String("source", p.Source.Name()),
				zap.Int("attempts", attempts),
				zap.Error(err),
			)
		}
		return nil, fmt.Errorf("bars %s: %w", symbol, err)
	}

	bars = lastN(bars, lookback)
	if len(bars) == 0 {
		return nil, fmt.Errorf("bars %s: %w", symbol, ErrNoData)
	}
	if p.CacheTTL > 0 {
		if err := cache.SetJSON(ctx, p.Cache, key, bars, p.CacheTTL); err != nil && p.Logger != nil {
			p.Logger.Warn("bar cache write failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return bars, nil
}

func (p *Provider) clock() time.Time {
	if p.now != nil {
		return p.now().UTC()
	}
	return time.Now().UTC()
}
