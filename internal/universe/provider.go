// Package universe resolves the ordered symbol list a rule evaluates on a tick.
package universe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gnidc/Sheet-Manager-sub001/internal/cache"
)

var ErrEmptyUniverse = errors.New("universe is empty")

type Provider struct {
	Source         ConstituentSource
	Assets         AssetChecker
	Cache          cache.Store
	CacheTTL       time.Duration
	DefaultIndices []string
	Logger         *zap.Logger
}

// Load returns the filtered universe for one rule's tick: ascending and
// de-duplicated. Results are reused only within the same rule and tick.
func (p *Provider) Load(ctx context.Context, ruleID uint64, tickID string, filter Filter) ([]string, error) {
	if p == nil || p.Source == nil {
		return nil, errors.New("universe provider not configured")
	}
	f := filter.normalized(p.DefaultIndices)
	if len(f.Indices) == 0 {
		return nil, errors.New("universe filter has no indices")
	}

	key := fmt.Sprintf("universe:%d:%s:%s", ruleID, tickID, f.key())
	if tickID != "" {
		var cached []string
		if ok, err := cache.GetJSON(ctx, p.Cache, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	items, err := p.Source.Constituents(ctx, f.Indices)
	if err != nil {
		return nil, fmt.Errorf("load constituents: %w", err)
	}

	var tradable map[string]bool
	if p.Assets != nil {
		tradable, err = p.Assets.Tradable(ctx)
		if err != nil {
			return nil, err
		}
	}

	excluded := make(map[string]struct{}, len(f.Exclude))
	for _, s := range f.Exclude {
		excluded[s] = struct{}{}
	}

	seen := map[string]struct{}{}
	symbols := make([]string, 0, len(items))
	var missingMeta, untradable int
	for _, it := range items {
		sym := strings.ToUpper(strings.TrimSpace(it.Symbol))
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		if _, ok := excluded[sym]; ok {
			continue
		}
		if strings.TrimSpace(it.Name) == "" || strings.TrimSpace(it.Market) == "" {
			missingMeta++
			continue
		}
		if tradable != nil && !tradable[sym] {
			untradable++
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	if f.Limit > 0 && len(symbols) > f.Limit {
		symbols = symbols[:f.Limit]
	}

	if p.Logger != nil && (missingMeta > 0 || untradable > 0) {
		p.Logger.Info("universe symbols dropped",
			zap.Strings("indices", f.Indices),
			zap.Int("missing_metadata", missingMeta),
			zap.Int("untradable", untradable),
		)
	}
	if len(symbols) == 0 {
		return nil, ErrEmptyUniverse
	}

	if tickID != "" && p.CacheTTL > 0 {
		_ = cache.SetJSON(ctx, p.Cache, key, symbols, p.CacheTTL)
	}
	return symbols, nil
}
