// Package journal persists decision logs and fans them out to live subscribers.
package journal

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

const subscriberBuffer = 64

type Journal struct {
	Repo   repository.DecisionRepository
	Logger *zap.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	ruleID uint64
	ch     chan models.DecisionLog
}

func New(repo repository.DecisionRepository, logger *zap.Logger) *Journal {
	return &Journal{Repo: repo, Logger: logger}
}

// Record persists the batch and then publishes it. Publishing never blocks:
// a subscriber whose buffer is full misses the entry.
func (j *Journal) Record(ctx context.Context, items []models.DecisionLog) error {
	if j == nil || len(items) == 0 {
		return nil
	}
	if j.Repo != nil {
		if err := j.Repo.InsertDecisionLogs(ctx, items); err != nil {
			if j.Logger != nil {
				j.Logger.Error("decision log write failed", zap.Int("count", len(items)), zap.Error(err))
			}
			return err
		}
	}
	j.publish(items)
	return nil
}

// Subscribe streams new decisions for one rule, or for every rule when
// ruleID is 0. The returned cancel closes the channel.
func (j *Journal) Subscribe(ruleID uint64) (<-chan models.DecisionLog, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.subs == nil {
		j.subs = map[int]*subscriber{}
	}
	j.nextID++
	id := j.nextID
	sub := &subscriber{ruleID: ruleID, ch: make(chan models.DecisionLog, subscriberBuffer)}
	j.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			j.mu.Lock()
			defer j.mu.Unlock()
			delete(j.subs, id)
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

func (j *Journal) Subscribers() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.subs)
}

func (j *Journal) publish(items []models.DecisionLog) {
	j.mu.Lock()
	defer j.mu.Unlock()
	dropped := 0
	for _, sub := range j.subs {
		for _, it := range items {
			if sub.ruleID != 0 && sub.ruleID != it.RuleID {
				continue
			}
			select {
			case sub.ch <- it:
			default:
				dropped++
			}
		}
	}
	if dropped > 0 && j.Logger != nil {
		j.Logger.Warn("decision stream subscriber lagging", zap.Int("dropped", dropped))
	}
}
