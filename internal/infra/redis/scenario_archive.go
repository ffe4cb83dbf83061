package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"crewquest/internal/domain"
	"crewquest/internal/infra/memory"
	"crewquest/internal/randutil"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ScenarioArchive caches archived scenarios in Redis (one list per category,
// JSON-encoded) and falls back to a loader on cache miss. Freshly generated
// scenarios are pushed into the same lists so every instance can serve them
// as fallbacks.
type ScenarioArchive struct {
	client   *redis.Client
	loader   memory.ArchiveLoader
	recorder memory.ArchiveRecorder
	ttl      time.Duration
	sf       singleflight.Group
	rnd      *rand.Rand
}

// ArchiveOption configures a ScenarioArchive.
type ArchiveOption func(*ScenarioArchive)

// WithRecorder forwards recorded scenarios to a durable store.
func WithRecorder(recorder memory.ArchiveRecorder) ArchiveOption {
	return func(a *ScenarioArchive) { a.recorder = recorder }
}

func NewScenarioArchive(client *redis.Client, loader memory.ArchiveLoader, ttl time.Duration, opts ...ArchiveOption) *ScenarioArchive {
	a := &ScenarioArchive{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    randutil.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ScenarioArchive) Record(ctx context.Context, scenario domain.Scenario) error {
	payload, err := json.Marshal(scenario)
	if err != nil {
		return err
	}
	if err := a.client.RPush(ctx, a.key(scenario.Category), payload).Err(); err != nil {
		return err
	}
	if a.recorder != nil {
		return a.recorder.RecordScenario(ctx, scenario)
	}
	return nil
}

func (a *ScenarioArchive) Fallback(ctx context.Context, category domain.Category, kind domain.ScenarioKind) (domain.Scenario, error) {
	candidates := a.candidates(ctx, category)
	if len(candidates) == 0 {
		for _, other := range domain.Categories() {
			if other == category {
				continue
			}
			if candidates = a.candidates(ctx, other); len(candidates) > 0 {
				break
			}
		}
	}
	if len(candidates) == 0 {
		return domain.Scenario{}, domain.ErrNoFallback
	}

	scenario := candidates[a.rnd.Intn(len(candidates))]
	scenario.Kind = kind
	return scenario, nil
}

func (a *ScenarioArchive) candidates(ctx context.Context, category domain.Category) []domain.Scenario {
	key := a.key(category)

	raw, err := a.client.LRange(ctx, key, 0, -1).Result()
	if err == nil && len(raw) > 0 {
		return decodeScenarios(raw)
	}
	if a.loader == nil {
		return nil
	}

	result, err, _ := a.sf.Do(string(category), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		raw, err := a.client.LRange(ctx, key, 0, -1).Result()
		if err == nil && len(raw) > 0 {
			return decodeScenarios(raw), nil
		}

		scenarios, err := a.loader.LoadScenarios(ctx, category)
		if err != nil {
			return nil, err
		}

		if len(scenarios) > 0 {
			pipe := a.client.Pipeline()
			for _, s := range scenarios {
				if payload, err := json.Marshal(s); err == nil {
					pipe.RPush(ctx, key, payload)
				}
			}
			if ttl := a.ttlWithJitter(); ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			_, _ = pipe.Exec(ctx)
		}
		return scenarios, nil
	})
	if err != nil {
		return nil
	}
	return result.([]domain.Scenario)
}

func (a *ScenarioArchive) key(category domain.Category) string {
	return "crewquest:archive:" + string(category)
}

func (a *ScenarioArchive) ttlWithJitter() time.Duration {
	if a.ttl <= 0 {
		return 0
	}
	jitterMax := int64(a.ttl) / 10
	return a.ttl + time.Duration(a.rnd.Int63n(jitterMax+1))
}

func decodeScenarios(raw []string) []domain.Scenario {
	scenarios := make([]domain.Scenario, 0, len(raw))
	for _, item := range raw {
		var s domain.Scenario
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			continue
		}
		if s.Validate() != nil {
			continue
		}
		scenarios = append(scenarios, s)
	}
	return scenarios
}
