package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"crewquest/internal/domain"
	"crewquest/internal/randutil"
	"golang.org/x/sync/singleflight"
)

// ArchiveLoader fetches archived scenarios for a category from a backing
// store (e.g. Postgres).
type ArchiveLoader interface {
	LoadScenarios(ctx context.Context, category domain.Category) ([]domain.Scenario, error)
}

// ArchiveRecorder persists freshly generated scenarios.
type ArchiveRecorder interface {
	RecordScenario(ctx context.Context, scenario domain.Scenario) error
}

// recordedPerCategory bounds in-process retention of generated scenarios.
const recordedPerCategory = 50

// ScenarioArchive caches loader results per category with TTL to avoid
// repeated backing-store hits, and keeps recently generated scenarios so the
// game can keep dealing when the generative API is down.
type ScenarioArchive struct {
	loader   ArchiveLoader
	recorder ArchiveRecorder
	ttl      time.Duration
	clock    func() time.Time
	sf       singleflight.Group
	rnd      *rand.Rand

	mu       sync.RWMutex
	cache    map[domain.Category]cachedScenarios
	recorded map[domain.Category][]domain.Scenario
}

type cachedScenarios struct {
	scenarios []domain.Scenario
	expiresAt time.Time
}

// ArchiveOption configures a ScenarioArchive.
type ArchiveOption func(*ScenarioArchive)

// WithRecorder forwards recorded scenarios to a durable store.
func WithRecorder(recorder ArchiveRecorder) ArchiveOption {
	return func(a *ScenarioArchive) { a.recorder = recorder }
}

func NewScenarioArchive(loader ArchiveLoader, ttl time.Duration, opts ...ArchiveOption) *ScenarioArchive {
	a := &ScenarioArchive{
		loader:   loader,
		ttl:      ttl,
		clock:    time.Now,
		rnd:      randutil.New(),
		cache:    make(map[domain.Category]cachedScenarios),
		recorded: make(map[domain.Category][]domain.Scenario),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record keeps the scenario in memory and forwards it to the durable
// recorder when one is configured.
func (a *ScenarioArchive) Record(ctx context.Context, scenario domain.Scenario) error {
	a.mu.Lock()
	kept := a.recorded[scenario.Category]
	kept = append(kept, scenario)
	if len(kept) > recordedPerCategory {
		kept = kept[len(kept)-recordedPerCategory:]
	}
	a.recorded[scenario.Category] = kept
	a.mu.Unlock()

	if a.recorder != nil {
		return a.recorder.RecordScenario(ctx, scenario)
	}
	return nil
}

// Fallback returns a random archived scenario for the category, widening to
// any category before giving up.
func (a *ScenarioArchive) Fallback(ctx context.Context, category domain.Category, kind domain.ScenarioKind) (domain.Scenario, error) {
	candidates := a.candidates(ctx, category)
	if len(candidates) == 0 {
		// Nothing archived for this category; any topic beats an error.
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
	loaded, _ := a.load(ctx, category)

	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.Scenario, 0, len(loaded)+len(a.recorded[category]))
	out = append(out, loaded...)
	out = append(out, a.recorded[category]...)
	return out
}

func (a *ScenarioArchive) load(ctx context.Context, category domain.Category) ([]domain.Scenario, error) {
	if a.loader == nil {
		return nil, nil
	}
	now := a.clock()

	a.mu.RLock()
	if entry, ok := a.cache[category]; ok && entry.expiresAt.After(now) {
		a.mu.RUnlock()
		return entry.scenarios, nil
	}
	a.mu.RUnlock()

	result, err, _ := a.sf.Do(string(category), func() (interface{}, error) {
		now := a.clock()
		a.mu.RLock()
		if entry, ok := a.cache[category]; ok && entry.expiresAt.After(now) {
			a.mu.RUnlock()
			return entry.scenarios, nil
		}
		a.mu.RUnlock()

		scenarios, err := a.loader.LoadScenarios(ctx, category)
		if err != nil {
			return nil, err
		}

		a.mu.Lock()
		a.cache[category] = cachedScenarios{
			scenarios: scenarios,
			expiresAt: now.Add(a.ttlWithJitter()),
		}
		a.mu.Unlock()
		return scenarios, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Scenario), nil
}

func (a *ScenarioArchive) ttlWithJitter() time.Duration {
	if a.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(a.ttl) / 10
	return a.ttl + time.Duration(a.rnd.Int63n(jitterMax+1))
}

// StaticLoader serves a fixed scenario set (seed templates, tests).
type StaticLoader struct {
	scenarios map[domain.Category][]domain.Scenario
}

func NewStaticLoader(scenarios map[domain.Category][]domain.Scenario) *StaticLoader {
	return &StaticLoader{scenarios: scenarios}
}

func (l *StaticLoader) LoadScenarios(_ context.Context, category domain.Category) ([]domain.Scenario, error) {
	return l.scenarios[category], nil
}
