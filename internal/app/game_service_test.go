package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"crewquest/internal/app"
	"crewquest/internal/domain"
	"crewquest/internal/infra/memory"
)

type stubGenerator struct {
	err   error
	calls int
}

// Generate echoes the requested category so rotation is observable.
func (g *stubGenerator) Generate(_ context.Context, _ domain.Role, category domain.Category, kind domain.ScenarioKind) (domain.Scenario, error) {
	g.calls++
	if g.err != nil {
		return domain.Scenario{}, g.err
	}
	return domain.Scenario{
		Text:     "Which option applies?",
		Context:  "Test",
		Category: category,
		Kind:     kind,
		Options: []domain.Option{
			{Text: "Wrong one", Correct: false},
			{Text: "Right one", Correct: true},
			{Text: "Other wrong one", Correct: false},
		},
		Explanation: "Right one is right.",
		FunFacts:    []string{"a", "b", "c"},
	}, nil
}

type stubArchive struct {
	fallback    domain.Scenario
	fallbackErr error
	recorded    []domain.Scenario
}

func (a *stubArchive) Fallback(_ context.Context, _ domain.Category, kind domain.ScenarioKind) (domain.Scenario, error) {
	if a.fallbackErr != nil {
		return domain.Scenario{}, a.fallbackErr
	}
	s := a.fallback
	s.Kind = kind
	return s, nil
}

func (a *stubArchive) Record(_ context.Context, scenario domain.Scenario) error {
	a.recorded = append(a.recorded, scenario)
	return nil
}

func newTestService(gen *stubGenerator, archive *stubArchive, opts ...app.ServiceOption) *app.GameService {
	opts = append([]app.ServiceOption{app.WithRand(rand.New(rand.NewSource(1)))}, opts...)
	return app.NewGameService(memory.NewGameStore(), gen, archive, memory.NewLeaderboardStore(), opts...)
}

func TestScoringCorrectAndIncorrect(t *testing.T) {
	ctx := context.Background()
	service := newTestService(&stubGenerator{}, &stubArchive{}, app.WithRounds(5))

	if err := service.StartGame(ctx, "g1", "Alice", domain.RolePilot); err != nil {
		t.Fatalf("start: %v", err)
	}

	view, err := service.NextScenario(ctx, "g1")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(view.Options) != 3 {
		t.Fatalf("expected 3 options, got %d", len(view.Options))
	}

	// Correct answer: score moves by exactly the scenario's point value
	// (1 for unit scenarios), history grows by one.
	feedback, err := service.SubmitAnswer(ctx, "g1", 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !feedback.Correct || feedback.Awarded != 1 || feedback.TotalScore != 1 {
		t.Fatalf("expected correct +1, got %+v", feedback)
	}
	if feedback.CorrectAnswer != "Right one" {
		t.Fatalf("expected correct answer text, got %q", feedback.CorrectAnswer)
	}

	// Wrong answer: score unchanged, history still grows.
	if _, err := service.NextScenario(ctx, "g1"); err != nil {
		t.Fatalf("next: %v", err)
	}
	feedback, err = service.SubmitAnswer(ctx, "g1", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if feedback.Correct || feedback.Awarded != 0 || feedback.TotalScore != 1 {
		t.Fatalf("expected incorrect +0, got %+v", feedback)
	}

	summary, err := service.Summary(ctx, "g1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary.History) != 2 {
		t.Fatalf("expected history length 2, got %d", len(summary.History))
	}
	if summary.FinalScore != 1 {
		t.Fatalf("expected score 1, got %d", summary.FinalScore)
	}
}

func TestGameCompletionRecordsLeaderboard(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	service := newTestService(&stubGenerator{}, &stubArchive{},
		app.WithRounds(2),
		app.WithClock(func() time.Time { return base }),
	)

	if err := service.StartGame(ctx, "g1", "Alice", domain.RoleAny); err != nil {
		t.Fatalf("start: %v", err)
	}

	var feedback domain.AnswerFeedback
	for round := 0; round < 2; round++ {
		if _, err := service.NextScenario(ctx, "g1"); err != nil {
			t.Fatalf("next: %v", err)
		}
		var err error
		feedback, err = service.SubmitAnswer(ctx, "g1", 1)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if !feedback.GameOver {
		t.Fatalf("expected game over after final round")
	}

	lb, err := service.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 {
		t.Fatalf("expected 1 leaderboard entry, got %d", len(lb.Entries))
	}
	if lb.Entries[0].PlayerName != "Alice" || lb.Entries[0].Score != 2 {
		t.Fatalf("unexpected entry %+v", lb.Entries[0])
	}
	if !lb.Entries[0].RecordedAt.Equal(base) {
		t.Fatalf("expected clock timestamp, got %v", lb.Entries[0].RecordedAt)
	}

	// The finished game accepts no further rounds.
	if _, err := service.NextScenario(ctx, "g1"); !errors.Is(err, domain.ErrGameOver) {
		t.Fatalf("expected game over error, got %v", err)
	}
}

func TestFallbackWhenGeneratorFails(t *testing.T) {
	ctx := context.Background()
	archive := &stubArchive{fallback: domain.Scenario{
		Text:     "Archived scenario",
		Category: domain.CategoryOperations,
		Options: []domain.Option{
			{Text: "A", Correct: true},
			{Text: "B", Correct: false},
		},
	}}
	service := newTestService(&stubGenerator{err: domain.ErrAPIUnavailable}, archive)

	if err := service.StartGame(ctx, "g1", "Alice", domain.RoleAny); err != nil {
		t.Fatalf("start: %v", err)
	}
	view, err := service.NextScenario(ctx, "g1")
	if err != nil {
		t.Fatalf("expected archive fallback, got %v", err)
	}
	if view.Text != "Archived scenario" {
		t.Fatalf("expected archived scenario, got %q", view.Text)
	}
	if len(archive.recorded) != 0 {
		t.Fatalf("failed generations must not be recorded")
	}
}

func TestGeneratorFailureIsRecoverable(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{err: domain.ErrAPIUnavailable}
	service := newTestService(gen, &stubArchive{fallbackErr: domain.ErrNoFallback})

	if err := service.StartGame(ctx, "g1", "Alice", domain.RoleAny); err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err := service.NextScenario(ctx, "g1")
	if !errors.Is(err, domain.ErrAPIUnavailable) {
		t.Fatalf("expected generator error when archive is empty, got %v", err)
	}

	// The game survives the failure: a retry succeeds once the API is back.
	gen.err = nil
	if _, err := service.NextScenario(ctx, "g1"); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
}

func TestSuccessfulGenerationIsArchived(t *testing.T) {
	ctx := context.Background()
	archive := &stubArchive{}
	service := newTestService(&stubGenerator{}, archive)

	_ = service.StartGame(ctx, "g1", "Alice", domain.RoleAny)
	if _, err := service.NextScenario(ctx, "g1"); err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(archive.recorded) != 1 {
		t.Fatalf("expected 1 recorded scenario, got %d", len(archive.recorded))
	}
}

func TestAnswerValidation(t *testing.T) {
	ctx := context.Background()
	service := newTestService(&stubGenerator{}, &stubArchive{})

	if err := service.StartGame(ctx, "g1", "   ", domain.RoleAny); !errors.Is(err, domain.ErrEmptyPlayerName) {
		t.Fatalf("expected empty name error, got %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, "missing", 0); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected game not found, got %v", err)
	}

	_ = service.StartGame(ctx, "g1", "Alice", domain.RoleAny)
	if _, err := service.SubmitAnswer(ctx, "g1", 0); !errors.Is(err, domain.ErrNoActiveScenario) {
		t.Fatalf("expected no active scenario, got %v", err)
	}

	if _, err := service.NextScenario(ctx, "g1"); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := service.NextScenario(ctx, "g1"); !errors.Is(err, domain.ErrScenarioPending) {
		t.Fatalf("expected pending error, got %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, "g1", 7); !errors.Is(err, domain.ErrOptionOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, "g1", -1); !errors.Is(err, domain.ErrOptionOutOfRange) {
		t.Fatalf("expected out of range for negative index, got %v", err)
	}
}

func TestCategoryRotationSpreadsTopics(t *testing.T) {
	ctx := context.Background()
	rounds := len(domain.Categories())
	service := newTestService(&stubGenerator{}, &stubArchive{}, app.WithRounds(rounds))

	_ = service.StartGame(ctx, "g1", "Alice", domain.RoleAny)

	seen := make(map[domain.Category]bool)
	for i := 0; i < rounds; i++ {
		view, err := service.NextScenario(ctx, "g1")
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if seen[view.Category] {
			t.Fatalf("category %s repeated before all were used", view.Category)
		}
		seen[view.Category] = true
		if _, err := service.SubmitAnswer(ctx, "g1", 0); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
}

func TestSubscribeReceivesLeaderboardUpdates(t *testing.T) {
	ctx := context.Background()
	service := newTestService(&stubGenerator{}, &stubArchive{}, app.WithRounds(1))

	ch, cancel, err := service.SubscribeLeaderboard(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := <-ch
	if len(initial.Entries) != 0 {
		t.Fatalf("expected empty initial leaderboard, got %d entries", len(initial.Entries))
	}

	_ = service.StartGame(ctx, "g1", "Alice", domain.RoleAny)
	if _, err := service.NextScenario(ctx, "g1"); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, "g1", 1); err != nil {
		t.Fatalf("submit: %v", err)
	}

	update := <-ch
	if len(update.Entries) != 1 || update.Entries[0].PlayerName != "Alice" {
		t.Fatalf("expected Alice on leaderboard, got %+v", update.Entries)
	}
}

func TestLeaderboardSortedDescending(t *testing.T) {
	ctx := context.Background()
	service := newTestService(&stubGenerator{}, &stubArchive{}, app.WithRounds(1))

	// Bob answers correctly, Alice and Cara do not.
	for _, p := range []struct {
		id, name string
		option   int
	}{
		{"g1", "Alice", 0},
		{"g2", "Bob", 1},
		{"g3", "Cara", 2},
	} {
		_ = service.StartGame(ctx, p.id, p.name, domain.RoleAny)
		if _, err := service.NextScenario(ctx, p.id); err != nil {
			t.Fatalf("next %s: %v", p.name, err)
		}
		if _, err := service.SubmitAnswer(ctx, p.id, p.option); err != nil {
			t.Fatalf("submit %s: %v", p.name, err)
		}
	}

	lb, err := service.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(lb.Entries))
	}
	if lb.Entries[0].PlayerName != "Bob" || lb.Entries[0].Score != 1 {
		t.Fatalf("expected Bob leading, got %+v", lb.Entries[0])
	}
	for i := 1; i < len(lb.Entries); i++ {
		if lb.Entries[i].Score > lb.Entries[i-1].Score {
			t.Fatalf("leaderboard not sorted descending: %+v", lb.Entries)
		}
	}
}

// fixedGenerator returns the same scenario on every call with no shared
// state, so concurrent games can use it.
type fixedGenerator struct{}

func (fixedGenerator) Generate(_ context.Context, _ domain.Role, category domain.Category, kind domain.ScenarioKind) (domain.Scenario, error) {
	return domain.Scenario{
		Text:     "Which option applies?",
		Category: category,
		Kind:     kind,
		Options: []domain.Option{
			{Text: "Wrong one", Correct: false},
			{Text: "Right one", Correct: true},
		},
	}, nil
}

// lockedArchive makes the stub safe for concurrent recording.
type lockedArchive struct {
	mu sync.Mutex
	stubArchive
}

func (a *lockedArchive) Record(ctx context.Context, scenario domain.Scenario) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stubArchive.Record(ctx, scenario)
}

func TestConcurrentGamesShareService(t *testing.T) {
	ctx := context.Background()
	service := app.NewGameService(memory.NewGameStore(), fixedGenerator{}, &lockedArchive{}, memory.NewLeaderboardStore(), app.WithRounds(3))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		gameID := fmt.Sprintf("g%d", i)
		playerName := fmt.Sprintf("Player %d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := service.StartGame(ctx, gameID, playerName, domain.RoleAny); err != nil {
				t.Errorf("%s start: %v", gameID, err)
				return
			}
			for round := 0; round < 3; round++ {
				if _, err := service.NextScenario(ctx, gameID); err != nil {
					t.Errorf("%s next: %v", gameID, err)
					return
				}
				if _, err := service.SubmitAnswer(ctx, gameID, 1); err != nil {
					t.Errorf("%s submit: %v", gameID, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	lb, err := service.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 4 {
		t.Fatalf("expected 4 finished games on the leaderboard, got %d", len(lb.Entries))
	}
}

// healingGenerator serves a scenario with no correct option once, then
// well-formed ones.
type healingGenerator struct {
	served bool
}

func (g *healingGenerator) Generate(_ context.Context, _ domain.Role, category domain.Category, kind domain.ScenarioKind) (domain.Scenario, error) {
	if !g.served {
		g.served = true
		return domain.Scenario{
			Text:     "Broken round",
			Category: category,
			Kind:     kind,
			Options: []domain.Option{
				{Text: "A", Correct: false},
				{Text: "B", Correct: false},
			},
		}, nil
	}
	return fixedGenerator{}.Generate(context.Background(), domain.RoleAny, category, kind)
}

func TestAnswerOnUnscorableScenarioIsRecoverable(t *testing.T) {
	ctx := context.Background()
	service := app.NewGameService(memory.NewGameStore(), &healingGenerator{}, &stubArchive{}, memory.NewLeaderboardStore(), app.WithRounds(2))

	if err := service.StartGame(ctx, "g1", "Alice", domain.RoleAny); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.NextScenario(ctx, "g1"); err != nil {
		t.Fatalf("next: %v", err)
	}

	// Scoring a scenario with no correct option must fail cleanly, not
	// crash the connection.
	if _, err := service.SubmitAnswer(ctx, "g1", 0); !errors.Is(err, domain.ErrMalformedScenario) {
		t.Fatalf("expected malformed scenario error, got %v", err)
	}

	// The broken deal did not consume the round.
	view, err := service.NextScenario(ctx, "g1")
	if err != nil {
		t.Fatalf("next after failure: %v", err)
	}
	if view.Round != 1 {
		t.Fatalf("expected round 1 after rollback, got %d", view.Round)
	}
	feedback, err := service.SubmitAnswer(ctx, "g1", 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !feedback.Correct {
		t.Fatalf("expected correct answer, got %+v", feedback)
	}
}
