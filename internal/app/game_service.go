package app

import (
	"context"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"crewquest/internal/domain"
	"crewquest/internal/randutil"
)

// ScenarioGenerator produces one scenario per round (Gemini in production).
type ScenarioGenerator interface {
	Generate(ctx context.Context, role domain.Role, category domain.Category, kind domain.ScenarioKind) (domain.Scenario, error)
}

// ScenarioArchive serves previously generated or seeded scenarios when the
// generator is down, and records fresh ones for future fallbacks.
type ScenarioArchive interface {
	Fallback(ctx context.Context, category domain.Category, kind domain.ScenarioKind) (domain.Scenario, error)
	Record(ctx context.Context, scenario domain.Scenario) error
}

// LeaderboardStore abstracts where finished-game results live (in-memory,
// Redis, etc).
type LeaderboardStore interface {
	Append(ctx context.Context, entry domain.LeaderboardEntry) error
	Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// GameRepository abstracts how in-flight games are stored.
type GameRepository interface {
	Put(gameID string, game *Game)
	Get(gameID string) (*Game, bool)
	Delete(gameID string)
}

// GameService contains the game use cases: start, deal, score, summarize,
// rank.
type GameService struct {
	games       GameRepository
	generator   ScenarioGenerator
	archive     ScenarioArchive
	leaderboard LeaderboardStore

	rounds          int
	leaderboardSize int

	now func() time.Time
	rnd *rand.Rand

	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

// ServiceOption tweaks service construction.
type ServiceOption func(*GameService)

// WithClock fixes the timestamp source (tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *GameService) { s.now = now }
}

// WithRand fixes the random source (tests). The source is wrapped so games
// running on separate connections can draw from it concurrently.
func WithRand(rnd *rand.Rand) ServiceOption {
	return func(s *GameService) { s.rnd = randutil.Wrap(rnd) }
}

// WithRounds overrides the rounds-per-game count.
func WithRounds(n int) ServiceOption {
	return func(s *GameService) {
		if n > 0 {
			s.rounds = n
		}
	}
}

// WithLeaderboardSize overrides how many entries Leaderboard returns.
func WithLeaderboardSize(n int) ServiceOption {
	return func(s *GameService) {
		if n > 0 {
			s.leaderboardSize = n
		}
	}
}

func NewGameService(games GameRepository, generator ScenarioGenerator, archive ScenarioArchive, leaderboard LeaderboardStore, opts ...ServiceOption) *GameService {
	s := &GameService{
		games:           games,
		generator:       generator,
		archive:         archive,
		leaderboard:     leaderboard,
		rounds:          5,
		leaderboardSize: 10,
		now:             time.Now,
		rnd:             randutil.New(),
		subscribers:     make(map[chan domain.Leaderboard]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rounds reports the configured rounds per game.
func (s *GameService) Rounds() int { return s.rounds }

// StartGame creates a fresh game for the connection.
func (s *GameService) StartGame(_ context.Context, gameID, playerName string, role domain.Role) error {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		return domain.ErrEmptyPlayerName
	}
	if role == "" {
		role = domain.RoleAny
	}
	s.games.Put(gameID, newGame(gameID, playerName, role, s.now))
	return nil
}

// NextScenario deals the next round. The generator is tried first; on any
// generator failure the archive serves a fallback. Only when both fail does
// the error reach the transport, which presents it as retryable.
func (s *GameService) NextScenario(ctx context.Context, gameID string) (domain.ScenarioView, error) {
	game, ok := s.games.Get(gameID)
	if !ok {
		return domain.ScenarioView{}, domain.ErrGameNotFound
	}

	category, kind, err := game.nextRoundPlan(s.rnd)
	if err != nil {
		return domain.ScenarioView{}, err
	}

	scenario, genErr := s.generator.Generate(ctx, game.Role(), category, kind)
	if genErr == nil {
		if err := s.archive.Record(ctx, scenario); err != nil {
			log.Printf("archive: record failed: %v", err)
		}
	} else {
		log.Printf("generator failed for category %s, using archive fallback: %v", category, genErr)
		scenario, err = s.archive.Fallback(ctx, category, kind)
		if err != nil {
			return domain.ScenarioView{}, genErr
		}
	}

	return game.deal(scenario, s.rounds), nil
}

// SubmitAnswer scores the player's selection against the current scenario.
// History always grows by one record; the score only moves on a correct
// answer. Finishing the last round records the result on the leaderboard.
func (s *GameService) SubmitAnswer(ctx context.Context, gameID string, optionIndex int) (domain.AnswerFeedback, error) {
	game, ok := s.games.Get(gameID)
	if !ok {
		return domain.AnswerFeedback{}, domain.ErrGameNotFound
	}

	feedback, err := game.answer(optionIndex, s.rounds)
	if err != nil {
		return domain.AnswerFeedback{}, err
	}

	if feedback.GameOver {
		entry := domain.LeaderboardEntry{
			PlayerName: game.PlayerName(),
			Score:      feedback.TotalScore,
			RecordedAt: s.now(),
		}
		if err := s.leaderboard.Append(ctx, entry); err != nil {
			log.Printf("leaderboard: append failed: %v", err)
		} else {
			s.broadcastLeaderboard(ctx)
		}
	}
	return feedback, nil
}

// Summary returns the per-round report for a game.
func (s *GameService) Summary(_ context.Context, gameID string) (domain.GameSummary, error) {
	game, ok := s.games.Get(gameID)
	if !ok {
		return domain.GameSummary{}, domain.ErrGameNotFound
	}
	return game.summary(), nil
}

// Leaderboard returns the ranked top entries.
func (s *GameService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	entries, err := s.leaderboard.Top(ctx, s.leaderboardSize)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: s.now()}, nil
}

// EndGame drops a game (client disconnected or restarted).
func (s *GameService) EndGame(_ context.Context, gameID string) {
	s.games.Delete(gameID)
}

// SubscribeLeaderboard returns a channel receiving leaderboard snapshots
// whenever a game finishes. The caller must invoke cancel to avoid leaks.
func (s *GameService) SubscribeLeaderboard(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.Leaderboard(ctx)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.Leaderboard, 8)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *GameService) broadcastLeaderboard(ctx context.Context) {
	lb, err := s.Leaderboard(ctx)
	if err != nil {
		log.Printf("leaderboard: snapshot for broadcast failed: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- lb:
		default:
			// Drop the stale snapshot so a slow client never blocks the rest.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

// Game is the per-player state for one play-through: awaiting answer,
// answered, or finished.
type Game struct {
	id         string
	playerName string
	role       domain.Role
	createdAt  time.Time
	now        func() time.Time

	mu             sync.Mutex
	round          int
	score          int
	history        []domain.RoundRecord
	categoryCounts map[domain.Category]int
	current        *domain.Scenario
	finished       bool
}

func newGame(id, playerName string, role domain.Role, now func() time.Time) *Game {
	counts := make(map[domain.Category]int, len(domain.Categories()))
	for _, c := range domain.Categories() {
		counts[c] = 0
	}
	return &Game{
		id:             id,
		playerName:     playerName,
		role:           role,
		createdAt:      now(),
		now:            now,
		categoryCounts: counts,
	}
}

func (g *Game) PlayerName() string { return g.playerName }
func (g *Game) Role() domain.Role  { return g.role }

// nextRoundPlan picks the category and kind for the upcoming round. The
// category is drawn from the least-used buckets so a five-round game spreads
// across topics; the kind is a coin flip between trivia and scenario.
func (g *Game) nextRoundPlan(rnd *rand.Rand) (domain.Category, domain.ScenarioKind, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.finished {
		return "", "", domain.ErrGameOver
	}
	if g.current != nil {
		return "", "", domain.ErrScenarioPending
	}

	min := -1
	for _, count := range g.categoryCounts {
		if min == -1 || count < min {
			min = count
		}
	}
	var leastUsed []domain.Category
	for _, c := range domain.Categories() {
		if g.categoryCounts[c] == min {
			leastUsed = append(leastUsed, c)
		}
	}
	category := leastUsed[rnd.Intn(len(leastUsed))]

	kind := domain.KindScenario
	if rnd.Intn(2) == 0 {
		kind = domain.KindTrivia
	}
	return category, kind, nil
}

func (g *Game) deal(scenario domain.Scenario, rounds int) domain.ScenarioView {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.round++
	g.categoryCounts[scenario.Category]++
	g.current = &scenario

	options := make([]string, 0, len(scenario.Options))
	for _, opt := range scenario.Options {
		options = append(options, opt.Text)
	}
	return domain.ScenarioView{
		Round:      g.round,
		Rounds:     rounds,
		Text:       scenario.Text,
		Context:    scenario.Context,
		Category:   scenario.Category,
		Difficulty: scenario.Difficulty,
		Points:     pointsOrDefault(scenario.Points),
		Options:    options,
		Kind:       scenario.Kind,
	}
}

func (g *Game) answer(optionIndex int, rounds int) (domain.AnswerFeedback, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.finished {
		return domain.AnswerFeedback{}, domain.ErrGameOver
	}
	if g.current == nil {
		return domain.AnswerFeedback{}, domain.ErrNoActiveScenario
	}
	scenario := *g.current
	if optionIndex < 0 || optionIndex >= len(scenario.Options) {
		return domain.AnswerFeedback{}, domain.ErrOptionOutOfRange
	}

	correctIndex := scenario.CorrectIndex()
	if correctIndex < 0 {
		// A scenario with no correct option cannot be scored. Roll the
		// round back so the player can request a fresh one.
		g.round--
		g.categoryCounts[scenario.Category]--
		g.current = nil
		return domain.AnswerFeedback{}, domain.ErrMalformedScenario
	}
	correct := optionIndex == correctIndex
	points := pointsOrDefault(scenario.Points)
	awarded := 0
	if correct {
		awarded = points
		g.score += awarded
	}

	g.history = append(g.history, domain.RoundRecord{
		Round:          g.round,
		Category:       scenario.Category,
		Context:        scenario.Context,
		Difficulty:     scenario.Difficulty,
		Scenario:       scenario.Text,
		PlayerChoice:   scenario.Options[optionIndex].Text,
		CorrectAnswer:  scenario.Options[correctIndex].Text,
		PointsEarned:   awarded,
		PointsPossible: points,
		Explanation:    scenario.Explanation,
	})
	g.current = nil
	if g.round >= rounds {
		g.finished = true
	}

	return domain.AnswerFeedback{
		Correct:       correct,
		Awarded:       awarded,
		TotalScore:    g.score,
		CorrectAnswer: scenario.Options[correctIndex].Text,
		Explanation:   scenario.Explanation,
		FunFacts:      scenario.FunFacts,
		GameOver:      g.finished,
	}, nil
}

func (g *Game) summary() domain.GameSummary {
	g.mu.Lock()
	defer g.mu.Unlock()

	history := make([]domain.RoundRecord, len(g.history))
	copy(history, g.history)
	return domain.GameSummary{
		PlayerName: g.playerName,
		Role:       g.role,
		FinalScore: g.score,
		History:    history,
	}
}

func pointsOrDefault(points int) int {
	if points <= 0 {
		return 1
	}
	return points
}
