package domain

import (
	"sort"
	"time"
)

// Role is the crew position a player identifies with. It steers scenario
// generation toward role-specific situations.
type Role string

const (
	RoleAny             Role = "Any Role"
	RoleFlightAttendant Role = "Flight Attendant"
	RolePilot           Role = "Pilot"
	RoleGroundOps       Role = "Ground Operations"
	RoleCustomerService Role = "Customer Service Agent"
	RoleOperationsAgent Role = "Operations Agent"
)

// Roles lists every selectable role, RoleAny first.
func Roles() []Role {
	return []Role{RoleAny, RoleFlightAttendant, RolePilot, RoleGroundOps, RoleCustomerService, RoleOperationsAgent}
}

// Category is a scenario topic bucket. Each game rotates through the
// least-used categories so five rounds never feel repetitive.
type Category string

const (
	CategoryCustomerService Category = "customer_service"
	CategoryOperations      Category = "operations"
	CategoryCulture         Category = "culture"
	CategoryHistory         Category = "history"
	CategoryTechnical       Category = "technical"
	CategoryFunMoments      Category = "fun_moments"
	CategoryProblemSolving  Category = "problem_solving"
	CategoryTeamwork        Category = "teamwork"
	CategoryLeadership      Category = "leadership"
	CategoryInnovation      Category = "innovation"
)

// Categories lists every topic bucket.
func Categories() []Category {
	return []Category{
		CategoryCustomerService,
		CategoryOperations,
		CategoryCulture,
		CategoryHistory,
		CategoryTechnical,
		CategoryFunMoments,
		CategoryProblemSolving,
		CategoryTeamwork,
		CategoryLeadership,
		CategoryInnovation,
	}
}

// ScenarioKind distinguishes situational scenarios from straight trivia.
type ScenarioKind string

const (
	KindScenario ScenarioKind = "scenario"
	KindTrivia   ScenarioKind = "trivia"
)

// Option is one possible response to a scenario.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"is_correct"`
}

// Scenario is one generated question: a situation or trivia prompt with
// exactly one correct option.
type Scenario struct {
	Text        string       `json:"scenario"`
	Context     string       `json:"context"`
	Category    Category     `json:"category"`
	Difficulty  string       `json:"difficulty"`
	Points      int          `json:"points"` // defaults to 1 if zero
	Options     []Option     `json:"options"`
	Explanation string       `json:"explanation"`
	FunFacts    []string     `json:"fun_facts"`
	Kind        ScenarioKind `json:"kind,omitempty"`
}

// CorrectIndex returns the position of the correct option, or -1 if none is
// marked.
func (s Scenario) CorrectIndex() int {
	for i, opt := range s.Options {
		if opt.Correct {
			return i
		}
	}
	return -1
}

// Validate checks the structural invariants a scenario must hold before it
// may be shown to a player: at least two options, exactly one of them
// correct, none of them empty.
func (s Scenario) Validate() error {
	if s.Text == "" {
		return ErrMalformedScenario
	}
	if len(s.Options) < 2 {
		return ErrMalformedScenario
	}
	correct := 0
	for _, opt := range s.Options {
		if opt.Text == "" {
			return ErrMalformedScenario
		}
		if opt.Correct {
			correct++
		}
	}
	if correct != 1 {
		return ErrMalformedScenario
	}
	return nil
}

// ScenarioView is the client-facing projection of a scenario. The correct
// flag never leaves the server.
type ScenarioView struct {
	Round      int          `json:"round"`
	Rounds     int          `json:"rounds"`
	Text       string       `json:"scenario"`
	Context    string       `json:"context"`
	Category   Category     `json:"category"`
	Difficulty string       `json:"difficulty"`
	Points     int          `json:"points"`
	Options    []string     `json:"options"`
	Kind       ScenarioKind `json:"kind"`
}

// RoundRecord captures one answered round for the game summary.
type RoundRecord struct {
	Round          int      `json:"round"`
	Category       Category `json:"category"`
	Context        string   `json:"context"`
	Difficulty     string   `json:"difficulty"`
	Scenario       string   `json:"scenario"`
	PlayerChoice   string   `json:"playerChoice"`
	CorrectAnswer  string   `json:"correctAnswer"`
	PointsEarned   int      `json:"pointsEarned"`
	PointsPossible int      `json:"pointsPossible"`
	Explanation    string   `json:"explanation"`
}

// AnswerFeedback summarizes the outcome of a submission.
type AnswerFeedback struct {
	Correct       bool     `json:"correct"`
	Awarded       int      `json:"awarded"`
	TotalScore    int      `json:"totalScore"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
	FunFacts      []string `json:"funFacts"`
	GameOver      bool     `json:"gameOver"`
}

// GameSummary is the end-of-game report.
type GameSummary struct {
	PlayerName string        `json:"playerName"`
	Role       Role          `json:"role"`
	FinalScore int           `json:"finalScore"`
	History    []RoundRecord `json:"history"`
}

// LeaderboardEntry is one finished game's result. Entries are appended and
// never mutated.
type LeaderboardEntry struct {
	PlayerName string    `json:"playerName"`
	Score      int       `json:"score"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Leaderboard is the ranked snapshot served to clients.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// SortEntries orders entries in place: score descending, then earliest
// finish, then name. Both stores use this so the ranking rule lives in one
// place.
func SortEntries(entries []LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].RecordedAt.Equal(entries[j].RecordedAt) {
			return entries[i].RecordedAt.Before(entries[j].RecordedAt)
		}
		return entries[i].PlayerName < entries[j].PlayerName
	})
}
