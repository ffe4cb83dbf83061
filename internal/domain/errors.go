package domain

import "errors"

var (
	// ErrGameNotFound is returned when a game has not been started yet.
	ErrGameNotFound = errors.New("game not found")
	// ErrGameOver is returned when answers arrive after the final round.
	ErrGameOver = errors.New("game already finished")
	// ErrNoActiveScenario is returned when an answer arrives before a scenario was dealt.
	ErrNoActiveScenario = errors.New("no active scenario")
	// ErrScenarioPending is returned when a new scenario is requested while one is unanswered.
	ErrScenarioPending = errors.New("current scenario not answered yet")
	// ErrOptionOutOfRange indicates a submitted option index is invalid.
	ErrOptionOutOfRange = errors.New("selected option out of range")
	// ErrEmptyPlayerName is returned when a game is started without a name.
	ErrEmptyPlayerName = errors.New("player name is required")

	// ErrMalformedScenario indicates the generator returned content that does
	// not satisfy the scenario invariants. Recoverable; callers fall back.
	ErrMalformedScenario = errors.New("malformed scenario")
	// ErrAPIUnavailable covers network failures, rate limits and 5xx from the
	// generative API.
	ErrAPIUnavailable = errors.New("generative api unavailable")
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("api key not configured")
	// ErrNoFallback indicates the scenario archive had nothing to serve.
	ErrNoFallback = errors.New("no fallback scenario available")
)
