package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"crewquest/internal/domain"
	"crewquest/internal/prompt"
	"crewquest/internal/randutil"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-1.5-pro-latest"

	defaultMaxAttempts = 3
	retryDelay         = 2 * time.Second
	requestTimeout     = 60 * time.Second
)

// Client talks to the Gemini generateContent REST API and turns responses
// into scenarios. It implements app.ScenarioGenerator.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	maxAttempts int
	httpClient  *http.Client
	rnd         *rand.Rand
	sleep       func(time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points the client at a different endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithModel selects the model name.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxAttempts sets the fixed retry budget per generation.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		model:       defaultModel,
		baseURL:     defaultBaseURL,
		maxAttempts: defaultMaxAttempts,
		httpClient:  &http.Client{Timeout: requestTimeout},
		rnd:         randutil.New(),
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate produces one scenario for the given role and category. Transport
// failures and malformed responses are retried a fixed number of times with
// a fixed delay; after that the typed error is returned so callers can fall
// back to the archive.
func (c *Client) Generate(ctx context.Context, role domain.Role, category domain.Category, kind domain.ScenarioKind) (domain.Scenario, error) {
	if c.apiKey == "" {
		return domain.Scenario{}, domain.ErrMissingAPIKey
	}

	p := prompt.Build(role, category, kind)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		scenario, err := c.generateOnce(ctx, p, category, kind)
		if err == nil {
			return scenario, nil
		}
		lastErr = err
		log.Printf("gemini: generate attempt %d/%d failed: %v", attempt, c.maxAttempts, err)
		if ctx.Err() != nil {
			break
		}
		if attempt < c.maxAttempts {
			c.sleep(retryDelay)
		}
	}
	return domain.Scenario{}, lastErr
}

func (c *Client) generateOnce(ctx context.Context, promptText string, category domain.Category, kind domain.ScenarioKind) (domain.Scenario, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: promptText}}}},
		GenerationConfig: generationConfig{
			Temperature:     0.7,
			TopP:            0.8,
			TopK:            40,
			MaxOutputTokens: 8192,
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Scenario{}, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.Scenario{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("%w: %v", domain.ErrAPIUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("%w: %v", domain.ErrAPIUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domain.Scenario{}, fmt.Errorf("%w: status %d", domain.ErrAPIUnavailable, resp.StatusCode)
	default:
		return domain.Scenario{}, fmt.Errorf("gemini request failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return domain.Scenario{}, fmt.Errorf("%w: %v", domain.ErrMalformedScenario, err)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return domain.Scenario{}, fmt.Errorf("%w: no candidates in response", domain.ErrMalformedScenario)
	}

	scenario, err := ParseScenario(genResp.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return domain.Scenario{}, err
	}

	if scenario.Category == "" {
		scenario.Category = category
	}
	scenario.Kind = kind
	shuffleOptions(&scenario, c.rnd)

	log.Printf("gemini: generated %s scenario for category %s in %v", kind, category, time.Since(started))
	return scenario, nil
}

// ParseScenario decodes model output into a validated scenario. Models often
// wrap JSON in markdown fences, so those are stripped first.
func ParseScenario(raw string) (domain.Scenario, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var scenario domain.Scenario
	if err := json.Unmarshal([]byte(text), &scenario); err != nil {
		return domain.Scenario{}, fmt.Errorf("%w: %v", domain.ErrMalformedScenario, err)
	}
	if err := scenario.Validate(); err != nil {
		return domain.Scenario{}, err
	}
	return scenario, nil
}

// shuffleOptions randomizes option order so the correct answer does not sit
// in a predictable slot.
func shuffleOptions(s *domain.Scenario, rnd *rand.Rand) {
	rnd.Shuffle(len(s.Options), func(i, j int) {
		s.Options[i], s.Options[j] = s.Options[j], s.Options[i]
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
