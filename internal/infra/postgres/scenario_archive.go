package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"crewquest/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// loadLimit caps how many archived scenarios one category fetch returns.
const loadLimit = 50

// ScenarioArchive persists generated scenarios as JSONB rows and serves them
// back as fallbacks. Implements memory.ArchiveLoader and
// memory.ArchiveRecorder.
type ScenarioArchive struct {
	pool *pgxpool.Pool
}

func NewScenarioArchive(pool *pgxpool.Pool) *ScenarioArchive {
	return &ScenarioArchive{pool: pool}
}

func (a *ScenarioArchive) LoadScenarios(ctx context.Context, category domain.Category) ([]domain.Scenario, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT data FROM scenarios WHERE category=$1 ORDER BY created_at DESC LIMIT $2`,
		string(category), loadLimit)
	if err != nil {
		return nil, fmt.Errorf("load scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []domain.Scenario
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		var scenario domain.Scenario
		if err := json.Unmarshal(raw, &scenario); err != nil {
			// Rows written by incompatible versions are skipped, not fatal.
			continue
		}
		if scenario.Validate() == nil {
			scenarios = append(scenarios, scenario)
		}
	}
	return scenarios, rows.Err()
}

func (a *ScenarioArchive) RecordScenario(ctx context.Context, scenario domain.Scenario) error {
	raw, err := json.Marshal(scenario)
	if err != nil {
		return err
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO scenarios (category, data) VALUES ($1, $2)`,
		string(scenario.Category), raw)
	if err != nil {
		return fmt.Errorf("record scenario: %w", err)
	}
	return nil
}
