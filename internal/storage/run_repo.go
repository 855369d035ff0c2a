package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vwlab/vwharness/pkg/types"
)

// Run records one harness execution and the report it produced
type Run struct {
	ID         uuid.UUID           `json:"id"`
	Format     string              `json:"format"`
	ReportPath string              `json:"report_path"`
	Findings   int                 `json:"findings"`
	Critical   int                 `json:"critical"`
	High       int                 `json:"high"`
	Probes     []types.ProbeResult `json:"probes"`
	CreatedAt  time.Time           `json:"created_at"`
}

// RunRepo stores harness runs
type RunRepo struct {
	db DBTX
}

// NewRunRepo creates a new run repository
func NewRunRepo(db DBTX) *RunRepo {
	return &RunRepo{db: db}
}

// Create inserts a run
func (r *RunRepo) Create(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	probesJSON, err := json.Marshal(run.Probes)
	if err != nil {
		return fmt.Errorf("failed to encode probe results: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO harness_runs (id, format, report_path, findings, critical, high, probes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		run.ID,
		run.Format,
		run.ReportPath,
		run.Findings,
		run.Critical,
		run.High,
		probesJSON,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	var run Run
	var probesJSON []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, format, report_path, findings, critical, high, probes, created_at
		FROM harness_runs
		WHERE id = $1
	`, id).Scan(
		&run.ID,
		&run.Format,
		&run.ReportPath,
		&run.Findings,
		&run.Critical,
		&run.High,
		&probesJSON,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if err := json.Unmarshal(probesJSON, &run.Probes); err != nil {
		return nil, fmt.Errorf("failed to decode probe results: %w", err)
	}
	return &run, nil
}
