package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vwlab/vwharness/pkg/envelope"
)

// Exchange is one stored request/response pair
type Exchange struct {
	ID         uuid.UUID       `json:"id"`
	RunID      *uuid.UUID      `json:"run_id,omitempty"`
	RequestID  string          `json:"request_id"`
	Method     string          `json:"method"`
	Request    json.RawMessage `json:"request"`
	Response   json.RawMessage `json:"response"`
	Success    bool            `json:"success"`
	ErrorCode  *string         `json:"error_code,omitempty"`
	DurationMS float64         `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TranscriptRepo stores dispatched exchanges
type TranscriptRepo struct {
	db     DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewTranscriptRepo creates a new transcript repository
func NewTranscriptRepo(db DBTX, logger *slog.Logger) *TranscriptRepo {
	return &TranscriptRepo{db: db, logger: logger, now: time.Now}
}

// NewExchange builds the stored form of a dispatched exchange
func NewExchange(ctx context.Context, req envelope.Request, resp envelope.Response, elapsed time.Duration) (*Exchange, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	respJSON, err := envelope.EncodeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}

	ex := &Exchange{
		ID:         uuid.New(),
		RequestID:  req.ID,
		Method:     req.Method,
		Request:    reqJSON,
		Response:   respJSON,
		Success:    resp.Success,
		DurationMS: float64(elapsed.Microseconds()) / 1000,
	}
	if runID, ok := GetRunID(ctx); ok {
		ex.RunID = &runID
	}
	if resp.Error != nil && resp.Error.Code != "" {
		code := resp.Error.Code
		ex.ErrorCode = &code
	}
	return ex, nil
}

// Create inserts an exchange
func (r *TranscriptRepo) Create(ctx context.Context, ex *Exchange) error {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = r.now()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO transcripts (
			id, run_id, request_id, method, request, response, success, error_code, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		ex.ID,
		ex.RunID,
		ex.RequestID,
		ex.Method,
		ex.Request,
		ex.Response,
		ex.Success,
		ex.ErrorCode,
		ex.DurationMS,
		ex.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transcript: %w", err)
	}
	return nil
}

// Observe stores the exchange. Storage failures are logged and never reach
// the dispatcher.
func (r *TranscriptRepo) Observe(ctx context.Context, req envelope.Request, resp envelope.Response, elapsed time.Duration) {
	ex, err := NewExchange(ctx, req, resp, elapsed)
	if err == nil {
		err = r.Create(ctx, ex)
	}
	if err != nil {
		r.logger.Error("failed to store transcript", "id", req.ID, "method", req.Method, "error", err)
	}
}

// ListByRun returns the exchanges of a run in insertion order
func (r *TranscriptRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]Exchange, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, run_id, request_id, method, request, response, success, error_code, duration_ms, created_at
		FROM transcripts
		WHERE run_id = $1
		ORDER BY created_at, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(
			&ex.ID,
			&ex.RunID,
			&ex.RequestID,
			&ex.Method,
			&ex.Request,
			&ex.Response,
			&ex.Success,
			&ex.ErrorCode,
			&ex.DurationMS,
			&ex.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}
