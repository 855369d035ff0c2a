package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vwlab/vwharness/internal/logger"
	"github.com/vwlab/vwharness/pkg/envelope"
	"github.com/vwlab/vwharness/pkg/types"
)

type execCall struct {
	sql  string
	args []interface{}
}

type fakeDB struct {
	execs   []execCall
	execErr error
	row     pgx.Row
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("query not supported")
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return f.row
}

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

func TestNewExchange(t *testing.T) {
	req, err := envelope.NewRequest("t2", "does_not_exist")
	require.NoError(t, err)
	resp := envelope.MethodNotFound(req)
	runID := uuid.New()

	ex, err := NewExchange(WithRunID(context.Background(), runID), req, resp, 1500*time.Microsecond)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, ex.ID)
	require.NotNil(t, ex.RunID)
	assert.Equal(t, runID, *ex.RunID)
	assert.Equal(t, "t2", ex.RequestID)
	assert.Equal(t, "does_not_exist", ex.Method)
	assert.False(t, ex.Success)
	require.NotNil(t, ex.ErrorCode)
	assert.Equal(t, "method_not_found", *ex.ErrorCode)
	assert.InDelta(t, 1.5, ex.DurationMS, 0.001)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(ex.Response, &wire))
	assert.Equal(t, "VW_RES", wire["type"])
	assert.JSONEq(t, `{"type":"VW_REQ","id":"t2","params":{"method":"does_not_exist"}}`, string(ex.Request))
}

func TestTranscriptRepo_Observe(t *testing.T) {
	req, err := envelope.NewRequest("t1", "eth_requestAccounts")
	require.NoError(t, err)
	resp := envelope.Success(req, true, "0x1234567890123456789012345678901234567890")

	t.Run("stores exchange", func(t *testing.T) {
		db := &fakeDB{}
		repo := NewTranscriptRepo(db, logger.Discard())

		repo.Observe(context.Background(), req, resp, time.Millisecond)

		require.Len(t, db.execs, 1)
		assert.Contains(t, db.execs[0].sql, "INSERT INTO transcripts")
		args := db.execs[0].args
		require.Len(t, args, 10)
		assert.Nil(t, args[1].(*uuid.UUID))
		assert.Equal(t, "t1", args[2])
		assert.Equal(t, "eth_requestAccounts", args[3])
		assert.Equal(t, true, args[6])
		assert.Nil(t, args[7].(*string))
	})

	t.Run("logs storage failure", func(t *testing.T) {
		db := &fakeDB{execErr: errors.New("connection refused")}
		rec := logger.NewRecorder(nil)
		repo := NewTranscriptRepo(db, rec.Logger())

		require.NotPanics(t, func() {
			repo.Observe(context.Background(), req, resp, time.Millisecond)
		})

		entries := rec.Search("failed to store transcript")
		require.Len(t, entries, 1)
		assert.Contains(t, entries[0].Attrs["error"], "connection refused")
	})
}

func TestTranscriptRepo_ListByRunQueryError(t *testing.T) {
	repo := NewTranscriptRepo(&fakeDB{}, logger.Discard())

	_, err := repo.ListByRun(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query transcripts")
}

func TestRunRepo_Create(t *testing.T) {
	db := &fakeDB{}
	repo := NewRunRepo(db)

	run := &Run{
		Format:     "markdown",
		ReportPath: "VULNERABILITY_REPORT.md",
		Findings:   8,
		Critical:   4,
		High:       4,
		Probes: []types.ProbeResult{
			{Name: "origin-wildcard", Boundary: "web-to-injected", Status: types.ProbeFail, Detail: "*"},
		},
	}
	require.NoError(t, repo.Create(context.Background(), run))

	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "INSERT INTO harness_runs")
	assert.JSONEq(t,
		`[{"name":"origin-wildcard","boundary":"web-to-injected","status":"fail","detail":"*"}]`,
		string(db.execs[0].args[6].([]byte)))
}

func TestRunRepo_CreateError(t *testing.T) {
	repo := NewRunRepo(&fakeDB{execErr: errors.New("relation does not exist")})

	err := repo.Create(context.Background(), &Run{Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert run")
}

func TestRunRepo_GetByIDNotFound(t *testing.T) {
	repo := NewRunRepo(&fakeDB{row: errRow{err: pgx.ErrNoRows}})

	_, err := repo.GetByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}
