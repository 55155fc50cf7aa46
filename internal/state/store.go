// Package state is the durable record of runs, iterations, agent outputs,
// and pending human inputs (spec §4.5). It is backed by modernc.org/sqlite
// (pure-Go, no cgo), matching the teacher pack's embedded-store idiom
// (hugo-lorenzo-mato-quorum-ai's internal/adapters/state.SQLiteStateManager):
// one write connection capped at a single open conn (SQLite allows only
// one writer), a separate read-only pool for concurrent readers such as
// the CLI's `status`/`history` commands.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ralph2/kernel/internal/kernel"
)

// Store is the single-writer, multi-reader handle onto one state.db file.
type Store struct {
	db     *sql.DB // write connection, capped at 1 open conn
	readDB *sql.DB // read-only pool
}

// Open creates the state directory if needed, opens both connections, and
// applies any pending migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("state: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("state: open write db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	readDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("state: open read db: %w", err)
	}
	readDB.SetMaxOpenConns(10)

	s := &Store{db: db, readDB: readDB}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("state: migrate: %w", err)
	}
	return s, nil
}

// Close closes both connections.
func (s *Store) Close() error {
	errWrite := s.db.Close()
	errRead := s.readDB.Close()
	if errWrite != nil {
		return errWrite
	}
	return errRead
}

func timeToSQL(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func timeFromSQL(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullableTimeToSQL(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return timeToSQL(*t)
}

func nullableTimeFromSQL(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := timeFromSQL(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableStringToSQL(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableStringFromSQL(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// CreateRun inserts a new run row. The caller must already have checked
// spec §3's "at most one running run per project" invariant.
func (s *Store) CreateRun(ctx context.Context, run kernel.Run) error {
	configJSON := run.ConfigJSON
	if configJSON == "" {
		configJSON = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, spec_path, spec_content, status, config_json, started_at, ended_at, root_work_item_id, milestone_branch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SpecPath, run.SpecContent, string(run.Status), configJSON,
		timeToSQL(run.StartedAt), nullableTimeToSQL(run.EndedAt),
		nullableStringToSQL(run.RootWorkItemID), nullableStringToSQL(run.MilestoneBranch),
	)
	if err != nil {
		return fmt.Errorf("state: create run: %w", err)
	}
	return nil
}

// GetRun returns the run with id, or (nil, nil) if it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*kernel.Run, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT id, spec_path, spec_content, status, config_json, started_at, ended_at, root_work_item_id, milestone_branch
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: get run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recently started run for this project, or
// (nil, nil) if none exists (spec §4.5 resume rule).
func (s *Store) LatestRun(ctx context.Context) (*kernel.Run, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT id, spec_path, spec_content, status, config_json, started_at, ended_at, root_work_item_id, milestone_branch
		FROM runs ORDER BY started_at DESC LIMIT 1`)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, most recent first. limit <= 0 means
// unlimited.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]kernel.Run, error) {
	query := `SELECT id, spec_path, spec_content, status, config_json, started_at, ended_at, root_work_item_id, milestone_branch
		FROM runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("state: list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []kernel.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("state: scan run: %w", err)
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows so scanRun serves both.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*kernel.Run, error) {
	var r kernel.Run
	var status, configJSON, startedAt string
	var endedAt, rootWorkItemID, milestoneBranch sql.NullString

	if err := row.Scan(&r.ID, &r.SpecPath, &r.SpecContent, &status, &configJSON,
		&startedAt, &endedAt, &rootWorkItemID, &milestoneBranch); err != nil {
		return nil, err
	}

	r.Status = kernel.RunStatus(status)
	r.ConfigJSON = configJSON

	started, err := timeFromSQL(startedAt)
	if err != nil {
		return nil, err
	}
	r.StartedAt = started

	ended, err := nullableTimeFromSQL(endedAt)
	if err != nil {
		return nil, err
	}
	r.EndedAt = ended
	r.RootWorkItemID = nullableStringFromSQL(rootWorkItemID)
	r.MilestoneBranch = nullableStringFromSQL(milestoneBranch)
	return &r, nil
}

// UpdateStatus transactionally sets status and, for terminal statuses,
// ended_at to now (spec §3: "end time set iff status is terminal").
func (s *Store) UpdateStatus(ctx context.Context, runID string, status kernel.RunStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("state: update status begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var endedAt interface{}
	if isTerminal(status) {
		endedAt = timeToSQL(time.Now())
	}

	if _, err := tx.ExecContext(ctx, `UPDATE runs SET status = ?, ended_at = COALESCE(ended_at, ?) WHERE id = ?`,
		string(status), endedAt, runID); err != nil {
		return fmt.Errorf("state: update status: %w", err)
	}
	return tx.Commit()
}

func isTerminal(status kernel.RunStatus) bool {
	switch status {
	case kernel.RunDone, kernel.RunStuck, kernel.RunAborted:
		return true
	default:
		return false
	}
}

// UpdateMilestoneBranch persists the milestone branch name as soon as it
// is computed, even before the run's first iteration completes (spec
// §4.10 / supplemented feature per SPEC_FULL.md).
func (s *Store) UpdateMilestoneBranch(ctx context.Context, runID, branch string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET milestone_branch = ? WHERE id = ?`, branch, runID)
	if err != nil {
		return fmt.Errorf("state: update milestone branch: %w", err)
	}
	return nil
}

// UpdateRootWorkItem persists the root work item id once it is created or
// rehomed.
func (s *Store) UpdateRootWorkItem(ctx context.Context, runID, workItemID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET root_work_item_id = ? WHERE id = ?`, workItemID, runID)
	if err != nil {
		return fmt.Errorf("state: update root work item: %w", err)
	}
	return nil
}

// CreateIteration inserts the next iteration for runID. number must be
// exactly max(existing numbers)+1 or 1 for the first iteration — the
// UNIQUE(run_id, number) constraint makes a race here an Integrity error
// (spec §7), not a silently-accepted duplicate.
func (s *Store) CreateIteration(ctx context.Context, it kernel.Iteration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO iterations (run_id, number, intent, outcome, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		it.RunID, it.Number, it.Intent, string(it.Outcome), timeToSQL(it.StartedAt), nullableTimeToSQL(it.EndedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("state: create iteration: %w", err)
	}
	return res.LastInsertId()
}

// FinalizeIteration sets outcome and ended_at for an in-flight iteration.
func (s *Store) FinalizeIteration(ctx context.Context, id int64, outcome kernel.IterationOutcome, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE iterations SET outcome = ?, ended_at = ? WHERE id = ?`,
		string(outcome), timeToSQL(endedAt), id)
	if err != nil {
		return fmt.Errorf("state: finalize iteration: %w", err)
	}
	return nil
}

// NextIterationNumber returns max(number)+1 for runID, or 1 if the run has
// no iterations yet (spec §4.5 resume rule).
func (s *Store) NextIterationNumber(ctx context.Context, runID string) (int, error) {
	var maxNum sql.NullInt64
	row := s.readDB.QueryRowContext(ctx, `SELECT MAX(number) FROM iterations WHERE run_id = ?`, runID)
	if err := row.Scan(&maxNum); err != nil {
		return 0, fmt.Errorf("state: next iteration number: %w", err)
	}
	if !maxNum.Valid {
		return 1, nil
	}
	return int(maxNum.Int64) + 1, nil
}

// ListIterations returns every iteration for runID, ordered by number.
func (s *Store) ListIterations(ctx context.Context, runID string) ([]kernel.Iteration, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, run_id, number, intent, outcome, started_at, ended_at
		FROM iterations WHERE run_id = ? ORDER BY number ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("state: list iterations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []kernel.Iteration
	for rows.Next() {
		var it kernel.Iteration
		var outcome, startedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&it.ID, &it.RunID, &it.Number, &it.Intent, &outcome, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("state: scan iteration: %w", err)
		}
		it.Outcome = kernel.IterationOutcome(outcome)
		started, err := timeFromSQL(startedAt)
		if err != nil {
			return nil, err
		}
		it.StartedAt = started
		ended, err := nullableTimeFromSQL(endedAt)
		if err != nil {
			return nil, err
		}
		it.EndedAt = ended
		out = append(out, it)
	}
	return out, rows.Err()
}

// CreateAgentOutput inserts an immutable agent-output pointer row.
func (s *Store) CreateAgentOutput(ctx context.Context, o kernel.AgentOutput) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_outputs (iteration_id, agent_type, raw_output_path, summary)
		VALUES (?, ?, ?, ?)`,
		o.IterationID, string(o.AgentType), o.RawOutputPath, o.Summary,
	)
	if err != nil {
		return 0, fmt.Errorf("state: create agent output: %w", err)
	}
	return res.LastInsertId()
}

// ListAgentOutputs returns every output recorded for iterationID.
func (s *Store) ListAgentOutputs(ctx context.Context, iterationID int64) ([]kernel.AgentOutput, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, iteration_id, agent_type, raw_output_path, summary
		FROM agent_outputs WHERE iteration_id = ? ORDER BY id ASC`, iterationID)
	if err != nil {
		return nil, fmt.Errorf("state: list agent outputs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []kernel.AgentOutput
	for rows.Next() {
		var o kernel.AgentOutput
		var agentType string
		if err := rows.Scan(&o.ID, &o.IterationID, &agentType, &o.RawOutputPath, &o.Summary); err != nil {
			return nil, fmt.Errorf("state: scan agent output: %w", err)
		}
		o.AgentType = kernel.AgentKind(agentType)
		out = append(out, o)
	}
	return out, rows.Err()
}

// PushHumanInput queues a new out-of-band instruction for runID.
func (s *Store) PushHumanInput(ctx context.Context, input kernel.HumanInput) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO human_inputs (run_id, input_type, content, created_at, consumed_at)
		VALUES (?, ?, ?, ?, NULL)`,
		input.RunID, string(input.InputType), input.Content, timeToSQL(input.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("state: push human input: %w", err)
	}
	return res.LastInsertId()
}

// PopUnconsumedHumanInputs returns every not-yet-consumed input for runID,
// oldest first, and marks them consumed in the same transaction — each
// input is consumed at most once (spec §3 invariant), consumption is
// monotone.
func (s *Store) PopUnconsumedHumanInputs(ctx context.Context, runID string) ([]kernel.HumanInput, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("state: pop human inputs begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, run_id, input_type, content, created_at
		FROM human_inputs WHERE run_id = ? AND consumed_at IS NULL ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("state: pop human inputs query: %w", err)
	}

	var out []kernel.HumanInput
	for rows.Next() {
		var h kernel.HumanInput
		var inputType, createdAt string
		if err := rows.Scan(&h.ID, &h.RunID, &inputType, &h.Content, &createdAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("state: scan human input: %w", err)
		}
		h.InputType = kernel.HumanInputKind(inputType)
		created, err := timeFromSQL(createdAt)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		h.CreatedAt = created
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	now := timeToSQL(time.Now())
	for i := range out {
		if _, err := tx.ExecContext(ctx, `UPDATE human_inputs SET consumed_at = ? WHERE id = ?`, now, out[i].ID); err != nil {
			return nil, fmt.Errorf("state: consume human input: %w", err)
		}
		consumedAt, err := timeFromSQL(now)
		if err != nil {
			return nil, err
		}
		out[i].ConsumedAt = &consumedAt
	}

	return out, tx.Commit()
}

// MarshalConfig is a convenience for callers building a Run's ConfigJSON
// field from a typed config struct (spec §3: "opaque structured data").
func MarshalConfig(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("state: marshal config: %w", err)
	}
	return string(b), nil
}
