package world

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/voxflow/voxflow/pkg/schema"
)

// LibSQLStore implements Store using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path. The path
// should be a file URI, e.g. "file:/path/to/world.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Connection-level PRAGMAs. Some return rows so QueryRow is used.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Runs ---

func (s *LibSQLStore) CreateRun(ctx context.Context, run *Run) error {
	if run.Status == "" {
		run.Status = schema.RunStatusNotStarted
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, workflow_id, workflow_name, memo_id, status, created_at, started_at, completed_at, duration_ms, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkflowID, nullStr(run.WorkflowName), nullStr(run.MemoID),
		string(run.Status), run.CreatedAt, nullTime(run.StartedAt), nullTime(run.CompletedAt),
		run.DurationMs, nullStr(run.ErrorMessage),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create run: %s", err.Error()).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, workflow_name, memo_id, status, created_at, started_at, completed_at, duration_ms, error_message
		 FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, schema.NewErrorf(schema.ErrCodeRunNotFound, "run %q not found", id)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get run: %s", err.Error()).WithCause(err)
	}
	return run, nil
}

func (s *LibSQLStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	var where []string
	var args []any

	if filter.WorkflowID != "" {
		where = append(where, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.MemoID != "" {
		where = append(where, "memo_id = ?")
		args = append(args, filter.MemoID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}

	query := `SELECT id, workflow_id, workflow_name, memo_id, status, created_at, started_at, completed_at, duration_ms, error_message FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list runs: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan run: %s", err.Error()).WithCause(err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *LibSQLStore) UpdateRun(ctx context.Context, run *Run) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, started_at = ?, completed_at = ?, duration_ms = ?, error_message = ? WHERE id = ?`,
		string(run.Status), nullTime(run.StartedAt), nullTime(run.CompletedAt),
		run.DurationMs, nullStr(run.ErrorMessage), run.ID,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "update run: %s", err.Error()).WithCause(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return schema.NewErrorf(schema.ErrCodeRunNotFound, "run %q not found", run.ID)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var (
		name, memoID, errMsg   sql.NullString
		status                 string
		startedAt, completedAt sql.NullTime
	)
	err := row.Scan(&run.ID, &run.WorkflowID, &name, &memoID, &status,
		&run.CreatedAt, &startedAt, &completedAt, &run.DurationMs, &errMsg)
	if err != nil {
		return nil, err
	}
	run.WorkflowName = name.String
	run.MemoID = memoID.String
	run.Status = schema.RunStatus(status)
	run.ErrorMessage = errMsg.String
	if startedAt.Valid {
		t := startedAt.Time
		run.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return run, nil
}

// --- Steps ---

func (s *LibSQLStore) CreateStep(ctx context.Context, step *RunStep) error {
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_steps (run_id, step_number, step_id, step_type, input_preview, output, output_key, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.RunID, step.StepNumber, step.StepID, string(step.StepType),
		nullStr(step.InputPreview), nullStr(step.Output), nullStr(step.OutputKey),
		step.DurationMs, step.CreatedAt,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create step: %s", err.Error()).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) ListSteps(ctx context.Context, runID string) ([]*RunStep, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, step_number, step_id, step_type, input_preview, output, output_key, duration_ms, created_at
		 FROM run_steps WHERE run_id = ? ORDER BY step_number ASC`, runID)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list steps: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var steps []*RunStep
	for rows.Next() {
		st := &RunStep{}
		var stepType string
		var preview, output, outputKey sql.NullString
		if err := rows.Scan(&st.RunID, &st.StepNumber, &st.StepID, &stepType,
			&preview, &output, &outputKey, &st.DurationMs, &st.CreatedAt); err != nil {
			return nil, err
		}
		st.StepType = schema.StepType(stepType)
		st.InputPreview = preview.String
		st.Output = output.String
		st.OutputKey = outputKey.String
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// --- Events ---

// AppendEvent appends an event with a monotonically increasing per-run
// sequence. Appends grab a write lock up front so concurrent writers
// cannot interleave the sequence read with the insert.
func (s *LibSQLStore) AppendEvent(ctx context.Context, event *RunEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "begin tx: %s", err.Error()).WithCause(err)
	}
	defer tx.Rollback()

	// In WAL mode BeginTx starts a deferred transaction; force lock
	// acquisition with a write-intent statement before reading MAX.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "acquire write lock: %s", err.Error()).WithCause(err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_version WHERE version = -1`); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "cleanup write lock: %s", err.Error()).WithCause(err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM run_events WHERE run_id = ?`, event.RunID,
	).Scan(&seq)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "next sequence: %s", err.Error()).WithCause(err)
	}
	event.Sequence = seq

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_events (run_id, sequence, event_type, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		event.RunID, seq, event.Type, nullRaw(event.Payload), event.CreatedAt,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "insert event: %s", err.Error()).WithCause(err)
	}

	if err := tx.Commit(); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "commit event: %s", err.Error()).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) GetEvents(ctx context.Context, runID string) ([]*RunEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, sequence, event_type, payload, created_at
		 FROM run_events WHERE run_id = ? ORDER BY sequence ASC`, runID)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get events: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var events []*RunEvent
	for rows.Next() {
		e := &RunEvent{}
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.Sequence, &e.Type, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			e.Payload = json.RawMessage(payload.String)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Definitions ---

func (s *LibSQLStore) SaveDefinition(ctx context.Context, def *schema.WorkflowDefinition) error {
	body, err := json.Marshal(def)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "marshal definition: %s", err.Error()).WithCause(err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO definitions (id, name, body, enabled, auto_run, modified_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, body=excluded.body, enabled=excluded.enabled,
		   auto_run=excluded.auto_run, modified_at=excluded.modified_at`,
		def.ID, def.Name, string(body), boolInt(def.Enabled), boolInt(def.AutoRun),
		timeOrNow(def.ModifiedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save definition: %s", err.Error()).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) GetDefinition(ctx context.Context, id string) (*schema.WorkflowDefinition, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM definitions WHERE id = ?`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "definition %q not found", id)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get definition: %s", err.Error()).WithCause(err)
	}
	def := &schema.WorkflowDefinition{}
	if err := json.Unmarshal([]byte(body), def); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unmarshal definition %q: %s", id, err.Error()).WithCause(err)
	}
	return def, nil
}

func (s *LibSQLStore) ListDefinitions(ctx context.Context) ([]*schema.WorkflowDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM definitions ORDER BY name ASC`)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list definitions: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var defs []*schema.WorkflowDefinition
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		def := &schema.WorkflowDefinition{}
		if err := json.Unmarshal([]byte(body), def); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "unmarshal definition: %s", err.Error()).WithCause(err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (s *LibSQLStore) DeleteDefinition(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM definitions WHERE id = ?`, id)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete definition: %s", err.Error()).WithCause(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return schema.NewErrorf(schema.ErrCodeNotFound, "definition %q not found", id)
	}
	return nil
}

// --- Processed memos ---

func (s *LibSQLStore) MarkProcessed(ctx context.Context, memoID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_memos (memo_id) VALUES (?)`, memoID)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "mark processed: %s", err.Error()).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) IsProcessed(ctx context.Context, memoID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_memos WHERE memo_id = ?`, memoID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeStore, "check processed: %s", err.Error()).WithCause(err)
	}
	return true, nil
}

// --- Scheduled jobs ---

func (s *LibSQLStore) SaveScheduledJob(ctx context.Context, job *ScheduledJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs (id, workflow_id, cron_expr, enabled, next_run_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   workflow_id=excluded.workflow_id, cron_expr=excluded.cron_expr,
		   enabled=excluded.enabled, next_run_at=excluded.next_run_at`,
		job.ID, job.WorkflowID, job.CronExpr, boolInt(job.Enabled), nullTime(job.NextRunAt), job.CreatedAt,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save scheduled job: %s", err.Error()).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) ListScheduledJobs(ctx context.Context) ([]*ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_id, cron_expr, enabled, last_run_at, next_run_at, last_run_status, created_at
		 FROM scheduled_jobs ORDER BY created_at ASC`)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list scheduled jobs: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var jobs []*ScheduledJob
	for rows.Next() {
		j := &ScheduledJob{}
		var enabled int
		var lastRun, nextRun sql.NullTime
		var lastStatus sql.NullString
		if err := rows.Scan(&j.ID, &j.WorkflowID, &j.CronExpr, &enabled, &lastRun, &nextRun, &lastStatus, &j.CreatedAt); err != nil {
			return nil, err
		}
		j.Enabled = enabled != 0
		if lastRun.Valid {
			t := lastRun.Time
			j.LastRunAt = &t
		}
		if nextRun.Valid {
			t := nextRun.Time
			j.NextRunAt = &t
		}
		j.LastRunStatus = lastStatus.String
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *LibSQLStore) UpdateScheduledJob(ctx context.Context, id string, update ScheduledJobUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_jobs SET last_run_at = ?, next_run_at = ?, last_run_status = ? WHERE id = ?`,
		nullTime(update.LastRunAt), nullTime(update.NextRunAt), nullStr(update.LastRunStatus), id,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "update scheduled job: %s", err.Error()).WithCause(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return schema.NewErrorf(schema.ErrCodeNotFound, "scheduled job %s not found", id)
	}
	return nil
}

func (s *LibSQLStore) DeleteScheduledJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = ?`, id)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete scheduled job: %s", err.Error()).WithCause(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return schema.NewErrorf(schema.ErrCodeNotFound, "scheduled job %q not found", id)
	}
	return nil
}

// --- Secrets ---

func (s *LibSQLStore) StoreSecret(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO secrets (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "store secret: %s", err.Error()).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) GetSecret(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "secret %q not found", key)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get secret: %s", err.Error()).WithCause(err)
	}
	return value, nil
}

func (s *LibSQLStore) DeleteSecret(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE key = ?`, key)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete secret: %s", err.Error()).WithCause(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return schema.NewErrorf(schema.ErrCodeNotFound, "secret %q not found", key)
	}
	return nil
}

func (s *LibSQLStore) ListSecrets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM secrets ORDER BY key`)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list secrets: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan secret key: %s", err.Error()).WithCause(err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// --- Helpers ---

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*LibSQLStore)(nil)
