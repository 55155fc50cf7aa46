package state

// migrations is an ordered, forward-only, additive list of SQL statements
// applied against schema_version (spec §4.5: "new nullable columns" only,
// never a destructive rewrite). Grounded on the teacher pack's sqlite
// state adapter (hugo-lorenzo-mato-quorum-ai's
// internal/adapters/state/sqlite.go migrate()), generalized from
// go:embed'd .sql files to inline strings since this kernel has no
// migrations/ asset directory of its own yet.
var migrations = []string{
	// v1: initial schema — runs, iterations, agent_outputs, human_inputs.
	`
CREATE TABLE IF NOT EXISTS runs (
	id                  TEXT PRIMARY KEY,
	spec_path           TEXT NOT NULL,
	spec_content        TEXT NOT NULL,
	status              TEXT NOT NULL,
	config_json         TEXT NOT NULL,
	started_at          TEXT NOT NULL,
	ended_at            TEXT,
	root_work_item_id   TEXT,
	milestone_branch    TEXT
);

CREATE TABLE IF NOT EXISTS iterations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	number      INTEGER NOT NULL,
	intent      TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	ended_at    TEXT,
	UNIQUE(run_id, number)
);

CREATE TABLE IF NOT EXISTS agent_outputs (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	iteration_id      INTEGER NOT NULL REFERENCES iterations(id) ON DELETE CASCADE,
	agent_type        TEXT NOT NULL,
	raw_output_path   TEXT NOT NULL,
	summary           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS human_inputs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	input_type   TEXT NOT NULL,
	content      TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	consumed_at  TEXT
);

CREATE INDEX IF NOT EXISTS idx_iterations_run_id ON iterations(run_id);
CREATE INDEX IF NOT EXISTS idx_agent_outputs_iteration_id ON agent_outputs(iteration_id);
CREATE INDEX IF NOT EXISTS idx_human_inputs_run_id ON human_inputs(run_id);
`,
}

// migrate brings the schema up to len(migrations), tracked by a one-row
// schema_version table (spec §4.5: "schema migrations are forward-only
// and additive").
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var version int
	row := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&version); err != nil {
		return err
	}

	for i := version; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return err
		}
	}

	if len(migrations) > version {
		if _, err := s.db.Exec(`DELETE FROM schema_version`); err != nil {
			return err
		}
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, len(migrations)); err != nil {
			return err
		}
	}
	return nil
}
