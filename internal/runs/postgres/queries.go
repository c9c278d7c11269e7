package postgres

// SQL for the summary run journal.

const (
	// queryInsertRun journals a freshly accepted run. ON CONFLICT DO
	// NOTHING returns no rows (sql.ErrNoRows) for a duplicate identifier.
	queryInsertRun = `
		INSERT INTO summary_runs (
			id, subject_id, user_id, status, message, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`

	queryMarkRunning = `
		UPDATE summary_runs
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	queryMarkFinished = `
		UPDATE summary_runs
		SET status = $2,
		    message = $3,
		    monthly_count = $4,
		    quarterly_count = $5,
		    generation_errors = $6,
		    updated_at = $7
		WHERE id = $1
	`

	queryGetRun = `
		SELECT
			id, subject_id, user_id, status, message,
			monthly_count, quarterly_count, generation_errors,
			created_at, updated_at
		FROM summary_runs
		WHERE id = $1
	`
)
