package database

// SQL queries for reading the sales ledger. %s is the validated table name.

const (
	// queryLoadRecordsPostgres reads the whole ledger in insertion order.
	// Casting keeps a DATE column in YYYY-MM-DD form and accepts NUMERIC prices.
	queryLoadRecordsPostgres = `
		SELECT
			CAST(date AS TEXT), sku,
			CAST(unit_price AS DOUBLE PRECISION),
			CAST(quantity AS DOUBLE PRECISION),
			CAST(total_price AS DOUBLE PRECISION)
		FROM %s
		ORDER BY id ASC
	`

	// queryLoadRecordsSqlite is the sqlite flavour of queryLoadRecordsPostgres.
	queryLoadRecordsSqlite = `
		SELECT
			CAST(date AS TEXT), sku,
			CAST(unit_price AS REAL),
			CAST(quantity AS REAL),
			CAST(total_price AS REAL)
		FROM %s
		ORDER BY id ASC
	`

	queryTableExistsPostgres = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
			  AND table_name = $2
		)
	`

	queryTableExistsSqlite = `
		SELECT COUNT(*) > 0 FROM sqlite_master
		WHERE type IN ('table', 'view') AND name = ?
	`
)
