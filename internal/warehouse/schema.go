package warehouse

import "context"

// RunMigrations creates the database and the four append-only tables,
// mirroring original_source/common/src/warehouse/mod.rs's run_migrations but
// over the raw HTTP client instead of the `clickhouse` crate.
func RunMigrations(ctx context.Context, c *Client) error {
	stmts := []string{
		"CREATE DATABASE IF NOT EXISTS " + c.dbName,
		`CREATE TABLE IF NOT EXISTS ` + c.dbName + `.transfers (
			uuid String,
			network_id UInt64,
			block_height UInt64,
			block_hash String,
			tx_hash String,
			from_address String,
			to_address String,
			asset_address String,
			amount String,
			batch_amount String,
			created_at DateTime
		) ENGINE = ReplacingMergeTree
		ORDER BY (network_id, block_height, tx_hash, from_address, to_address, asset_address, amount)
		PARTITION BY (network_id, toYYYYMM(created_at))`,
		`CREATE TABLE IF NOT EXISTS ` + c.dbName + `.amounts (
			module_id UInt16,
			network_id UInt64,
			block_height UInt64,
			tx_hash String,
			address String,
			asset_address String,
			amount_in String,
			amount_out String,
			created_at DateTime
		) ENGINE = MergeTree
		ORDER BY (network_id, address, block_height)
		PARTITION BY (network_id, toYYYYMM(created_at))`,
		`CREATE TABLE IF NOT EXISTS ` + c.dbName + `.links (
			uuid String,
			network_id UInt64,
			block_height UInt64,
			from_address String,
			to_address String,
			transfer_uuids Array(String),
			tx_hash String,
			reason UInt16,
			created_at DateTime
		) ENGINE = ReplacingMergeTree
		ORDER BY (network_id, from_address, block_height, uuid)
		PARTITION BY (network_id, toYYYYMM(created_at))`,
		`CREATE TABLE IF NOT EXISTS ` + c.dbName + `.relations (
			uuid String,
			module_id UInt16,
			network_id UInt64,
			block_height UInt64,
			tx_hash String,
			from_address String,
			to_address String,
			reason UInt16,
			created_at DateTime
		) ENGINE = ReplacingMergeTree
		ORDER BY (network_id, from_address, block_height, uuid)
		PARTITION BY (network_id, toYYYYMM(created_at))`,
	}

	for _, stmt := range stmts {
		if err := c.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
