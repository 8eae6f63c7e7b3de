package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/barreleye-go/indexer/internal/models"
)

// Warehouse is the append-only columnar sink (SPEC_FULL §3/§6): batched
// INSERT, filtered SELECT, range-scoped DELETE over the four tables.
type Warehouse interface {
	InsertTransfers(ctx context.Context, rows []models.Transfer) error
	InsertAmounts(ctx context.Context, rows []models.Amount) error
	InsertLinks(ctx context.Context, rows []models.Link) error
	InsertRelations(ctx context.Context, rows []models.Relation) error

	SelectTransfers(ctx context.Context, f TransferFilter) ([]models.Transfer, error)
	SelectLinks(ctx context.Context, f LinkFilter) ([]models.Link, error)

	// FirstTransferFromAddress returns the earliest transfer originating
	// from address on networkID, used by the upstream propagator to pick a
	// starting block for a labeled address with no saved progress marker
	// (SPEC_FULL §4.4).
	FirstTransferFromAddress(ctx context.Context, networkID models.PrimaryId, address string) (*models.Transfer, error)

	// DeleteRange drops every row for a network within [fromBlock, toBlock]
	// across all four tables, used to repair a tail re-read after an abort.
	DeleteRange(ctx context.Context, networkID models.PrimaryId, fromBlock, toBlock models.BlockHeight) error

	// Ping is the httpserver's /healthz liveness probe.
	Ping(ctx context.Context) error
}

// LinkFilter scopes a SelectLinks call. Zero-value fields are unconstrained.
type LinkFilter struct {
	NetworkID models.PrimaryId
	FromBlock models.BlockHeight
	ToBlock   models.BlockHeight
}

// TransferFilter scopes a SelectTransfers call. Zero-value fields are
// unconstrained.
type TransferFilter struct {
	NetworkID   models.PrimaryId
	FromBlock   models.BlockHeight
	ToBlock     models.BlockHeight
	FromAddress string
	ToAddress   string
	Limit       int
}

// Clickhouse is the HTTP-backed Warehouse implementation.
type Clickhouse struct {
	client *Client
}

// NewClickhouse builds a Clickhouse warehouse and runs its migrations.
func NewClickhouse(ctx context.Context, url, dbName string) (*Clickhouse, error) {
	client := NewClient(url, dbName)
	if err := RunMigrations(ctx, client); err != nil {
		return nil, errors.Wrap(err, "warehouse: migrate")
	}
	return &Clickhouse{client: client}, nil
}

type transferRow struct {
	UUID         string `json:"uuid"`
	NetworkID    uint64 `json:"network_id"`
	BlockHeight  uint64 `json:"block_height"`
	BlockHash    string `json:"block_hash"`
	TxHash       string `json:"tx_hash"`
	FromAddress  string `json:"from_address"`
	ToAddress    string `json:"to_address"`
	AssetAddress string `json:"asset_address"`
	Amount       string `json:"amount"`
	BatchAmount  string `json:"batch_amount"`
	CreatedAt    uint32 `json:"created_at"`
}

func (c *Clickhouse) InsertTransfers(ctx context.Context, rows []models.Transfer) error {
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = transferRow{
			UUID: r.UUID, NetworkID: uint64(r.NetworkID), BlockHeight: uint64(r.BlockHeight),
			BlockHash: r.BlockHash, TxHash: r.TxHash, FromAddress: r.FromAddress, ToAddress: r.ToAddress,
			AssetAddress: r.AssetAddress, Amount: r.Amount, BatchAmount: r.BatchAmount, CreatedAt: r.CreatedAt,
		}
	}
	return c.client.insertJSONEachRow(ctx, "transfers", out)
}

type amountRow struct {
	ModuleID     uint16 `json:"module_id"`
	NetworkID    uint64 `json:"network_id"`
	BlockHeight  uint64 `json:"block_height"`
	TxHash       string `json:"tx_hash"`
	Address      string `json:"address"`
	AssetAddress string `json:"asset_address"`
	AmountIn     string `json:"amount_in"`
	AmountOut    string `json:"amount_out"`
	CreatedAt    uint32 `json:"created_at"`
}

func (c *Clickhouse) InsertAmounts(ctx context.Context, rows []models.Amount) error {
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = amountRow{
			ModuleID: uint16(r.ModuleID), NetworkID: uint64(r.NetworkID), BlockHeight: uint64(r.BlockHeight),
			TxHash: r.TxHash, Address: r.Address, AssetAddress: r.AssetAddress,
			AmountIn: r.AmountIn, AmountOut: r.AmountOut, CreatedAt: r.CreatedAt,
		}
	}
	return c.client.insertJSONEachRow(ctx, "amounts", out)
}

type linkRow struct {
	UUID          string   `json:"uuid"`
	NetworkID     uint64   `json:"network_id"`
	BlockHeight   uint64   `json:"block_height"`
	FromAddress   string   `json:"from_address"`
	ToAddress     string   `json:"to_address"`
	TransferUUIDs []string `json:"transfer_uuids"`
	TxHash        string   `json:"tx_hash"`
	Reason        uint16   `json:"reason"`
	CreatedAt     uint32   `json:"created_at"`
}

func (c *Clickhouse) InsertLinks(ctx context.Context, rows []models.Link) error {
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		uuids := r.TransferUUIDs
		if uuids == nil {
			uuids = []string{}
		}
		out[i] = linkRow{
			UUID: r.UUID, NetworkID: uint64(r.NetworkID), BlockHeight: uint64(r.BlockHeight),
			FromAddress: r.FromAddress, ToAddress: r.ToAddress, TransferUUIDs: uuids,
			TxHash: r.TxHash, Reason: uint16(r.Reason), CreatedAt: r.CreatedAt,
		}
	}
	return c.client.insertJSONEachRow(ctx, "links", out)
}

type relationRow struct {
	UUID        string `json:"uuid"`
	ModuleID    uint16 `json:"module_id"`
	NetworkID   uint64 `json:"network_id"`
	BlockHeight uint64 `json:"block_height"`
	TxHash      string `json:"tx_hash"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Reason      uint16 `json:"reason"`
	CreatedAt   uint32 `json:"created_at"`
}

func (c *Clickhouse) InsertRelations(ctx context.Context, rows []models.Relation) error {
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = relationRow{
			UUID: r.UUID, ModuleID: uint16(r.ModuleID), NetworkID: uint64(r.NetworkID), BlockHeight: uint64(r.BlockHeight),
			TxHash: r.TxHash, FromAddress: r.FromAddress, ToAddress: r.ToAddress, Reason: uint16(r.Reason), CreatedAt: r.CreatedAt,
		}
	}
	return c.client.insertJSONEachRow(ctx, "relations", out)
}

func (c *Clickhouse) SelectTransfers(ctx context.Context, f TransferFilter) ([]models.Transfer, error) {
	var where []string
	if f.NetworkID != 0 {
		where = append(where, fmt.Sprintf("network_id = %d", f.NetworkID))
	}
	if f.FromBlock != 0 {
		where = append(where, fmt.Sprintf("block_height >= %d", f.FromBlock))
	}
	if f.ToBlock != 0 {
		where = append(where, fmt.Sprintf("block_height <= %d", f.ToBlock))
	}
	if f.FromAddress != "" {
		where = append(where, fmt.Sprintf("from_address = '%s'", sqlEscape(f.FromAddress)))
	}
	if f.ToAddress != "" {
		where = append(where, fmt.Sprintf("to_address = '%s'", sqlEscape(f.ToAddress)))
	}

	query := fmt.Sprintf("SELECT uuid, network_id, block_height, block_hash, tx_hash, from_address, to_address, asset_address, amount, batch_amount, created_at FROM %s.transfers", c.client.dbName)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY network_id, block_height"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	query += " FORMAT JSONEachRow"

	var out []models.Transfer
	err := c.client.Query(ctx, query, func(line []byte) error {
		var row transferRow
		if err := json.Unmarshal(line, &row); err != nil {
			return errors.Wrap(err, "warehouse: decode transfer row")
		}
		out = append(out, models.Transfer{
			UUID: row.UUID, NetworkID: models.PrimaryId(row.NetworkID), BlockHeight: models.BlockHeight(row.BlockHeight),
			BlockHash: row.BlockHash, TxHash: row.TxHash, FromAddress: row.FromAddress, ToAddress: row.ToAddress,
			AssetAddress: row.AssetAddress, Amount: row.Amount, BatchAmount: row.BatchAmount, CreatedAt: row.CreatedAt,
		})
		return nil
	})
	return out, err
}

func (c *Clickhouse) SelectLinks(ctx context.Context, f LinkFilter) ([]models.Link, error) {
	var where []string
	if f.NetworkID != 0 {
		where = append(where, fmt.Sprintf("network_id = %d", f.NetworkID))
	}
	if f.FromBlock != 0 {
		where = append(where, fmt.Sprintf("block_height >= %d", f.FromBlock))
	}
	if f.ToBlock != 0 {
		where = append(where, fmt.Sprintf("block_height <= %d", f.ToBlock))
	}

	query := fmt.Sprintf("SELECT uuid, network_id, block_height, from_address, to_address, transfer_uuids, tx_hash, reason, created_at FROM %s.links", c.client.dbName)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY network_id, block_height FORMAT JSONEachRow"

	var out []models.Link
	err := c.client.Query(ctx, query, func(line []byte) error {
		var row linkRow
		if err := json.Unmarshal(line, &row); err != nil {
			return errors.Wrap(err, "warehouse: decode link row")
		}
		out = append(out, models.Link{
			UUID: row.UUID, NetworkID: models.PrimaryId(row.NetworkID), BlockHeight: models.BlockHeight(row.BlockHeight),
			FromAddress: row.FromAddress, ToAddress: row.ToAddress, TransferUUIDs: row.TransferUUIDs,
			TxHash: row.TxHash, Reason: models.LinkReason(row.Reason), CreatedAt: row.CreatedAt,
		})
		return nil
	})
	return out, err
}

func (c *Clickhouse) FirstTransferFromAddress(ctx context.Context, networkID models.PrimaryId, address string) (*models.Transfer, error) {
	rows, err := c.SelectTransfers(ctx, TransferFilter{
		NetworkID:   networkID,
		FromAddress: strings.ToLower(address),
		Limit:       1,
	})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (c *Clickhouse) DeleteRange(ctx context.Context, networkID models.PrimaryId, fromBlock, toBlock models.BlockHeight) error {
	for _, table := range []string{"transfers", "amounts", "links", "relations"} {
		stmt := fmt.Sprintf(
			"ALTER TABLE %s.%s DELETE WHERE network_id = %d AND block_height >= %d AND block_height <= %d",
			c.client.dbName, table, networkID, fromBlock, toBlock,
		)
		if err := c.client.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "warehouse: delete range on %s", table)
		}
	}
	return nil
}

func (c *Clickhouse) Ping(ctx context.Context) error {
	return c.client.Exec(ctx, "SELECT 1")
}

func sqlEscape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
