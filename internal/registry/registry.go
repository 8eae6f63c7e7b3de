// Package registry is the relational directory of networks, watchlist
// labels, and labeled addresses (SPEC_FULL §3) — the rows the scheduler and
// the upstream propagator read to know which chains to index and which
// addresses are taint sources. CRUD over these tables from an HTTP surface
// is explicitly out of scope (SPEC_FULL Non-goals); this package is a
// read path only and writes nothing to these tables.
//
// Grounded on the teacher's go.mod, which already carries jinzhu/gorm and
// go-sql-driver/mysql for exactly this kind of relational directory, same
// as internal/configstore.
package registry

import (
	"context"
	"strings"

	"github.com/jinzhu/gorm"
	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/barreleye-go/indexer/internal/models"
)

// Store is the registry's read contract.
type Store interface {
	GetActiveNetworks(ctx context.Context, env string) ([]models.Network, error)
	GetTrackedLabeledAddresses(ctx context.Context, networkIDs []models.PrimaryId) ([]models.LabeledAddress, error)
	Close() error
}

type networkRow struct {
	NetworkID    uint64 `gorm:"primary_key;column:network_id"`
	Name         string `gorm:"column:name"`
	Env          string `gorm:"column:env"`
	Family       string `gorm:"column:family"`
	ChainID      uint64 `gorm:"column:chain_id"`
	BlockTimeMs  uint64 `gorm:"column:block_time_ms"`
	RPCEndpoints string `gorm:"column:rpc_endpoints"`
	RPS          uint32 `gorm:"column:rps"`
	IsActive     bool   `gorm:"column:is_active"`
	IsDeleted    bool   `gorm:"column:is_deleted"`
}

func (networkRow) TableName() string { return "networks" }

type labelRow struct {
	LabelID     uint64 `gorm:"primary_key;column:label_id"`
	Name        string `gorm:"column:name"`
	IsEnabled   bool   `gorm:"column:is_enabled"`
	IsHardcoded bool   `gorm:"column:is_hardcoded"`
	IsTracked   bool   `gorm:"column:is_tracked"`
	IsDeleted   bool   `gorm:"column:is_deleted"`
}

func (labelRow) TableName() string { return "labels" }

type labeledAddressRow struct {
	LabeledAddressID uint64 `gorm:"primary_key;column:labeled_address_id"`
	LabelID          uint64 `gorm:"column:label_id"`
	NetworkID        uint64 `gorm:"column:network_id"`
	Address          string `gorm:"column:address"`
	IsDeleted        bool   `gorm:"column:is_deleted"`
}

func (labeledAddressRow) TableName() string { return "labeled_addresses" }

// MySQLStore implements Store over gorm + the MySQL driver, sharing the
// same relational database as configstore.MySQLStore in a real deployment.
type MySQLStore struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the directory tables.
func Open(dsn string) (*MySQLStore, error) {
	db, err := gorm.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "registry: open")
	}
	db.SingularTable(true)
	if err := db.AutoMigrate(&networkRow{}, &labelRow{}, &labeledAddressRow{}).Error; err != nil {
		db.Close()
		return nil, errors.Wrap(err, "registry: migrate")
	}
	return &MySQLStore{db: db}, nil
}

// GetActiveNetworks lists every non-deleted, active network for env.
func (s *MySQLStore) GetActiveNetworks(ctx context.Context, env string) ([]models.Network, error) {
	var rows []networkRow
	err := s.db.WithContext(ctx).
		Where("env = ? AND is_active = ? AND is_deleted = ?", env, true, false).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "registry: get_active_networks")
	}

	out := make([]models.Network, len(rows))
	for i, r := range rows {
		var endpoints []string
		if r.RPCEndpoints != "" {
			endpoints = strings.Split(r.RPCEndpoints, ",")
		}
		out[i] = models.Network{
			ID:           models.PrimaryId(r.NetworkID),
			Name:         r.Name,
			Env:          r.Env,
			Family:       models.ChainFamily(r.Family),
			ChainID:      r.ChainID,
			BlockTimeMs:  r.BlockTimeMs,
			RPCEndpoints: endpoints,
			RPS:          r.RPS,
			IsActive:     r.IsActive,
			IsDeleted:    r.IsDeleted,
		}
	}
	return out, nil
}

// GetTrackedLabeledAddresses lists every non-deleted labeled address under a
// tracked, enabled label on any of networkIDs — the taint-source set the
// upstream propagator walks forward from (SPEC_FULL §4.4).
func (s *MySQLStore) GetTrackedLabeledAddresses(ctx context.Context, networkIDs []models.PrimaryId) ([]models.LabeledAddress, error) {
	if len(networkIDs) == 0 {
		return nil, nil
	}

	ids := make([]uint64, len(networkIDs))
	for i, nid := range networkIDs {
		ids[i] = uint64(nid)
	}

	var rows []labeledAddressRow
	err := s.db.WithContext(ctx).
		Table("labeled_addresses").
		Joins("JOIN labels ON labels.label_id = labeled_addresses.label_id").
		Where("labeled_addresses.network_id in (?) AND labeled_addresses.is_deleted = ?", ids, false).
		Where("labels.is_enabled = ? AND labels.is_tracked = ? AND labels.is_deleted = ?", true, true, false).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "registry: get_tracked_labeled_addresses")
	}

	out := make([]models.LabeledAddress, len(rows))
	for i, r := range rows {
		out[i] = models.LabeledAddress{
			ID:        models.PrimaryId(r.LabeledAddressID),
			LabelID:   models.PrimaryId(r.LabelID),
			NetworkID: models.PrimaryId(r.NetworkID),
			Address:   r.Address,
			IsDeleted: r.IsDeleted,
		}
	}
	return out, nil
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}
