package models

import "fmt"

// ConfigKey enumerates the config store's key namespace (SPEC_FULL §3). Keys
// carry their own display string the way original_source/common/src/models/
// config.rs's derive_more::Display enum does; String() is the Go analogue.
type ConfigKey struct {
	kind string
	a    uint64
	b    uint64
}

func KeyPrimary() ConfigKey { return ConfigKey{kind: "primary"} }

func KeyNetworksUpdated() ConfigKey { return ConfigKey{kind: "networks_updated"} }

func KeyBlockHeight(networkID PrimaryId) ConfigKey {
	return ConfigKey{kind: "block_height", a: uint64(networkID)}
}

func KeyIndexerTailSync(networkID PrimaryId) ConfigKey {
	return ConfigKey{kind: "indexer_tail_sync", a: uint64(networkID)}
}

func KeyIndexerChunkSync(networkID PrimaryId, min uint64) ConfigKey {
	return ConfigKey{kind: "indexer_chunk_sync", a: uint64(networkID), b: min}
}

func KeyIndexerModuleSync(networkID PrimaryId, moduleID ModuleId) ConfigKey {
	return ConfigKey{kind: "indexer_module_sync", a: uint64(networkID), b: uint64(moduleID)}
}

func KeyIndexerModuleSynced(networkID PrimaryId, moduleID ModuleId) ConfigKey {
	return ConfigKey{kind: "indexer_module_synced", a: uint64(networkID), b: uint64(moduleID)}
}

func KeyIndexerProgress(networkID PrimaryId) ConfigKey {
	return ConfigKey{kind: "indexer_progress", a: uint64(networkID)}
}

func KeyIndexerUpstreamSync(networkID PrimaryId, labeledAddressID PrimaryId) ConfigKey {
	return ConfigKey{kind: "indexer_upstream_sync", a: uint64(networkID), b: uint64(labeledAddressID)}
}

func KeyLabelFetched(labelID PrimaryId) ConfigKey {
	return ConfigKey{kind: "label_fetched", a: uint64(labelID)}
}

// String renders the storage key exactly as it is persisted in the configs
// table's `key` column, so it also doubles as the CAS/prefix-scan string.
func (k ConfigKey) String() string {
	switch k.kind {
	case "primary":
		return "primary"
	case "networks_updated":
		return "networks_updated"
	case "block_height":
		return fmt.Sprintf("block_height_n%d", k.a)
	case "indexer_tail_sync":
		return fmt.Sprintf("indexer_tail_sync_n%d", k.a)
	case "indexer_chunk_sync":
		return fmt.Sprintf("indexer_chunk_sync_n%d_min%d", k.a, k.b)
	case "indexer_module_sync":
		return fmt.Sprintf("indexer_module_sync_n%d_m%d", k.a, k.b)
	case "indexer_module_synced":
		return fmt.Sprintf("indexer_module_synced_n%d_m%d", k.a, k.b)
	case "indexer_progress":
		return fmt.Sprintf("indexer_progress_n%d", k.a)
	case "indexer_upstream_sync":
		return fmt.Sprintf("indexer_upstream_sync_n%d_l%d", k.a, k.b)
	case "label_fetched":
		return fmt.Sprintf("label_fetched_l%d", k.a)
	default:
		return "unknown"
	}
}

// ChunkSyncPrefix is the prefix used to list all outstanding chunk markers
// for a network via the config store's GetManyByPrefix (SPEC_FULL §4.1).
func ChunkSyncPrefix(networkID PrimaryId) string {
	return fmt.Sprintf("indexer_chunk_sync_n%d_min", networkID)
}

// ModuleSyncPrefix lists every outstanding per-module catch-up range for a
// network, used by the scheduler's progress recomputation (SPEC_FULL §4.1).
func ModuleSyncPrefix(networkID PrimaryId) string {
	return fmt.Sprintf("indexer_module_sync_n%d_m", networkID)
}

// Config is a single row of the config store's `configs` table.
type Config struct {
	Key       string
	Value     string
	UpdatedAt uint32
	CreatedAt uint32
}
