package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/siherrmann/homegraph/core/registry"
	"github.com/siherrmann/homegraph/helper"
	loadSql "github.com/siherrmann/homegraph/sql"
)

// Record kinds stored in the registry_records table.
const (
	KindArea   = "area"
	KindDevice = "device"
	KindEntity = "entity"
	KindZone   = "zone"
	KindLabel  = "label"
	KindGroup  = "group"
	KindState  = "state"
)

// RegistryDBHandlerFunctions defines the interface for registry database operations.
type RegistryDBHandlerFunctions interface {
	ImportSnapshot(ctx context.Context, snapshot *registry.Snapshot) (int, error)
	SelectSnapshot(ctx context.Context) (*registry.Snapshot, error)
	SelectRecordsBySearch(ctx context.Context, term string, limit int) ([]*RecordMatch, error)
	CountRecords(ctx context.Context) (map[string]int, error)
	DeleteRecords(ctx context.Context, kind string) (int, error)
}

// RecordMatch is a registry record matching a search term.
type RecordMatch struct {
	Kind     string `json:"kind"`
	RecordID string `json:"record_id"`
	Name     string `json:"name"`
}

// RegistryDBHandler persists registry snapshots in postgres.
type RegistryDBHandler struct {
	db *helper.Database
}

// NewRegistryDBHandler creates a new registry database handler.
// It loads the registry SQL functions and creates the table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRegistryDBHandler(db *helper.Database, force bool) (*RegistryDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	registryDbHandler := &RegistryDBHandler{
		db: db,
	}

	err := loadSql.LoadRegistrySql(registryDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load registry sql", err)
	}

	err = registryDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RegistryDBHandler")

	return registryDbHandler, nil
}

// CreateTable creates the 'registry_records' table and its indexes
// if they do not exist yet.
func (h *RegistryDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_registry();`)
	if err != nil {
		log.Panicf("error initializing registry table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table registry_records")

	return nil
}

type record struct {
	kind string
	id   string
	name string
	data interface{}
}

func snapshotRecords(snapshot *registry.Snapshot) []record {
	var records []record
	for _, a := range snapshot.Areas {
		records = append(records, record{KindArea, a.ID, a.Name, a})
	}
	for _, d := range snapshot.Devices {
		records = append(records, record{KindDevice, d.ID, d.Name, d})
	}
	for _, e := range snapshot.Entities {
		records = append(records, record{KindEntity, e.EntityID, e.Name, e})
	}
	for _, z := range snapshot.Zones {
		records = append(records, record{KindZone, z.ID, z.Name, z})
	}
	for _, l := range snapshot.Labels {
		records = append(records, record{KindLabel, l.ID, l.Name, l})
	}
	for _, g := range snapshot.Groups {
		records = append(records, record{KindGroup, g.EntityID, g.Name, g})
	}
	for _, s := range snapshot.States {
		records = append(records, record{KindState, s.EntityID, s.FriendlyName(), s})
	}
	return records
}

// ImportSnapshot replaces the stored registry with snapshot in one
// transaction. It returns the number of records stored.
func (h *RegistryDBHandler) ImportSnapshot(ctx context.Context, snapshot *registry.Snapshot) (int, error) {
	if snapshot == nil {
		return 0, helper.NewError("import snapshot", fmt.Errorf("snapshot is nil"))
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return 0, helper.NewError("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `SELECT delete_registry_records(NULL)`)
	if err != nil {
		return 0, helper.NewError("exec", err)
	}

	inserted := 0
	for i, r := range snapshotRecords(snapshot) {
		data, err := json.Marshal(r.data)
		if err != nil {
			return 0, helper.NewError("marshal "+r.kind, err)
		}

		var ok bool
		err = tx.QueryRowContext(
			ctx,
			`SELECT insert_registry_record($1, $2, $3, $4, $5)`,
			r.kind,
			r.id,
			i,
			r.name,
			data,
		).Scan(&ok)
		if err != nil {
			return 0, helper.NewError("scan", err)
		}
		if ok {
			inserted++
		}
	}

	err = tx.Commit()
	if err != nil {
		return 0, helper.NewError("commit transaction", err)
	}

	h.db.Logger.Info("Imported registry snapshot")

	return inserted, nil
}

// SelectSnapshot reads the stored registry back into a snapshot.
func (h *RegistryDBHandler) SelectSnapshot(ctx context.Context) (*registry.Snapshot, error) {
	snapshot := &registry.Snapshot{}

	targets := []struct {
		kind   string
		append func(data []byte) error
	}{
		{KindArea, decodeInto(&snapshot.Areas)},
		{KindDevice, decodeInto(&snapshot.Devices)},
		{KindEntity, decodeInto(&snapshot.Entities)},
		{KindZone, decodeInto(&snapshot.Zones)},
		{KindLabel, decodeInto(&snapshot.Labels)},
		{KindGroup, decodeInto(&snapshot.Groups)},
		{KindState, decodeInto(&snapshot.States)},
	}

	for _, target := range targets {
		err := h.selectRecords(ctx, target.kind, target.append)
		if err != nil {
			return nil, helper.NewError("select "+target.kind+" records", err)
		}
	}

	return snapshot, nil
}

func decodeInto[T any](list *[]T) func(data []byte) error {
	return func(data []byte) error {
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		*list = append(*list, item)
		return nil
	}
}

func (h *RegistryDBHandler) selectRecords(ctx context.Context, kind string, appendRecord func(data []byte) error) error {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_registry_records($1)`,
		kind,
	)
	if err != nil {
		return helper.NewError("query", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var data []byte
		var importedAt time.Time
		err := rows.Scan(
			&id,
			&data,
			&importedAt,
		)
		if err != nil {
			return helper.NewError("scan", err)
		}

		err = appendRecord(data)
		if err != nil {
			return helper.NewError("decode "+id, err)
		}
	}

	err = rows.Err()
	if err != nil {
		return helper.NewError("rows error", err)
	}

	return nil
}

// SelectRecordsBySearch searches registry records by id or name. States are excluded.
func (h *RegistryDBHandler) SelectRecordsBySearch(ctx context.Context, term string, limit int) ([]*RecordMatch, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM search_registry_records($1, $2)`,
		term,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var matches []*RecordMatch
	for rows.Next() {
		match := &RecordMatch{}
		err := rows.Scan(
			&match.Kind,
			&match.RecordID,
			&match.Name,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		matches = append(matches, match)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return matches, nil
}

// CountRecords returns the number of stored records per kind.
func (h *RegistryDBHandler) CountRecords(ctx context.Context) (map[string]int, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM count_registry_records()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var kind string
		var count int
		err := rows.Scan(&kind, &count)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		counts[kind] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return counts, nil
}

// DeleteRecords deletes the records of kind, all records if kind is empty.
func (h *RegistryDBHandler) DeleteRecords(ctx context.Context, kind string) (int, error) {
	var input sql.NullString
	if kind != "" {
		input = sql.NullString{String: kind, Valid: true}
	}

	var deleted int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_registry_records($1)`,
		input,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return deleted, nil
}
