package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/siherrmann/homegraph/helper"
)

//go:embed init.sql
var initSQL string

//go:embed registry.sql
var registrySQL string

// RegistryFunctions are the stored functions registry.sql creates.
var RegistryFunctions = []string{
	"init_registry",
	"insert_registry_record",
	"select_registry_records",
	"search_registry_records",
	"count_registry_records",
	"delete_registry_records",
}

// Init installs the extensions used by the registry indexes.
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return helper.NewError("install extensions", err)
	}
	return nil
}

// LoadRegistrySql creates the registry functions. Without force nothing
// is executed when all of them exist already.
func LoadRegistrySql(db *sql.DB, force bool) error {
	if !force {
		missing, err := missingFunctions(db, RegistryFunctions)
		if err != nil {
			return helper.NewError("check registry functions", err)
		}
		if len(missing) == 0 {
			return nil
		}
	}

	_, err := db.Exec(registrySQL)
	if err != nil {
		return helper.NewError("execute registry sql", err)
	}

	missing, err := missingFunctions(db, RegistryFunctions)
	if err != nil {
		return helper.NewError("check registry functions", err)
	}
	if len(missing) > 0 {
		return helper.NewError("load registry functions", fmt.Errorf("not created: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// missingFunctions returns the names in functions without a pg_proc entry,
// in the order given.
func missingFunctions(db *sql.DB, functions []string) ([]string, error) {
	rows, err := db.Query(`SELECT DISTINCT proname FROM pg_proc WHERE proname = ANY($1);`, pq.Array(functions))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, f := range functions {
		if !found[f] {
			missing = append(missing, f)
		}
	}
	return missing, nil
}
