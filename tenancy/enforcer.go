package tenancy

import (
	"context"
	"strings"
)

// DefaultColumn is the column carrying the tenant identifier on scoped tables.
const DefaultColumn = "tenant_id"

// DefaultExemptTables lists system-wide tables that are never tenant filtered:
// the tenant registry, global configuration and migration bookkeeping.
var DefaultExemptTables = []string{"tenants", "system_config", "schema_migrations"}

// Enforcer decides whether a table access must be tenant scoped and resolves
// the tenant to scope it with.
type Enforcer struct {
	column string
	exempt map[string]struct{}
}

// NewEnforcer builds an enforcer. With no exemptTables it uses [DefaultExemptTables].
func NewEnforcer(column string, exemptTables ...string) *Enforcer {
	if column == "" {
		column = DefaultColumn
	}
	if len(exemptTables) == 0 {
		exemptTables = DefaultExemptTables
	}
	e := &Enforcer{
		column: column,
		exempt: make(map[string]struct{}, len(exemptTables)),
	}
	for _, table := range exemptTables {
		table = normalizeTable(table)
		if table != "" {
			e.exempt[table] = struct{}{}
		}
	}
	return e
}

// Column returns the tenant column name.
func (e *Enforcer) Column() string {
	return e.column
}

// Exempt reports whether table is on the system allow-list.
func (e *Enforcer) Exempt(table string) bool {
	_, ok := e.exempt[normalizeTable(table)]
	return ok
}

// Check returns the tenant that must scope an access to table. scoped is false
// for exempt tables. A scoped access without a bound tenant fails with
// [ErrMissingTenantContext].
func (e *Enforcer) Check(ctx context.Context, table string) (tenantID string, scoped bool, err error) {
	if e.Exempt(table) {
		return "", false, nil
	}
	tenantID, err = Require(ctx)
	if err != nil {
		return "", true, err
	}
	return tenantID, true, nil
}

// normalizeTable drops quoting and any schema qualifier.
func normalizeTable(table string) string {
	table = strings.ToLower(strings.TrimSpace(table))
	table = strings.Trim(table, "\"`")
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		table = strings.Trim(table[i+1:], "\"`")
	}
	return table
}
