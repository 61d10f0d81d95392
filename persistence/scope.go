package persistence

import (
	"errors"
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/MrEthical07/tenantAuth/tenancy"
)

const callbackPrefix = "tenantauth:"

// ErrNoTenantColumn is returned when a scoped create targets a model without
// the tenant column.
var ErrNoTenantColumn = errors.New("model has no tenant column")

type tenantScope struct {
	enforcer *tenancy.Enforcer
}

// RegisterTenantScope installs the tenant predicate callbacks on db. Queries,
// row scans, updates and deletes against non-exempt tables get
// "<table>"."<column>" = <tenant> appended to their WHERE clause. Creates
// stamp the tenant column and reject rows already carrying another tenant.
//
// Raw SQL (Exec, Raw) is not rewritten, but it still requires a bound tenant,
// as does any statement whose table cannot be resolved. Only [SystemContext]
// bypasses the requirement.
func RegisterTenantScope(db *gorm.DB, enforcer *tenancy.Enforcer) error {
	if db == nil {
		return errors.New("nil gorm db")
	}
	if enforcer == nil {
		enforcer = tenancy.NewEnforcer(tenancy.DefaultColumn)
	}
	s := &tenantScope{enforcer: enforcer}

	cb := db.Callback()
	return errors.Join(
		cb.Query().Before("gorm:query").Register(callbackPrefix+"query_scope", s.scopeRead),
		cb.Row().Before("gorm:row").Register(callbackPrefix+"row_scope", s.scopeRead),
		cb.Update().Before("gorm:update").Register(callbackPrefix+"update_scope", s.scopeUpdate),
		cb.Delete().Before("gorm:delete").Register(callbackPrefix+"delete_scope", s.scopeRead),
		cb.Create().Before("gorm:create").Register(callbackPrefix+"create_scope", s.stampCreate),
		cb.Raw().Before("gorm:raw").Register(callbackPrefix+"raw_scope", s.requireTenant),
	)
}

// check resolves the tenant for the statement. ok is false when the
// statement is exempt, has no table to scope, or already failed. A statement
// without a resolvable table still fails without a bound tenant.
func (s *tenantScope) check(db *gorm.DB) (tenantID string, ok bool) {
	if db.Error != nil || db.Statement == nil || isSystem(db.Statement.Context) {
		return "", false
	}
	table := db.Statement.Table
	if table == "" && db.Statement.Schema != nil {
		table = db.Statement.Schema.Table
	}
	if table == "" {
		if _, err := tenancy.Require(db.Statement.Context); err != nil {
			_ = db.AddError(fmt.Errorf("%w: unscoped statement", err))
		}
		return "", false
	}
	tenantID, scoped, err := s.enforcer.Check(db.Statement.Context, table)
	if err != nil {
		_ = db.AddError(fmt.Errorf("%w: table %s", err, table))
		return "", false
	}
	return tenantID, scoped
}

func (s *tenantScope) requireTenant(db *gorm.DB) {
	s.check(db)
}

func (s *tenantScope) scopeRead(db *gorm.DB) {
	if tenantID, ok := s.check(db); ok {
		s.addPredicate(db, tenantID)
	}
}

func (s *tenantScope) scopeUpdate(db *gorm.DB) {
	tenantID, ok := s.check(db)
	if !ok {
		return
	}
	s.addPredicate(db, tenantID)
	if actor, ok := ActorFromContext(db.Statement.Context); ok && hasField(db.Statement.Schema, "UpdatedBy") {
		db.Statement.SetColumn("UpdatedBy", actor, true)
	}
}

func (s *tenantScope) addPredicate(db *gorm.DB, tenantID string) {
	db.Statement.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: s.enforcer.Column()},
			Value:  tenantID,
		},
	}})
}

func (s *tenantScope) stampCreate(db *gorm.DB) {
	tenantID, ok := s.check(db)
	if !ok {
		return
	}
	stmt := db.Statement
	column := s.enforcer.Column()

	if values, isMap := stmt.Dest.(map[string]interface{}); isMap {
		if err := stampMap(values, column, tenantID); err != nil {
			_ = db.AddError(err)
		}
		return
	}

	if stmt.Schema == nil {
		_ = db.AddError(fmt.Errorf("%w: %s", ErrNoTenantColumn, stmt.Table))
		return
	}
	field := stmt.Schema.LookUpField(column)
	if field == nil {
		_ = db.AddError(fmt.Errorf("%w: %s", ErrNoTenantColumn, stmt.Schema.Table))
		return
	}
	actor, hasActor := ActorFromContext(stmt.Context)

	stamp := func(row reflect.Value) error {
		row = reflect.Indirect(row)
		if row.Kind() != reflect.Struct {
			return nil
		}
		current, zero := field.ValueOf(stmt.Context, row)
		if !zero {
			if fmt.Sprint(current) != tenantID {
				return fmt.Errorf("%w: row belongs to %v", tenancy.ErrTenantMismatch, current)
			}
		} else if err := field.Set(stmt.Context, row, tenantID); err != nil {
			return err
		}
		if hasActor {
			for _, name := range []string{"CreatedBy", "UpdatedBy"} {
				f := stmt.Schema.LookUpField(name)
				if f == nil {
					continue
				}
				if _, zero := f.ValueOf(stmt.Context, row); zero {
					if err := f.Set(stmt.Context, row, actor); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}

	switch rv := stmt.ReflectValue; rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := stamp(rv.Index(i)); err != nil {
				_ = db.AddError(err)
				return
			}
		}
	case reflect.Struct:
		if err := stamp(rv); err != nil {
			_ = db.AddError(err)
		}
	}
}

func stampMap(values map[string]interface{}, column, tenantID string) error {
	if current, ok := values[column]; ok && current != nil && fmt.Sprint(current) != "" {
		if fmt.Sprint(current) != tenantID {
			return fmt.Errorf("%w: row belongs to %v", tenancy.ErrTenantMismatch, current)
		}
		return nil
	}
	values[column] = tenantID
	return nil
}

func hasField(s *schema.Schema, name string) bool {
	return s != nil && s.LookUpField(name) != nil
}
