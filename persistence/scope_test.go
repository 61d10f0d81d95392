package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MrEthical07/tenantAuth/tenancy"
)

type Tenant struct {
	ID   uint
	Name string
}

func newDryRunDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 user=tenantauth dbname=tenantauth sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}
	if err := RegisterTenantScope(db, tenancy.NewEnforcer("")); err != nil {
		t.Fatalf("RegisterTenantScope: %v", err)
	}
	return db
}

func tenantCtx(t *testing.T, tenantID string) context.Context {
	t.Helper()
	ctx, scope, err := tenancy.WithTenant(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("WithTenant: %v", err)
	}
	t.Cleanup(scope.Clear)
	return ctx
}

func TestQueryGetsTenantPredicate(t *testing.T) {
	db := newDryRunDB(t)
	ctx := tenantCtx(t, "7")

	tx := db.WithContext(ctx).Where("username = ?", "admin").Take(&User{})
	if tx.Error != nil {
		t.Fatalf("query failed: %v", tx.Error)
	}
	sql := tx.Statement.SQL.String()
	if !strings.Contains(sql, `username = $1 AND "users"."tenant_id" = $2`) {
		t.Fatalf("missing tenant predicate: %s", sql)
	}
	if len(tx.Statement.Vars) < 2 || tx.Statement.Vars[1] != "7" {
		t.Fatalf("expected tenant var 7, got %v", tx.Statement.Vars)
	}
}

func TestMissingTenantFailsClosed(t *testing.T) {
	db := newDryRunDB(t)

	var users []User
	tx := db.WithContext(context.Background()).Find(&users)
	if !errors.Is(tx.Error, tenancy.ErrMissingTenantContext) {
		t.Fatalf("expected ErrMissingTenantContext, got %v", tx.Error)
	}
	if tx.Statement.SQL.Len() != 0 {
		t.Fatalf("no SQL should be built without a tenant, got %s", tx.Statement.SQL.String())
	}

	tx = db.WithContext(context.Background()).Create(&User{Username: "eve"})
	if !errors.Is(tx.Error, tenancy.ErrMissingTenantContext) {
		t.Fatalf("expected create to fail closed, got %v", tx.Error)
	}
}

func TestExemptTableIsNotScoped(t *testing.T) {
	db := newDryRunDB(t)

	var tenants []Tenant
	tx := db.WithContext(context.Background()).Find(&tenants)
	if tx.Error != nil {
		t.Fatalf("exempt table query failed: %v", tx.Error)
	}
	if strings.Contains(tx.Statement.SQL.String(), "tenant_id") {
		t.Fatalf("exempt table must not be filtered: %s", tx.Statement.SQL.String())
	}
}

func TestSystemContextSkipsEnforcement(t *testing.T) {
	db := newDryRunDB(t)

	var users []User
	tx := db.WithContext(SystemContext(context.Background())).Find(&users)
	if tx.Error != nil {
		t.Fatalf("system query failed: %v", tx.Error)
	}
	if strings.Contains(tx.Statement.SQL.String(), "tenant_id") {
		t.Fatalf("system context must not be filtered: %s", tx.Statement.SQL.String())
	}
}

func TestRawStatementsRequireTenant(t *testing.T) {
	db := newDryRunDB(t)
	bg := context.Background()

	failing := map[string]*gorm.DB{
		"exec with table":  db.WithContext(bg).Table("users").Exec("DELETE FROM users"),
		"exec":             db.WithContext(bg).Exec("DELETE FROM users"),
		"raw scan":         db.WithContext(bg).Raw("SELECT count(*) FROM users").Scan(new(int64)),
		"table only query": db.WithContext(bg).Table("users").Where("id = ?", 1).Find(&[]map[string]interface{}{}),
	}
	for name, tx := range failing {
		if !errors.Is(tx.Error, tenancy.ErrMissingTenantContext) {
			t.Fatalf("%s: expected ErrMissingTenantContext, got %v", name, tx.Error)
		}
	}

	tx := db.WithContext(tenantCtx(t, "7")).Exec("UPDATE users SET enabled = ?", false)
	if tx.Error != nil {
		t.Fatalf("raw exec with a bound tenant failed: %v", tx.Error)
	}
	if sql := tx.Statement.SQL.String(); sql != "UPDATE users SET enabled = $1" {
		t.Fatalf("raw SQL must not be rewritten, got %s", sql)
	}

	if tx := db.WithContext(SystemContext(bg)).Exec("DELETE FROM users"); tx.Error != nil {
		t.Fatalf("system exec failed: %v", tx.Error)
	}
	if tx := db.WithContext(bg).Table("tenants").Exec("DELETE FROM tenants"); tx.Error != nil {
		t.Fatalf("exempt table exec failed: %v", tx.Error)
	}
}

func TestUpdateAndDeleteAreScoped(t *testing.T) {
	db := newDryRunDB(t)
	ctx := WithActor(tenantCtx(t, "7"), "admin")

	tx := db.WithContext(ctx).Model(&User{}).Where("id = ?", 3).Update("enabled", false)
	if tx.Error != nil {
		t.Fatalf("update failed: %v", tx.Error)
	}
	sql := tx.Statement.SQL.String()
	if !strings.Contains(sql, `"users"."tenant_id" = `) || !strings.Contains(sql, `"updated_by"=`) {
		t.Fatalf("update not scoped or not stamped: %s", sql)
	}

	tx = db.WithContext(ctx).Delete(&User{}, 3)
	if tx.Error != nil {
		t.Fatalf("delete failed: %v", tx.Error)
	}
	sql = tx.Statement.SQL.String()
	if !strings.HasPrefix(sql, `DELETE FROM "users"`) || !strings.Contains(sql, `"users"."tenant_id" = `) {
		t.Fatalf("delete not scoped: %s", sql)
	}
}

func TestCreateStampsTenantAndActor(t *testing.T) {
	db := newDryRunDB(t)
	ctx := WithActor(tenantCtx(t, "7"), "admin")

	u := &User{Username: "bob"}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if u.TenantID != "7" || u.CreatedBy != "admin" || u.UpdatedBy != "admin" {
		t.Fatalf("row not stamped: %+v", u)
	}

	batch := []User{{Username: "a"}, {Username: "b", TenantID: "7"}}
	if err := db.WithContext(ctx).Create(&batch).Error; err != nil {
		t.Fatalf("batch create failed: %v", err)
	}
	for _, row := range batch {
		if row.TenantID != "7" {
			t.Fatalf("batch row not stamped: %+v", row)
		}
	}

	foreign := &User{Username: "mallory", TenantID: "8"}
	if err := db.WithContext(ctx).Create(foreign).Error; !errors.Is(err, tenancy.ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}
}

func TestCreateFromMap(t *testing.T) {
	db := newDryRunDB(t)
	ctx := tenantCtx(t, "7")

	values := map[string]interface{}{"username": "dave"}
	if err := db.WithContext(ctx).Model(&User{}).Create(values).Error; err != nil {
		t.Fatalf("map create failed: %v", err)
	}
	if values["tenant_id"] != "7" {
		t.Fatalf("map not stamped: %v", values)
	}

	values = map[string]interface{}{"username": "dave", "tenant_id": "9"}
	if err := db.WithContext(ctx).Model(&User{}).Create(values).Error; !errors.Is(err, tenancy.ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}
}
