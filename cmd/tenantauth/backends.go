package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"pkt.systems/pslog"

	tenantAuth "github.com/MrEthical07/tenantAuth"
	"github.com/MrEthical07/tenantAuth/password"
	"github.com/MrEthical07/tenantAuth/persistence"
	"github.com/MrEthical07/tenantAuth/tenancy"
)

// openRedis connects to cfg.Addr, or starts an embedded miniredis when no
// address is configured. The returned cleanup closes both.
func openRedis(ctx context.Context, cfg tenantAuth.RedisConfig, logger pslog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.Addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Warn("cli.redis.embedded", "addr", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	logger.Info("cli.redis.connected", "addr", cfg.Addr)
	return client, func() { _ = client.Close() }, nil
}

// userBackend is the user store chosen for a run.
type userBackend struct {
	store   tenantAuth.UserStore
	memory  *tenantAuth.MemoryUserStore
	cleanup func()
}

// openUsers returns a Postgres-backed store when a DSN is configured and an
// in-memory one otherwise.
func openUsers(cfg tenantAuth.Config, logger pslog.Logger) (*userBackend, error) {
	hasher := password.NewBcrypt(0)
	if cfg.Database.DSN == "" {
		mem := tenantAuth.NewMemoryUserStore(hasher)
		logger.Warn("cli.users.in_memory")
		return &userBackend{store: mem, memory: mem, cleanup: func() {}}, nil
	}

	enforcer := tenancy.NewEnforcer(cfg.MultiTenant.TenantColumn, cfg.MultiTenant.ExemptTables...)
	db, err := persistence.Open(cfg.Database, enforcer, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return &userBackend{
		store:   persistence.NewUserRepository(db, hasher, logger),
		cleanup: func() { _ = sqlDB.Close() },
	}, nil
}

// seedUser is one --user flag: tenant:username:password[:ROLE_A,ROLE_B].
type seedUser struct {
	record   tenantAuth.UserRecord
	password string
}

func parseSeedUser(raw string) (seedUser, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return seedUser{}, fmt.Errorf("invalid user %q: want tenant:username:password[:roles]", raw)
	}
	var roles []string
	if len(parts) == 4 && parts[3] != "" {
		for _, r := range strings.Split(parts[3], ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}
	}
	return seedUser{
		record: tenantAuth.UserRecord{
			UserID:   parts[0] + "/" + parts[1],
			Username: parts[1],
			TenantID: parts[0],
			Roles:    roles,
			Enabled:  true,
		},
		password: parts[2],
	}, nil
}

func seedUsers(users *userBackend, raw []string) error {
	if len(raw) == 0 {
		return nil
	}
	if users.memory == nil {
		return errors.New("--user seeds the in-memory store only; create database users with the repository")
	}
	for _, r := range raw {
		u, err := parseSeedUser(r)
		if err != nil {
			return err
		}
		if err := users.memory.Add(u.record, u.password); err != nil {
			return err
		}
	}
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
