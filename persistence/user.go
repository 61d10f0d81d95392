package persistence

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"pkt.systems/pslog"

	tenantAuth "github.com/MrEthical07/tenantAuth"
	"github.com/MrEthical07/tenantAuth/internal/logging"
	"github.com/MrEthical07/tenantAuth/password"
)

// User is a login account. Usernames are unique per tenant.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	TenantID     string     `gorm:"size:64;not null;uniqueIndex:idx_users_tenant_username" json:"tenant_id"`
	Username     string     `gorm:"size:128;not null;uniqueIndex:idx_users_tenant_username" json:"username"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	Roles        string     `gorm:"size:512" json:"roles"`
	Enabled      bool       `gorm:"not null" json:"enabled"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedBy    string     `gorm:"size:128" json:"created_by,omitempty"`
	UpdatedBy    string     `gorm:"size:128" json:"updated_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RoleList splits the comma separated Roles column.
func (u *User) RoleList() []string {
	if u == nil || u.Roles == "" {
		return nil
	}
	parts := strings.Split(u.Roles, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UserRepository implements [tenantAuth.UserStore] over the users table.
// The db must have [RegisterTenantScope] installed: lookups rely on it for
// the tenant predicate.
type UserRepository struct {
	db     *gorm.DB
	hasher *password.Bcrypt
	logger pslog.Logger
	now    func() time.Time
}

var _ tenantAuth.UserStore = (*UserRepository)(nil)

// NewUserRepository returns a repository. A nil hasher uses bcrypt's default cost.
func NewUserRepository(db *gorm.DB, hasher *password.Bcrypt, logger pslog.Logger) *UserRepository {
	if hasher == nil {
		hasher = password.NewBcrypt(0)
	}
	return &UserRepository{
		db:     db,
		hasher: hasher,
		logger: logging.WithSubsystem(logger, "persistence", "users"),
		now:    time.Now,
	}
}

func (r *UserRepository) find(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where("username = ?", username).Take(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByUsername looks username up in the tenant bound to ctx.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (tenantAuth.UserRecord, bool, error) {
	u, err := r.find(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tenantAuth.UserRecord{}, false, nil
	}
	if err != nil {
		return tenantAuth.UserRecord{}, false, err
	}
	return tenantAuth.UserRecord{
		UserID:   userID(u),
		Username: u.Username,
		TenantID: u.TenantID,
		Roles:    u.RoleList(),
		Enabled:  u.Enabled,
	}, true, nil
}

// VerifyPassword checks plaintext against the stored bcrypt hash. An unknown
// user verifies false.
func (r *UserRepository) VerifyPassword(ctx context.Context, username, plaintext string) (bool, error) {
	u, err := r.find(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ok := r.hasher.Verify(u.PasswordHash, plaintext)
	if ok && r.hasher.NeedsRehash(u.PasswordHash) {
		r.logger.Info("persistence.users.rehash_needed", "user_id", u.ID)
	}
	return ok, nil
}

// UpdateLastLogin stamps last_login_at for username.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, username string) error {
	return r.db.WithContext(ctx).
		Model(&User{}).
		Where("username = ?", username).
		Update("last_login_at", r.now().UTC()).Error
}

// Create hashes plaintext and inserts a user into the tenant bound to ctx.
func (r *UserRepository) Create(ctx context.Context, username, plaintext string, roles []string) (*User, error) {
	hash, err := r.hasher.Hash(plaintext)
	if err != nil {
		return nil, err
	}
	u := &User{
		Username:     username,
		PasswordHash: hash,
		Roles:        strings.Join(roles, ","),
		Enabled:      true,
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// SetEnabled enables or disables username in the tenant bound to ctx.
func (r *UserRepository) SetEnabled(ctx context.Context, username string, enabled bool) error {
	res := r.db.WithContext(ctx).
		Model(&User{}).
		Where("username = ?", username).
		Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func userID(u *User) string {
	return strconv.FormatUint(uint64(u.ID), 10)
}
