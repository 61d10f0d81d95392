package tenantAuth

import (
	"context"
	"errors"
	"sync"

	"github.com/MrEthical07/tenantAuth/password"
)

// MemoryUserStore is a process-local [UserStore] keyed by tenant and username.
// It backs development servers and tests; production uses a database.
type MemoryUserStore struct {
	mu     sync.RWMutex
	hasher *password.Bcrypt
	users  map[memoryUserKey]memoryUser
}

type memoryUserKey struct {
	tenantID string
	username string
}

type memoryUser struct {
	record UserRecord
	hash   string
}

// NewMemoryUserStore returns an empty store. A nil hasher uses bcrypt's
// default cost.
func NewMemoryUserStore(hasher *password.Bcrypt) *MemoryUserStore {
	if hasher == nil {
		hasher = password.NewBcrypt(0)
	}
	return &MemoryUserStore{
		hasher: hasher,
		users:  make(map[memoryUserKey]memoryUser),
	}
}

// Add hashes plaintext and stores rec, replacing any user with the same
// tenant and username.
func (s *MemoryUserStore) Add(rec UserRecord, plaintext string) error {
	if rec.TenantID == "" || rec.Username == "" {
		return errors.New("user needs a tenant and a username")
	}
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.users[memoryUserKey{rec.TenantID, rec.Username}] = memoryUser{record: rec, hash: hash}
	s.mu.Unlock()
	return nil
}

func (s *MemoryUserStore) lookup(ctx context.Context, username string) (memoryUser, bool) {
	tenantID, ok := TenantFromContext(ctx)
	if !ok {
		return memoryUser{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[memoryUserKey{tenantID, username}]
	return u, ok
}

// FindByUsername looks username up in the tenant bound to ctx.
func (s *MemoryUserStore) FindByUsername(ctx context.Context, username string) (UserRecord, bool, error) {
	u, ok := s.lookup(ctx, username)
	return u.record, ok, nil
}

// VerifyPassword checks plaintext for username in the tenant bound to ctx.
func (s *MemoryUserStore) VerifyPassword(ctx context.Context, username, plaintext string) (bool, error) {
	u, ok := s.lookup(ctx, username)
	if !ok {
		return false, nil
	}
	return s.hasher.Verify(u.hash, plaintext), nil
}

// UpdateLastLogin is a no-op.
func (s *MemoryUserStore) UpdateLastLogin(context.Context, string) error {
	return nil
}
