// Package memory is a process-local storage backend used for development
// and tests. Tenant-owned tables apply the bound tenant.Scope on every
// access, mirroring the row-level security policies of the Postgres schema.
package memory

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/google/uuid"
)

type taskRecord struct {
	task models.Task
	seq  uint64
}

type tokenRecord struct {
	token models.RefreshToken
	seq   uint64
}

// Store holds all tables behind one mutex.
type Store struct {
	mu  sync.Mutex
	now func() time.Time
	seq uint64

	users   map[uuid.UUID]*models.User
	userSeq map[uuid.UUID]uint64
	emails  map[string]uuid.UUID
	tokens  map[string]*tokenRecord // by token_hash
	tasks   map[uuid.UUID]*taskRecord
}

func NewStore() *Store {
	return &Store{
		now:     time.Now,
		users:   make(map[uuid.UUID]*models.User),
		userSeq: make(map[uuid.UUID]uint64),
		emails:  make(map[string]uuid.UUID),
		tokens:  make(map[string]*tokenRecord),
		tasks:   make(map[uuid.UUID]*taskRecord),
	}
}

// nextSeq orders rows created within the same clock tick. Callers hold mu.
func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

func (s *Store) RefreshTokens() *RefreshTokenRepository {
	return &RefreshTokenRepository{s: s}
}

func (s *Store) Tasks() *TaskRepository {
	return &TaskRepository{s: s}
}
