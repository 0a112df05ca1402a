package services

import (
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/auth"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/memory"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskmanager/internal/server/tenant"
	"github.com/stretchr/testify/require"
)

var testArgon = auth.ArgonParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	clock  *testClock
	codec  *auth.Codec
	ledger *Ledger
	auth   *AuthService
	tasks  *TaskService
	admin  *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &testClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	log := logging.Nop()
	enforcer := tenant.NewMemoryEnforcer()
	rm := repomanager.NewMemoryRepositoryManager(memory.NewStore())
	hasher := auth.NewPasswordHasher(testArgon)

	codec, err := auth.NewCodec([]byte("test-secret"), 15*time.Minute, auth.WithClock(clock.Now))
	require.NoError(t, err)

	ledger := NewLedger(enforcer, rm, 7*24*time.Hour, log, WithLedgerClock(clock.Now))
	svc := NewAuthService(enforcer, rm, hasher, codec, ledger, log)
	svc.now = clock.Now

	return &testEnv{
		clock:  clock,
		codec:  codec,
		ledger: ledger,
		auth:   svc,
		tasks:  NewTaskService(enforcer, rm, log),
		admin:  NewAdminService(enforcer, rm, hasher, log),
	}
}
