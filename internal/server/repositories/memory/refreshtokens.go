package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/tenant"
	"github.com/google/uuid"
)

// RefreshTokenRepository implements refreshtokens.Repository. A row is
// visible when the bound scope admits its owner or its digest.
type RefreshTokenRepository struct {
	s *Store
}

func copyToken(t models.RefreshToken) models.RefreshToken {
	if t.RevokedAt != nil {
		r := *t.RevokedAt
		t.RevokedAt = &r
	}
	return t
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *models.RefreshToken) error {
	scope := tenant.FromContext(ctx)
	if !scope.Admits(t.UserID, t.TokenHash) {
		return common.ErrorUnauthorized
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[t.UserID]; !ok {
		return common.ErrorNotFound
	}
	if _, ok := r.s.tokens[t.TokenHash]; ok {
		return common.ErrorInternal
	}

	t.ID = uuid.New()
	r.s.tokens[t.TokenHash] = &tokenRecord{token: copyToken(*t), seq: r.s.nextSeq()}
	return nil
}

// visible returns the record for hash if the scope admits it. Callers hold mu.
func (r *RefreshTokenRepository) visible(scope tenant.Scope, hash string) (*tokenRecord, bool) {
	rec, ok := r.s.tokens[hash]
	if !ok || !scope.Admits(rec.token.UserID, rec.token.TokenHash) {
		return nil, false
	}
	return rec, true
}

func (r *RefreshTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	scope := tenant.FromContext(ctx)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.visible(scope, tokenHash)
	if !ok {
		return nil, common.ErrorNotFound
	}
	t := copyToken(rec.token)
	return &t, nil
}

func (r *RefreshTokenRepository) RevokeActive(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, error) {
	scope := tenant.FromContext(ctx)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.visible(scope, tokenHash)
	if !ok || !rec.token.Active(now) {
		return uuid.Nil, common.ErrorNotFound
	}
	rec.token.RevokedAt = &now
	return rec.token.UserID, nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	scope := tenant.FromContext(ctx)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, rec := range r.s.tokens {
		t := &rec.token
		if t.UserID != userID || t.RevokedAt != nil || !scope.Admits(t.UserID, t.TokenHash) {
			continue
		}
		revokedAt := now
		t.RevokedAt = &revokedAt
		n++
	}
	return n, nil
}

func (r *RefreshTokenRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.RefreshToken, error) {
	scope := tenant.FromContext(ctx)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var recs []*tokenRecord
	for _, rec := range r.s.tokens {
		t := rec.token
		if t.UserID == userID && t.Active(now) && scope.Admits(t.UserID, t.TokenHash) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })

	var result []models.RefreshToken
	for _, rec := range recs {
		result = append(result, copyToken(rec.token))
	}
	return result, nil
}
