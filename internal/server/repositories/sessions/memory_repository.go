package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type InMemoryRepository struct {
	mu      sync.Mutex
	byOwner map[string]models.Session
	byToken map[string]string
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byOwner: make(map[string]models.Session),
		byToken: make(map[string]string),
	}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, ownerID string, token string, validity time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byOwner[ownerID]; ok {
		delete(r.byToken, prev.RefreshToken)
	}
	r.byOwner[ownerID] = models.Session{OwnerID: ownerID, RefreshToken: token, ExpiresAt: time.Now().Add(validity)}
	r.byToken[token] = ownerID
	return nil
}

func (r *InMemoryRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.byToken[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	s := r.byOwner[owner]
	return &s, nil
}

func (r *InMemoryRepository) DeleteByToken(ctx context.Context, token string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.byToken[token]
	if !ok {
		return 0, nil
	}
	delete(r.byToken, token)
	delete(r.byOwner, owner)
	return 1, nil
}
