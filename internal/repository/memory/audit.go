package memory

import (
	"context"
	"sync"

	"github.com/xela07ax/orbit-auth/internal/audit"
)

type AuditRepo struct {
	mu     sync.Mutex
	events []audit.AuthEvent
}

func NewAuditRepo() *AuditRepo { return &AuditRepo{} }

func (r *AuditRepo) WriteBatch(_ context.Context, events []audit.AuthEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *AuditRepo) Events() []audit.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.AuthEvent(nil), r.events...)
}
