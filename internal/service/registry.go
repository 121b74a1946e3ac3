package service

import (
	"sync"
	"time"

	"github.com/teresa-solution/whatsapp-session-service/internal/driver"
	"github.com/teresa-solution/whatsapp-session-service/internal/model"
)

// record is a live session entry. The embedded Session fields and the
// pairing bookkeeping are guarded by mu; every transition for one session
// runs under it, which is what keeps per-session event ordering strict while
// different sessions proceed concurrently.
type record struct {
	mu sync.Mutex
	model.Session

	driver    driver.Driver
	authDir   string
	qrPayload string // raw pairing payload mirrored into storage
	deadline  *time.Timer
	torn      bool
}

// snapshot copies the session fields for readers outside the lock.
func (r *record) snapshot() model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Session
}

// rowLocked builds the persistence row. Callers must hold r.mu.
func (r *record) rowLocked() *model.SessionRow {
	return &model.SessionRow{
		SessionID:      r.SessionID,
		TenantID:       r.TenantID,
		Phone:          r.Phone,
		Status:         r.Status,
		QRPayload:      r.qrPayload,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      time.Now(),
		ConnectedAt:    r.ConnectedAt,
		DisconnectedAt: r.DisconnectedAt,
	}
}

// Registry is the in-memory index of live sessions. It only mutates its map;
// it never touches the driver or durable storage. It is injected into the
// manager so test instances do not share state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*record
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*record)}
}

func (g *Registry) create(rec *record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.sessions[rec.SessionID]; exists {
		return ErrDuplicateSession
	}
	g.sessions[rec.SessionID] = rec
	return nil
}

func (g *Registry) get(sessionID string) *record {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sessions[sessionID]
}

// remove is idempotent; deleting an absent id is a no-op.
func (g *Registry) remove(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, sessionID)
}

func (g *Registry) all() []*record {
	g.mu.RLock()
	defer g.mu.RUnlock()
	recs := make([]*record, 0, len(g.sessions))
	for _, rec := range g.sessions {
		recs = append(recs, rec)
	}
	return recs
}

func (g *Registry) listByTenant(tenantID int64) []*record {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var recs []*record
	for _, rec := range g.sessions {
		if rec.TenantID == tenantID {
			recs = append(recs, rec)
		}
	}
	return recs
}

func (g *Registry) listActiveByTenant(tenantID int64) []*record {
	var recs []*record
	for _, rec := range g.listByTenant(tenantID) {
		if rec.snapshot().Status.Active() {
			recs = append(recs, rec)
		}
	}
	return recs
}

func (g *Registry) activeCount() int {
	count := 0
	for _, rec := range g.all() {
		if rec.snapshot().Status.Active() {
			count++
		}
	}
	return count
}
