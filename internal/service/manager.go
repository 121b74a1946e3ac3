package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/whatsapp-session-service/internal/driver"
	"github.com/teresa-solution/whatsapp-session-service/internal/model"
	"github.com/teresa-solution/whatsapp-session-service/internal/monitoring"
	"github.com/teresa-solution/whatsapp-session-service/internal/qr"
)

const persistTimeout = 5 * time.Second

// SessionStore is the durability collaborator. Rows are written on every
// transition but are never the source of truth for a live session.
type SessionStore interface {
	UpsertSession(ctx context.Context, row *model.SessionRow) error
	MarkAllDisconnected(ctx context.Context) (int64, error)
}

// EventPublisher fans lifecycle events out to whatever realtime channel is
// subscribed for a session. Publishing is best effort.
type EventPublisher interface {
	Publish(sessionID, event string, status model.Status, hasQR bool)
}

// Config carries the manager's tunables.
type Config struct {
	// AuthRoot is the directory holding one credential subdirectory per
	// session. Each subdirectory is recreated empty on start and purged on
	// teardown.
	AuthRoot string
	// MaxSessions caps concurrent active sessions across all tenants.
	MaxSessions int
	// PairingTimeout forces sessions still in connecting/qr to disconnected
	// once it elapses. Zero disables the deadline.
	PairingTimeout time.Duration
}

// StartResult is what StartSession hands back to the HTTP boundary.
type StartResult struct {
	SessionID string       `json:"session_id"`
	Status    model.Status `json:"status"`
	QR        string       `json:"qr,omitempty"`
}

// Manager orchestrates the session lifecycle: it creates drivers, applies
// their events to the registry, mirrors every transition into storage and
// the event publisher, and enforces the one-active-session-per-tenant rule.
type Manager struct {
	cfg      Config
	registry *Registry
	store    SessionStore
	notifier EventPublisher
	factory  driver.Factory
	relay    *Relay

	startMu sync.Mutex // serializes the conflict/capacity check with creation
	sched   *cron.Cron
}

func NewManager(cfg Config, registry *Registry, store SessionStore, notifier EventPublisher, factory driver.Factory, sink MessageSink) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 10
	}
	return &Manager{
		cfg:      cfg,
		registry: registry,
		store:    store,
		notifier: notifier,
		factory:  factory,
		relay:    NewRelay(sink),
	}
}

// StartSession begins a new connection attempt for a tenant. It fails with
// ErrSessionConflict while the tenant already has an active session and with
// ErrCapacityExceeded at the global cap; neither failure mutates the
// registry.
func (m *Manager) StartSession(ctx context.Context, tenantID int64, phone string) (*StartResult, error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	if len(m.registry.listActiveByTenant(tenantID)) > 0 {
		return nil, ErrSessionConflict
	}
	if m.registry.activeCount() >= m.cfg.MaxSessions {
		return nil, ErrCapacityExceeded
	}

	sessionID := EncodeSessionID(tenantID, phone)
	authDir := filepath.Join(m.cfg.AuthRoot, sessionID)
	if err := os.RemoveAll(authDir); err != nil {
		return nil, fmt.Errorf("reset auth dir: %w", err)
	}
	if err := os.MkdirAll(authDir, 0o700); err != nil {
		return nil, fmt.Errorf("create auth dir: %w", err)
	}

	rec := &record{
		Session: model.Session{
			SessionID: sessionID,
			TenantID:  tenantID,
			Phone:     digitsOnly(phone),
			Status:    model.StatusConnecting,
			CreatedAt: time.Now(),
		},
		authDir: authDir,
	}
	if err := m.registry.create(rec); err != nil {
		os.RemoveAll(authDir)
		return nil, err
	}

	drv, err := m.factory.New(sessionID, authDir, driver.Handlers{
		QR:           func(payload string) { m.handleQR(sessionID, payload) },
		Ready:        func(phone string) { m.handleReady(sessionID, phone) },
		AuthFailure:  func(reason string) { m.handleAuthFailure(sessionID, reason) },
		Disconnected: func(reason string) { m.handleDisconnected(sessionID, reason) },
		Message:      func(msg driver.InboundMessage) { m.relay.Deliver(sessionID, msg) },
	})
	if err != nil {
		m.registry.remove(sessionID)
		os.RemoveAll(authDir)
		return nil, fmt.Errorf("create driver: %w", err)
	}
	rec.mu.Lock()
	rec.driver = drv
	row := rec.rowLocked()
	rec.mu.Unlock()

	m.persist(row)
	m.notify(sessionID, "connecting", model.StatusConnecting, false)
	monitoring.SessionTransitions.WithLabelValues(string(model.StatusConnecting)).Inc()
	monitoring.ActiveSessions.Inc()
	m.armPairingDeadline(rec)

	log.Info().Str("session_id", sessionID).Int64("tenant_id", tenantID).Msg("Starting session")

	go func() {
		if err := drv.Initialize(context.Background()); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("Driver initialization failed")
			m.teardown(sessionID, "initialize failed")
		}
	}()

	return &StartResult{SessionID: sessionID, Status: model.StatusConnecting}, nil
}

func (m *Manager) handleQR(sessionID, payload string) {
	rec := m.registry.get(sessionID)
	if rec == nil {
		log.Debug().Str("session_id", sessionID).Msg("Dropping qr event for unknown session")
		return
	}

	image, err := qr.Encode(payload)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to encode pairing payload")
		return
	}

	rec.mu.Lock()
	if rec.torn {
		rec.mu.Unlock()
		return
	}
	rec.Status = model.StatusQR
	rec.QR = image
	rec.qrPayload = payload
	row := rec.rowLocked()
	rec.mu.Unlock()

	m.persist(row)
	m.notify(sessionID, "qr", model.StatusQR, true)
	monitoring.SessionTransitions.WithLabelValues(string(model.StatusQR)).Inc()
}

func (m *Manager) handleReady(sessionID, phone string) {
	rec := m.registry.get(sessionID)
	if rec == nil {
		log.Debug().Str("session_id", sessionID).Msg("Dropping ready event for unknown session")
		return
	}

	rec.mu.Lock()
	if rec.torn {
		rec.mu.Unlock()
		return
	}
	rec.Status = model.StatusConnected
	rec.QR = ""
	rec.qrPayload = ""
	if rec.Phone == "" {
		rec.Phone = digitsOnly(phone)
	}
	now := time.Now()
	rec.ConnectedAt = &now
	if rec.deadline != nil {
		rec.deadline.Stop()
		rec.deadline = nil
	}
	row := rec.rowLocked()
	rec.mu.Unlock()

	m.persist(row)
	m.notify(sessionID, "connected", model.StatusConnected, false)
	monitoring.SessionTransitions.WithLabelValues(string(model.StatusConnected)).Inc()
	log.Info().Str("session_id", sessionID).Msg("Session connected")
}

func (m *Manager) handleAuthFailure(sessionID, reason string) {
	monitoring.AuthFailures.Inc()
	monitoring.Alert("whatsapp auth failure", map[string]string{
		"session_id": sessionID,
		"reason":     reason,
	})
	m.teardown(sessionID, "auth failure: "+reason)
}

func (m *Manager) handleDisconnected(sessionID, reason string) {
	m.teardown(sessionID, reason)
}

// teardown is the single path to disconnected. The record leaves the
// registry before anything else, so late driver events for the same id land
// on an unknown session and drop. Logout failures never block the rest of
// the release sequence.
func (m *Manager) teardown(sessionID, reason string) bool {
	rec := m.registry.get(sessionID)
	if rec == nil {
		return false
	}
	m.registry.remove(sessionID)

	rec.mu.Lock()
	if rec.torn {
		rec.mu.Unlock()
		return false
	}
	rec.torn = true
	rec.Status = model.StatusDisconnected
	rec.QR = ""
	rec.qrPayload = ""
	now := time.Now()
	rec.DisconnectedAt = &now
	if rec.deadline != nil {
		rec.deadline.Stop()
		rec.deadline = nil
	}
	drv := rec.driver
	authDir := rec.authDir
	row := rec.rowLocked()
	rec.mu.Unlock()

	if drv != nil {
		if err := drv.Logout(context.Background()); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Driver logout failed, continuing teardown")
		}
		drv.Destroy()
	}
	if authDir != "" {
		if err := os.RemoveAll(authDir); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to purge auth dir")
		}
	}

	m.persist(row)
	m.notify(sessionID, "disconnected", model.StatusDisconnected, false)
	monitoring.SessionTransitions.WithLabelValues(string(model.StatusDisconnected)).Inc()
	monitoring.ActiveSessions.Dec()
	log.Info().Str("session_id", sessionID).Str("reason", reason).Msg("Session disconnected")
	return true
}

// DisconnectSession tears a session down. It returns false for an unknown
// id; there is nothing to do and that is not a failure.
func (m *Manager) DisconnectSession(sessionID string) bool {
	return m.teardown(sessionID, "disconnect requested")
}

// DisconnectAllTenantSessions tears down every session the tenant owns and
// returns how many were actually disconnected.
func (m *Manager) DisconnectAllTenantSessions(tenantID int64) int {
	count := 0
	for _, rec := range m.registry.listByTenant(tenantID) {
		if m.teardown(rec.SessionID, "tenant disconnect requested") {
			count++
		}
	}
	return count
}

// ListTenantSessions returns the tenant's active sessions. The conflict
// check at StartSession keeps this at one entry; the set is returned as-is
// rather than truncated so a cardinality bug would be visible.
func (m *Manager) ListTenantSessions(tenantID int64) []model.SessionSummary {
	recs := m.registry.listActiveByTenant(tenantID)
	summaries := make([]model.SessionSummary, 0, len(recs))
	for _, rec := range recs {
		s := rec.snapshot()
		summaries = append(summaries, model.SessionSummary{
			SessionID: s.SessionID,
			Phone:     s.Phone,
			Status:    s.Status,
			HasQR:     s.QR != "",
		})
	}
	return summaries
}

// GetSessionQR returns the encoded pairing image, or "" when the session is
// unknown or not waiting for pairing.
func (m *Manager) GetSessionQR(sessionID string) string {
	rec := m.registry.get(sessionID)
	if rec == nil {
		return ""
	}
	return rec.snapshot().QR
}

// GetSessionStatus returns the current status. Unknown sessions read as
// disconnected; the two are indistinguishable on purpose.
func (m *Manager) GetSessionStatus(sessionID string) model.Status {
	rec := m.registry.get(sessionID)
	if rec == nil {
		return model.StatusDisconnected
	}
	return rec.snapshot().Status
}

// SendMessage delivers text through a connected session, normalizing the
// destination into the driver's addressing format.
func (m *Manager) SendMessage(ctx context.Context, sessionID, to, text string) (*driver.SendResult, error) {
	rec := m.registry.get(sessionID)
	if rec == nil {
		return nil, ErrNotConnected
	}
	rec.mu.Lock()
	connected := rec.Status == model.StatusConnected
	drv := rec.driver
	rec.mu.Unlock()
	if !connected || drv == nil {
		return nil, ErrNotConnected
	}

	timer := prometheus.NewTimer(monitoring.SendDuration)
	defer timer.ObserveDuration()
	return drv.Send(ctx, WhatsAppJID(to), text)
}

// CleanupOnce reaps registry entries that already reached disconnected but
// were never removed (a crash between transition and removal). Sessions in
// connecting, qr or connected are never touched.
func (m *Manager) CleanupOnce() int {
	count := 0
	for _, rec := range m.registry.all() {
		rec.mu.Lock()
		stale := rec.Status == model.StatusDisconnected
		drv := rec.driver
		authDir := rec.authDir
		rec.mu.Unlock()
		if !stale {
			continue
		}
		m.registry.remove(rec.SessionID)
		if drv != nil {
			drv.Destroy()
		}
		if authDir != "" {
			os.RemoveAll(authDir)
		}
		count++
	}
	return count
}

// StartCleanup schedules the periodic reaper.
func (m *Manager) StartCleanup() {
	m.sched = cron.New()
	m.sched.AddFunc("@every 30m", func() {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("panic", err).Msg("Session cleanup panicked")
			}
		}()
		if n := m.CleanupOnce(); n > 0 {
			log.Info().Int("reaped", n).Msg("Reaped stale disconnected sessions")
		}
	})
	m.sched.Start()
}

// Hydrate reconciles durable storage after a restart: rows still marked
// active belong to drivers that died with the previous process.
func (m *Manager) Hydrate(ctx context.Context) {
	if m.store == nil {
		return
	}
	n, err := m.store.MarkAllDisconnected(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to reconcile session rows")
		return
	}
	if n > 0 {
		log.Info().Int64("rows", n).Msg("Marked orphaned session rows disconnected")
	}
}

// Shutdown stops the reaper and tears down every live session.
func (m *Manager) Shutdown() {
	if m.sched != nil {
		m.sched.Stop()
	}
	for _, rec := range m.registry.all() {
		m.teardown(rec.SessionID, "service shutting down")
	}
}

func (m *Manager) armPairingDeadline(rec *record) {
	if m.cfg.PairingTimeout <= 0 {
		return
	}
	sessionID := rec.SessionID
	rec.mu.Lock()
	rec.deadline = time.AfterFunc(m.cfg.PairingTimeout, func() {
		cur := m.registry.get(sessionID)
		if cur == nil {
			return
		}
		status := cur.snapshot().Status
		if status == model.StatusConnecting || status == model.StatusQR {
			log.Warn().Str("session_id", sessionID).Msg("Pairing deadline elapsed")
			m.teardown(sessionID, "pairing deadline elapsed")
		}
	})
	rec.mu.Unlock()
}

// persist mirrors a transition into durable storage. Failures are logged and
// swallowed; the in-memory transition and the notify step must not block on
// history.
func (m *Manager) persist(row *model.SessionRow) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.store.UpsertSession(ctx, row); err != nil {
		log.Error().Err(err).Str("session_id", row.SessionID).Msg("Failed to persist session row")
	}
}

func (m *Manager) notify(sessionID, event string, status model.Status, hasQR bool) {
	if m.notifier == nil {
		return
	}
	m.notifier.Publish(sessionID, event, status, hasQR)
}
