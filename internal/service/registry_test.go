package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/whatsapp-session-service/internal/model"
)

func newRecord(sessionID string, tenantID int64, status model.Status) *record {
	return &record{Session: model.Session{
		SessionID: sessionID,
		TenantID:  tenantID,
		Status:    status,
	}}
}

func TestRegistry_CreateAndGet(t *testing.T) {
	g := NewRegistry()

	rec := newRecord("tenant_1_111", 1, model.StatusConnecting)
	require.NoError(t, g.create(rec))
	assert.Same(t, rec, g.get("tenant_1_111"))
	assert.Nil(t, g.get("tenant_1_222"))
}

func TestRegistry_DuplicateCreate(t *testing.T) {
	g := NewRegistry()

	require.NoError(t, g.create(newRecord("tenant_1_111", 1, model.StatusConnecting)))
	err := g.create(newRecord("tenant_1_111", 1, model.StatusConnecting))
	assert.ErrorIs(t, err, ErrDuplicateSession)
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	g := NewRegistry()

	require.NoError(t, g.create(newRecord("tenant_1_111", 1, model.StatusConnecting)))
	g.remove("tenant_1_111")
	assert.Nil(t, g.get("tenant_1_111"))

	// Removing again, and removing something never created, are no-ops
	g.remove("tenant_1_111")
	g.remove("tenant_2_999")
}

func TestRegistry_ListByTenant(t *testing.T) {
	g := NewRegistry()

	require.NoError(t, g.create(newRecord("tenant_1_111", 1, model.StatusConnected)))
	require.NoError(t, g.create(newRecord("tenant_1_222", 1, model.StatusDisconnected)))
	require.NoError(t, g.create(newRecord("tenant_2_333", 2, model.StatusQR)))

	assert.Len(t, g.listByTenant(1), 2)
	assert.Len(t, g.listActiveByTenant(1), 1)
	assert.Len(t, g.listActiveByTenant(2), 1)
	assert.Empty(t, g.listActiveByTenant(3))
	assert.Equal(t, 2, g.activeCount())
}
