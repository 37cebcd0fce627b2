package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
)

func newTestStore(t *testing.T) *SQLiteAdapter {
	t.Helper()
	store, err := NewSQLiteAdapter(filepath.Join(t.TempDir(), "dualstrike.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveSessionUpsert(t *testing.T) {
	store := newTestStore(t)

	session, err := domain.NewAttackSession("s1", domain.AttackHandshake,
		"AA:BB:CC:DD:EE:FF", "corpnet", 6, domain.RoleAssignment{
			Kind:          domain.AttackHandshake,
			Primary:       "wlan0",
			PrimaryRole:   "Handshake Capture",
			Secondary:     "wlan1",
			SecondaryRole: "Deauth",
		})
	require.NoError(t, err)
	session.Start()
	require.NoError(t, store.SaveSession(*session))

	session.ObserveClient("11:22:33:44:55:66")
	session.Finish(domain.OutcomeHandshakeCaptured)
	require.NoError(t, store.SaveSession(*session))

	sessions, err := store.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	got := sessions[0]
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, domain.OutcomeHandshakeCaptured, got.Outcome)
	assert.Equal(t, []string{"11:22:33:44:55:66"}, got.Clients)
	assert.Equal(t, "wlan1", got.Assignment.Secondary)
	require.NotNil(t, got.EndTime)
}

func TestFindHandshake(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.FindHandshake("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SaveHandshake(domain.CapturedHandshake{
		ID:         "h1",
		BSSID:      "AA:BB:CC:DD:EE:FF",
		ESSID:      "corpnet",
		FilePath:   "/captures/old.pcapng",
		Backend:    domain.BackendModern,
		CapturedAt: time.Now(),
	}))

	// Recapturing the same target replaces the record.
	require.NoError(t, store.SaveHandshake(domain.CapturedHandshake{
		ID:         "h2",
		BSSID:      "AA:BB:CC:DD:EE:FF",
		ESSID:      "corpnet",
		FilePath:   "/captures/new.pcapng",
		Backend:    domain.BackendLegacy,
		CapturedAt: time.Now(),
	}))

	got, found, err := store.FindHandshake("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "/captures/new.pcapng", got.FilePath)
	assert.Equal(t, domain.BackendLegacy, got.Backend)

	all, err := store.ListHandshakes()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCredentials(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveCredential(domain.CapturedCredential{
		ID:         "c1",
		BSSID:      "AA:BB:CC:DD:EE:FF",
		ESSID:      "corpnet",
		Passphrase: "hunter2222",
		ClientIP:   "10.0.0.57",
		Validated:  true,
		CapturedAt: time.Now(),
	}))

	creds, err := store.ListCredentials()
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "hunter2222", creds[0].Passphrase)
	assert.True(t, creds[0].Validated)
}
