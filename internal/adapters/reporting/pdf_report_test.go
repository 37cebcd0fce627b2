package reporting

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
)

type fakeStore struct {
	sessions    []domain.AttackSession
	handshakes  []domain.CapturedHandshake
	credentials []domain.CapturedCredential
	err         error
}

func (f fakeStore) ListSessions() ([]domain.AttackSession, error) {
	return f.sessions, f.err
}

func (f fakeStore) ListHandshakes() ([]domain.CapturedHandshake, error) {
	return f.handshakes, f.err
}

func (f fakeStore) ListCredentials() ([]domain.CapturedCredential, error) {
	return f.credentials, f.err
}

func sampleStore() fakeStore {
	end := time.Now()
	return fakeStore{
		sessions: []domain.AttackSession{
			{
				ID:          "s-1",
				Kind:        domain.AttackHandshake,
				TargetBSSID: "AA:BB:CC:DD:EE:FF",
				TargetESSID: "corpnet",
				Channel:     6,
				Assignment: domain.RoleAssignment{
					Kind:          domain.AttackHandshake,
					Primary:       "wlan0",
					PrimaryRole:   "Capture",
					Secondary:     "wlan1",
					SecondaryRole: "Deauth",
				},
				DeauthBursts: 12,
				Outcome:      domain.OutcomeHandshakeCaptured,
				StartTime:    end.Add(-5 * time.Minute),
				EndTime:      &end,
			},
			{
				ID:          "s-2",
				Kind:        domain.AttackRogueAP,
				TargetBSSID: "11:22:33:44:55:66",
				TargetESSID: "guest",
				Channel:     11,
				Assignment: domain.RoleAssignment{
					Kind:        domain.AttackRogueAP,
					Primary:     "wlan0",
					PrimaryRole: "Rogue AP + Deauth (mode switching)",
				},
				Outcome:   domain.OutcomeExhausted,
				StartTime: end.Add(-30 * time.Minute),
			},
		},
		handshakes: []domain.CapturedHandshake{
			{
				ID:         "h-1",
				BSSID:      "AA:BB:CC:DD:EE:FF",
				ESSID:      "corpnet",
				FilePath:   "/var/lib/dualstrike/hs-aabbccddeeff-20260829.pcapng",
				Backend:    domain.BackendModern,
				CapturedAt: end,
			},
		},
		credentials: []domain.CapturedCredential{
			{
				ID:         "c-1",
				BSSID:      "11:22:33:44:55:66",
				ESSID:      "guest",
				Passphrase: "hunter2hunter2",
				ClientIP:   "10.0.0.57",
				Validated:  true,
				CapturedAt: end,
			},
		},
	}
}

func TestPDFReporterWrite(t *testing.T) {
	reporter := NewPDFReporter(sampleStore())

	var buf bytes.Buffer
	if err := reporter.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data := buf.Bytes()
	if len(data) == 0 {
		t.Fatal("PDF data is empty")
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("Generated data does not have PDF header")
	}
	if len(data) < 1000 {
		t.Errorf("PDF file size %d bytes seems too small", len(data))
	}
	if len(data) > 1000000 {
		t.Errorf("PDF file size %d bytes seems too large", len(data))
	}

	t.Logf("Generated PDF size: %d bytes", len(data))
}

func TestPDFReporterEmptyStore(t *testing.T) {
	reporter := NewPDFReporter(fakeStore{})

	var buf bytes.Buffer
	if err := reporter.Write(&buf); err != nil {
		t.Fatalf("Write() with empty store error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Error("Empty report does not have PDF header")
	}
}

func TestPDFReporterStoreFailure(t *testing.T) {
	reporter := NewPDFReporter(fakeStore{err: errors.New("db locked")})

	var buf bytes.Buffer
	if err := reporter.Write(&buf); err == nil {
		t.Fatal("expected error when the store fails")
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output on failure, got %d bytes", buf.Len())
	}
}

func TestPDFReporterManySessions(t *testing.T) {
	store := fakeStore{}
	for i := 0; i < 60; i++ {
		store.sessions = append(store.sessions, domain.AttackSession{
			ID:          "s",
			Kind:        domain.AttackHandshake,
			TargetBSSID: "AA:BB:CC:DD:EE:FF",
			Channel:     1 + i%11,
			Assignment: domain.RoleAssignment{
				Primary:     "wlan0",
				PrimaryRole: "Capture + Deauth",
			},
			Outcome:   domain.OutcomeStopped,
			StartTime: time.Now(),
		})
	}
	reporter := NewPDFReporter(store)

	var buf bytes.Buffer
	if err := reporter.Write(&buf); err != nil {
		t.Fatalf("Write() with many sessions error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Error("Multi-page report does not have PDF header")
	}
}

func TestOutcomeColor(t *testing.T) {
	reporter := NewPDFReporter(fakeStore{})

	outcomes := []domain.SessionOutcome{
		domain.OutcomeHandshakeCaptured,
		domain.OutcomeCredentialCaptured,
		domain.OutcomeExhausted,
		domain.OutcomeFailed,
		domain.OutcomeStopped,
	}
	for _, outcome := range outcomes {
		t.Run(string(outcome), func(t *testing.T) {
			r, g, b := reporter.outcomeColor(outcome)
			for _, v := range []int{r, g, b} {
				if v < 0 || v > 255 {
					t.Errorf("color component %d out of range [0, 255]", v)
				}
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q, want unchanged", got)
	}
	if got := truncate("a very long capture file path", 10); got != "a very ..." {
		t.Errorf("truncate() = %q", got)
	}
}
