package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func snap(at time.Time, soc float64, charging bool, powerW float64) Snapshot {
	return Snapshot{
		RecordedAt: at,
		VIN:        "LSJW0000000000000",
		SoCPercent: soc,
		RangeKm:    200,
		Charging:   charging,
		PowerW:     powerW,
		OdometerKm: 12345,
		AtHome:     true,
	}
}

func TestRecordAndRecentSnapshots(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := store.Record(ctx, snap(base.Add(time.Duration(i)*time.Minute), 50+float64(i), false, 0)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := store.RecentSnapshots(ctx, "LSJW0000000000000", 2)
	if err != nil {
		t.Fatalf("RecentSnapshots: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(got))
	}
	if got[0].SoCPercent != 52 {
		t.Errorf("newest snapshot soc = %v, want 52", got[0].SoCPercent)
	}
}

func TestChargeSessionLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)

	// Not charging: no session opens.
	if err := store.Record(ctx, snap(base, 40, false, 0)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	// Charging starts.
	if err := store.Record(ctx, snap(base.Add(5*time.Minute), 41, true, 3500)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	// Power peaks mid-session.
	if err := store.Record(ctx, snap(base.Add(10*time.Minute), 55, true, 7200)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	// Charging stops.
	if err := store.Record(ctx, snap(base.Add(60*time.Minute), 80, false, 0)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	sessions, err := store.Sessions(ctx, "LSJW0000000000000", 10)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}

	sess := sessions[0]
	if sess.StartSoC != 41 {
		t.Errorf("start soc = %v, want 41", sess.StartSoC)
	}
	if sess.EndSoC == nil || *sess.EndSoC != 80 {
		t.Errorf("end soc = %v, want 80", sess.EndSoC)
	}
	if sess.EndedAt == nil {
		t.Error("session should be closed")
	}
	if sess.MaxPowerW != 7200 {
		t.Errorf("max power = %v, want 7200", sess.MaxPowerW)
	}
}

func TestChargingContinuationKeepsOneSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		if err := store.Record(ctx, snap(base.Add(time.Duration(i)*time.Minute), 60, true, 7000)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	sessions, err := store.Sessions(ctx, "LSJW0000000000000", 10)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].EndedAt != nil {
		t.Error("session should still be open")
	}
}
