package recorder

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"clubline-hq/saturn/pkg/admission"
	"clubline-hq/saturn/pkg/admission/window"
	"clubline-hq/saturn/pkg/identity"
	"clubline-hq/saturn/pkg/ledger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForCount(t *testing.T, storage ledger.Storage, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := storage.Count(context.Background()); n == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	n, _ := storage.Count(context.Background())
	t.Fatalf("ledger count = %d, want %d", n, want)
}

func TestRecorder_AppendsOneRecordPerAttempt(t *testing.T) {
	storage := ledger.NewMemoryStorage()
	windows := window.NewMemoryStore()
	rec := New(storage, windows, nil, DefaultConfig(), discardLogger())
	defer rec.Close()

	ctx := context.Background()
	user := identity.Identity{Kind: identity.KindUser, Value: "42"}

	// Allowed and denied attempts both land in the ledger.
	rec.Record(ctx, user, "api/v1/teams", &admission.Result{
		Allowed: true, LimitTypeHit: admission.LimitNone, CostWeight: 1.0,
	}, map[string]string{"request_id": "req-1"})
	rec.Record(ctx, user, "api/v1/teams", &admission.Result{
		Allowed: false, LimitTypeHit: admission.LimitHourly, CostWeight: 1.0,
		RetryAfter: 30 * time.Second,
	}, nil)

	waitForCount(t, storage, 2)

	records, _ := storage.List(ctx, user.Key(), 10)
	if records[0].ID == records[1].ID {
		t.Error("records must get distinct IDs")
	}
}

func TestRecorder_UpdatesBothWindows(t *testing.T) {
	storage := ledger.NewMemoryStorage()
	windows := window.NewMemoryStore()
	rec := New(storage, windows, nil, DefaultConfig(), discardLogger())
	defer rec.Close()

	ctx := context.Background()
	user := identity.Identity{Kind: identity.KindUser, Value: "42"}

	rec.Record(ctx, user, "api/v1/teams", &admission.Result{
		Allowed: true, LimitTypeHit: admission.LimitNone, CostWeight: 2.5,
	}, nil)

	hourly, _ := windows.Current(ctx, user.Key(), window.KindHourly)
	minutely, _ := windows.Current(ctx, user.Key(), window.KindMinutely)
	if hourly.TotalCost != 2.5 {
		t.Errorf("hourly window = %v, want 2.5", hourly.TotalCost)
	}
	if minutely.TotalCost != 2.5 {
		t.Errorf("minutely window = %v, want 2.5", minutely.TotalCost)
	}
}

func TestRecorder_CountDeniedToggle(t *testing.T) {
	ctx := context.Background()
	user := identity.Identity{Kind: identity.KindUser, Value: "42"}
	denied := &admission.Result{
		Allowed: false, LimitTypeHit: admission.LimitBurst, CostWeight: 1.0,
	}

	t.Run("denied attempts consume quota by default", func(t *testing.T) {
		windows := window.NewMemoryStore()
		rec := New(ledger.NewMemoryStorage(), windows, nil, DefaultConfig(), discardLogger())
		defer rec.Close()

		rec.Record(ctx, user, "api/v1/teams", denied, nil)

		usage, _ := windows.Current(ctx, user.Key(), window.KindHourly)
		if usage.TotalCost != 1.0 {
			t.Errorf("hourly window = %v, want 1.0", usage.TotalCost)
		}
	})

	t.Run("count_denied off leaves windows untouched", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CountDenied = false
		windows := window.NewMemoryStore()
		rec := New(ledger.NewMemoryStorage(), windows, nil, cfg, discardLogger())
		defer rec.Close()

		rec.Record(ctx, user, "api/v1/teams", denied, nil)

		usage, _ := windows.Current(ctx, user.Key(), window.KindHourly)
		if usage.TotalCost != 0 {
			t.Errorf("hourly window = %v, want 0", usage.TotalCost)
		}
	})
}

type staticGeoIP struct{}

func (staticGeoIP) CountryCode(string) string { return "DE" }
func (staticGeoIP) Region(string) string      { return "Berlin" }

func TestRecorder_GeoIPAnnotation(t *testing.T) {
	storage := ledger.NewMemoryStorage()
	rec := New(storage, window.NewMemoryStore(), staticGeoIP{}, DefaultConfig(), discardLogger())
	defer rec.Close()

	ctx := context.Background()

	// IP identities are annotated.
	ip := identity.Identity{Kind: identity.KindIP, Value: "203.0.113.9"}
	rec.Record(ctx, ip, "api/v1/teams", &admission.Result{
		Allowed: true, LimitTypeHit: admission.LimitNone, CostWeight: 1.0,
	}, nil)

	// Authenticated identities are not: the IP is not the partition key.
	user := identity.Identity{Kind: identity.KindUser, Value: "42"}
	rec.Record(ctx, user, "api/v1/teams", &admission.Result{
		Allowed: true, LimitTypeHit: admission.LimitNone, CostWeight: 1.0,
	}, nil)

	waitForCount(t, storage, 2)

	ipRecords, _ := storage.List(ctx, ip.Key(), 1)
	if ipRecords[0].CountryCode != "DE" {
		t.Errorf("IP record country = %q, want DE", ipRecords[0].CountryCode)
	}
	userRecords, _ := storage.List(ctx, user.Key(), 1)
	if userRecords[0].CountryCode != "" {
		t.Errorf("user record country = %q, want empty", userRecords[0].CountryCode)
	}
}

func TestRecorder_CloseDrainsBuffer(t *testing.T) {
	storage := ledger.NewMemoryStorage()
	rec := New(storage, window.NewMemoryStore(), nil, DefaultConfig(), discardLogger())

	ctx := context.Background()
	user := identity.Identity{Kind: identity.KindUser, Value: "42"}
	for i := 0; i < 50; i++ {
		rec.Record(ctx, user, "api/v1/teams", &admission.Result{
			Allowed: true, LimitTypeHit: admission.LimitNone, CostWeight: 1.0,
		}, nil)
	}

	rec.Close()

	if n, _ := storage.Count(ctx); n != 50 {
		t.Errorf("ledger count after Close = %d, want 50", n)
	}
}
