package tiers

import "testing"

func TestCatalog_BuiltinTiers(t *testing.T) {
	catalog := NewCatalog(nil)

	free := catalog.LimitsFor("free")
	if free.RequestsPerHour != 1000 || free.BurstPerMinute != 100 || free.ConcurrentRequests != 10 {
		t.Errorf("free tier = %+v, want 1000/h, 100/min, 10 concurrent", free)
	}

	unlimited := catalog.LimitsFor("unlimited")
	if !unlimited.Unlimited {
		t.Error("unlimited tier must carry the explicit flag")
	}
	if unlimited.RequestsPerHour != 0 || unlimited.BurstPerMinute != 0 {
		t.Error("unlimited tier must not encode limits as numeric sentinels")
	}
}

func TestCatalog_MonotonicLimits(t *testing.T) {
	defs := BuiltinTiers()

	for i := 1; i < len(defs); i++ {
		prev, cur := defs[i-1], defs[i]
		if cur.Priority <= prev.Priority {
			t.Errorf("tier %s priority %d not above %s", cur.Name, cur.Priority, prev.Name)
		}
		if cur.Unlimited {
			continue
		}
		if cur.RequestsPerHour <= prev.RequestsPerHour {
			t.Errorf("tier %s hourly cap %v not above %s", cur.Name, cur.RequestsPerHour, prev.Name)
		}
		if cur.BurstPerMinute <= prev.BurstPerMinute {
			t.Errorf("tier %s burst cap %v not above %s", cur.Name, cur.BurstPerMinute, prev.Name)
		}
		if cur.ConcurrentRequests <= prev.ConcurrentRequests {
			t.Errorf("tier %s concurrency cap %v not above %s", cur.Name, cur.ConcurrentRequests, prev.Name)
		}
	}
}

func TestCatalog_UnknownTierFailsClosed(t *testing.T) {
	catalog := NewCatalog(nil)

	got := catalog.LimitsFor("platinum-deluxe")
	if got.Name != "free" {
		t.Errorf("unknown tier resolved to %q, want free", got.Name)
	}
}

func TestCatalog_CustomDefsAlwaysIncludeFree(t *testing.T) {
	catalog := NewCatalog([]Tier{
		{Name: "internal", RequestsPerHour: 9000, BurstPerMinute: 900, ConcurrentRequests: 90},
	})

	if got := catalog.LimitsFor("internal"); got.RequestsPerHour != 9000 {
		t.Errorf("custom tier lost: %+v", got)
	}
	if got := catalog.LimitsFor("nope"); got.Name != "free" {
		t.Errorf("fail-closed default missing, got %q", got.Name)
	}
}
