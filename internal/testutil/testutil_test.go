package testutil

import (
	"testing"
	"time"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Setenv("TEST_DB_HOST", "")
	t.Setenv("TEST_DB_PORT", "")
	t.Setenv("TEST_DB_USER", "")

	cfg := DefaultTestDBConfig()
	if cfg.Host != "localhost" || cfg.Port != 55432 || cfg.User != "laptopdoc" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	t.Setenv("TEST_DB_PORT", "5432")
	if got := DefaultTestDBConfig().Port; got != 5432 {
		t.Fatalf("expected env override, got %d", got)
	}
}

func TestEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "y"} {
		t.Setenv("TESTUTIL_FLAG", v)
		if !envBool("TESTUTIL_FLAG") {
			t.Fatalf("expected %q to be truthy", v)
		}
	}
	t.Setenv("TESTUTIL_FLAG", "off")
	if envBool("TESTUTIL_FLAG") {
		t.Fatal("expected off to be falsy")
	}
}

func TestFixedTimeFunc(t *testing.T) {
	now := FixedTimeFunc(TestTime())
	if !now().Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %s", now())
	}
}
