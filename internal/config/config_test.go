package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Escrow.CoolingOffPeriod != 48*time.Hour {
		t.Fatalf("expected 48h cooling-off, got %s", cfg.Escrow.CoolingOffPeriod)
	}
	if cfg.Escrow.CheckoutHour != 11 {
		t.Fatalf("expected checkout hour 11, got %d", cfg.Escrow.CheckoutHour)
	}
	if !cfg.Escrow.SkipOpenDisputes {
		t.Fatalf("expected open disputes to be skipped by default")
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("expected postgres driver, got %s", cfg.Database.Driver)
	}
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
service:
  name: escrow-test
  port: "9000"
database:
  driver: sqlite
  sqlite_path: test.db
kafka:
  brokers: [" broker-1:9092 ", ""]
escrow:
  cooling_off_period: 24h
  checkout_hour: 10
  skip_open_disputes: false
outbox:
  batch_size: 25
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PORT", "9100")
	t.Setenv("ESCROW_COOLING_OFF", "72h")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServiceName != "escrow-test" {
		t.Fatalf("service name from file not applied: %s", cfg.ServiceName)
	}
	if cfg.Port != "9100" {
		t.Fatalf("expected env port 9100, got %s", cfg.Port)
	}
	if cfg.Escrow.CoolingOffPeriod != 72*time.Hour {
		t.Fatalf("expected env cooling-off 72h, got %s", cfg.Escrow.CoolingOffPeriod)
	}
	if cfg.Escrow.CheckoutHour != 10 {
		t.Fatalf("expected checkout hour 10, got %d", cfg.Escrow.CheckoutHour)
	}
	if cfg.Escrow.SkipOpenDisputes {
		t.Fatalf("expected skip_open_disputes=false from file")
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "broker-1:9092" {
		t.Fatalf("unexpected brokers %#v", cfg.Kafka.Brokers)
	}
	if cfg.Outbox.BatchSize != 25 {
		t.Fatalf("expected batch size 25, got %d", cfg.Outbox.BatchSize)
	}
	dsn, err := cfg.Database.DSN()
	if err != nil || dsn != "test.db" {
		t.Fatalf("expected sqlite dsn test.db, got %q (%v)", dsn, err)
	}
}

func TestLoadRejectsInvalidCheckoutHour(t *testing.T) {
	t.Setenv("ESCROW_CHECKOUT_HOUR", "24")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected validation error for checkout hour 24")
	}
}

func TestPostgresDSNRequiresSettings(t *testing.T) {
	d := Default().Database
	if _, err := d.DSN(); err == nil {
		t.Fatalf("expected error when no postgres settings are present")
	}
	d.Host, d.User, d.Password, d.Name, d.Port = "localhost", "app", "secret", "escrow", "5432"
	dsn, err := d.DSN()
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	want := "host=localhost user=app password=secret dbname=escrow port=5432 sslmode=disable TimeZone=UTC"
	if dsn != want {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}
