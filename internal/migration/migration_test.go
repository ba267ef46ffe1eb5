package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/flowpulse/flowpulse/pkg/db"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected embedded migrations")
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file %s", name)
		}
	}
	for version := range ups {
		if !downs[version] {
			t.Fatalf("missing down migration for %s", version)
		}
	}
	if len(ups) != len(downs) {
		t.Fatalf("expected matching up/down counts, got %d and %d", len(ups), len(downs))
	}
}

func TestInitMigrationGuardsResponseDelivery(t *testing.T) {
	body, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}
	for _, want := range []string{
		"ux_customers_org_phone",
		"ux_responses_delivery",
		"PRIMARY KEY (org_id, metric_date)",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected init migration to contain %q", want)
		}
	}
}

func TestAutoMigrateCreatesTables(t *testing.T) {
	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("new test db: %v", err)
	}
	if err := AutoMigrate(conn); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	for _, table := range []string{"customers", "surveys", "deliveries", "responses", "daily_org_metrics"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}
}
