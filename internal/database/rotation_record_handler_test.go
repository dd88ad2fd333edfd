package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"vpnrotator/internal/domain"
)

func setupRotationTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := SetupDB(WithDialector(sqlite.Open(dsn)))
	if err != nil {
		t.Fatalf("SetupDB returned error: %v", err)
	}

	t.Cleanup(func() {
		_ = Close()
	})

	return db
}

func rotationRecord(n int) domain.RotationRecord {
	return domain.RotationRecord{
		RequestID: fmt.Sprintf("req-%03d", n),
		Reason:    "auto",
		ProxyID:   fmt.Sprintf("proxy-%d", 1000+n),
		Address:   "10.0.0.1:8080",
		Protocol:  "HTTPS",
		Country:   "Japan",
		City:      "Tokyo",
		CreatedAt: time.Date(2024, 1, 1, 0, n, 0, 0, time.UTC),
	}
}

func TestInsertAndListRotationRecords(t *testing.T) {
	setupRotationTestDB(t)
	ctx := context.Background()

	records := []domain.RotationRecord{rotationRecord(1), rotationRecord(2), rotationRecord(3)}
	if err := InsertRotationRecords(ctx, records, CalculateRotationRecordBatchSize(len(records))); err != nil {
		t.Fatalf("InsertRotationRecords returned error: %v", err)
	}

	got, err := ListRotationRecords(ctx, 2)
	if err != nil {
		t.Fatalf("ListRotationRecords returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListRotationRecords returned %d rows, want 2", len(got))
	}
	if got[0].RequestID != "req-003" || got[1].RequestID != "req-002" {
		t.Fatalf("unexpected order: %s, %s", got[0].RequestID, got[1].RequestID)
	}
}

func TestInsertRotationRecordsRejectsDuplicateRequestID(t *testing.T) {
	setupRotationTestDB(t)
	ctx := context.Background()

	if err := InsertRotationRecords(ctx, []domain.RotationRecord{rotationRecord(1)}, 10); err != nil {
		t.Fatalf("first insert returned error: %v", err)
	}
	if err := InsertRotationRecords(ctx, []domain.RotationRecord{rotationRecord(2), rotationRecord(1)}, 10); err == nil {
		t.Fatal("expected unique constraint violation")
	}

	got, err := ListRotationRecords(ctx, 10)
	if err != nil {
		t.Fatalf("ListRotationRecords returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("failed batch should roll back, found %d rows", len(got))
	}
}

func TestPruneRotationRecords(t *testing.T) {
	setupRotationTestDB(t)
	ctx := context.Background()

	var records []domain.RotationRecord
	for i := 1; i <= 5; i++ {
		records = append(records, rotationRecord(i))
	}
	if err := InsertRotationRecords(ctx, records, 2); err != nil {
		t.Fatalf("InsertRotationRecords returned error: %v", err)
	}

	deleted, err := PruneRotationRecords(ctx, 2)
	if err != nil {
		t.Fatalf("PruneRotationRecords returned error: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("PruneRotationRecords deleted %d rows, want 3", deleted)
	}

	got, _ := ListRotationRecords(ctx, 10)
	if len(got) != 2 || got[0].RequestID != "req-005" || got[1].RequestID != "req-004" {
		t.Fatalf("unexpected survivors: %+v", got)
	}

	deleted, err = PruneRotationRecords(ctx, 10)
	if err != nil || deleted != 0 {
		t.Fatalf("PruneRotationRecords with spare capacity = (%d, %v), want (0, nil)", deleted, err)
	}
}

func TestRotationRecordsWithoutDatabase(t *testing.T) {
	DB = nil
	ctx := context.Background()

	if err := InsertRotationRecords(ctx, []domain.RotationRecord{rotationRecord(1)}, 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := ListRotationRecords(ctx, 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := PruneRotationRecords(ctx, 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestBuildDSNUsesEnvironment(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "rotations")

	dsn := buildDSN()
	for _, fragment := range []string{"host=db.internal", "dbname=rotations", "sslmode=disable"} {
		if !strings.Contains(dsn, fragment) {
			t.Fatalf("dsn %q missing %q", dsn, fragment)
		}
	}
}

func TestOptionsFromEnv(t *testing.T) {
	cases := []struct {
		name      string
		migrate   string
		wantTable bool
	}{
		{name: "migrates by default", migrate: "", wantTable: true},
		{name: "migration disabled", migrate: "false", wantTable: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("DB_DRIVER", "sqlite")
			t.Setenv("DB_PATH", fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
			t.Setenv("DB_AUTO_MIGRATE", tc.migrate)

			db, err := SetupDB(OptionsFromEnv()...)
			if err != nil {
				t.Fatalf("SetupDB returned error: %v", err)
			}
			t.Cleanup(func() { _ = Close() })

			if got := db.Migrator().HasTable(&domain.RotationRecord{}); got != tc.wantTable {
				t.Fatalf("HasTable = %v, want %v", got, tc.wantTable)
			}
		})
	}
}
