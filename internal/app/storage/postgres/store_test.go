package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/R3E-Network/tvl_service/internal/app/domain/tvl"
)

func TestListPoints(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer raw.Close()

	db := sqlx.NewDb(raw, "postgres")
	store := New(db)

	rows := sqlmock.NewRows([]string{"day", "tvl", "unix_seconds"}).
		AddRow("2024-03-02", 110.0, int64(1709337600)).
		AddRow("2024-03-01", 100.0, int64(1709251200))
	mock.ExpectQuery("SELECT day, tvl, unix_seconds").
		WithArgs("Ethereum", 30).
		WillReturnRows(rows)

	points, err := store.ListPoints(context.Background(), "Ethereum", 30)
	if err != nil {
		t.Fatalf("list points: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Date != "2024-03-02" || points[0].TVL != 110 {
		t.Fatalf("unexpected first point: %#v", points[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := Apply(ctx, db.DB); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := New(db)
	points := []tvl.Point{
		{Date: "2024-03-01", TVL: 100, Unix: 1709251200},
		{Date: "2024-03-02", TVL: 110, Unix: 1709337600},
	}
	if err := store.UpsertPoints(ctx, "TestChain", points); err != nil {
		t.Fatalf("upsert points: %v", err)
	}

	// Upsert again with a changed value; must not duplicate.
	points[1].TVL = 120
	if err := store.UpsertPoints(ctx, "TestChain", points); err != nil {
		t.Fatalf("re-upsert points: %v", err)
	}

	got, err := store.ListPoints(ctx, "TestChain", 10)
	if err != nil {
		t.Fatalf("list points: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	if got[0].Date != "2024-03-02" || got[0].TVL != 120 {
		t.Fatalf("unexpected newest point: %#v", got[0])
	}
}
