package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-identity-backend/internal/domain"
)

func newIdemDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:idem_repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestGetIdempotency_BlankKey(t *testing.T) {
	db := newIdemDB(t)
	if _, err := GetIdempotency(context.Background(), db, "  ", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank key, got %v", err)
	}
}

func TestCreateAndGetIdempotency_RoundTrip(t *testing.T) {
	db := newIdemDB(t)
	now := time.Now().UTC()

	rec, err := CreateIdempotency(context.Background(), db, "k1", 7, 200, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ID == "" || rec.PrimaryContactID != 7 || rec.Status != 200 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(context.Background(), db, "k1", now)
	if err != nil || got.PrimaryContactID != 7 {
		t.Fatalf("GetIdempotency: got=%+v err=%v", got, err)
	}
}

func TestGetIdempotency_ExpiredIsNotFound(t *testing.T) {
	db := newIdemDB(t)

	if _, err := CreateIdempotency(context.Background(), db, "k-exp", 1, 200, time.Minute); err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	future := time.Now().UTC().Add(2 * time.Minute)
	if _, err := GetIdempotency(context.Background(), db, "k-exp", future); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after TTL, got %v", err)
	}
}

func TestCreateIdempotency_Duplicate(t *testing.T) {
	db := newIdemDB(t)

	if _, err := CreateIdempotency(context.Background(), db, "dup", 1, 200, time.Hour); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := CreateIdempotency(context.Background(), db, "dup", 2, 200, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}
