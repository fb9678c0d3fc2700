package database

import (
	"errors"
	"testing"
	"time"

	"github.com/jo-hoe/retiscan/internal/common"
)

func newTestDB(t *testing.T) DatabaseService {
	t.Helper()

	ds, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteDatabase error: %v", err)
	}
	_, err = ds.CreateDatabase()
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func createTestUser(t *testing.T, ds DatabaseService, username string) *User {
	t.Helper()

	user := &User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$10$fakehashfakehashfakehash",
		FullName:     "Test User",
	}
	if err := ds.CreateUser(user); err != nil {
		t.Fatalf("CreateUser(%q) error: %v", username, err)
	}
	return user
}

func TestSQLite_DoesDatabaseExist(t *testing.T) {
	ds := newTestDB(t)
	if !ds.DoesDatabaseExist() {
		t.Fatalf("expected DoesDatabaseExist to return true")
	}
}

func TestSQLite_CreateUser_AssignsIDAndTimestamp(t *testing.T) {
	ds := newTestDB(t)

	user := createTestUser(t, ds, "alice")
	if user.ID == "" {
		t.Errorf("expected non-empty ID after CreateUser")
	}
	if user.CreatedAt.IsZero() {
		t.Errorf("expected non-zero CreatedAt after CreateUser")
	}
}

func TestSQLite_CreateUser_DuplicateUsername(t *testing.T) {
	ds := newTestDB(t)

	createTestUser(t, ds, "alice")

	err := ds.CreateUser(&User{
		Username:     "alice",
		Email:        "other@example.com",
		PasswordHash: "hash",
	})
	if !errors.Is(err, common.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestSQLite_UserByUsername(t *testing.T) {
	ds := newTestDB(t)

	created := createTestUser(t, ds, "bob")

	user, err := ds.UserByUsername("bob")
	if err != nil {
		t.Fatalf("UserByUsername error: %v", err)
	}
	if user == nil {
		t.Fatalf("UserByUsername returned nil; expected user")
	}
	if user.ID != created.ID {
		t.Errorf("expected ID %q, got %q", created.ID, user.ID)
	}
	if user.Email != "bob@example.com" {
		t.Errorf("expected email %q, got %q", "bob@example.com", user.Email)
	}

	// Unknown username yields nil, not an error
	missing, err := ds.UserByUsername("nobody")
	if err != nil {
		t.Fatalf("UserByUsername(nobody) error: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown username, got %+v", missing)
	}
}

func TestSQLite_UpdateUserProfile(t *testing.T) {
	ds := newTestDB(t)

	created := createTestUser(t, ds, "carol")

	if err := ds.UpdateUserProfile(created.ID, "new@example.com", "Carol Renamed"); err != nil {
		t.Fatalf("UpdateUserProfile error: %v", err)
	}

	user, err := ds.UserByID(created.ID)
	if err != nil {
		t.Fatalf("UserByID error: %v", err)
	}
	if user.Email != "new@example.com" {
		t.Errorf("expected updated email, got %q", user.Email)
	}
	if user.FullName != "Carol Renamed" {
		t.Errorf("expected updated full name, got %q", user.FullName)
	}
	// Username stays untouched by profile updates
	if user.Username != "carol" {
		t.Errorf("expected username %q, got %q", "carol", user.Username)
	}
}

func TestSQLite_UpdateUserProfile_UnknownUser(t *testing.T) {
	ds := newTestDB(t)

	err := ds.UpdateUserProfile("no-such-id", "a@example.com", "A")
	if !errors.Is(err, common.ErrPersistence) {
		t.Fatalf("expected ErrPersistence for unknown user, got %v", err)
	}
}

func TestSQLite_CreatePrediction_RoundTrip(t *testing.T) {
	ds := newTestDB(t)

	user := createTestUser(t, ds, "dave")

	record := &PredictionRecord{
		UserID:         user.ID,
		ImagePath:      "uploads/2026/retina.png",
		PredictedClass: "Moderate",
		Confidence:     0.87,
	}
	if err := ds.CreatePrediction(record); err != nil {
		t.Fatalf("CreatePrediction error: %v", err)
	}
	if record.ID == "" {
		t.Fatalf("expected non-empty record ID")
	}

	records, err := ds.PredictionsByUser(user.ID)
	if err != nil {
		t.Fatalf("PredictionsByUser error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.ID != record.ID {
		t.Errorf("expected ID %q, got %q", record.ID, got.ID)
	}
	if got.UserID != user.ID {
		t.Errorf("expected UserID %q, got %q", user.ID, got.UserID)
	}
	if got.ImagePath != record.ImagePath {
		t.Errorf("expected ImagePath %q, got %q", record.ImagePath, got.ImagePath)
	}
	if got.PredictedClass != "Moderate" {
		t.Errorf("expected class Moderate, got %q", got.PredictedClass)
	}
	if got.Confidence != 0.87 {
		t.Errorf("expected confidence 0.87, got %v", got.Confidence)
	}
	if got.CreatedAt.IsZero() {
		t.Errorf("expected non-zero CreatedAt")
	}
}

func TestSQLite_PredictionsByUser_EmptyForNewUser(t *testing.T) {
	ds := newTestDB(t)

	user := createTestUser(t, ds, "erin")

	records, err := ds.PredictionsByUser(user.ID)
	if err != nil {
		t.Fatalf("PredictionsByUser error: %v", err)
	}
	if records == nil {
		t.Fatalf("expected empty slice, got nil")
	}
	if len(records) != 0 {
		t.Fatalf("expected 0 records, got %d", len(records))
	}
}

func TestSQLite_PredictionsByUser_NewestFirst(t *testing.T) {
	ds := newTestDB(t)

	user := createTestUser(t, ds, "frank")

	classes := []string{"Mild", "Moderate", "Severe"}
	for _, class := range classes {
		record := &PredictionRecord{
			UserID:         user.ID,
			ImagePath:      "uploads/" + class + ".png",
			PredictedClass: class,
			Confidence:     0.5,
		}
		if err := ds.CreatePrediction(record); err != nil {
			t.Fatalf("CreatePrediction(%s) error: %v", class, err)
		}
		// created_at has limited resolution; keep inserts apart
		time.Sleep(5 * time.Millisecond)
	}

	records, err := ds.PredictionsByUser(user.ID)
	if err != nil {
		t.Fatalf("PredictionsByUser error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	expected := []string{"Severe", "Moderate", "Mild"}
	for i, class := range expected {
		if records[i].PredictedClass != class {
			t.Errorf("records[%d]: expected class %q, got %q", i, class, records[i].PredictedClass)
		}
	}
}

func TestSQLite_PredictionsByUser_ScopedToUser(t *testing.T) {
	ds := newTestDB(t)

	userA := createTestUser(t, ds, "gina")
	userB := createTestUser(t, ds, "hank")

	if err := ds.CreatePrediction(&PredictionRecord{
		UserID: userA.ID, ImagePath: "a.png", PredictedClass: "Mild", Confidence: 0.9,
	}); err != nil {
		t.Fatalf("CreatePrediction error: %v", err)
	}

	records, err := ds.PredictionsByUser(userB.ID)
	if err != nil {
		t.Fatalf("PredictionsByUser error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected 0 records for other user, got %d", len(records))
	}
}

func TestSQLite_PredictionByID(t *testing.T) {
	ds := newTestDB(t)

	user := createTestUser(t, ds, "ivan")
	record := &PredictionRecord{
		UserID: user.ID, ImagePath: "x.png", PredictedClass: "Severe", Confidence: 0.42,
	}
	if err := ds.CreatePrediction(record); err != nil {
		t.Fatalf("CreatePrediction error: %v", err)
	}

	got, err := ds.PredictionByID(record.ID)
	if err != nil {
		t.Fatalf("PredictionByID error: %v", err)
	}
	if got == nil || got.ID != record.ID {
		t.Fatalf("expected record %q, got %+v", record.ID, got)
	}

	missing, err := ds.PredictionByID("non-existent-id")
	if err != nil {
		t.Fatalf("PredictionByID(non-existent) error: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown id, got %+v", missing)
	}
}
