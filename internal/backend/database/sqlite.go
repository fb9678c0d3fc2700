package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jo-hoe/retiscan/internal/common"
)

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(`CREATE TABLE IF NOT EXISTS prediction_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		image_path TEXT NOT NULL,
		predicted_class TEXT NOT NULL,
		confidence REAL NOT NULL CHECK (confidence >= 0.0 AND confidence <= 1.0),
		created_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return nil, err
	}

	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) CreateUser(user *User) error {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(
		"INSERT INTO users (id, username, email, password_hash, full_name, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Username, user.Email, user.PasswordHash, user.FullName, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("username %q: %w", user.Username, common.ErrDuplicateUsername)
		}
		return persistenceError("insert user", err)
	}
	return nil
}

func (s *SQLiteDatabase) UserByID(id string) (*User, error) {
	row := s.db.QueryRow(
		"SELECT id, username, email, password_hash, full_name, created_at FROM users WHERE id = ?", id)
	return scanUser(row)
}

func (s *SQLiteDatabase) UserByUsername(username string) (*User, error) {
	row := s.db.QueryRow(
		"SELECT id, username, email, password_hash, full_name, created_at FROM users WHERE username = ?", username)
	return scanUser(row)
}

func (s *SQLiteDatabase) UpdateUserProfile(id, email, fullName string) error {
	result, err := s.db.Exec("UPDATE users SET email = ?, full_name = ? WHERE id = ?", email, fullName, id)
	if err != nil {
		return persistenceError("update user profile", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistenceError("update user profile", err)
	}
	if affected == 0 {
		return persistenceError("update user profile", fmt.Errorf("no user with id %s", id))
	}
	return nil
}

func (s *SQLiteDatabase) CreatePrediction(record *PredictionRecord) error {
	record.ID = uuid.NewString()
	record.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(
		"INSERT INTO prediction_records (id, user_id, image_path, predicted_class, confidence, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		record.ID, record.UserID, record.ImagePath, record.PredictedClass, record.Confidence, record.CreatedAt,
	)
	if err != nil {
		return persistenceError("insert prediction", err)
	}
	return nil
}

func (s *SQLiteDatabase) PredictionsByUser(userID string) ([]*PredictionRecord, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, image_path, predicted_class, confidence, created_at FROM prediction_records WHERE user_id = ? ORDER BY created_at DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, persistenceError("query predictions", err)
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	records := []*PredictionRecord{}
	for rows.Next() {
		var record PredictionRecord
		if err := rows.Scan(&record.ID, &record.UserID, &record.ImagePath,
			&record.PredictedClass, &record.Confidence, &record.CreatedAt); err != nil {
			return nil, persistenceError("scan prediction", err)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("iterate predictions", err)
	}
	return records, nil
}

func (s *SQLiteDatabase) PredictionByID(id string) (*PredictionRecord, error) {
	row := s.db.QueryRow(
		"SELECT id, user_id, image_path, predicted_class, confidence, created_at FROM prediction_records WHERE id = ?", id)

	var record PredictionRecord
	err := row.Scan(&record.ID, &record.UserID, &record.ImagePath,
		&record.PredictedClass, &record.Confidence, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("scan prediction", err)
	}
	return &record, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("scan user", err)
	}
	return &user, nil
}

// isUniqueViolation detects a sqlite UNIQUE constraint failure. modernc.org/sqlite
// does not export a typed constraint error, so the message is matched instead.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func persistenceError(operation string, err error) error {
	return fmt.Errorf("%s: %v: %w", operation, err, common.ErrPersistence)
}
