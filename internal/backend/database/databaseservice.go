package database

import "database/sql"

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// CreateUser inserts a new account. ID and CreatedAt are assigned by the
	// store. Returns common.ErrDuplicateUsername when the username is taken.
	CreateUser(user *User) error
	// UserByID returns nil (not an error) when no such user exists.
	UserByID(id string) (*User, error)
	// UserByUsername returns nil (not an error) when no such user exists.
	UserByUsername(username string) (*User, error)
	UpdateUserProfile(id, email, fullName string) error

	// CreatePrediction inserts an immutable prediction row. ID and CreatedAt
	// are assigned by the store; there is no update or delete operation.
	CreatePrediction(record *PredictionRecord) error
	// PredictionsByUser lists a user's records newest first. A user with no
	// records yields an empty slice, not an error.
	PredictionsByUser(userID string) ([]*PredictionRecord, error)
	// PredictionByID returns nil (not an error) when no such record exists.
	PredictionByID(id string) (*PredictionRecord, error)
}
