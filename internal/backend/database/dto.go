package database

import "time"

// User is the persisted account record. PasswordHash holds a bcrypt hash and
// is never serialized.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// PredictionRecord is one completed classification. Rows are insert-only:
// once written they are never updated or deleted.
type PredictionRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ImagePath      string    `json:"image_path"`
	PredictedClass string    `json:"predicted_class"`
	Confidence     float64   `json:"confidence"`
	CreatedAt      time.Time `json:"created_at"`
}
