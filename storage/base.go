package storage

import (
	"errors"

	"movie-mate/model"
)

// Slot keys. Each slot holds one JSON document.
const (
	SlotRatings = "movieRatings"
	SlotPending = "pendingRatings"
	SlotDataset = "movieDataset"
	SlotUsers   = "registeredUsers"
	SlotToken   = "token"
	SlotUser    = "user"
)

var ErrUserExists = errors.New("username already exists")

type StorageInterface interface {
	Initialize() error

	GetRatings() (map[int]int, error)
	SetRating(movieID, rating int) error
	RecordSyncedRating(movieID, rating int) error
	GetPendingRatings() (map[int]int, error)
	ClearPendingRating(movieID, rating int) error

	GetDatasetOverride() ([]model.Movie, bool, error)
	SetDatasetOverride(movies []model.Movie) error

	GetUsers() (map[string]model.UserRecord, error)
	CreateUser(username string, record model.UserRecord) error

	GetSession() (model.Session, error)
	SetSession(session model.Session) error
	ClearSession() error

	GetStats() (map[string]int, error)
	Close() error
}
