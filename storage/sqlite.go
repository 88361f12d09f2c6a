package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"movie-mate/logging"
	"movie-mate/model"
)

// SQLiteStorage persists the key-value slots the application keeps between
// runs: local ratings, the uploaded dataset, registered users and the
// current session.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	dataPath string

	// serialises read-modify-write of whole slots
	mu sync.Mutex
}

var _ StorageInterface = (*SQLiteStorage)(nil)

func NewSQLiteStorage(dataPath string) *SQLiteStorage {
	dbPath := filepath.Join(dataPath, "movie_mate.db")
	return &SQLiteStorage{
		dbPath:   dbPath,
		dataPath: dataPath,
	}
}

func (s *SQLiteStorage) Initialize() error {
	if err := os.MkdirAll(s.dataPath, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := openDB(s.dbPath)
	if err != nil {
		return err
	}
	s.db = db

	migrationManager := NewMigrationManager(s.db)
	if err := migrationManager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	if err := migrationManager.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logging.Info().Str("path", s.dbPath).Msg("SQLite database initialized")
	return nil
}

// openDB uses a single connection so slot reads never race a write on
// another connection; the busy timeout covers other processes such as
// the migrate command
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// readSlot decodes the slot into T. A missing slot and a slot that fails to
// decode both report found=false; the latter is logged.
func readSlot[T any](s *SQLiteStorage, key string) (T, bool, error) {
	var value T

	var raw string
	err := s.db.QueryRow(`SELECT value FROM slots WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("failed to read slot %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		logging.Warn().Err(err).Str("slot", key).Msg("Ignoring unreadable slot")
		var zero T
		return zero, false, nil
	}
	return value, true, nil
}

func (s *SQLiteStorage) writeSlot(key string, value any) error {
	return writeSlotWith(s.db, key, value)
}

func writeSlotWith(db execer, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode slot %s: %w", key, err)
	}

	query := `
	INSERT INTO slots (key, value, created_at, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := db.Exec(query, key, string(data)); err != nil {
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) deleteSlot(key string) error {
	if _, err := s.db.Exec(`DELETE FROM slots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}

// writeSlots writes every slot in one transaction
func (s *SQLiteStorage) writeSlots(values map[string]any) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for key, value := range values {
		if err := writeSlotWith(tx, key, value); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) readRatingSlot(key string) (map[string]int, error) {
	stored, _, err := readSlot[map[string]int](s, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		stored = make(map[string]int)
	}
	return stored, nil
}

func toIDMap(stored map[string]int) map[int]int {
	ratings := make(map[int]int, len(stored))
	for key, rating := range stored {
		id, err := strconv.Atoi(key)
		if err != nil {
			logging.Warn().Str("key", key).Msg("Skipping rating with non-numeric movie id")
			continue
		}
		ratings[id] = rating
	}
	return ratings
}

// GetRatings returns the locally recorded ratings keyed by movie id
func (s *SQLiteStorage) GetRatings() (map[int]int, error) {
	stored, err := s.readRatingSlot(SlotRatings)
	if err != nil {
		return nil, err
	}
	return toIDMap(stored), nil
}

// SetRating records a rating the upstream has not seen yet. It replaces any
// earlier rating for the movie and queues it for replay.
func (s *SQLiteStorage) SetRating(movieID, rating int) error {
	return s.putRating(movieID, rating, true)
}

// RecordSyncedRating records a rating the upstream already holds, dropping
// any queued offline rating for the movie
func (s *SQLiteStorage) RecordSyncedRating(movieID, rating int) error {
	return s.putRating(movieID, rating, false)
}

func (s *SQLiteStorage) putRating(movieID, rating int, pending bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ratings, err := s.readRatingSlot(SlotRatings)
	if err != nil {
		return err
	}
	queued, err := s.readRatingSlot(SlotPending)
	if err != nil {
		return err
	}

	key := strconv.Itoa(movieID)
	ratings[key] = rating
	if pending {
		queued[key] = rating
	} else {
		delete(queued, key)
	}
	return s.writeSlots(map[string]any{SlotRatings: ratings, SlotPending: queued})
}

// GetPendingRatings returns ratings recorded while the upstream was
// unreachable and not yet replayed
func (s *SQLiteStorage) GetPendingRatings() (map[int]int, error) {
	stored, err := s.readRatingSlot(SlotPending)
	if err != nil {
		return nil, err
	}
	return toIDMap(stored), nil
}

// ClearPendingRating drops a queued rating once it has been replayed. A
// newer rating queued for the movie in the meantime is kept.
func (s *SQLiteStorage) ClearPendingRating(movieID, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queued, err := s.readRatingSlot(SlotPending)
	if err != nil {
		return err
	}
	key := strconv.Itoa(movieID)
	if current, ok := queued[key]; !ok || current != rating {
		return nil
	}
	delete(queued, key)
	return s.writeSlot(SlotPending, queued)
}

// GetDatasetOverride returns the uploaded dataset, if one was stored
func (s *SQLiteStorage) GetDatasetOverride() ([]model.Movie, bool, error) {
	return readSlot[[]model.Movie](s, SlotDataset)
}

func (s *SQLiteStorage) SetDatasetOverride(movies []model.Movie) error {
	if movies == nil {
		movies = []model.Movie{}
	}
	return s.writeSlot(SlotDataset, movies)
}

// GetUsers returns the locally registered accounts keyed by username
func (s *SQLiteStorage) GetUsers() (map[string]model.UserRecord, error) {
	users, _, err := readSlot[map[string]model.UserRecord](s, SlotUsers)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = make(map[string]model.UserRecord)
	}
	return users, nil
}

// CreateUser adds an account, failing with ErrUserExists if the username is taken
func (s *SQLiteStorage) CreateUser(username string, record model.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.GetUsers()
	if err != nil {
		return err
	}
	if _, taken := users[username]; taken {
		return ErrUserExists
	}
	users[username] = record
	return s.writeSlot(SlotUsers, users)
}

// GetSession returns the persisted token and user. Either may be empty.
func (s *SQLiteStorage) GetSession() (model.Session, error) {
	var session model.Session

	token, _, err := readSlot[string](s, SlotToken)
	if err != nil {
		return session, err
	}
	session.Token = token

	user, found, err := readSlot[model.User](s, SlotUser)
	if err != nil {
		return session, err
	}
	if found {
		session.User = &user
	}
	return session, nil
}

func (s *SQLiteStorage) SetSession(session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeSlot(SlotToken, session.Token); err != nil {
		return err
	}
	if session.User == nil {
		return s.deleteSlot(SlotUser)
	}
	return s.writeSlot(SlotUser, session.User)
}

func (s *SQLiteStorage) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteSlot(SlotToken); err != nil {
		return err
	}
	return s.deleteSlot(SlotUser)
}

func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStorage) GetDB() (*sql.DB, error) {
	if s.db == nil {
		db, err := openDB(s.dbPath)
		if err != nil {
			return nil, err
		}
		s.db = db
	}
	return s.db, nil
}

func (s *SQLiteStorage) GetStats() (map[string]int, error) {
	stats := make(map[string]int)

	var slots int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM slots").Scan(&slots); err != nil {
		return nil, fmt.Errorf("failed to count slots: %w", err)
	}
	stats["slots"] = slots

	ratings, err := s.GetRatings()
	if err != nil {
		return nil, err
	}
	stats["ratings"] = len(ratings)

	pending, err := s.GetPendingRatings()
	if err != nil {
		return nil, err
	}
	stats["pending_ratings"] = len(pending)

	users, err := s.GetUsers()
	if err != nil {
		return nil, err
	}
	stats["users"] = len(users)

	dataset, _, err := s.GetDatasetOverride()
	if err != nil {
		return nil, err
	}
	stats["dataset_movies"] = len(dataset)

	return stats, nil
}

// Migration management methods
func (s *SQLiteStorage) GetMigrationManager() *MigrationManager {
	return NewMigrationManager(s.db)
}

func (s *SQLiteStorage) GetDatabaseVersion() (int64, error) {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return 0, err
	}
	return migrationManager.Version()
}

func (s *SQLiteStorage) RunMigrations() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Up()
}

func (s *SQLiteStorage) RollbackMigration() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Down()
}

func (s *SQLiteStorage) ResetDatabase() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Reset()
}
