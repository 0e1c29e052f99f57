// ABOUTME: SQLite-backed gallery of saved photos with per-user ownership and public sharing.
// ABOUTME: Photo bytes stay in the blob store; the gallery keeps their content references.
package gallery

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/2389-research/snapboard/board/core"
)

// ErrNotFound means the user or photo does not exist or is not the caller's.
var ErrNotFound = errors.New("not found")

// ErrInvalidName rejects blank user names.
var ErrInvalidName = errors.New("user name is required")

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// User is a gallery owner.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Photo is a saved card.
type Photo struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	Content    core.ContentRef `json:"content"`
	Frame      core.Frame      `json:"frame"`
	Filter     *string         `json:"filter,omitempty"`
	Caption    *string         `json:"caption,omitempty"`
	Provenance *string         `json:"provenance,omitempty"`
	Rotation   float64         `json:"rotation"`
	Public     bool            `json:"public"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Store is the gallery database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the gallery database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			token_hash TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS photos (
			photo_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			frame TEXT NOT NULL,
			filter TEXT,
			caption TEXT,
			provenance TEXT,
			rotation REAL NOT NULL,
			public INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS photos_by_user ON photos(user_id, created_at);
		CREATE INDEX IF NOT EXISTS photos_public ON photos(public, created_at);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureUser returns the user called name, creating it when absent. The
// bearer token is only returned when the user is created.
func (s *Store) EnsureUser(name string) (User, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return User{}, "", ErrInvalidName
	}
	var u User
	var id, created string
	err := s.db.QueryRow("SELECT user_id, name, created_at FROM users WHERE name = ?", name).Scan(&id, &u.Name, &created)
	switch {
	case err == nil:
		return scanUser(u, id, created)
	case !errors.Is(err, sql.ErrNoRows):
		return User{}, "", fmt.Errorf("query user: %w", err)
	}

	token, err := newToken()
	if err != nil {
		return User{}, "", err
	}
	u = User{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
	_, err = s.db.Exec("INSERT INTO users (user_id, name, token_hash, created_at) VALUES (?, ?, ?, ?)",
		u.ID.String(), u.Name, hashToken(token), u.CreatedAt.Format(timeLayout))
	if err != nil {
		return User{}, "", fmt.Errorf("insert user: %w", err)
	}
	return u, token, nil
}

// RotateToken issues a new bearer token for name.
func (s *Store) RotateToken(name string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	res, err := s.db.Exec("UPDATE users SET token_hash = ? WHERE name = ?", hashToken(token), strings.TrimSpace(name))
	if err != nil {
		return "", fmt.Errorf("rotate token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrNotFound
	}
	return token, nil
}

// UserByToken resolves a bearer token.
func (s *Store) UserByToken(token string) (User, error) {
	if token == "" {
		return User{}, ErrNotFound
	}
	var u User
	var id, created string
	err := s.db.QueryRow("SELECT user_id, name, created_at FROM users WHERE token_hash = ?", hashToken(token)).
		Scan(&id, &u.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	u, _, err = scanUser(u, id, created)
	return u, err
}

// Users lists every user by name.
func (s *Store) Users() ([]User, error) {
	rows, err := s.db.Query("SELECT user_id, name, created_at FROM users ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var users []User
	for rows.Next() {
		var u User
		var id, created string
		if err := rows.Scan(&id, &u.Name, &created); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		if u, _, err = scanUser(u, id, created); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SavePhoto stores a card in the user's gallery.
func (s *Store) SavePhoto(userID uuid.UUID, card core.Card) (Photo, error) {
	p := ToRecord(userID, card)
	_, err := s.db.Exec(
		`INSERT INTO photos (photo_id, user_id, content, frame, filter, caption, provenance, rotation, public, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		p.ID.String(), p.UserID.String(), string(p.Content), string(p.Frame),
		p.Filter, p.Caption, p.Provenance, p.Rotation, p.CreatedAt.Format(timeLayout))
	if err != nil {
		return Photo{}, fmt.Errorf("insert photo: %w", err)
	}
	return p, nil
}

// Photo returns one of the user's photos.
func (s *Store) Photo(userID, photoID uuid.UUID) (Photo, error) {
	photos, err := s.query("WHERE photo_id = ? AND user_id = ?", photoID.String(), userID.String())
	if err != nil {
		return Photo{}, err
	}
	if len(photos) == 0 {
		return Photo{}, ErrNotFound
	}
	return photos[0], nil
}

// ListPhotos returns the user's photos, newest first.
func (s *Store) ListPhotos(userID uuid.UUID) ([]Photo, error) {
	return s.query("WHERE user_id = ? ORDER BY created_at DESC", userID.String())
}

// ListPublic returns shared photos from every user, newest first.
func (s *Store) ListPublic(limit int) ([]Photo, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query("WHERE public = 1 ORDER BY created_at DESC LIMIT ?", limit)
}

// PublicPhoto returns a shared photo by id; unshared photos are not found.
func (s *Store) PublicPhoto(photoID uuid.UUID) (Photo, error) {
	photos, err := s.query("WHERE photo_id = ? AND public = 1", photoID.String())
	if err != nil {
		return Photo{}, err
	}
	if len(photos) == 0 {
		return Photo{}, ErrNotFound
	}
	return photos[0], nil
}

// DeletePhoto removes one of the user's photos.
func (s *Store) DeletePhoto(userID, photoID uuid.UUID) error {
	return s.mutate("DELETE FROM photos WHERE photo_id = ? AND user_id = ?", photoID.String(), userID.String())
}

// SetPublic shares or unshares a photo.
func (s *Store) SetPublic(userID, photoID uuid.UUID, public bool) error {
	return s.mutate("UPDATE photos SET public = ? WHERE photo_id = ? AND user_id = ?",
		public, photoID.String(), userID.String())
}

// UpdateCaption sets a photo's caption; blank clears it. Captions share the
// board's length bound.
func (s *Store) UpdateCaption(userID, photoID uuid.UUID, caption string) error {
	var value *string
	if strings.TrimSpace(caption) != "" {
		c := core.TruncateCaption(caption)
		value = &c
	}
	return s.mutate("UPDATE photos SET caption = ? WHERE photo_id = ? AND user_id = ?",
		value, photoID.String(), userID.String())
}

func (s *Store) mutate(query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) query(where string, args ...any) ([]Photo, error) {
	rows, err := s.db.Query(
		`SELECT photo_id, user_id, content, frame, filter, caption, provenance, rotation, public, created_at
		 FROM photos `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var photos []Photo
	for rows.Next() {
		var p Photo
		var id, user, content, frame, created string
		if err := rows.Scan(&id, &user, &content, &frame, &p.Filter, &p.Caption, &p.Provenance,
			&p.Rotation, &p.Public, &created); err != nil {
			return nil, fmt.Errorf("scan photo row: %w", err)
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("photo id %q: %w", id, err)
		}
		if p.UserID, err = uuid.Parse(user); err != nil {
			return nil, fmt.Errorf("photo owner %q: %w", user, err)
		}
		if p.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("photo time %q: %w", created, err)
		}
		p.Content = core.ContentRef(content)
		p.Frame = core.Frame(frame)
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// ToRecord captures the persistent look of a card for the gallery.
func ToRecord(userID uuid.UUID, card core.Card) Photo {
	frame := card.Frame
	if frame == "" {
		frame = core.FrameClassic
	}
	return Photo{
		ID:         uuid.New(),
		UserID:     userID,
		Content:    card.Content,
		Frame:      frame,
		Filter:     cloneString(card.Filter),
		Caption:    cloneString(card.Caption),
		Provenance: cloneString(card.Provenance),
		Rotation:   card.Rotation,
		Public:     false,
		CreatedAt:  time.Now().UTC(),
	}
}

// ToCard is the look a photo asks for when brought back onto a board. The
// board assigns identity, position and lifecycle, so only the style fields
// are meaningful.
func ToCard(p Photo) core.Card {
	card := core.NewCard(p.Content, core.Point{}, p.Rotation)
	card.Frame = p.Frame
	card.Filter = cloneString(p.Filter)
	card.Caption = cloneString(p.Caption)
	card.Provenance = cloneString(p.Provenance)
	card.CreatedAt = p.CreatedAt
	return card
}

func scanUser(u User, id, created string) (User, string, error) {
	var err error
	if u.ID, err = uuid.Parse(id); err != nil {
		return User{}, "", fmt.Errorf("user id %q: %w", id, err)
	}
	if u.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return User{}, "", fmt.Errorf("user time %q: %w", created, err)
	}
	return u, "", nil
}

func newToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
