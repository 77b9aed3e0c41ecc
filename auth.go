package citadelcbt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength matches what hosted identity providers usually enforce
const MinPasswordLength = 6

// AuthProvider is the identity collaborator used by the student screens
type AuthProvider interface {
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignUp(ctx context.Context, displayName, email, password string) (*Identity, error)
	SignInFederated(ctx context.Context, identity Identity) (*Identity, error)
	SignOut(ctx context.Context, email string) error
	Subscribe(fn func(*Identity)) (unsubscribe func())
}

// LocalAuth is an AuthProvider backed by the users table. Listeners get the
// identity on every sign-in and nil on sign-out.
type LocalAuth struct {
	db *DB

	mu        sync.Mutex
	listeners map[int]func(*Identity)
	nextID    int
}

// NewLocalAuth creates an identity provider on db
func NewLocalAuth(db *DB) *LocalAuth {
	return &LocalAuth{
		db:        db,
		listeners: make(map[int]func(*Identity)),
	}
}

// Subscribe registers fn for auth change events
func (a *LocalAuth) Subscribe(fn func(*Identity)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	a.listeners[id] = fn

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

func (a *LocalAuth) publish(identity *Identity) {
	a.mu.Lock()
	listeners := make([]func(*Identity), 0, len(a.listeners))
	for _, fn := range a.listeners {
		listeners = append(listeners, fn)
	}
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(identity)
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return strings.ToLower(email), nil
}

// SignUp creates a password account
func (a *LocalAuth) SignUp(ctx context.Context, displayName, email, password string) (*Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var exists bool
	err = a.db.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)", email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	_, err = a.db.db.ExecContext(ctx,
		"INSERT INTO users (email, display_name, password_hash, provider, created_at) VALUES (?, ?, ?, ?, ?)",
		email, displayName, string(hash), "password", time.Now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	identity := &Identity{DisplayName: displayName, Email: email}
	log.Printf("Created account for %s", email)
	a.publish(identity)
	return identity, nil
}

// SignIn verifies an email and password
func (a *LocalAuth) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	var (
		identity Identity
		hash     string
	)
	err = a.db.db.QueryRowContext(ctx,
		"SELECT email, display_name, password_hash FROM users WHERE email = ?",
		email,
	).Scan(&identity.Email, &identity.DisplayName, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if hash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	a.publish(&identity)
	return &identity, nil
}

// SignInFederated records an identity vouched for by an external provider,
// creating the account on first sight
func (a *LocalAuth) SignInFederated(ctx context.Context, identity Identity) (*Identity, error) {
	email, err := normalizeEmail(identity.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(identity.DisplayName)
	if name == "" {
		name = email
	}

	_, err = a.db.db.ExecContext(ctx,
		`INSERT INTO users (email, display_name, provider, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET display_name = excluded.display_name`,
		email, name, "google", time.Now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	signedIn := &Identity{DisplayName: name, Email: email}
	a.publish(signedIn)
	return signedIn, nil
}

// SetPassword lets a federated account also sign in directly
func (a *LocalAuth) SetPassword(ctx context.Context, email, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	res, err := a.db.db.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE email = ?", string(hash), email)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	return nil
}

// SignOut announces that the user has left
func (a *LocalAuth) SignOut(_ context.Context, email string) error {
	VerboseLog("Signed out %s", email)
	a.publish(nil)
	return nil
}
