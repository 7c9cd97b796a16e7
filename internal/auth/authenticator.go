package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrAlreadyRegistered  = errors.New("user already registered")
	ErrWeakPassword       = errors.New("password should be at least 6 characters")
)

// User is an account as reported by the identity backend.
type User struct {
	ID          string
	Email       string
	FullName    string
	AccessToken string
}

// Authenticator verifies passwords and registers accounts with the
// identity backend.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignUp(ctx context.Context, email, password, fullName string) (*User, error)
}

// StaticAuthenticator keeps accounts in memory. It backs local development
// and tests.
type StaticAuthenticator struct {
	mu       sync.Mutex
	accounts map[string]staticAccount
}

type staticAccount struct {
	user     User
	password string
}

func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{accounts: map[string]staticAccount{}}
}

// Add registers an account with a fixed id.
func (a *StaticAuthenticator) Add(id, email, password, fullName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accounts[strings.ToLower(email)] = staticAccount{
		user:     User{ID: id, Email: email, FullName: fullName},
		password: password,
	}
}

func (a *StaticAuthenticator) SignIn(_ context.Context, email, password string) (*User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct, ok := a.accounts[strings.ToLower(email)]
	if !ok || acct.password != password {
		return nil, ErrInvalidCredentials
	}
	u := acct.user
	u.AccessToken = uuid.NewString()
	return &u, nil
}

func (a *StaticAuthenticator) SignUp(_ context.Context, email, password, fullName string) (*User, error) {
	if len(password) < 6 {
		return nil, ErrWeakPassword
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := a.accounts[key]; ok {
		return nil, ErrAlreadyRegistered
	}
	u := User{ID: uuid.NewString(), Email: email, FullName: fullName}
	a.accounts[key] = staticAccount{user: u, password: password}
	return &u, nil
}
