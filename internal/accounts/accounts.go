// Package accounts signs users in and up and makes sure every account ends
// up owning an organization.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raysh454/rankdesk/internal/auth"
	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/store"
)

// ErrMissingCredentials is returned when email or password is empty.
var ErrMissingCredentials = errors.New("email and password required")

// Store is the tenant persistence accounts need.
type Store interface {
	store.Organizations
	store.Profiles
}

// Session is the result of a successful login.
type Session struct {
	Identity auth.Identity `json:"user"`
	RoleInfo auth.Role     `json:"role_info"`
	Token    string        `json:"-"`
}

type Service struct {
	auth   auth.Authenticator
	store  Store
	tokens *auth.TokenManager
	logger logging.Logger

	// Now stamps organization slugs.
	Now func() time.Time
}

func New(a auth.Authenticator, st Store, tokens *auth.TokenManager, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Service{
		auth:   a,
		store:  st,
		tokens: tokens,
		logger: logger.With(logging.F("component", "accounts")),
		Now:    time.Now,
	}
}

// Signup registers an account and bootstraps its organization. A failed
// bootstrap is logged; the next login repairs it.
func (s *Service) Signup(ctx context.Context, email, password, fullName string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return ErrMissingCredentials
	}
	u, err := s.auth.SignUp(ctx, email, password, fullName)
	if err != nil {
		s.logger.Error("signup error", logging.F("email", email), logging.Err(err))
		return &SignupError{Err: err}
	}

	if err := s.store.UpsertProfile(ctx, &model.Profile{ID: u.ID, Email: u.Email, FullName: fullName}); err != nil {
		s.logger.Error("failed to create profile", logging.F("user_id", u.ID), logging.Err(err))
		return nil
	}
	if _, err := s.bootstrap(ctx, u.ID, orgName(fullName)); err != nil {
		s.logger.Error("failed to auto-create org", logging.F("email", email), logging.Err(err))
	}
	return nil
}

// Login verifies credentials, backfills a missing organization and issues
// a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	u, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		s.logger.Warn("login error", logging.F("email", email), logging.Err(err))
		return nil, err
	}

	profile, err := s.store.GetProfile(ctx, u.ID)
	if errors.Is(err, store.ErrNotFound) {
		profile = &model.Profile{ID: u.ID, Email: u.Email, FullName: u.FullName}
		err = s.store.UpsertProfile(ctx, profile)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	if profile.OrganizationID == "" {
		name := profile.FullName
		if name == "" {
			name, _, _ = strings.Cut(u.Email, "@")
		}
		updated, err := s.bootstrap(ctx, u.ID, name+"'s Org")
		if err != nil {
			s.logger.Error("failed to backfill org", logging.F("email", u.Email), logging.Err(err))
		} else {
			profile = updated
			s.logger.Info("backfilled organization",
				logging.F("organization_id", profile.OrganizationID), logging.F("user_id", u.ID))
		}
	}

	id := auth.Identity{
		UserID:         u.ID,
		Email:          u.Email,
		Role:           profile.Role,
		OrganizationID: profile.OrganizationID,
		FullName:       profile.FullName,
	}
	if id.Role == "" {
		id.Role = auth.RoleViewer
	}
	token, err := s.tokens.Issue(id)
	if err != nil {
		return nil, err
	}
	return &Session{Identity: id, RoleInfo: auth.RoleInfo(id.Role), Token: token}, nil
}

// bootstrap creates an organization owned by userID and makes the user its
// admin.
func (s *Service) bootstrap(ctx context.Context, userID, name string) (*model.Profile, error) {
	org := &model.Organization{Name: name, Slug: Slug(name, s.Now()), OwnerID: userID}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	p, err := s.store.SetProfileOrganization(ctx, userID, org.ID, auth.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("assign organization %s: %w", org.ID, err)
	}
	s.logger.Info("created organization", logging.F("organization_id", org.ID), logging.F("user_id", userID))
	return p, nil
}

func orgName(fullName string) string {
	if strings.TrimSpace(fullName) == "" {
		return "My Organization"
	}
	return fullName + "'s Org"
}

// Slug derives an organization slug: lowercased, spaces to dashes,
// apostrophes dropped, suffixed with the unix time.
func Slug(name string, now time.Time) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "'", "")
	return fmt.Sprintf("%s-%d", s, now.Unix())
}
