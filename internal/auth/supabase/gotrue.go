// Package supabase authenticates against a Supabase project's GoTrue API.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/raysh454/rankdesk/internal/auth"
	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/webclient"
)

var _ auth.Authenticator = (*GoTrue)(nil)

// APIError is a non-2xx answer from GoTrue.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gotrue: %d %s", e.Status, e.Message)
}

type GoTrue struct {
	baseURL string
	apiKey  string
	wc      webclient.WebClient
	logger  logging.Logger
}

// New builds a client for projectURL (https://<ref>.supabase.co). apiKey is
// the anon key, or the service role key when no anon key is configured.
func New(projectURL, apiKey string, wc webclient.WebClient, logger logging.Logger) (*GoTrue, error) {
	if projectURL == "" || apiKey == "" {
		return nil, fmt.Errorf("supabase: url and key are required")
	}
	if wc == nil {
		return nil, fmt.Errorf("supabase: webclient is nil")
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &GoTrue{
		baseURL: strings.TrimRight(projectURL, "/") + "/auth/v1",
		apiKey:  apiKey,
		wc:      wc,
		logger:  logger.With(logging.F("component", "gotrue")),
	}, nil
}

type gotrueUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type sessionResponse struct {
	AccessToken string     `json:"access_token"`
	User        gotrueUser `json:"user"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorResponse) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func doJSON[T any](ctx context.Context, g *GoTrue, path string, body any) (*T, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	resp, err := g.wc.Do(ctx, &model.Request{
		Method: http.MethodPost,
		URL:    g.baseURL + path,
		Headers: http.Header{
			"apikey":        {g.apiKey},
			"Authorization": {"Bearer " + g.apiKey},
			"Content-Type":  {"application/json"},
		},
		Body: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("gotrue request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er errorResponse
		_ = json.Unmarshal(resp.Body, &er)
		msg := er.text()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	var out T
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("decode gotrue response: %w", err)
	}
	return &out, nil
}

func toUser(u gotrueUser, token string) *auth.User {
	name, _ := u.UserMetadata["full_name"].(string)
	return &auth.User{ID: u.ID, Email: u.Email, FullName: name, AccessToken: token}
}

func (g *GoTrue) SignIn(ctx context.Context, email, password string) (*auth.User, error) {
	res, err := doJSON[sessionResponse](ctx, g, "/token?grant_type=password",
		map[string]string{"email": email, "password": password})
	if err != nil {
		g.logger.Warn("sign in failed", logging.F("email", email), logging.Err(err))
		return nil, err
	}
	if res.User.ID == "" {
		return nil, auth.ErrInvalidCredentials
	}
	return toUser(res.User, res.AccessToken), nil
}

// SignUp registers an account. Depending on project settings GoTrue answers
// with a session or with the bare user; both are accepted.
func (g *GoTrue) SignUp(ctx context.Context, email, password, fullName string) (*auth.User, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"full_name": fullName},
	}
	res, err := doJSON[struct {
		sessionResponse
		gotrueUser
	}](ctx, g, "/signup", body)
	if err != nil {
		g.logger.Warn("sign up failed", logging.F("email", email), logging.Err(err))
		return nil, err
	}
	u := res.sessionResponse.User
	if u.ID == "" {
		u = res.gotrueUser
	}
	if u.ID == "" {
		return nil, fmt.Errorf("signup returned no user")
	}
	return toUser(u, res.AccessToken), nil
}
