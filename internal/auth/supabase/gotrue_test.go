package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/rankdesk/internal/auth/supabase"
	"github.com/raysh454/rankdesk/internal/testutil"
	"github.com/raysh454/rankdesk/internal/webclient"
)

func newClient(t *testing.T, h http.HandlerFunc) *supabase.GoTrue {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	wc, err := webclient.NewNetHTTPClient(webclient.Config{}, &testutil.DummyLogger{}, nil)
	require.NoError(t, err)
	g, err := supabase.New(ts.URL+"/", "anon-key", wc, &testutil.DummyLogger{})
	require.NoError(t, err)
	return g
}

func TestSignIn(t *testing.T) {
	g := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sam@agency.test", body["email"])

		_, _ = w.Write([]byte(`{"access_token":"at-1","user":{"id":"u1","email":"sam@agency.test",
			"user_metadata":{"full_name":"Sam"}}}`))
	})

	u, err := g.SignIn(context.Background(), "sam@agency.test", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "Sam", u.FullName)
	assert.Equal(t, "at-1", u.AccessToken)
}

func TestSignIn_BadCredentials(t *testing.T) {
	g := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	})

	_, err := g.SignIn(context.Background(), "sam@agency.test", "nope")
	var apiErr *supabase.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Invalid login credentials", apiErr.Message)
}

func TestSignUp_BareUserAnswer(t *testing.T) {
	g := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		var body struct {
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "New Person", body.Data["full_name"])
		_, _ = w.Write([]byte(`{"id":"u2","email":"new@agency.test","user_metadata":{"full_name":"New Person"}}`))
	})

	u, err := g.SignUp(context.Background(), "new@agency.test", "secret1", "New Person")
	require.NoError(t, err)
	assert.Equal(t, "u2", u.ID)
	assert.Empty(t, u.AccessToken)
}

func TestSignUp_AlreadyRegistered(t *testing.T) {
	g := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":422,"msg":"User already registered"}`))
	})

	_, err := g.SignUp(context.Background(), "dup@agency.test", "secret1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User already registered")
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := supabase.New("", "k", nil, nil)
	assert.Error(t, err)
}
