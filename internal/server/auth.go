package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/raysh454/rankdesk/internal/accounts"
	"github.com/raysh454/rankdesk/internal/auth"
	"github.com/raysh454/rankdesk/internal/logging"
)

const (
	sessionCookie = "session"

	permViewAllCampaigns = auth.PermViewAllCampaigns
	permAssignTasks      = auth.PermAssignTasks
)

// bearerToken reads the session token from the Authorization header,
// falling back to the session cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		id, err := s.deps.Tokens.Validate(tok)
		if err != nil {
			s.logger.Debug("rejected session token", logging.Err(err))
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// requireRole admits the listed roles. Admin always passes.
func (s *Server) requireRole(allowed ...string) func(http.Handler) http.Handler {
	return s.guard(func(id auth.Identity) bool { return auth.HasRole(id.Role, allowed...) })
}

func (s *Server) requirePermission(perm string) func(http.Handler) http.Handler {
	return s.guard(func(id auth.Identity) bool { return auth.HasPermission(id.Role, perm) })
}

func (s *Server) guard(allow func(auth.Identity) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !allow(id) {
				writeError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func (s *Server) setSession(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// --- Auth handlers ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body CredentialsRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sess, err := s.deps.Accounts.Login(r.Context(), body.Email, body.Password)
	switch {
	case errors.Is(err, accounts.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	case err != nil:
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	s.setSession(w, sess.Token, 0)
	s.logger.Info("user logged in", logging.F("user_id", sess.Identity.UserID))
	writeJSON(w, http.StatusOK, SessionResponse{
		Success:  true,
		User:     sess.Identity,
		RoleInfo: sess.RoleInfo,
		Token:    sess.Token,
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body SignupRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	err := s.deps.Accounts.Signup(r.Context(), body.Email, body.Password, body.FullName)
	switch {
	case errors.Is(err, accounts.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Account created! You can now sign in."})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.setSession(w, "", -1)
	writeJSON(w, http.StatusOK, MessageResponse{Success: true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	writeJSON(w, http.StatusOK, SessionResponse{User: id, RoleInfo: auth.RoleInfo(id.Role)})
}
