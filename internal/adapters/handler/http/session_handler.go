package http

import (
	"encoding/json"
	"net/http"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

type SessionHandler struct {
	authService ports.AuthService
}

func NewSessionHandler(authService ports.AuthService) *SessionHandler {
	return &SessionHandler{
		authService: authService,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type sessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	User          *domain.Identity `json:"user,omitempty"`
}

// Login godoc
// @Summary      Logs a participant or admin in
// @Description  Exchanges email and password for a bearer token held by the bridge
// @Tags         session
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      401
// @Router       /session/login [post]
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w)
		return
	}

	role := domain.RoleParticipant
	if req.Role == string(domain.RoleAdmin) {
		role = domain.RoleAdmin
	}

	user, err := h.authService.Login(r.Context(), role, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: user})
}

// Logout godoc
// @Summary      Logs the current user out
// @Description  Forgets the held bearer token, including any persisted copy
// @Tags         session
// @Produce      json
// @Success      200
// @Router       /session/logout [post]
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{})
}

// GetSession reports the locally held session; ?verify=true also asks the
// server whether the token is still accepted.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("verify") == "true" {
		user, err := h.authService.Verify(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: user})
		return
	}

	user, ok := h.authService.Current()
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: ok, User: user})
}
