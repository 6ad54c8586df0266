package auth

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/blogapi/internal/user"
	"github.com/2beens/blogapi/pkg"
)

type AuthResponse struct {
	User  *user.User `json:"user"`
	Token string     `json:"token"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

// SetupRoutes mounts the auth endpoints under /api/auth; middlewares (rate
// limiting) only apply to this subrouter.
func (handler *Handler) SetupRoutes(mainRouter *mux.Router, middlewares ...mux.MiddlewareFunc) {
	authSubrouter := mainRouter.PathPrefix("/api/auth").Subrouter()
	authSubrouter.HandleFunc("/register", handler.handleRegister).Methods("POST", "OPTIONS").Name("register")
	authSubrouter.HandleFunc("/login", handler.handleLogin).Methods("POST", "OPTIONS").Name("login")
	authSubrouter.HandleFunc("/logout", handler.handleLogout).Methods("POST", "OPTIONS").Name("logout")
	authSubrouter.Use(middlewares...)
}

func (handler *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		log.Tracef("register, unmarshal json params: %s", err)
		pkg.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	u, token, err := handler.service.Register(r.Context(), creds)
	if err != nil {
		logServiceError("register", err)
		pkg.WriteServiceError(w, err)
		return
	}

	pkg.WriteJSONResponse(w, AuthResponse{User: u, Token: token}, http.StatusCreated)
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		log.Tracef("login, unmarshal json params: %s", err)
		pkg.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	u, token, err := handler.service.Login(r.Context(), creds)
	if err != nil {
		logServiceError("login", err)
		pkg.WriteServiceError(w, err)
		return
	}

	pkg.WriteJSONResponse(w, AuthResponse{User: u, Token: token}, http.StatusOK)
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := BearerToken(r)
	if !ok {
		pkg.WriteServiceError(w, ErrInvalidToken)
		return
	}

	if err := handler.service.Logout(r.Context(), token); err != nil {
		logServiceError("logout", err)
		pkg.WriteServiceError(w, err)
		return
	}

	pkg.WriteJSONResponse(w, pkg.MessageResponse{Message: "Logged out"}, http.StatusOK)
}

func logServiceError(op string, err error) {
	if pkg.StatusFromError(err) >= http.StatusInternalServerError {
		log.Errorf("%s: %s", op, err)
		return
	}
	log.Tracef("%s: %s", op, err)
}
