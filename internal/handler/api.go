package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"glucotrack/internal/auth"
	"glucotrack/internal/domain"
	"glucotrack/internal/hub"
	"glucotrack/internal/registry"
	"glucotrack/internal/service"
)

// APIHandler serves the JSON API
type APIHandler struct {
	sessions     *Sessions
	auth         *auth.Store
	measurements *service.MeasurementService
	hub          *hub.Hub
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(sessions *Sessions, store *auth.Store, measurements *service.MeasurementService, h *hub.Hub) *APIHandler {
	return &APIHandler{
		sessions:     sessions,
		auth:         store,
		measurements: measurements,
		hub:          h,
	}
}

// Routes registers the API on mux
func (h *APIHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", h.Register)
	mux.HandleFunc("POST /api/login", h.Login)
	mux.HandleFunc("POST /api/logout", h.Logout)
	mux.HandleFunc("GET /api/session", h.GetSession)
	mux.HandleFunc("DELETE /api/session", h.EndSession)

	mux.HandleFunc("GET /api/measurements", h.ListMeasurements)
	mux.HandleFunc("POST /api/measurements", h.CreateMeasurement)
	mux.HandleFunc("DELETE /api/measurements/{index}", h.DeleteMeasurement)
	mux.HandleFunc("GET /api/measurements/summary", h.GetSummary)

	mux.HandleFunc("GET /api/data", h.ListData)
	mux.HandleFunc("POST /api/data/save", h.SaveAll)
	mux.HandleFunc("POST /api/data/{key}/save", h.SaveData)

	mux.HandleFunc("GET /events", h.Events)
}

// RegisterRequest is the body of POST /api/register
type RegisterRequest struct {
	Username string            `json:"username"`
	Password string            `json:"password"`
	Email    string            `json:"email"`
	Name     string            `json:"name,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// LoginRequest is the body of POST /api/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse describes the calling session
type SessionResponse struct {
	State    domain.SessionState `json:"state"`
	LastAuth domain.AuthStatus   `json:"last_auth"`
	Identity domain.Identity     `json:"identity"`
	Warnings []string            `json:"warnings,omitempty"`
}

// MeasurementRequest is the body of POST /api/measurements
type MeasurementRequest struct {
	Value  float64        `json:"value"`
	Moment service.Moment `json:"moment"`
}

// Register creates a new identity. It does not log the session in.
func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Resolve(w, r)

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	cred, err := h.auth.Register(sess, auth.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Name:     req.Name,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeFailure(w, "Registration failed", err)
		return
	}

	writeJSON(w, cred, http.StatusCreated)
}

// Login authenticates the session
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Resolve(w, r)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	status, err := h.auth.Authenticate(sess, req.Username, req.Password)
	if err != nil {
		writeFailure(w, "Login failed", err)
		return
	}

	switch status {
	case domain.AuthSuccess:
		writeJSON(w, sessionResponse(sess), http.StatusOK)
	case domain.AuthNoAttempt:
		writeError(w, "Username and password are required", string(status), http.StatusBadRequest)
	default:
		writeError(w, "Username or password is incorrect", string(status), http.StatusUnauthorized)
	}
}

// Logout clears the identity and evicts the user's data from the session
func (h *APIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Resolve(w, r)
	h.auth.Logout(sess)
	writeJSON(w, sessionResponse(sess), http.StatusOK)
}

// GetSession returns the identity state of the session
func (h *APIHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Resolve(w, r)
	writeJSON(w, sessionResponse(sess), http.StatusOK)
}

// EndSession drops the session entirely
func (h *APIHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Drop(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// ListMeasurements returns the readings of the logged in user
func (h *APIHandler) ListMeasurements(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Resolve(w, r)

	list, err := h.measurements.List(sess)
	if err != nil {
		writeFailure(w, "Failed to load measurements", err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"measurements": list,
		"warnings":     sess.Warnings(),
	}, http.StatusOK)
}

// CreateMeasurement records a reading
func (h *APIHandler) CreateMeasurement(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Resolve(w, r)

	var req MeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	m, err := h.measurements.Record(sess, req.Value, req.Moment)
	if err != nil {
		writeFailure(w, "Failed to record measurement", err)
		return
	}
	writeJSON(w, m, http.StatusCreated)
}

// DeleteMeasurement removes the reading at the given index
func (h *APIHandler) DeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Resolve(w, r)

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, "Invalid index", err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.measurements.Delete(sess, index); err != nil {
		writeFailure(w, "Failed to delete measurement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSummary returns count, mean and last reading
func (h *APIHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Resolve(w, r)

	sum, err := h.measurements.Summarize(sess)
	if err != nil {
		writeFailure(w, "Failed to summarize measurements", err)
		return
	}
	writeJSON(w, sum, http.StatusOK)
}

// ListData returns the registered keys of the session
func (h *APIHandler) ListData(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Resolve(w, r)
	writeJSON(w, sess.Entries(), http.StatusOK)
}

// SaveData flushes one key to storage
func (h *APIHandler) SaveData(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Resolve(w, r)

	key := r.PathValue("key")
	if err := sess.Save(key); err != nil {
		writeFailure(w, "Failed to save "+key, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveAll flushes every resident key of the session
func (h *APIHandler) SaveAll(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Resolve(w, r)

	if err := sess.SaveAll(); err != nil {
		writeFailure(w, "Failed to save data", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events streams the events of the session over SSE
func (h *APIHandler) Events(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Resolve(w, r)
	h.hub.Serve(w, r, sess.ID())
}

func sessionResponse(sess *registry.Session) SessionResponse {
	state, last := sess.State()
	return SessionResponse{
		State:    state,
		LastAuth: last,
		Identity: sess.Identity(),
		Warnings: sess.Warnings(),
	}
}
