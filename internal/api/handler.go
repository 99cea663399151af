package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/user/silent-god/internal/export"
	"github.com/user/silent-god/internal/game"
	"github.com/user/silent-god/internal/interfaces"
	"github.com/user/silent-god/internal/whatsapp"
	"go.uber.org/zap"
)

// Pairing starts WhatsApp logins
type Pairing interface {
	GenerateQRCode(phoneNumber string) (*whatsapp.QRCode, error)
}

// Sessions lists and removes stored WhatsApp sessions
type Sessions interface {
	ListSessions() ([]whatsapp.SessionInfo, error)
	DeleteSession(phoneNumber, sessionID string) error
}

// Disconnector drops a live WhatsApp connection
type Disconnector interface {
	Disconnect(phoneNumber string) error
}

// Handler serves the world over HTTP
type Handler struct {
	world    interfaces.WorldManager
	pairing  Pairing
	sessions Sessions
	clients  Disconnector
	logger   *zap.Logger
}

// NewHandler creates a handler for the world
func NewHandler(world interfaces.WorldManager, logger *zap.Logger) *Handler {
	return &Handler{
		world:  world,
		logger: logger,
	}
}

// WithWhatsApp enables the session endpoints
func (h *Handler) WithWhatsApp(pairing Pairing, sessions Sessions, clients Disconnector) *Handler {
	h.pairing = pairing
	h.sessions = sessions
	h.clients = clients
	return h
}

// Routes mounts every endpoint on r
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.health)
	r.Get("/state", h.state)
	r.Post("/commands", h.enqueue)
	r.Post("/turn", h.submit)
	r.Post("/decision", h.decide)
	r.Post("/secrets/reveal", h.revealSecret)
	r.Post("/clock/pause", h.setPlaying(false))
	r.Post("/clock/play", h.setPlaying(true))
	r.Post("/persons/{id}/portrait", h.portrait)
	r.Get("/archives", h.listArchives)
	r.Post("/archives", h.archive)
	r.Get("/chronicle.pdf", h.chronicle)

	if h.pairing != nil {
		r.Post("/qr", h.qr)
	}
	if h.sessions != nil {
		r.Get("/sessions", h.listSessions)
		r.Delete("/sessions/{phone_number}/{session_id}", h.deleteSession)
	}
}

type commandRequest struct {
	Text string `json:"text"`
}

type turnRequest struct {
	Command string `json:"command"`
}

type decisionRequest struct {
	OptionID *string `json:"option_id"`
}

type revealRequest struct {
	PersonID string `json:"person_id"`
	SecretID string `json:"secret_id"`
}

type qrRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.world.Snapshot())
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.world.Enqueue(r.Context(), req.Text); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.world.Snapshot())
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	if err := h.world.Submit(r.Context(), req.Command); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.world.Snapshot())
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	if req.OptionID != nil && strings.TrimSpace(*req.OptionID) == "" {
		req.OptionID = nil
	}
	if err := h.world.Decide(r.Context(), req.OptionID); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.world.Snapshot())
}

func (h *Handler) revealSecret(w http.ResponseWriter, r *http.Request) {
	var req revealRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.world.RevealSecret(r.Context(), req.PersonID, req.SecretID); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.world.Snapshot())
}

func (h *Handler) setPlaying(playing bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.world.SetPlaying(playing)
		writeJSON(w, http.StatusOK, h.world.Snapshot())
	}
}

func (h *Handler) portrait(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "id")
	if err := h.world.GeneratePortrait(r.Context(), personID); err != nil {
		h.fail(w, err)
		return
	}
	for _, p := range h.world.Snapshot().Persons {
		if p.ID == personID {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	h.fail(w, game.ErrPersonNotFound)
}

func (h *Handler) listArchives(w http.ResponseWriter, r *http.Request) {
	worlds, err := h.world.ListArchives(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, worlds)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	world, err := h.world.ArchiveAndReset(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("World archived", zap.String("world_id", world.ID), zap.Int("final_year", world.FinalYear))
	writeJSON(w, http.StatusCreated, world)
}

func (h *Handler) chronicle(w http.ResponseWriter, r *http.Request) {
	snap := h.world.Snapshot()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="chronicle-year-%d.pdf"`, snap.Stats.Year))
	if err := export.Chronicle(w, snap); err != nil {
		h.logger.Error("Failed to export chronicle", zap.Error(err))
		http.Error(w, "Failed to export chronicle", http.StatusInternalServerError)
	}
}

func (h *Handler) qr(w http.ResponseWriter, r *http.Request) {
	var req qrRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.PhoneNumber == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "phone_number is required"})
		return
	}

	code, err := h.pairing.GenerateQRCode(req.PhoneNumber)
	if err != nil {
		h.logger.Error("Failed to generate QR code",
			zap.String("phone_number", req.PhoneNumber),
			zap.Error(err))
		http.Error(w, "Failed to generate QR code", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, code)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.ListSessions()
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Error(err))
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	phoneNumber := chi.URLParam(r, "phone_number")
	sessionID := chi.URLParam(r, "session_id")

	if h.clients != nil {
		// Not connected is fine
		_ = h.clients.Disconnect(phoneNumber)
	}

	if err := h.sessions.DeleteSession(phoneNumber, sessionID); err != nil {
		h.logger.Error("Failed to delete session",
			zap.String("phone_number", phoneNumber),
			zap.String("session_id", sessionID),
			zap.Error(err))
		http.Error(w, "Failed to delete session", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// fail maps world errors to HTTP statuses
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrTurnInFlight), errors.Is(err, game.ErrDecisionInProgress):
		return http.StatusConflict
	case errors.Is(err, game.ErrPersonNotFound), errors.Is(err, game.ErrSecretNotFound),
		errors.Is(err, game.ErrNoPendingDecision):
		return http.StatusNotFound
	case errors.Is(err, game.ErrEmptyCommand), errors.Is(err, game.ErrUnknownOption):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNotStarted):
		return http.StatusServiceUnavailable
	case errors.Is(err, game.ErrPortraitsDisabled):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
