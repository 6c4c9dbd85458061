// Package httpapi implements the HTTP handlers for the OD service.
//
// All routes expect an x-user-email header forwarded by the Gateway.
//
// Routes:
//
//	POST /ods                       → submit a new OD application (multipart)
//	GET  /ods/my                    → list the calling student's ODs
//	GET  /ods/mentor                → list open ODs of the caller's mentees
//	GET  /ods/student/{id}          → list a student's ODs (faculty/admin)
//	GET  /ods/{id}                  → fetch one OD
//	POST /ods/{id}/status           → advance the OD status machine
//	GET  /notifications             → list the caller's notifications
//	POST /notifications/read-all    → mark all notifications read
//	POST /notifications/{id}/read   → mark one notification read
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"smartod/od-service/internal/notify"
	"smartod/od-service/internal/od"
)

// maxUploadBytes bounds a whole apply request (two PDFs plus form fields).
const maxUploadBytes = 16 << 20

// PrincipalResolver maps a forwarded email to a typed principal.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, email string) (od.Principal, error)
}

// Handler holds shared dependencies.
type Handler struct {
	svc           *od.Service
	notifications *notify.Service
	resolver      PrincipalResolver
}

// NewHandler returns a configured Handler.
func NewHandler(svc *od.Service, notifications *notify.Service, resolver PrincipalResolver) *Handler {
	return &Handler{svc: svc, notifications: notifications, resolver: resolver}
}

// RegisterRoutes mounts all OD service routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ods", h.handleOds)
	mux.HandleFunc("/ods/", h.handleOdAction)
	mux.HandleFunc("/notifications", h.handleNotifications)
	mux.HandleFunc("/notifications/", h.handleNotificationAction)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

// handleOds handles POST /ods
func (h *Handler) handleOds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.applyOd(w, r)
}

// handleOdAction handles GET /ods/my|mentor|{id}, GET /ods/student/{id},
// POST /ods/{id}/status
func (h *Handler) handleOdAction(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case len(parts) == 2 && parts[1] == "my" && r.Method == http.MethodGet:
		h.listMyOds(w, r)
	case len(parts) == 2 && parts[1] == "mentor" && r.Method == http.MethodGet:
		h.listMentorOds(w, r)
	case len(parts) == 3 && parts[1] == "student" && r.Method == http.MethodGet:
		h.listStudentOds(w, r, parts[2])
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.getOd(w, r, parts[1])
	case len(parts) == 3 && parts[2] == "status" && r.Method == http.MethodPost:
		h.updateOdStatus(w, r, parts[1])
	default:
		jsonError(w, "not found", http.StatusNotFound)
	}
}

// handleNotifications handles GET /notifications
func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	email, ok := callerEmail(w, r)
	if !ok {
		return
	}
	list, err := h.notifications.List(r.Context(), email)
	if err != nil {
		slog.Error("list notifications failed", "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, list)
}

// handleNotificationAction handles POST /notifications/read-all and
// POST /notifications/{id}/read
func (h *Handler) handleNotificationAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	email, ok := callerEmail(w, r)
	if !ok {
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[1] == "read-all":
		if err := h.notifications.MarkAllRead(r.Context(), email); err != nil {
			slog.Error("mark all read failed", "err", err)
			jsonError(w, "database error", http.StatusInternalServerError)
			return
		}
		jsonOK(w, map[string]string{"status": "ok"})
	case len(parts) == 3 && parts[2] == "read":
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			jsonError(w, "invalid notification id", http.StatusBadRequest)
			return
		}
		updated, err := h.notifications.MarkRead(r.Context(), id, email)
		if err != nil {
			slog.Error("mark read failed", "err", err)
			jsonError(w, "database error", http.StatusInternalServerError)
			return
		}
		if !updated {
			jsonError(w, "notification not found", http.StatusNotFound)
			return
		}
		jsonOK(w, map[string]string{"status": "ok"})
	default:
		jsonError(w, "not found", http.StatusNotFound)
	}
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) applyOd(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		jsonError(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	studentID, err := strconv.ParseInt(r.FormValue("studentId"), 10, 64)
	if err != nil {
		jsonError(w, "studentId is required", http.StatusBadRequest)
		return
	}
	if actor.Role == od.RoleStudent && actor.ID != studentID {
		jsonError(w, "Access denied", http.StatusForbidden)
		return
	}
	offerID, err := strconv.ParseInt(r.FormValue("offerId"), 10, 64)
	if err != nil {
		jsonError(w, "offerId is required", http.StatusBadRequest)
		return
	}
	startDate, err := time.Parse("2006-01-02", r.FormValue("startDate"))
	if err != nil {
		jsonError(w, "startDate must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	endDate, err := time.Parse("2006-01-02", r.FormValue("endDate"))
	if err != nil {
		jsonError(w, "endDate must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	aimDoc, err := readUpload(r, "aimFile")
	if err != nil {
		jsonError(w, "aimFile is required", http.StatusBadRequest)
		return
	}
	offerDoc, err := readUpload(r, "offerFile")
	if err != nil {
		jsonError(w, "offerFile is required", http.StatusBadRequest)
		return
	}

	rec, err := h.svc.Apply(r.Context(), od.ApplyRequest{
		StudentID: studentID,
		OfferID:   offerID,
		StartDate: startDate,
		EndDate:   endDate,
		AimFile:   aimDoc,
		OfferFile: offerDoc,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"message": "OD applied successfully",
		"od":      rec,
	})
}

func (h *Handler) updateOdStatus(w http.ResponseWriter, r *http.Request, rawID string) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		jsonError(w, "invalid od id", http.StatusBadRequest)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		jsonError(w, "body must contain status", http.StatusBadRequest)
		return
	}

	rec, err := h.svc.UpdateStatus(r.Context(), id, od.Status(body.Status), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, map[string]any{
		"message": "OD status updated successfully",
		"od":      rec,
	})
}

func (h *Handler) getOd(w http.ResponseWriter, r *http.Request, rawID string) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		jsonError(w, "invalid od id", http.StatusBadRequest)
		return
	}
	rec, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if actor.Role == od.RoleStudent && rec.StudentID != actor.ID {
		jsonError(w, "Access denied", http.StatusForbidden)
		return
	}
	jsonOK(w, rec)
}

func (h *Handler) listMyOds(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	if actor.Role != od.RoleStudent {
		jsonError(w, "Access denied", http.StatusForbidden)
		return
	}
	ods, err := h.svc.ListByStudent(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, ods)
}

func (h *Handler) listMentorOds(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	if actor.Role != od.RoleFaculty {
		jsonError(w, "Faculty record not found", http.StatusForbidden)
		return
	}
	ods, err := h.svc.ListForMentor(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, ods)
}

func (h *Handler) listStudentOds(w http.ResponseWriter, r *http.Request, rawID string) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	if actor.Role != od.RoleAdmin && actor.Role != od.RoleFaculty {
		jsonError(w, "Access denied", http.StatusForbidden)
		return
	}
	studentID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		jsonError(w, "invalid student id", http.StatusBadRequest)
		return
	}
	ods, err := h.svc.ListByStudent(r.Context(), studentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, ods)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// principal resolves the forwarded identity once per request.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (od.Principal, bool) {
	email, ok := callerEmail(w, r)
	if !ok {
		return od.Principal{}, false
	}
	actor, err := h.resolver.ResolvePrincipal(r.Context(), email)
	if err != nil {
		if errors.Is(err, od.ErrNotFound) {
			jsonError(w, "Access denied", http.StatusForbidden)
		} else {
			slog.Error("principal resolution failed", "err", err)
			jsonError(w, "database error", http.StatusInternalServerError)
		}
		return od.Principal{}, false
	}
	return actor, true
}

func callerEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	email := r.Header.Get("x-user-email")
	if email == "" {
		jsonError(w, "missing x-user-email header", http.StatusUnauthorized)
		return "", false
	}
	return email, true
}

func readUpload(r *http.Request, field string) (od.Document, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return od.Document{}, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return od.Document{}, err
	}
	return od.Document{Name: header.Filename, Data: data}, nil
}

// writeServiceError maps the core error taxonomy to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		vErr *od.ValidationError
		eErr *od.EligibilityError
		cErr *od.VerificationError
		aErr *od.AuthorizationError
	)
	switch {
	case errors.As(err, &vErr):
		jsonErrorBody(w, http.StatusBadRequest, map[string]any{
			"message": vErr.Msg,
			"steps":   vErr.Steps,
		})
	case errors.As(err, &eErr):
		jsonError(w, eErr.Msg, http.StatusBadRequest)
	case errors.As(err, &cErr):
		jsonErrorBody(w, http.StatusBadRequest, map[string]any{
			"message":             cErr.Msg,
			"steps":               cErr.Steps,
			"verificationDetails": cErr.Details,
		})
	case errors.As(err, &aErr):
		jsonError(w, aErr.Msg, http.StatusForbidden)
	case errors.Is(err, od.ErrNotFound):
		jsonError(w, "not found", http.StatusNotFound)
	default:
		slog.Error("internal error", "err", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func jsonErrorBody(w http.ResponseWriter, code int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
