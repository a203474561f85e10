package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/service"
	"hybrid-auth-service/internal/util"
)

// AuthHandler serves the admin, shift, staff and session routes.
type AuthHandler struct {
	manager *service.HybridAuthManager
	staff   *service.StaffService
	admins  *service.AdminService
	logger  *zap.Logger
}

func NewAuthHandler(manager *service.HybridAuthManager, staff *service.StaffService, admins *service.AdminService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		manager: manager,
		staff:   staff,
		admins:  admins,
		logger:  logger,
	}
}

// AdminSessionResponse is the only place an admin token is ever returned.
type AdminSessionResponse struct {
	Token   string               `json:"token"`
	Session *models.AdminSession `json:"session"`
}

type StaffSessionResponse struct {
	Token   string               `json:"token"`
	Session *models.StaffSession `json:"session"`
}

type AuthorizeRequest struct {
	Permission string `json:"permission" validate:"required,max=64"`
}

// CreateAdminSession handles POST /admin/sessions
func (h *AuthHandler) CreateAdminSession(w http.ResponseWriter, r *http.Request) {
	var req service.AdminSessionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	req.IPAddress = clientIP(r)
	req.UserAgent = r.UserAgent()

	session, err := h.manager.CreateAdminSession(r.Context(), req)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), publicError(err), "Failed to create admin session")
		return
	}

	respondWithJSON(w, http.StatusCreated, successResponse(
		AdminSessionResponse{Token: session.SessionToken, Session: session},
		"Admin session created"))
}

// ValidateAdminSession handles GET /admin/sessions/validate
func (h *AuthHandler) ValidateAdminSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.manager.ValidateAdminSession(r.Context(), bearerToken(r))
	if err != nil {
		status := getStatusCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Admin session validation failed", util.ErrorField(err))
		}
		respondWithJSON(w, status, ValidationResponse{Valid: false, Error: publicError(err).Error()})
		return
	}
	respondWithJSON(w, http.StatusOK, ValidationResponse{Valid: true, Session: session})
}

// InvalidateAdminSession handles DELETE /admin/sessions
func (h *AuthHandler) InvalidateAdminSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.InvalidateAdminSession(r.Context(), bearerToken(r)); err != nil {
		respondWithError(w, h.logger, getStatusCode(err), publicError(err), "Failed to sign out")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "Admin session invalidated"))
}

// CreateAdmin handles POST /admins. Only owners may add admins.
func (h *AuthHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	admin := adminSessionFrom(r.Context())

	var req service.CreateAdminRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	req.BusinessID = admin.BusinessID
	req.CreatedBy = admin.AdminID

	created, err := h.admins.CreateAdmin(r.Context(), req)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), publicError(err), "Failed to create admin")
		return
	}
	respondWithJSON(w, http.StatusCreated, successResponse(created, "Admin created"))
}

// StartShift handles POST /shifts
func (h *AuthHandler) StartShift(w http.ResponseWriter, r *http.Request) {
	admin := adminSessionFrom(r.Context())

	var req service.StartShiftRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	req.BusinessID = admin.BusinessID
	req.AdminID = admin.AdminID

	shift, err := h.manager.StartShift(r.Context(), req)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), publicError(err), "Failed to start shift")
		return
	}

	h.logger.Info("Shift started via HTTP",
		util.String("business_id", shift.BusinessID),
		util.String("shift_id", shift.ID))
	respondWithJSON(w, http.StatusCreated, successResponse(shift, "Shift started"))
}

// EndShift handles POST /shifts/{shiftID}/end
func (h *AuthHandler) EndShift(w http.ResponseWriter, r *http.Request) {
	admin := adminSessionFrom(r.Context())

	result, err := h.manager.EndShift(r.Context(), chi.URLParam(r, "shiftID"), admin.AdminID)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), publicError(err), "Failed to end shift")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(result, "Shift ended"))
}

// GetShiftStatus handles GET /shifts/status
func (h *AuthHandler) GetShiftStatus(w http.ResponseWriter, r *http.Request) {
	admin := adminSessionFrom(r.Context())

	status, err := h.manager.GetShiftStatus(r.Context(), admin.BusinessID)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), publicError(err), "Failed to get shift status")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(status, ""))
}

// GetActiveSessions handles GET /sessions/active
func (h *AuthHandler) GetActiveSessions(w http.ResponseWriter, r *http.Request) {
	admin := adminSessionFrom(r.Context())

	sessions, err := h.manager.GetActiveSessions(r.Context(), admin.BusinessID)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), publicError(err), "Failed to list active sessions")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(sessions, ""))
}

// CreateStaff handles POST /staff
func (h *AuthHandler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	admin := adminSessionFrom(r.Context())
	startTime := time.Now()

	var req service.CreateStaffRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	req.BusinessID = admin.BusinessID
	req.CreatedBy = admin.AdminID

	staff, err := h.staff.CreateStaff(r.Context(), req)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), publicError(err), "Failed to create staff member")
		return
	}

	respondWithJSON(w, http.StatusCreated, successResponse(staff, "Staff member created"))
	h.logger.Info("Staff created via HTTP",
		util.String("staff_id", staff.ID),
		util.Duration("duration", time.Since(startTime)))
}

// GetStaffContact handles GET /staff/{staffID}/contact
func (h *AuthHandler) GetStaffContact(w http.ResponseWriter, r *http.Request) {
	admin := adminSessionFrom(r.Context())

	contact, err := h.staff.StaffContact(r.Context(), admin.BusinessID, chi.URLParam(r, "staffID"))
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), publicError(err), "Failed to get staff contact")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(contact, ""))
}

// AuthenticateStaff handles POST /staff/auth. The signed-in admin is recorded
// as the one who let the staff member in.
func (h *AuthHandler) AuthenticateStaff(w http.ResponseWriter, r *http.Request) {
	admin := adminSessionFrom(r.Context())

	var req service.StaffAuthRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	req.BusinessID = admin.BusinessID
	req.SignedInBy = admin.AdminID
	req.IPAddress = clientIP(r)

	session, err := h.manager.AuthenticateStaff(r.Context(), req)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), publicError(err), "Staff authentication failed")
		return
	}

	respondWithJSON(w, http.StatusCreated, successResponse(
		StaffSessionResponse{Token: session.SessionToken, Session: session},
		"Staff signed in"))
}

// ValidateStaffSession handles GET /staff/sessions/validate
func (h *AuthHandler) ValidateStaffSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.manager.ValidateStaffSession(r.Context(), r.Header.Get(StaffTokenHeader))
	if err != nil {
		status := getStatusCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Staff session validation failed", util.ErrorField(err))
		}
		respondWithJSON(w, status, ValidationResponse{Valid: false, Error: publicError(err).Error()})
		return
	}
	respondWithJSON(w, http.StatusOK, ValidationResponse{Valid: true, Session: session})
}

// InvalidateStaffSession handles DELETE /staff/sessions. RequireStaff has
// already validated the token.
func (h *AuthHandler) InvalidateStaffSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.EndStaffSession(r.Context(), staffSessionFrom(r.Context())); err != nil {
		respondWithError(w, h.logger, getStatusCode(err), publicError(err), "Failed to sign out")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "Staff signed out"))
}

// AuthorizeStaffAction handles POST /staff/authorize
func (h *AuthHandler) AuthorizeStaffAction(w http.ResponseWriter, r *http.Request) {
	var req AuthorizeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	session := staffSessionFrom(r.Context())
	if err := h.manager.AuthorizeSession(r.Context(), session, req.Permission); err != nil {
		respondWithError(w, h.logger, getStatusCode(err), publicError(err), "Action not authorized")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(map[string]interface{}{
		"allowed":    true,
		"permission": req.Permission,
		"staff_id":   session.StaffID,
	}, ""))
}
