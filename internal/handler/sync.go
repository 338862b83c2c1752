package handler

import (
	"net/http"

	"github.com/foldr/foldr-go/internal/middleware"
	"github.com/foldr/foldr-go/internal/model"
	"github.com/foldr/foldr-go/internal/service"
)

// SyncHandler handles the authenticated sync endpoints.
type SyncHandler struct {
	service *service.SyncService
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(svc *service.SyncService) *SyncHandler {
	return &SyncHandler{service: svc}
}

// HandlePull handles GET /api/sync/pull requests.
func (h *SyncHandler) HandlePull(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("Unauthorized"))
		return
	}

	resp, err := h.service.Pull(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandlePush handles POST /api/sync/push requests.
func (h *SyncHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("Unauthorized"))
		return
	}

	var req model.PushRequest
	if !decodeJSON(w, r, syncBodyLimit, &req) {
		return
	}

	resp, err := h.service.Push(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleDelete handles POST /api/sync/delete requests.
func (h *SyncHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("Unauthorized"))
		return
	}

	var req model.DeleteRequest
	if !decodeJSON(w, r, authBodyLimit, &req) {
		return
	}

	if err := h.service.Delete(r.Context(), userID, req); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.StatusResponse{Success: true})
}
