package renewal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
	"github.com/OshadiJayananda/lms-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterUserRoutes mounts the member-facing renewal endpoints.
func RegisterUserRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/borrows/:borrow_id/renew", h.Request)
	r.GET("/renewals", h.ListMine)
	r.POST("/renewals/:renew_id/confirm", h.Confirm)
}

// RegisterAdminRoutes mounts the admin renewal endpoints.
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/renew-requests", h.ListAll)
	r.POST("/renew-requests/:renew_id/approve", h.Approve)
	r.POST("/renew-requests/:renew_id/reject", h.Reject)
	r.DELETE("/renew-requests/:renew_id", h.Destroy)
}

func (h *Handler) Request(c *gin.Context) {
	borrowID, ok := pathID(c, "borrow_id")
	if !ok {
		return
	}

	var req RenewalRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid request body"))
		return
	}
	date, err := time.Parse("2006-01-02", req.RequestedDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "requested_date must be YYYY-MM-DD"))
		return
	}

	d, err := h.svc.Request(c.Request.Context(), auth.UserID(c), borrowID, date)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "renewal requested", "renewal": toResponse(*d)})
}

func (h *Handler) ListMine(c *gin.Context) {
	ds, err := h.svc.ListByUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, toResponses(ds))
}

func (h *Handler) Confirm(c *gin.Context) {
	id, ok := pathID(c, "renew_id")
	if !ok {
		return
	}

	var req ConfirmRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid request body"))
		return
	}

	d, err := h.svc.Confirm(c.Request.Context(), auth.UserID(c), id, *req.Accepted)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}

	msg := "renewal declined"
	if *req.Accepted {
		msg = "renewal confirmed"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "renewal": toResponse(*d)})
}

func (h *Handler) ListAll(c *gin.Context) {
	limit := parseIntDefault(c.Query("per_page"), 10)
	offset := parseIntDefault(c.Query("offset"), 0)

	ds, err := h.svc.ListAll(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, toResponses(ds))
}

func (h *Handler) Approve(c *gin.Context) {
	id, ok := pathID(c, "renew_id")
	if !ok {
		return
	}

	var req ApproveRequestBody
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid request body"))
		return
	}

	var proposed *time.Time
	if req.ProposedDate != "" {
		t, err := time.Parse("2006-01-02", req.ProposedDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "proposed_date must be YYYY-MM-DD"))
			return
		}
		proposed = &t
	}

	d, err := h.svc.Approve(c.Request.Context(), id, proposed)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}

	msg := "renewal approved"
	if d.Status == StatusPendingUserReply {
		msg = "new date proposed, awaiting member confirmation"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "renewal": toResponse(*d)})
}

func (h *Handler) Reject(c *gin.Context) {
	id, ok := pathID(c, "renew_id")
	if !ok {
		return
	}

	var req RejectRequestBody
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid request body"))
		return
	}

	d, err := h.svc.Reject(c.Request.Context(), id, req.Note)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "renewal rejected", "renewal": toResponse(*d)})
}

func (h *Handler) Destroy(c *gin.Context) {
	id, ok := pathID(c, "renew_id")
	if !ok {
		return
	}

	if err := h.svc.Destroy(c.Request.Context(), id); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "renewal request deleted"})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid "+name))
		return 0, false
	}
	return id, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
