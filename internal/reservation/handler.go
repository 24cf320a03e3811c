package reservation

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
	"github.com/OshadiJayananda/lms-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterUserRoutes mounts the member-facing reservation endpoints.
func RegisterUserRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/books/:book_id/reserve", h.Reserve)
	r.GET("/reservations", h.ListMine)
	r.POST("/reservations/:reservation_id/respond", h.Respond)
}

// RegisterAdminRoutes mounts the admin reservation endpoints.
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/book-reservations", h.ListAll)
	r.POST("/book-reservations/:reservation_id/approve", h.Approve)
	r.POST("/book-reservations/:reservation_id/reject", h.Reject)
	r.GET("/books/:book_id/pending-reservations", h.CountPending)
	r.DELETE("/book-reservations/:reservation_id", h.Destroy)
}

func (h *Handler) Reserve(c *gin.Context) {
	bookID, ok := pathID(c, "book_id")
	if !ok {
		return
	}

	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid request body"))
		return
	}
	date, err := time.Parse("2006-01-02", req.ReservationDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "reservation_date must be YYYY-MM-DD"))
		return
	}

	d, err := h.svc.Reserve(c.Request.Context(), auth.UserID(c), bookID, date)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "book reserved successfully", "reservation": toResponse(*d)})
}

func (h *Handler) ListMine(c *gin.Context) {
	ds, err := h.svc.ListByUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, toResponses(ds))
}

func (h *Handler) Respond(c *gin.Context) {
	id, ok := pathID(c, "reservation_id")
	if !ok {
		return
	}

	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid request body"))
		return
	}

	d, err := h.svc.Respond(c.Request.Context(), auth.UserID(c), id, *req.Confirmed)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}

	msg := "reservation declined"
	if *req.Confirmed {
		msg = "book issued from reservation"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "reservation": toResponse(*d)})
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
	id, ok := pathID(c, "reservation_id")
	if !ok {
		return
	}

	d, err := h.svc.Approve(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reservation approved", "reservation": toResponse(*d)})
}

func (h *Handler) Reject(c *gin.Context) {
	id, ok := pathID(c, "reservation_id")
	if !ok {
		return
	}

	d, err := h.svc.Reject(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reservation rejected", "reservation": toResponse(*d)})
}

func (h *Handler) CountPending(c *gin.Context) {
	bookID, ok := pathID(c, "book_id")
	if !ok {
		return
	}

	n, err := h.svc.CountPending(c.Request.Context(), bookID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"book_id": bookID, "pending_count": n})
}

func (h *Handler) Destroy(c *gin.Context) {
	id, ok := pathID(c, "reservation_id")
	if !ok {
		return
	}

	if err := h.svc.Destroy(c.Request.Context(), id); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reservation deleted"})
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
