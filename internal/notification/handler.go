package notification

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
	"github.com/OshadiJayananda/lms-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterUserRoutes mounts the member-facing notification endpoints.
func RegisterUserRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/user/notifications", h.ListMine)
	r.POST("/notifications/:id/read", h.MarkRead)
	r.POST("/user/notifications/read-all", h.MarkAllRead)
	r.POST("/books/:book_id/notify-admin", h.CreateWatch)
}

// RegisterAdminRoutes mounts the admin notification endpoints.
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/notifications", h.ListAll)
	r.GET("/availability-watches", h.ListWatches)
}

func (h *Handler) ListMine(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true" || c.Query("unread") == "1"
	limit := parseIntDefault(c.Query("limit"), 50)
	offset := parseIntDefault(c.Query("offset"), 0)

	ns, err := h.svc.ListForUser(c.Request.Context(), auth.UserID(c), unreadOnly, limit, offset)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, toResponses(ns))
}

func (h *Handler) ListAll(c *gin.Context) {
	limit := parseIntDefault(c.Query("limit"), 50)
	offset := parseIntDefault(c.Query("offset"), 0)

	ns, err := h.svc.ListAll(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, toResponses(ns))
}

func (h *Handler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid notification id"))
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), id, auth.UserID(c)); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notification marked as read"})
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.svc.MarkAllRead(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all notifications marked as read", "count": n})
}

func (h *Handler) CreateWatch(c *gin.Context) {
	bookID, err := strconv.ParseInt(c.Param("book_id"), 10, 64)
	if err != nil || bookID <= 0 {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid book id"))
		return
	}

	var req CreateWatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	requested, err := time.Parse("2006-01-02", req.RequestedDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid requested_date, expected YYYY-MM-DD"))
		return
	}

	w, err := h.svc.CreateWatch(c.Request.Context(), auth.UserID(c), bookID, requested)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "admin will be notified when copies become available",
		"watch":   toWatchResponse(*w),
	})
}

func (h *Handler) ListWatches(c *gin.Context) {
	onlyPending := c.DefaultQuery("pending", "true") == "true"
	ws, err := h.svc.ListWatches(c.Request.Context(), onlyPending)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	out := make([]WatchResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, toWatchResponse(w))
	}
	c.JSON(http.StatusOK, out)
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return d
	}
	return v
}
