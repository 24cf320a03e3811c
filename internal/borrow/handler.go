package borrow

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
	"github.com/OshadiJayananda/lms-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterUserRoutes mounts the member-facing borrow endpoints.
func RegisterUserRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/books/:book_id/request", h.RequestBook)
	r.GET("/borrowed-books", h.ListBorrowed)
	r.POST("/borrowed-books/:book_id/return", h.ReturnBook)
	r.GET("/borrowed-books/overdue", h.ListOverdue)
}

// RegisterAdminRoutes mounts the admin borrow endpoints.
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/book-requests", h.ListPendingRequests)
	r.POST("/book-requests/:borrow_id/approve", h.ApproveRequest)
	r.POST("/book-requests/:borrow_id/reject", h.RejectRequest)
	r.POST("/book-requests/:borrow_id/confirm", h.ConfirmIssuance)
	r.GET("/returned-books", h.ListReturned)
	r.POST("/returned-books/:borrow_id/confirm", h.ConfirmReturn)
	r.GET("/borrowed-books", h.ListAllBorrowed)
	r.DELETE("/borrows/:borrow_id", h.DestroyBorrow)
}

func (h *Handler) RequestBook(c *gin.Context) {
	bookID, ok := pathID(c, "book_id")
	if !ok {
		return
	}

	d, err := h.svc.RequestBook(c.Request.Context(), auth.UserID(c), bookID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "book requested successfully", "borrow": toResponse(*d)})
}

func (h *Handler) ListBorrowed(c *gin.Context) {
	limit := parseIntDefault(c.Query("per_page"), 10)
	offset := parseIntDefault(c.Query("offset"), 0)
	search := c.Query("search")
	status := Status(c.Query("status"))

	ds, err := h.svc.ListBorrowed(c.Request.Context(), auth.UserID(c), search, status, limit, offset)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, toResponses(ds))
}

func (h *Handler) ReturnBook(c *gin.Context) {
	bookID, ok := pathID(c, "book_id")
	if !ok {
		return
	}

	d, err := h.svc.ReturnBook(c.Request.Context(), auth.UserID(c), bookID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "book returned successfully",
		"data":    gin.H{"returned_date": d.ReturnedDate.Time},
	})
}

func (h *Handler) ListOverdue(c *gin.Context) {
	items, err := h.svc.ListOverdue(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}

	out := make([]OverdueResponse, 0, len(items))
	for _, it := range items {
		out = append(out, OverdueResponse{
			BorrowResponse: toResponse(it.Detail),
			IsOverdue:      true,
			Fine:           it.Fine,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ListPendingRequests(c *gin.Context) {
	limit := parseIntDefault(c.Query("per_page"), 10)
	offset := parseIntDefault(c.Query("offset"), 0)

	ds, err := h.svc.ListPendingRequests(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, toResponses(ds))
}

func (h *Handler) ApproveRequest(c *gin.Context) {
	borrowID, ok := pathID(c, "borrow_id")
	if !ok {
		return
	}

	if _, err := h.svc.ApproveRequest(c.Request.Context(), borrowID); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "request approved successfully"})
}

func (h *Handler) RejectRequest(c *gin.Context) {
	borrowID, ok := pathID(c, "borrow_id")
	if !ok {
		return
	}

	if _, err := h.svc.RejectRequest(c.Request.Context(), borrowID); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "request rejected successfully"})
}

func (h *Handler) ConfirmIssuance(c *gin.Context) {
	borrowID, ok := pathID(c, "borrow_id")
	if !ok {
		return
	}

	if _, err := h.svc.ConfirmIssuance(c.Request.Context(), borrowID); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "book issued successfully"})
}

func (h *Handler) ListReturned(c *gin.Context) {
	limit := parseIntDefault(c.Query("per_page"), 10)
	offset := parseIntDefault(c.Query("offset"), 0)

	ds, err := h.svc.ListReturned(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, toResponses(ds))
}

func (h *Handler) ConfirmReturn(c *gin.Context) {
	borrowID, ok := pathID(c, "borrow_id")
	if !ok {
		return
	}

	if _, err := h.svc.ConfirmReturn(c.Request.Context(), borrowID); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "return confirmed successfully"})
}

func (h *Handler) ListAllBorrowed(c *gin.Context) {
	ds, err := h.svc.ListAllBorrowed(c.Request.Context(), c.Query("q"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, toResponses(ds))
}

func (h *Handler) DestroyBorrow(c *gin.Context) {
	borrowID, ok := pathID(c, "borrow_id")
	if !ok {
		return
	}

	if err := h.svc.DestroyBorrow(c.Request.Context(), borrowID); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "borrow record deleted successfully"})
}

// ---- helpers ----

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid "+name))
		return 0, false
	}
	return id, true
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
