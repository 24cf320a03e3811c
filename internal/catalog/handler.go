package catalog

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/books/:book_id", h.GetBook)
	r.GET("/books/:book_id/availability", h.Availability)
}

func (h *Handler) GetBook(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("book_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid book id"))
		return
	}

	b, err := h.svc.GetBook(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           b.ID,
		"name":         b.Name,
		"isbn":         b.ISBN,
		"no_of_copies": b.CopyCount,
	})
}

func (h *Handler) Availability(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("book_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid book id"))
		return
	}

	copies, err := h.svc.Availability(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"book_id":   id,
		"available": copies > 0,
		"copies":    copies,
	})
}
