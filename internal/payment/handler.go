package payment

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
	"github.com/OshadiJayananda/lms-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterUserRoutes mounts the member-facing payment endpoints.
func RegisterUserRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/borrows/:borrow_id/checkout", h.CreateCheckout)
	r.GET("/payments/history", h.History)
}

// RegisterWebhookRoute mounts the gateway callback. It authenticates with the
// webhook signature, not a bearer token, so it stays outside the auth groups.
func RegisterWebhookRoute(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/payments/webhook", h.Webhook)
}

func (h *Handler) CreateCheckout(c *gin.Context) {
	borrowID, ok := pathID(c, "borrow_id")
	if !ok {
		return
	}

	session, err := h.svc.CreateCheckout(c.Request.Context(), auth.UserID(c), borrowID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusCreated, CheckoutResponse{SessionID: session.ID, URL: session.URL})
}

func (h *Handler) History(c *gin.Context) {
	ps, err := h.svc.ListByUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, toResponses(ps))
}

func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "unreadable payload"))
		return
	}

	if err := h.svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Gateway-Signature")); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid "+name))
		return 0, false
	}
	return id, true
}
