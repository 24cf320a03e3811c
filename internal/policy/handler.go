package policy

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
)

type Handler struct{ svc *Service }

// RegisterRoutes mounts policy endpoints on the admin group.
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/policy", h.GetPolicy)
	r.PUT("/policy", h.UpdatePolicy)
	r.DELETE("/policy", h.ResetPolicy)
}

func (h *Handler) GetPolicy(c *gin.Context) {
	p, err := h.svc.Current(c.Request.Context())
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, toResponse(p))
}

func (h *Handler) UpdatePolicy(c *gin.Context) {
	var req UpdatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}

	p, err := h.svc.Update(c.Request.Context(), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, toResponse(p))
}

func (h *Handler) ResetPolicy(c *gin.Context) {
	p, err := h.svc.Reset(c.Request.Context())
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "policy reset to default values", "policy": toResponse(p)})
}
