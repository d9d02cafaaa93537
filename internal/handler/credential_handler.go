package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CredentialRevoker clears an owner's mailbox credential
type CredentialRevoker interface {
	Revoke(ctx context.Context, userID string) error
}

type CredentialHandler struct {
	credentials CredentialRevoker
}

func NewCredentialHandler(credentials CredentialRevoker) *CredentialHandler {
	return &CredentialHandler{credentials: credentials}
}

// Revoke handles DELETE /users/:userId/credential. Revoking twice is fine.
func (h *CredentialHandler) Revoke(c *gin.Context) {
	if err := h.credentials.Revoke(c.Request.Context(), c.Param("userId")); err != nil {
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
