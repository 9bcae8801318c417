package handler

import (
	"errors"
	"net/http"

	"vcard-gateway/internal/adapter/http/dto"
	"vcard-gateway/internal/adapter/http/middleware"
	"vcard-gateway/pkg/apperror"
	"vcard-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// bindJSON decodes and validates the body into req, then sanitizes it.
// On failure the error response is already written.
func bindJSON(c *gin.Context, req interface{}) bool {
	if !decodeJSON(c, req) {
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

func decodeJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			response.Error(c, apperror.ErrBodyTooLarge())
			return false
		}
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	return true
}

// currentUser returns the authenticated user id or writes a 401.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return userID, true
}

// pathUUID parses a uuid path parameter. Malformed ids read as not found.
func pathUUID(c *gin.Context, name, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.ErrNotFound(entity))
		return uuid.Nil, false
	}
	return id, true
}
