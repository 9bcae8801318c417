package middleware

import (
	"net/http"

	"vcard-gateway/pkg/apperror"
	"vcard-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize caps the request body at maxBytes. A declared Content-Length
// over the cap is rejected up front; otherwise reads past the cap fail with
// *http.MaxBytesError, which handlers map to REQ_001.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Abort(c, apperror.ErrBodyTooLarge())
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
