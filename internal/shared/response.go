package shared

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Success writes the standard success envelope. An empty message is omitted.
func Success(c *gin.Context, status int, message string, data any) {
	body := gin.H{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	c.JSON(status, body)
}

// Fail writes the standard error envelope for err and logs server-side failures.
func Fail(c *gin.Context, log zerolog.Logger, err error) {
	status := HTTPStatus(err)
	if status >= 500 {
		log.Error().Err(err).Str("path", c.FullPath()).Int("status", status).Msg("request failed")
	}
	c.JSON(status, gin.H{"success": false, "error": PublicMessage(err)})
}
