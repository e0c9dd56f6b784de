package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bhandras/netconsole/internal/session"
	"github.com/bhandras/netconsole/internal/store"
)

// ok writes a success reply. fields are merged into the body.
func ok(c *gin.Context, fields gin.H) {
	body := gin.H{"success": true, "code": http.StatusOK}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func fail(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"success": false,
		"code":    code,
		"message": message,
	})
}

// failErr maps err to the reply the browser expects.
func failErr(c *gin.Context, err error) {
	var se *session.Error
	switch {
	case errors.As(err, &se):
		fail(c, se.Code, se.Message)
	case errors.Is(err, store.ErrNotFound):
		fail(c, http.StatusNotFound, "Not found.")
	default:
		fail(c, http.StatusInternalServerError, err.Error())
	}
}
