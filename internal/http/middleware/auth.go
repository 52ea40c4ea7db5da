package middleware

import (
	"net/http"

	"therapy_webapp/internal/service"
	"therapy_webapp/internal/ws"

	"github.com/gin-gonic/gin"
)

// SupervisorAuth проверяет cookie супервизора и кладёт его id в контекст
func SupervisorAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(ws.SupervisorCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credential"})
			return
		}

		supervisorID, err := service.ParseJWT(cookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			return
		}

		c.Set("supervisor_id", supervisorID)
		c.Next()
	}
}

// SupervisorID returns the authenticated id set by SupervisorAuth.
func SupervisorID(c *gin.Context) int64 {
	v, _ := c.Get("supervisor_id")
	id, _ := v.(int64)
	return id
}
