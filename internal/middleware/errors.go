package middleware

import "github.com/gin-gonic/gin"

// abortJSON writes the console's error envelope and stops the chain.
func abortJSON(c *gin.Context, status int, typ, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"message": message,
			"type":    typ,
			"code":    code,
		},
	})
}
