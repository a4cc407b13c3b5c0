package middleware

import (
	"log"

	"github.com/gin-gonic/gin"

	"marketchat-service/internal/presence"
)

// PresenceHeartbeat refreshes the caller's online marker on every
// authenticated request. Best effort: a failed heartbeat never fails the
// request.
func PresenceHeartbeat(store presence.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store != nil {
			if userID := c.GetInt("userID"); userID != 0 {
				if err := store.Heartbeat(c.Request.Context(), userID); err != nil {
					log.Printf("presence heartbeat failed: %v", err)
				}
			}
		}
		c.Next()
	}
}
