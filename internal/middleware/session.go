package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"solana-agent-wallet/pkg/logger"
)

// ActorIDHeader carries the caller's session identity across tool calls
const ActorIDHeader = "Mcp-Session-Id"

// actorIDKey is the gin context key the handlers read the actor ID from
const actorIDKey = "actor_id"

// ActorSession resolves the caller's actor ID from the session header,
// minting a fresh one when the header is absent. The ID is echoed back
// in the response header so the caller can carry it on the next request,
// and propagated into the request context for logging.
func ActorSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(ActorIDHeader)
		if actorID == "" {
			actorID = uuid.New().String()
		}

		c.Set(actorIDKey, actorID)
		c.Header(ActorIDHeader, actorID)

		ctx := logger.ContextWithActorID(c.Request.Context(), actorID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// ActorID returns the actor ID resolved by ActorSession for this request
func ActorID(c *gin.Context) string {
	return c.GetString(actorIDKey)
}
