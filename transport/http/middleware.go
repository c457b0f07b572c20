package http

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
)

const (
	// TokenCookie carries the application user token for browser clients
	TokenCookie = "keygate_token"

	currentUserKey = "currentUser"
)

// AuthMiddleware authenticates the application user and stores it in the context
func AuthMiddleware(directory ports.UserDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string

		auth := c.GetHeader("Authorization")
		if parts := strings.SplitN(auth, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
		}
		if token == "" {
			if cookie, err := c.Cookie(TokenCookie); err == nil {
				token = cookie
			}
		}

		if token == "" {
			abortWithError(c, core.Unauthenticated("authenticate"))
			return
		}

		user, err := directory.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, &core.Error{Kind: core.KindUnauthenticated, Op: "authenticate", Message: "invalid or expired token", Err: err})
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// currentUser returns the user set by AuthMiddleware
func currentUser(c *gin.Context) (core.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return core.User{}, false
	}
	user, ok := v.(core.User)
	return user, ok
}
