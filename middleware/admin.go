package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tidyapp/tidy/config"
	"github.com/tidyapp/tidy/utils"
)

// AdminRequired rejects requests whose authenticated username is not in
// the configured administrator list. Must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		username, _ := ctx.Get(ContextUsernameKey)
		name, _ := username.(string)
		if name == "" || !isAdmin(name) {
			utils.Error(ctx, http.StatusForbidden, 40300, "admin access required")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func isAdmin(username string) bool {
	for _, admin := range config.Get().AdminUsernames {
		if admin == username {
			return true
		}
	}
	return false
}
