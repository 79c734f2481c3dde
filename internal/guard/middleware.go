package guard

import (
	"net/http"

	"github.com/abduss/mediadrive/internal/result"
	"github.com/gin-gonic/gin"
)

// Resolver finds the guard for the browser behind a request.
type Resolver func(c *gin.Context) *Guard

// Mode selects how an unauthenticated request is turned away.
type Mode int

const (
	// View redirects to the sign-in view.
	View Mode = iota
	// API answers 401 with a failed result envelope.
	API
)

// Protect only lets Authenticated requests through. Loading renders a neutral
// placeholder and never the protected content.
func Protect(resolve Resolver, mode Mode, signInPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var state State = Unauthenticated
		if g := resolve(c); g != nil {
			state = g.State()
		}

		switch state {
		case Authenticated:
			c.Next()
		case Loading:
			c.AbortWithStatusJSON(http.StatusAccepted, gin.H{"status": Loading.String()})
		default:
			if mode == API {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					result.Fail[struct{}](result.KindUnauthenticated, "Sign in to continue."))
				return
			}
			c.Redirect(http.StatusSeeOther, signInPath)
			c.Abort()
		}
	}
}
