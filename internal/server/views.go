package server

import (
	"net/http"

	"github.com/abduss/mediadrive/internal/auth"
	"github.com/abduss/mediadrive/internal/gallery"
	"github.com/abduss/mediadrive/internal/guard"
	"github.com/gin-gonic/gin"
)

const dashboardPath = "/dashboard"

type formView struct {
	View    string   `json:"view"`
	Action  string   `json:"action"`
	AltLink string   `json:"alt_link"`
	Fields  []string `json:"fields"`
}

type dashboardView struct {
	View    string       `json:"view"`
	Gallery gallery.View `json:"gallery"`
}

type settingsView struct {
	View     string        `json:"view"`
	Identity auth.Identity `json:"identity"`
}

func registerViewRoutes(group *gin.RouterGroup, env *workspaceEnv) {
	protect := guard.Protect(env.guard, guard.View, signInPath)

	signIn := formView{View: "signin", Action: "/v1/auth/signin", AltLink: "/signup", Fields: []string{"email", "password"}}
	signUp := formView{View: "signup", Action: "/v1/auth/signup", AltLink: signInPath, Fields: []string{"email", "password"}}

	group.GET("/", publicView(env, signIn))
	group.GET(signInPath, publicView(env, signIn))
	group.GET("/signup", publicView(env, signUp))

	group.GET(dashboardPath, protect, func(c *gin.Context) {
		view, err := env.Controller(c).View(c.Request.Context())
		if err != nil {
			rerr := gallery.ToResult(err)
			c.JSON(rerr.HTTPStatus(), gin.H{"view": "dashboard", "error": rerr})
			return
		}
		c.JSON(http.StatusOK, dashboardView{View: "dashboard", Gallery: view})
	})

	group.GET("/settings", protect, func(c *gin.Context) {
		sess := env.Store(c).Current()
		if sess == nil {
			c.Redirect(http.StatusSeeOther, signInPath)
			return
		}
		c.JSON(http.StatusOK, settingsView{
			View:     "settings",
			Identity: auth.Identity{UserID: sess.UserID, Email: sess.Email, ExpiresAt: sess.ExpiresAt},
		})
	})
}

// publicView serves a form, sending a signed-in browser to the dashboard.
func publicView(env *workspaceEnv, view formView) gin.HandlerFunc {
	return func(c *gin.Context) {
		if g := env.guard(c); g != nil && g.State() == guard.Authenticated {
			c.Redirect(http.StatusSeeOther, dashboardPath)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}
