package server

import (
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
)

// newRouteGuard keeps signed-out visitors away from the dashboard and
// signed-in ones away from the login and signup pages.
func newRouteGuard(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := req.URL.Path
			switch {
			case strings.HasPrefix(p, "/dashboard"):
				if _, ok := resolveSession(req.Context(), req, cfg); !ok {
					target := "/login?callbackUrl=" + url.QueryEscape(req.URL.RequestURI())
					http.Redirect(w, req, target, http.StatusTemporaryRedirect)
					return
				}
			case strings.HasPrefix(p, "/login"), strings.HasPrefix(p, "/signup"):
				if _, ok := resolveSession(req.Context(), req, cfg); ok {
					http.Redirect(w, req, "/dashboard", http.StatusTemporaryRedirect)
					return
				}
			}
			next.ServeHTTP(w, req)
		})
	}
}

func registerPages(r chi.Router, basePath string, cfg AuthConfig) {
	r.Group(func(r chi.Router) {
		r.Use(newRouteGuard(cfg))
		r.Get("/dashboard", dashboardPage(basePath, cfg))
		r.Get("/dashboard/*", dashboardPage(basePath, cfg))
		r.Get("/login", staticPage("Log in", fmt.Sprintf(
			"POST your email and password to <code>%s</code>.", html.EscapeString(path.Join(basePath, "auth/login")))))
		r.Get("/signup", staticPage("Sign up", fmt.Sprintf(
			"POST your name, email and password to <code>%s</code>.", html.EscapeString(path.Join(basePath, "auth/register")))))
	})
}

func dashboardPage(basePath string, cfg AuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		u, _ := resolveSession(req.Context(), req, cfg)
		body := fmt.Sprintf("Signed in as %s. Tasks live at <code>%s</code>.",
			html.EscapeString(u.Name), html.EscapeString(path.Join(basePath, "tasks")))
		staticPage("Dashboard", body)(w, req)
	}
}

func staticPage(title, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head><meta charset="utf-8"/><title>%s · Taskboard</title></head>
  <body style="font-family: sans-serif; padding: 1rem;">
    <h1>%s</h1>
    <p>%s</p>
    <p><a href="/docs">API docs</a></p>
  </body>
</html>`, html.EscapeString(title), html.EscapeString(title), body))
	}
}
