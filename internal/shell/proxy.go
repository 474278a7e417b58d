package shell

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"courseattend/internal/auth"
	"courseattend/internal/logger"
)

// Proxy forwards /api/* to the backend, swapping the console cookie for the
// signed-in user's bearer token. A backend 401 outside the login call tears
// the session down and expires the cookie.
func (s *Server) Proxy() gin.HandlerFunc {
	target, err := url.Parse(s.cfg.BackendURL)
	if err != nil || target.Host == "" {
		logger.LogError("backend url invalid, /api proxy disabled", err, "url", s.cfg.BackendURL)
		return func(c *gin.Context) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "backend not configured"})
		}
	}
	return func(c *gin.Context) {
		ws, signedIn := s.currentWorkspace(c)
		path := c.Param("path")
		rp := &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.Out.URL.Path = path
				pr.Out.URL.RawPath = ""
				pr.SetURL(target)
				pr.SetXForwarded()
				pr.Out.Header.Del("Cookie")
				pr.Out.Header.Del("Authorization")
				if signedIn {
					if tok := ws.sc.Token(); tok != "" {
						pr.Out.Header.Set("Authorization", "Bearer "+tok)
					}
				}
			},
			ModifyResponse: func(resp *http.Response) error {
				resp.Header.Del("Set-Cookie")
				if resp.StatusCode == http.StatusUnauthorized && signedIn && !strings.HasPrefix(path, "/auth/login") {
					ws.sc.Clear()
					s.workspaces.remove(ws.sc.ID())
					resp.Header.Add("Set-Cookie", (&http.Cookie{
						Name: auth.CookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true,
					}).String())
				}
				return nil
			},
			ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
				logger.LogError("proxy request failed", err, "path", path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"error":"Could not reach the server."}`))
			},
		}
		rp.ServeHTTP(c.Writer, c.Request)
	}
}
