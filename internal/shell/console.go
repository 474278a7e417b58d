package shell

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"courseattend/internal/apiclient"
	"courseattend/internal/auth"
	"courseattend/internal/logger"
	"courseattend/internal/pages"
	"courseattend/internal/session"
)

const (
	workspaceKey = "workspace"
	loginPath    = "/login"
)

// workspace is one signed-in user's session, API client and pages.
type workspace struct {
	sc    *session.Context
	api   *apiclient.Client
	pages *pages.Workspace
	user  apiclient.User
}

func (s *Server) newWorkspace(sc *session.Context) *workspace {
	user, _ := sc.User()
	api := s.api.As(sc)
	env := pages.Env{Role: user.Role, Now: s.clock.Now}
	return &workspace{sc: sc, api: api, pages: pages.NewWorkspace(api, env, s.cfg.PublicURL), user: user}
}

// currentWorkspace resolves the signed-in workspace from the request's
// console token, resuming it from the session store when this process has
// not seen it yet.
func (s *Server) currentWorkspace(c *gin.Context) (*workspace, bool) {
	claims, ok := auth.FromContext(c)
	if !ok {
		v, err := c.Cookie(auth.CookieName)
		if err != nil || v == "" {
			return nil, false
		}
		if claims, err = auth.Parse(v, s.cfg.JWTSigningKey, s.cfg.JWTIssuer); err != nil {
			return nil, false
		}
	}
	if ws, ok := s.workspaces.get(claims.SessionID); ok {
		if ws.sc.Authenticated() {
			return ws, true
		}
		s.workspaces.remove(claims.SessionID)
		return nil, false
	}
	sc, err := session.Resume(c.Request.Context(), s.sessions, claims.SessionID, s.cfg.SessionTTL)
	if err != nil {
		logger.LogError("session resume failed", err, "session_id", claims.SessionID)
		return nil, false
	}
	if !sc.Authenticated() {
		return nil, false
	}
	ws := s.newWorkspace(sc)
	s.workspaces.put(claims.SessionID, ws)
	return ws, true
}

// staff requires a live backend session behind the console token.
func (s *Server) staff(c *gin.Context) {
	ws, ok := s.currentWorkspace(c)
	if !ok {
		auth.ClearCookie(c)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired. Please sign in again.", "redirect": loginPath})
		return
	}
	c.Set(workspaceKey, ws)
	c.Next()
}

func mustWorkspace(c *gin.Context) *workspace {
	return c.MustGet(workspaceKey).(*workspace)
}

// bindOptional decodes an optional JSON body into v. An empty body leaves v
// untouched; a malformed one is answered with 400 and reports false.
func bindOptional(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return false
	}
	return true
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login signs in against the backend and sets the console cookie.
func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required."})
		return
	}
	res, err := s.api.Login(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, apiclient.ErrNetwork) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Could not reach the server. Check your connection."})
			return
		}
		status := http.StatusUnauthorized
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			status = apiErr.Status
		}
		c.JSON(status, gin.H{"error": apiclient.Message(err, "Login failed.")})
		return
	}

	sc := session.New(s.sessions, s.cfg.SessionTTL)
	if err := sc.Login(c.Request.Context(), res); err != nil {
		if errors.Is(err, session.ErrNoToken) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Invalid response from server."})
			return
		}
		logger.LogError("session store failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start a session."})
		return
	}
	ticket, err := auth.Issue(sc.ID(), string(res.User.Role), s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.SessionTTL)
	if err != nil {
		_ = sc.Logout(c.Request.Context())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	s.workspaces.put(sc.ID(), s.newWorkspace(sc))
	auth.SetCookie(c, ticket, s.cfg.Production())
	logger.LogInfo("staff signed in", "user_id", res.User.ID, "role", res.User.Role)
	c.JSON(http.StatusOK, gin.H{"user": res.User})
}

// Logout clears the backend session and the cookie.
func (s *Server) Logout(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	if ws, ok := s.workspaces.remove(claims.SessionID); ok {
		if err := ws.sc.Logout(c.Request.Context()); err != nil {
			logger.LogError("logout failed", err, "session_id", claims.SessionID)
		}
	} else if err := s.sessions.Delete(c.Request.Context(), claims.SessionID); err != nil {
		logger.LogError("logout failed", err, "session_id", claims.SessionID)
	}
	auth.ClearCookie(c)
	c.JSON(http.StatusOK, gin.H{"redirect": loginPath})
}

// Me returns the signed-in profile as the backend currently reports it.
func (s *Server) Me(c *gin.Context) {
	ws := mustWorkspace(c)
	u, err := ws.api.Me(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// fail maps page and API errors onto responses. A backend 401 has already
// cleared the session through the client's credentials hook; the console
// drops its workspace and cookie and points the browser at the login route.
func (s *Server) fail(c *gin.Context, err error) {
	var verr *pages.ValidationError
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, apiclient.ErrUnauthorized):
		if claims, ok := auth.FromContext(c); ok {
			s.workspaces.remove(claims.SessionID)
		}
		auth.ClearCookie(c)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired. Please sign in again.", "redirect": loginPath})
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, pages.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to do that."})
	case errors.Is(err, pages.ErrCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": "Cancelled."})
	case errors.Is(err, pages.ErrNoSelection):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Select at least one student."})
	case errors.Is(err, apiclient.ErrNetwork):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not reach the server."})
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": apiclient.Message(err, "Request failed.")})
	default:
		logger.LogError("request failed", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong."})
	}
}
