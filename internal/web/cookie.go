package web

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	cookieName   = "vid2gif"
	workspaceKey = "workspace"
)

// workspaceCookie remembers the browser's current workspace id.
type workspaceCookie struct {
	store sessions.Store
}

func newWorkspaceCookie(key []byte, ttl time.Duration, secure bool) (*workspaceCookie, error) {
	if len(key) == 0 {
		key = make([]byte, 64)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
	}
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &workspaceCookie{store: store}, nil
}

// Current returns the stored workspace id, or "" when there is none or the
// cookie does not verify.
func (w *workspaceCookie) Current(c *gin.Context) string {
	s, err := w.store.Get(c.Request, cookieName)
	if err != nil {
		return ""
	}
	id, _ := s.Values[workspaceKey].(string)
	return id
}

func (w *workspaceCookie) Set(c *gin.Context, id string) error {
	// Get returns a fresh session alongside a decode error, which is what we
	// want when an old cookie no longer verifies.
	s, _ := w.store.Get(c.Request, cookieName)
	s.Values[workspaceKey] = id
	return s.Save(c.Request, c.Writer)
}

func (w *workspaceCookie) Clear(c *gin.Context) error {
	s, _ := w.store.Get(c.Request, cookieName)
	delete(s.Values, workspaceKey)
	return s.Save(c.Request, c.Writer)
}
