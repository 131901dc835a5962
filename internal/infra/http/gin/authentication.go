package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"gearyard/internal/app/services/auth"
	domainauth "gearyard/internal/domain/auth"
	domainuser "gearyard/internal/domain/user"
)

const viewerContextKey = "gearyard.viewer"

// viewer is the marketplace account behind the current request. Catalog
// browsing works without one, so token resolution never aborts the request;
// the per-route role guards decide what needs a signed-in buyer or seller.
type viewer struct {
	ID       string
	Email    string
	Name     string
	Roles    []domainuser.Role
	Token    string
	JoinedAt time.Time
}

// Is reports whether the account carries the role. Every account is a buyer;
// seller is opt-in at registration.
func (v viewer) Is(role domainuser.Role) bool {
	for _, r := range v.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthMiddleware resolves the bearer token into a viewer and attaches it to
// the gin context. Invalid or missing tokens leave the request anonymous.
type AuthMiddleware struct {
	Service *auth.Service
	Logger  *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Service == nil {
		c.Next()
		return
	}
	resolved, err := m.Service.ResolveToken(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, domainauth.ErrSessionNotFound) && m.Logger != nil {
			m.Logger.Debug("session resolution failed", "error", err)
		}
		c.Next()
		return
	}
	account := resolved.User
	c.Set(viewerContextKey, viewer{
		ID:       string(account.ID),
		Email:    account.Email,
		Name:     account.Name,
		Roles:    append([]domainuser.Role(nil), account.Roles...),
		Token:    token,
		JoinedAt: account.CreatedAt,
	})
	c.Next()
}

func viewerFrom(c *gin.Context) (viewer, bool) {
	val, exists := c.Get(viewerContextKey)
	if !exists {
		return viewer{}, false
	}
	v, ok := val.(viewer)
	return v, ok
}

// requireRole aborts the request unless a viewer is attached and, when a role
// is named, holds it. Sellers manage listings and promo codes; everything
// else only needs a signed-in account.
func requireRole(c *gin.Context, role domainuser.Role) (viewer, bool) {
	v, ok := viewerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sign in required"})
		return viewer{}, false
	}
	if role != "" && !v.Is(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": string(role) + " account required"})
		return viewer{}, false
	}
	return v, true
}

func bearerToken(header string) string {
	const scheme = "bearer "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return ""
	}
	return strings.TrimSpace(header[len(scheme):])
}
