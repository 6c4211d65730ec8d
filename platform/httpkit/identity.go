// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated caller.
// Handlers read the user and tenant from it without depending on JWT details.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// TenantID returns the workspace the caller acts in.
	TenantID() uuid.UUID
	// Roles returns the user's assigned roles.
	Roles() []string
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	tenantID      uuid.UUID
	roles         []string
	authenticated bool
}

func (i *identity) UserID() uuid.UUID     { return i.userID }
func (i *identity) TenantID() uuid.UUID   { return i.tenantID }
func (i *identity) Roles() []string       { return i.roles }
func (i *identity) IsAuthenticated() bool { return i.authenticated }

// NewIdentity builds an authenticated identity. Used by tests and internal callers.
func NewIdentity(userID, tenantID uuid.UUID, roles ...string) Identity {
	return &identity{userID: userID, tenantID: tenantID, roles: roles, authenticated: true}
}

// SetIdentity stores the identity values on the gin context.
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(ContextUserIDKey, id.UserID())
	c.Set(ContextTenantIDKey, id.TenantID())
	c.Set(ContextRolesKey, id.Roles())
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user or tenant info is missing.
func GetIdentity(c *gin.Context) Identity {
	uid, userOK := c.Get(ContextUserIDKey)
	tid, tenantOK := c.Get(ContextTenantIDKey)
	if !userOK || !tenantOK {
		return &identity{authenticated: false}
	}

	userID, ok := uid.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return &identity{authenticated: false}
	}
	tenantID, ok := tid.(uuid.UUID)
	if !ok || tenantID == uuid.Nil {
		return &identity{authenticated: false}
	}

	var roleList []string
	if roles, ok := c.Get(ContextRolesKey); ok {
		roleList, _ = roles.([]string)
	}

	return &identity{
		userID:        userID,
		tenantID:      tenantID,
		roles:         roleList,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the caller is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
