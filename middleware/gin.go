package middleware

import (
	"github.com/gin-gonic/gin"

	tenantAuth "github.com/MrEthical07/tenantAuth"
)

// IdentityKey is the gin context key [GinGuard] stores the identity under.
const IdentityKey = "tenantauth.identity"

// GinTenant is [Tenant] for gin.
func GinTenant(engine *tenantAuth.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, clear, err := bindTenant(c.Request.Context(), engine, c.Request)
		if err != nil {
			abort(c, err)
			return
		}
		defer clear()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GinGuard is [Guard] for gin. The identity is also stored under [IdentityKey].
func GinGuard(engine *tenantAuth.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := authenticate(c.Request.Context(), engine, c.Request)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(IdentityKey, id)
		c.Request = c.Request.WithContext(tenantAuth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// GinRequireRole is [RequireRole] for gin.
func GinRequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GinIdentity(c)
		if !ok {
			abort(c, tenantAuth.ErrInvalidToken)
			return
		}
		if !hasAnyRole(id, roles) {
			abort(c, tenantAuth.ErrPermissionDenied)
			return
		}
		c.Next()
	}
}

// GinRequirePermission is [RequirePermission] for gin.
func GinRequirePermission(engine *tenantAuth.Engine, perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GinIdentity(c)
		if !ok {
			abort(c, tenantAuth.ErrInvalidToken)
			return
		}
		if err := engine.RequirePermission(id, perm); err != nil {
			abort(c, err)
			return
		}
		c.Next()
	}
}

// GinIdentity returns the identity stored by [GinGuard].
func GinIdentity(c *gin.Context) (*tenantAuth.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*tenantAuth.Identity)
	return id, ok && id != nil
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(tenantAuth.HTTPStatus(err), gin.H{"error": tenantAuth.PublicMessage(err)})
}
