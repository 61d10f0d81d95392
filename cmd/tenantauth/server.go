package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	tenantAuth "github.com/MrEthical07/tenantAuth"
	"github.com/MrEthical07/tenantAuth/metrics/export/prometheus"
	"github.com/MrEthical07/tenantAuth/middleware"
)

var defaultPermissions = []string{
	"orders.read",
	"orders.write",
	"locks.execute",
	"accounts.manage",
}

var defaultRoles = map[string][]string{
	"ROLE_ADMIN": {"*"},
	"ROLE_USER":  {"orders.read", "locks.execute"},
}

// maxLockHold caps the hold duration accepted by the lock endpoint.
const maxLockHold = 30 * time.Second

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	TokenID   string `json:"token_id"`
	ExpiresIn int64  `json:"expires_in"`
}

func newRouter(engine *tenantAuth.Engine) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		h := engine.Health(c.Request.Context())
		status := http.StatusOK
		if !h.CacheAvailable {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"cache": h.CacheAvailable, "latency_ms": h.CacheLatency.Milliseconds()})
	})
	r.GET("/metrics", gin.WrapH(prometheus.NewPrometheusExporter(engine).Handler()))

	tenant := r.Group("/", middleware.GinTenant(engine))
	tenant.POST("/login", loginHandler(engine))

	api := tenant.Group("/api", middleware.GinGuard(engine))
	api.POST("/logout", logoutHandler(engine))
	api.GET("/me", func(c *gin.Context) {
		id, _ := middleware.GinIdentity(c)
		c.JSON(http.StatusOK, gin.H{
			"user_id":     id.UserID,
			"username":    id.Username,
			"tenant_id":   id.TenantID,
			"roles":       id.Roles,
			"permissions": engine.Permissions(id),
			"expires_at":  id.ExpiresAt.UTC(),
		})
	})
	api.POST("/locks/:module/:operation/:resource",
		middleware.GinRequirePermission(engine, "locks.execute"),
		lockHandler(engine))

	admin := api.Group("/admin", middleware.GinRequireRole("ROLE_ADMIN"))
	admin.GET("/lockout/:username", func(c *gin.Context) {
		st, err := engine.LockoutStatus(c.Request.Context(), c.Param("username"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"locked":          st.Locked,
			"lock_until":      st.LockUntil,
			"failed_attempts": st.FailedAttempts,
			"max_attempts":    st.MaxAttempts,
		})
	})
	admin.DELETE("/lockout/:username", func(c *gin.Context) {
		if err := engine.UnlockAccount(c.Request.Context(), c.Param("username")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	return r
}

func loginHandler(engine *tenantAuth.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		res, err := engine.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			var locked *tenantAuth.AccountLockedError
			if errors.As(err, &locked) {
				secs := int64(locked.RetryAfter(time.Now()).Seconds()) + 1
				c.Header("Retry-After", strconv.FormatInt(secs, 10))
			}
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, loginResponse{
			Token:     res.Token,
			TokenID:   res.TokenID,
			ExpiresIn: res.ExpiresInSeconds(),
		})
	}
}

func logoutHandler(engine *tenantAuth.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if err := engine.Logout(c.Request.Context(), tok); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// lockHandler holds the tenant lock for ?hold= (default 0) and reports it.
func lockHandler(engine *tenantAuth.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		hold := time.Duration(0)
		if raw := c.Query("hold"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d < 0 || d > maxLockHold {
				c.JSON(http.StatusBadRequest, gin.H{"error": "hold must be a duration between 0 and 30s"})
				return
			}
			hold = d
		}
		start := time.Now()
		err := engine.ExecuteWithLock(c.Request.Context(), c.Param("module"), c.Param("operation"), c.Param("resource"), 0,
			func(ctx context.Context) error {
				select {
				case <-time.After(hold):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"held_ms": time.Since(start).Milliseconds()})
	}
}

func writeError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(tenantAuth.HTTPStatus(err), gin.H{"error": tenantAuth.PublicMessage(err)})
}
