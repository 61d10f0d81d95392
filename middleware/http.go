package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	tenantAuth "github.com/MrEthical07/tenantAuth"
)

// TenantHeader is the default inbound tenant header. Engines may configure
// another name through MultiTenant.TenantHeader.
const TenantHeader = "X-Tenant-ID"

// Tenant binds the request tenant for the rest of the chain. The tenant
// header wins over the token claim; a token whose tenant differs from the
// header is rejected later by [Guard].
func Tenant(engine *tenantAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, clear, err := bindTenant(r.Context(), engine, r)
			if err != nil {
				writeError(w, err)
				return
			}
			defer clear()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Guard rejects requests without a valid bearer token and attaches the
// caller's identity to the request context.
func Guard(engine *tenantAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authenticate(r.Context(), engine, r)
			if err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(tenantAuth.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole passes requests whose identity holds any of roles. It must run
// after [Guard].
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := tenantAuth.IdentityFromContext(r.Context())
			if !ok {
				writeError(w, tenantAuth.ErrInvalidToken)
				return
			}
			if !hasAnyRole(id, roles) {
				writeError(w, tenantAuth.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission passes requests whose identity's roles grant perm. It
// must run after [Guard].
func RequirePermission(engine *tenantAuth.Engine, perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := tenantAuth.IdentityFromContext(r.Context())
			if !ok {
				writeError(w, tenantAuth.ErrInvalidToken)
				return
			}
			if err := engine.RequirePermission(id, perm); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, tenantAuth.PublicMessage(err), tenantAuth.HTTPStatus(err))
}

func bindTenant(ctx context.Context, engine *tenantAuth.Engine, r *http.Request) (context.Context, func(), error) {
	if engine == nil {
		return ctx, nil, tenantAuth.ErrEngineNotReady
	}
	tenantID := strings.TrimSpace(r.Header.Get(engine.TenantHeader()))
	if tenantID == "" {
		if tok, ok := bearerToken(r.Header.Get("Authorization")); ok {
			// Signature only. Expiry and revocation are Guard's job.
			if claims, err := engine.Tokens().Decode(tok); err == nil {
				tenantID = claims.TenantID
			}
		}
	}
	if tenantID == "" {
		return ctx, nil, tenantAuth.ErrMissingTenantContext
	}
	ctx, scope, err := tenantAuth.WithTenant(ctx, tenantID)
	if err != nil {
		return ctx, nil, err
	}
	if ip := clientIP(r); ip != "" {
		ctx = tenantAuth.WithClientIP(ctx, ip)
	}
	return ctx, scope.Clear, nil
}

func authenticate(ctx context.Context, engine *tenantAuth.Engine, r *http.Request) (*tenantAuth.Identity, error) {
	if engine == nil {
		return nil, tenantAuth.ErrEngineNotReady
	}
	tok, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, tenantAuth.ErrInvalidToken
	}
	id, err := engine.ValidateAndExtract(ctx, tok)
	if errors.Is(err, tenantAuth.ErrEngineNotReady) {
		return nil, tenantAuth.ErrBackendUnavailable
	}
	return id, err
}

func hasAnyRole(id *tenantAuth.Identity, roles []string) bool {
	for _, role := range roles {
		if id.HasRole(role) {
			return true
		}
	}
	return false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
