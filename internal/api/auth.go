package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"barberbook/internal/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault = "x-api-key"
	clientKeyUnknown    = "unknown"

	PermReadAvailability   = "read:availability"
	PermReadCatalog        = "read:catalog"
	PermReadAppointments   = "read:appointments"
	PermWriteAppointments  = "write:appointments"
	PermManageAppointments = "manage:appointments"
	PermDrafts             = "write:drafts"
)

var (
	errMissingKey        = errors.New("missing api key header")
	errInvalidKey        = errors.New("invalid api key")
	errPermissionDenied  = errors.New("permission denied")
	errForbiddenBusiness = errors.New("api key is not allowed for this business")
	errRateLimited       = errors.New("rate limit exceeded")
)

type clientCtxKey struct{}

func withClient(ctx context.Context, client config.APIClientKey) context.Context {
	return context.WithValue(ctx, clientCtxKey{}, client)
}

func clientFromContext(ctx context.Context) (config.APIClientKey, bool) {
	c, ok := ctx.Value(clientCtxKey{}).(config.APIClientKey)
	return c, ok
}

// authorizeBusiness fails when the caller's key is pinned to another business.
func authorizeBusiness(ctx context.Context, businessID string) error {
	client, ok := clientFromContext(ctx)
	if !ok || client.BusinessID == "" || client.BusinessID == businessID {
		return nil
	}
	return errForbiddenBusiness
}

// keyring resolves api keys and checks permissions for both transports.
type keyring struct {
	header  string
	clients map[string]config.APIClientKey
}

func newKeyring(cfg config.APIAuthConfig) *keyring {
	header := strings.ToLower(strings.TrimSpace(cfg.HeaderAPIKey))
	if header == "" {
		header = apiKeyHeaderDefault
	}
	m := make(map[string]config.APIClientKey, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		m[k.Key] = k
	}
	return &keyring{header: header, clients: m}
}

func (k *keyring) lookup(apiKey string) (config.APIClientKey, error) {
	if apiKey == "" {
		return config.APIClientKey{}, errMissingKey
	}
	for key, client := range k.clients {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			return client, nil
		}
	}
	return config.APIClientKey{}, errInvalidKey
}

func hasPermission(client config.APIClientKey, required string) bool {
	// If permissions list is empty, treat as allow-all.
	if required == "" || len(client.Permissions) == 0 {
		return true
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return true
		}
	}
	return false
}

// AuthInterceptor guards the gRPC service.
type AuthInterceptor struct {
	cfg     *config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{
		cfg:     cfg,
		keys:    newKeyring(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}
		if a.cfg.Auth.Enabled {
			client, err := a.keys.lookup(first(metadataValues(ctx, a.keys.header)))
			if err != nil {
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}
			if !hasPermission(client, requiredPermission(info.FullMethod)) {
				return nil, status.Error(codes.PermissionDenied, errPermissionDenied.Error())
			}
			ctx = withClient(ctx, client)
		}
		if !a.limiter.allow(a.clientKey(ctx)) {
			return nil, status.Error(codes.ResourceExhausted, errRateLimited.Error())
		}
		return handler(ctx, req)
	}
}

func requiredPermission(fullMethod string) string {
	switch fullMethod {
	case methodGetAvailability:
		return PermReadAvailability
	case methodSubmitBooking:
		return PermWriteAppointments
	case methodCancelAppointment:
		return PermManageAppointments
	default:
		return ""
	}
}

func (a *AuthInterceptor) clientKey(ctx context.Context) string {
	if apiKey := first(metadataValues(ctx, a.keys.header)); apiKey != "" {
		return apiKey
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func metadataValues(ctx context.Context, key string) []string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}
	return md.Get(key)
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		cfg:     cfg,
		keys:    newKeyring(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			client, err := a.keys.lookup(strings.TrimSpace(r.Header.Get(a.keys.header)))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			if !hasPermission(client, requiredPermissionHTTP(r)) {
				writeError(w, http.StatusForbidden, "forbidden", errPermissionDenied.Error())
				return
			}
			r = r.WithContext(withClient(r.Context(), client))
		}

		if !a.limiter.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", errRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requiredPermissionHTTP(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/v1/availability"):
		return PermReadAvailability
	case path == "/api/v1/services", path == "/api/v1/professionals":
		return PermReadCatalog
	case strings.HasPrefix(path, "/api/v1/drafts"):
		return PermDrafts
	case path == "/api/v1/appointments" && r.Method == http.MethodPost:
		return PermWriteAppointments
	case strings.HasPrefix(path, "/api/v1/appointments/") && r.Method == http.MethodPost:
		return PermManageAppointments
	case strings.HasPrefix(path, "/api/v1/appointments"):
		return PermReadAppointments
	default:
		return ""
	}
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.header)); apiKey != "" {
		return apiKey
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}
