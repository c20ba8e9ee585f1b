package middleware

import (
	"errors"
	"net/http"
	"strings"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/internal/directory"
	"mindcare-booking/pkg/apperror"
	"mindcare-booking/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Claims carried by access tokens. Tokens are issued elsewhere; sub is the
// user or professional id and role is "user" or "professional".
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthJWT validates the bearer token and resolves its subject through the
// directory once, storing the resulting actor in the request context.
func AuthJWT(secret, issuer string, dir directory.Directory, logger *zap.Logger) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			scheme, raw, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}

			claims := &Claims{}
			if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
				return []byte(secret), nil
			}); err != nil {
				logger.Warn("Rejected access token", zap.Error(err))
				utils.ResponseUnauthorized(w, "Invalid or expired token")
				return
			}

			id, err := uuid.Parse(claims.Subject)
			if err != nil {
				utils.ResponseUnauthorized(w, "Invalid token subject")
				return
			}

			identity, err := dir.Lookup(r.Context(), id)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					utils.ResponseUnauthorized(w, "Unknown account")
					return
				}
				logger.Error("Failed to resolve identity", zap.String("subject", claims.Subject), zap.Error(err))
				utils.ResponseInternalError(w, "Internal server error")
				return
			}
			if claims.Role != "" && claims.Role != string(identity.Kind) {
				logger.Warn("Token role does not match account",
					zap.String("subject", claims.Subject),
					zap.String("role", claims.Role),
					zap.String("kind", string(identity.Kind)),
				)
				utils.ResponseUnauthorized(w, "Token role does not match account")
				return
			}

			ctx := utils.SetActorContext(r.Context(), entity.Actor{ID: identity.ID(), Kind: identity.Kind})
			ctx = utils.SetTokenContext(ctx, raw)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireKind lets only actors of the given kind through.
func RequireKind(kind entity.IdentityKind, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := utils.GetActorFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}
			if actor.Kind != kind {
				logger.Warn("Access denied for actor kind",
					zap.String("actor_id", actor.ID.String()),
					zap.String("kind", string(actor.Kind)),
					zap.String("path", r.URL.Path),
				)
				utils.ResponseForbidden(w, "Only "+string(kind)+" accounts can do this")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
