package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/roomsense/telemetry-relay/internal/audit"
	"github.com/roomsense/telemetry-relay/internal/config"
	apperrors "github.com/roomsense/telemetry-relay/internal/errors"
	"github.com/roomsense/telemetry-relay/internal/model"
	"github.com/roomsense/telemetry-relay/internal/util"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

const basicRealm = `Basic realm="telemetry-relay"`

// Principal is the caller identity established by RoleGate.
type Principal struct {
	Username string
	Role     model.Role
}

func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(PrincipalContextKey).(*Principal); ok {
		return p
	}
	return nil
}

// GetRole returns the authenticated role, or "" for anonymous requests.
func GetRole(ctx context.Context) model.Role {
	if p := GetPrincipal(ctx); p != nil {
		return p.Role
	}
	return ""
}

// RoleGate authenticates HTTP Basic credentials against the two static role
// secrets. It holds no state beyond configuration.
type RoleGate struct {
	roles     []model.Role
	creds     map[model.Role]config.RoleCredential
	checkHash func(password, hash string) bool
}

func NewRoleGate(device, client config.RoleCredential) *RoleGate {
	return &RoleGate{
		roles: []model.Role{model.RoleDevice, model.RoleClient},
		creds: map[model.Role]config.RoleCredential{
			model.RoleDevice: device,
			model.RoleClient: client,
		},
		checkHash: util.CheckPasswordHash,
	}
}

// Classify maps a username/password pair to a role. Every configured role runs
// its full password comparison, bcrypt included, whatever the username, so
// timing does not reveal which username exists.
func (g *RoleGate) Classify(username, password string) (model.Role, bool) {
	var matched model.Role
	for _, role := range g.roles {
		cred := g.creds[role]
		if cred.User == "" {
			continue
		}
		userOK := util.ConstantTimeEqual(username, cred.User)

		var passOK bool
		if cred.PasswordHash != "" {
			passOK = g.checkHash(password, cred.PasswordHash)
		} else {
			passOK = util.ConstantTimeEqual(password, cred.Password)
		}

		if userOK && passOK && matched == "" {
			matched = role
		}
	}
	return matched, matched != ""
}

// Require admits only callers classified as role.
func (g *RoleGate) Require(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				g.reject(w, r, role, "missing_credentials", "")
				return
			}

			got, ok := g.Classify(username, password)
			if !ok {
				g.reject(w, r, role, "invalid_credentials", username)
				return
			}
			if got != role {
				g.reject(w, r, role, "role_mismatch", username)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalContextKey, &Principal{
				Username: username,
				Role:     got,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (g *RoleGate) reject(w http.ResponseWriter, r *http.Request, required model.Role, reason, username string) {
	log.Warn().
		Str("path", r.URL.Path).
		Str("requiredRole", required.String()).
		Str("reason", reason).
		Msg("auth gate: request rejected")

	details := map[string]interface{}{
		"reason":        reason,
		"required_role": required.String(),
		"path":          r.URL.Path,
	}
	if username != "" {
		details["username"] = username
	}
	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventAuthFailure,
		Details: details,
	})

	w.Header().Set("WWW-Authenticate", basicRealm)
	writeError(w, apperrors.Unauthorized("Unauthorized"))
}
