// Package authz decides what each forum role may do, backed by a Casbin RBAC model.
package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Objects and actions used by the route table
const (
	ObjThread         = "thread"
	ObjPost           = "post"
	ObjProfile        = "profile"
	ObjNotification   = "notification"
	ObjAdminUsers     = "admin:users"
	ObjAdminSecurity  = "admin:security"
	ObjAdminAnalytics = "admin:analytics"
	ActCreate         = "create"
	ActUpdate         = "update"
	ActRead           = "read"
	ActWrite          = "write"
	ActModerate       = "moderate"
)

// Enforcer wraps a synced Casbin enforcer
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads the embedded model. When policyPath names an existing file
// it replaces the embedded policy.
func NewEnforcer(policyPath string) (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if policyPath != "" && fileExists(policyPath) {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(policyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	return &Enforcer{enforcer: enforcer}, nil
}

func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Can reports whether role may perform act on obj. Errors count as a denial.
func (e *Enforcer) Can(role models.Role, obj, act string) bool {
	if role == "" {
		role = models.RoleMember
	}
	allowed, err := e.enforcer.Enforce(string(role), obj, act)
	return err == nil && allowed
}

// Permissions lists every obj:act pair the role is granted, including inherited ones
func (e *Enforcer) Permissions(role models.Role) []string {
	perms, err := e.enforcer.GetImplicitPermissionsForUser(string(role))
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		if len(p) >= 3 {
			out = append(out, p[1]+":"+p[2])
		}
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
