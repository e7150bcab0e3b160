package auth

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// Route policy per role. Paths use casbin keyMatch wildcards.
var defaultPolicies = [][]string{
	{string(RoleAdmin), "/admin/*", "^(GET|POST)$"},
	{string(RoleAdmin), "/arquivos/*", "^GET$"},
	{string(RoleBroker), "/corretor/*", "^(GET|POST)$"},
	{string(RoleBroker), "/arquivos/*", "^GET$"},
}

// Authorizer decides whether a role may call a method on a path.
type Authorizer struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

func NewAuthorizer() (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	if _, err := enforcer.AddPolicies(defaultPolicies); err != nil {
		return nil, fmt.Errorf("add policies: %w", err)
	}
	return &Authorizer{enforcer: enforcer}, nil
}

func (a *Authorizer) Allow(role Role, path, method string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ok, err := a.enforcer.Enforce(string(role), path, method)
	if err != nil {
		return false, fmt.Errorf("permission check failed: %w", err)
	}
	return ok, nil
}
