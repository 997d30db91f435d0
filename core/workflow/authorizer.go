package workflow

import "sync"

// Authorizer answers authorization questions for modules.
type Authorizer interface {
	// IsAuthorized reports whether who is an owner of the workflow.
	IsAuthorized(who Address) bool
	// HasRole reports whether who holds role within module.
	HasRole(module Address, role Role, who Address) bool
}

type roleKey struct {
	module Address
	role   Role
}

// RoleAuthorizer is an in-memory owner list plus module-scoped role grants.
type RoleAuthorizer struct {
	mu     sync.RWMutex
	owners map[Address]struct{}
	roles  map[roleKey]map[Address]struct{}
}

// NewRoleAuthorizer creates an authorizer with the given initial owners.
func NewRoleAuthorizer(owners ...Address) *RoleAuthorizer {
	a := &RoleAuthorizer{
		owners: make(map[Address]struct{}),
		roles:  make(map[roleKey]map[Address]struct{}),
	}
	for _, o := range owners {
		if !o.IsZero() {
			a.owners[o] = struct{}{}
		}
	}
	return a
}

// IsAuthorized reports whether who is an owner.
func (a *RoleAuthorizer) IsAuthorized(who Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.owners[who]
	return ok
}

// HasRole reports whether who holds role in module.
func (a *RoleAuthorizer) HasRole(module Address, role Role, who Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.roles[roleKey{module, role}][who]
	return ok
}

// AddOwner makes who an owner. Only owners may add owners.
func (a *RoleAuthorizer) AddOwner(caller, who Address) error {
	if !a.IsAuthorized(caller) {
		return fail("add owner", ErrNotAuthorized)
	}
	if who.IsZero() {
		return fail("add owner", ErrInvalidAddress)
	}
	a.mu.Lock()
	a.owners[who] = struct{}{}
	a.mu.Unlock()
	return nil
}

// GrantRole grants role in module to who. Only owners may grant.
func (a *RoleAuthorizer) GrantRole(caller, module Address, role Role, who Address) error {
	if !a.IsAuthorized(caller) {
		return fail("grant role", ErrNotAuthorized)
	}
	if who.IsZero() || module.IsZero() {
		return fail("grant role", ErrInvalidAddress)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := roleKey{module, role}
	if a.roles[key] == nil {
		a.roles[key] = make(map[Address]struct{})
	}
	a.roles[key][who] = struct{}{}
	return nil
}

// RevokeRole removes role in module from who. Only owners may revoke.
func (a *RoleAuthorizer) RevokeRole(caller, module Address, role Role, who Address) error {
	if !a.IsAuthorized(caller) {
		return fail("revoke role", ErrNotAuthorized)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.roles[roleKey{module, role}], who)
	return nil
}
