// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package iam is the binding model gating access to platform
// resources. A policy maps role names to member sets on a single
// resource. Nothing is permitted unless a binding says so.
package iam

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Role names understood by the platform.
const (
	RoleSecretAccessor = "roles/secretmanager.secretAccessor"
	RoleRunInvoker     = "roles/run.invoker"
	RoleRunAdmin       = "roles/run.admin"
)

// Member prefixes. A member is <kind>:<id>, such as
// serviceAccount:grader@demo.iam or user:staff@example.edu.
const (
	KindUser           = "user"
	KindServiceAccount = "serviceAccount"
	KindAllUsers       = "allUsers"
)

// AllUsers is the special member granting a role to every caller,
// authenticated or not.
const AllUsers = "allUsers"

// ErrPermissionDenied is returned when no binding grants the required
// role to the member.
var ErrPermissionDenied = errors.New("permission denied")

// Policy is the set of role bindings attached to one resource.
type Policy struct {
	Resource string              `json:"resource"`
	Bindings map[string][]string `json:"bindings,omitempty"`
}

// NewPolicy returns an empty policy for resource.
func NewPolicy(resource string) *Policy {
	return &Policy{Resource: resource, Bindings: make(map[string][]string)}
}

// ValidateMember rejects malformed member strings.
func ValidateMember(member string) error {
	if member == AllUsers {
		return nil
	}
	kind, id, ok := strings.Cut(member, ":")
	if !ok || id == "" {
		return fmt.Errorf("invalid member %q: want <kind>:<id> or allUsers", member)
	}
	switch kind {
	case KindUser, KindServiceAccount:
		return nil
	}
	return fmt.Errorf("invalid member %q: unknown kind %q", member, kind)
}

// Bind grants role to member. Binding an already-bound member is a
// no-op. Members of a role stay sorted so policies render stably.
func (p *Policy) Bind(role string, member string) error {
	if err := ValidateMember(member); err != nil {
		return err
	}

	if p.Bindings == nil {
		p.Bindings = make(map[string][]string)
	}

	members := p.Bindings[role]
	for _, m := range members {
		if m == member {
			return nil
		}
	}

	members = append(members, member)
	sort.Strings(members)
	p.Bindings[role] = members
	return nil
}

// Unbind revokes role from member. Revoking an absent binding is a
// no-op.
func (p *Policy) Unbind(role string, member string) {
	members := p.Bindings[role]
	out := members[:0]
	for _, m := range members {
		if m != member {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		delete(p.Bindings, role)
	} else {
		p.Bindings[role] = out
	}
}

// Check returns nil when member holds role on this resource, directly
// or through allUsers. It fails closed.
func (p *Policy) Check(role string, member string) error {
	for _, m := range p.Bindings[role] {
		if m == member || m == AllUsers {
			return nil
		}
	}
	return fmt.Errorf("%s on %s for %s: %w",
		role, p.Resource, member, ErrPermissionDenied)
}

// Members returns the members bound to role.
func (p *Policy) Members(role string) []string {
	return p.Bindings[role]
}

// Roles returns the bound role names, sorted.
func (p *Policy) Roles() []string {
	roles := make([]string, 0, len(p.Bindings))
	for role := range p.Bindings {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
