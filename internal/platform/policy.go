// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"errors"
	"fmt"

	"github.com/staranto/runctlgo/internal/iam"
	"github.com/staranto/runctlgo/internal/logbuf"
	"github.com/staranto/runctlgo/internal/store"
)

func (p *Platform) policyKey(resource string) string {
	return fmt.Sprintf("project/%s/policy/%s", p.project, resource)
}

// GetPolicy loads the IAM policy of a resource. A resource without
// bindings gets an empty policy, which denies everything.
func (p *Platform) GetPolicy(resource string) (*iam.Policy, error) {
	var policy iam.Policy
	err := p.st.Get(p.policyKey(resource), &policy)
	if errors.Is(err, store.ErrNotFound) {
		return iam.NewPolicy(resource), nil
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

// AddBinding grants role to member on resource and persists the
// policy.
func (p *Platform) AddBinding(resource string, role string, member string) error {
	policy, err := p.GetPolicy(resource)
	if err != nil {
		return err
	}
	if err := policy.Bind(role, member); err != nil {
		return err
	}
	if err := p.st.Set(p.policyKey(resource), policy); err != nil {
		return err
	}
	p.audit(logbuf.Notice, "bound %s to %s on %s", member, role, resource)
	return nil
}

// RemoveBinding revokes role from member on resource.
func (p *Platform) RemoveBinding(resource string, role string, member string) error {
	policy, err := p.GetPolicy(resource)
	if err != nil {
		return err
	}
	policy.Unbind(role, member)
	if err := p.st.Set(p.policyKey(resource), policy); err != nil {
		return err
	}
	p.audit(logbuf.Notice, "unbound %s from %s on %s", member, role, resource)
	return nil
}

// CheckAccess verifies member holds role on resource. It fails closed
// on missing policies.
func (p *Platform) CheckAccess(resource string, role string, member string) error {
	policy, err := p.GetPolicy(resource)
	if err != nil {
		return err
	}
	if err := policy.Check(role, member); err != nil {
		p.audit(logbuf.Warning, "denied %s %s on %s", member, role, resource)
		return err
	}
	return nil
}
