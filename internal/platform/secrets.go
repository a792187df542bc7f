// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/staranto/runctlgo/internal/iam"
	"github.com/staranto/runctlgo/internal/logbuf"
	"github.com/staranto/runctlgo/internal/secret"
	"github.com/staranto/runctlgo/internal/store"
)

func (p *Platform) secretKey(name string) string {
	return store.Key("project", p.project, "secret", name)
}

// Version keys are zero padded so store order is version order.
func (p *Platform) versionKey(name string, n int) string {
	return store.Key("project", p.project, "secret", name, "version",
		fmt.Sprintf("%010d", n))
}

// CreateSecret creates an empty named secret. Versions are added
// separately.
func (p *Platform) CreateSecret(name string, labels map[string]string) (*secret.Secret, error) {
	if err := p.requireAPI(APISecretManager); err != nil {
		return nil, err
	}
	if err := secret.ValidateName(name); err != nil {
		return nil, err
	}

	exists, err := p.st.Exists(p.secretKey(name))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("secret %s already exists", name)
	}

	s := &secret.Secret{
		Name:        name,
		Project:     p.project,
		Labels:      labels,
		CreateTime:  time.Now().UTC(),
		NextVersion: 1,
	}
	if err := p.st.Set(p.secretKey(name), s); err != nil {
		return nil, err
	}

	p.audit(logbuf.Notice, "created secret %s", name)
	return s, nil
}

// GetSecret loads a secret by name.
func (p *Platform) GetSecret(name string) (*secret.Secret, error) {
	var s secret.Secret
	if err := p.st.Get(p.secretKey(name), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSecrets returns the project's secrets in name order.
func (p *Platform) ListSecrets() ([]secret.Secret, error) {
	if err := p.requireAPI(APISecretManager); err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("project/%s/secret/", p.project)
	keys, err := p.st.List(prefix)
	if err != nil {
		return nil, err
	}

	out := make([]secret.Secret, 0)
	for _, key := range keys {
		// Secret names have no slashes, so a slash marks a version
		// subkey.
		if strings.Contains(key[len(prefix):], "/") {
			continue
		}
		var s secret.Secret
		if err := p.st.Get(key, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// AddVersion seals plaintext under passphrase and stores it as the
// secret's next version, enabled.
func (p *Platform) AddVersion(name string, plaintext []byte, passphrase string) (*secret.Version, error) {
	if err := p.requireAPI(APISecretManager); err != nil {
		return nil, err
	}

	s, err := p.GetSecret(name)
	if err != nil {
		return nil, err
	}

	sealed, err := secret.Seal(plaintext, passphrase)
	if err != nil {
		return nil, fmt.Errorf("sealing secret %s: %w", name, err)
	}

	v := &secret.Version{
		Secret:     name,
		Number:     s.NextVersion,
		State:      secret.Enabled,
		Payload:    sealed,
		CreateTime: time.Now().UTC(),
	}

	if err := p.st.Set(p.versionKey(name, v.Number), v); err != nil {
		return nil, err
	}

	s.NextVersion++
	if err := p.st.Set(p.secretKey(name), s); err != nil {
		return nil, err
	}

	p.audit(logbuf.Notice, "added secret version %s", v.Ref())
	return v, nil
}

// GetVersion resolves a version spec, a number or the latest alias.
func (p *Platform) GetVersion(name string, spec string) (*secret.Version, error) {
	n, err := p.resolveVersion(name, spec)
	if err != nil {
		return nil, err
	}

	var v secret.Version
	if err := p.st.Get(p.versionKey(name, n), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (p *Platform) resolveVersion(name string, spec string) (int, error) {
	if spec == "" || spec == secret.Latest {
		s, err := p.GetSecret(name)
		if err != nil {
			return 0, err
		}
		if s.NextVersion <= 1 {
			return 0, fmt.Errorf("secret %s has no versions", name)
		}
		return s.NextVersion - 1, nil
	}

	n, err := strconv.Atoi(spec)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid version %q: want a positive number or %s", spec, secret.Latest)
	}
	return n, nil
}

// ListVersions returns every version of a secret, oldest first.
// Destroyed versions remain listed, without payloads.
func (p *Platform) ListVersions(name string) ([]secret.Version, error) {
	if err := p.requireAPI(APISecretManager); err != nil {
		return nil, err
	}
	if _, err := p.GetSecret(name); err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("project/%s/secret/%s/version/", p.project, name)
	out := make([]secret.Version, 0)
	err := p.st.ListEach(prefix, func(key string, value []byte) error {
		var v secret.Version
		if err := p.st.Get(key, &v); err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

// AccessVersion opens a secret version's payload for the calling
// account. The account needs the secretAccessor role on the secret,
// and the version must be enabled.
func (p *Platform) AccessVersion(name string, spec string, passphrase string) ([]byte, error) {
	if err := p.requireAPI(APISecretManager); err != nil {
		return nil, err
	}

	if err := p.CheckAccess("secret/"+name, iam.RoleSecretAccessor, p.account); err != nil {
		return nil, err
	}

	v, err := p.GetVersion(name, spec)
	if err != nil {
		return nil, err
	}
	if err := v.Accessible(); err != nil {
		return nil, err
	}

	plaintext, err := secret.Open(v.Payload, passphrase)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", v.Ref(), err)
	}

	p.audit(logbuf.Info, "accessed %s as %s", v.Ref(), p.account)
	return plaintext, nil
}

// transitionVersion applies fn to a version and persists it.
func (p *Platform) transitionVersion(name string, spec string, verb string, fn func(*secret.Version) error) (*secret.Version, error) {
	if err := p.requireAPI(APISecretManager); err != nil {
		return nil, err
	}

	v, err := p.GetVersion(name, spec)
	if err != nil {
		return nil, err
	}
	if err := fn(v); err != nil {
		return nil, err
	}
	if err := p.st.Set(p.versionKey(name, v.Number), v); err != nil {
		return nil, err
	}

	p.audit(logbuf.Notice, "%s %s", verb, v.Ref())
	return v, nil
}

// DisableVersion makes a version inaccessible without discarding it.
func (p *Platform) DisableVersion(name string, spec string) (*secret.Version, error) {
	return p.transitionVersion(name, spec, "disabled", (*secret.Version).Disable)
}

// EnableVersion re-enables a disabled version.
func (p *Platform) EnableVersion(name string, spec string) (*secret.Version, error) {
	return p.transitionVersion(name, spec, "enabled", (*secret.Version).Enable)
}

// DestroyVersion permanently discards a version's payload.
func (p *Platform) DestroyVersion(name string, spec string) (*secret.Version, error) {
	return p.transitionVersion(name, spec, "destroyed", func(v *secret.Version) error {
		v.Destroy(time.Now().UTC())
		return nil
	})
}

// DeleteSecret removes a secret, its versions and its policy.
func (p *Platform) DeleteSecret(name string) error {
	if err := p.requireAPI(APISecretManager); err != nil {
		return err
	}

	if _, err := p.GetSecret(name); err != nil {
		return err
	}

	if err := p.st.DeletePrefix(p.secretKey(name) + "/"); err != nil {
		return err
	}
	if err := p.st.Delete(p.secretKey(name)); err != nil {
		return err
	}
	if err := p.st.Delete(p.policyKey("secret/" + name)); err != nil {
		return err
	}

	p.audit(logbuf.Notice, "deleted secret %s", name)
	return nil
}
