// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/staranto/runctlgo/internal/iam"
	"github.com/staranto/runctlgo/internal/logbuf"
	"github.com/staranto/runctlgo/internal/scale"
	"github.com/staranto/runctlgo/internal/secret"
	"github.com/staranto/runctlgo/internal/service"
	"github.com/staranto/runctlgo/internal/store"
)

func (p *Platform) serviceKey(name string) string {
	return store.Key("project", p.project, "service", name)
}

func (p *Platform) revisionKey(svc string, rev string) string {
	return store.Key("project", p.project, "service", svc, "revision", rev)
}

// DeploySpec is everything a deploy needs. Zero fields fall back to
// platform defaults; Update fills them from the current revision
// before deploying.
type DeploySpec struct {
	Service        string
	Image          string
	Port           int
	Env            map[string]string
	SecretEnv      map[string]string
	Scaling        scale.Patch
	Ingress        string
	ServiceAccount string
}

// Deploy creates or updates a service by minting a new revision and
// routing all traffic to it.
func (p *Platform) Deploy(spec DeploySpec) (*service.Service, *service.Revision, error) {
	if err := p.requireAPI(APIRun); err != nil {
		return nil, nil, err
	}
	if err := service.ValidateName(spec.Service); err != nil {
		return nil, nil, err
	}
	if spec.Image == "" {
		return nil, nil, fmt.Errorf("image is required")
	}
	if err := service.ValidateEnv(spec.Env, spec.SecretEnv); err != nil {
		return nil, nil, err
	}

	svc, err := p.GetService(spec.Service)
	created := false
	if errors.Is(err, store.ErrNotFound) {
		created = true
		now := time.Now().UTC()
		svc = &service.Service{
			Name:         spec.Service,
			Project:      p.project,
			Region:       p.region,
			Ingress:      service.IngressAll,
			Status:       service.StatusServing,
			URL:          service.ComputeURL(spec.Service, p.project, p.region),
			NextRevision: 1,
			CreateTime:   now,
		}
	} else if err != nil {
		return nil, nil, err
	}

	if spec.Ingress != "" {
		if err := service.ValidateIngress(spec.Ingress); err != nil {
			return nil, nil, err
		}
		svc.Ingress = spec.Ingress
	}
	if spec.ServiceAccount != "" {
		svc.ServiceAccount = spec.ServiceAccount
	}
	if svc.ServiceAccount == "" {
		svc.ServiceAccount = fmt.Sprintf("serviceAccount:%s@%s.iam", spec.Service, p.project)
	}

	scaling := scale.Defaults().Apply(spec.Scaling)
	if err := scaling.Validate(); err != nil {
		return nil, nil, err
	}

	port := spec.Port
	if port == 0 {
		port = service.DefaultPort
	}
	if port < 1 || port > 65535 {
		return nil, nil, fmt.Errorf("invalid port %d", port)
	}

	rev := &service.Revision{
		Name:       service.RevisionName(spec.Service, svc.NextRevision),
		Service:    spec.Service,
		Project:    p.project,
		Number:     svc.NextRevision,
		Image:      spec.Image,
		Port:       port,
		Env:        spec.Env,
		SecretEnv:  spec.SecretEnv,
		Scaling:    scaling,
		Active:     true,
		CreateTime: time.Now().UTC(),
	}

	// Secret bindings are verified before anything is written. A
	// revision that cannot resolve its secrets must not take traffic.
	if err := p.verifySecretEnv(rev, svc.ServiceAccount); err != nil {
		return nil, nil, err
	}

	if svc.LatestRevision != "" {
		var prev service.Revision
		if err := p.st.Get(p.revisionKey(spec.Service, svc.LatestRevision), &prev); err == nil {
			prev.Active = false
			if err := p.st.Set(prev.Key(), prev); err != nil {
				return nil, nil, err
			}
		}
	}

	svc.LatestRevision = rev.Name
	svc.NextRevision++
	svc.UpdateTime = time.Now().UTC()

	if err := p.st.Set(rev.Key(), rev); err != nil {
		return nil, nil, err
	}
	if err := p.st.Set(svc.Key(), svc); err != nil {
		return nil, nil, err
	}

	verb := "deployed"
	if created {
		verb = "created and deployed"
	}
	p.auditResource(svc.Name, rev.Name, logbuf.Notice,
		"%s service %s revision %s serving at %s", verb, svc.Name, rev.Name, svc.URL)

	return svc, rev, nil
}

// UpdateSpec carries partial changes for an existing service. Nil
// maps mean keep, non-nil replace. Nil scaling fields keep the
// current revision's values.
type UpdateSpec struct {
	Image          string
	Port           int
	Env            map[string]string
	SecretEnv      map[string]string
	Scaling        scale.Patch
	Ingress        string
	ServiceAccount string
}

// Update mints a new revision from the latest one with the given
// changes applied. Routing-only changes such as ingress do not mint a
// revision.
func (p *Platform) Update(name string, spec UpdateSpec) (*service.Service, *service.Revision, error) {
	if err := p.requireAPI(APIRun); err != nil {
		return nil, nil, err
	}

	svc, err := p.GetService(name)
	if err != nil {
		return nil, nil, err
	}

	if spec.Image == "" && spec.Port == 0 && spec.Env == nil && spec.SecretEnv == nil &&
		spec.Scaling.IsZero() && spec.ServiceAccount == "" {
		// Routing-only update.
		if spec.Ingress == "" {
			return nil, nil, fmt.Errorf("nothing to update on service %s", name)
		}
		if err := service.ValidateIngress(spec.Ingress); err != nil {
			return nil, nil, err
		}
		svc.Ingress = spec.Ingress
		svc.UpdateTime = time.Now().UTC()
		if err := p.st.Set(svc.Key(), svc); err != nil {
			return nil, nil, err
		}
		p.auditResource(name, "", logbuf.Notice, "updated service %s ingress to %s", name, spec.Ingress)
		return svc, nil, nil
	}

	latest, err := p.GetRevision(name, svc.LatestRevision)
	if err != nil {
		return nil, nil, err
	}

	next := DeploySpec{
		Service:        name,
		Image:          latest.Image,
		Port:           latest.Port,
		Env:            latest.Env,
		SecretEnv:      latest.SecretEnv,
		Scaling:        latest.Scaling.Apply(spec.Scaling).Patch(),
		Ingress:        spec.Ingress,
		ServiceAccount: spec.ServiceAccount,
	}
	if spec.Image != "" {
		next.Image = spec.Image
	}
	if spec.Port != 0 {
		next.Port = spec.Port
	}
	if spec.Env != nil {
		next.Env = spec.Env
	}
	if spec.SecretEnv != nil {
		next.SecretEnv = spec.SecretEnv
	}

	return p.Deploy(next)
}

// GetService loads a service by name.
func (p *Platform) GetService(name string) (*service.Service, error) {
	var svc service.Service
	if err := p.st.Get(p.serviceKey(name), &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

// ListServices returns the project's services in name order.
func (p *Platform) ListServices() ([]service.Service, error) {
	if err := p.requireAPI(APIRun); err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("project/%s/service/", p.project)
	keys, err := p.st.List(prefix)
	if err != nil {
		return nil, err
	}

	out := make([]service.Service, 0)
	for _, key := range keys {
		if strings.Contains(key[len(prefix):], "/") {
			continue
		}
		var svc service.Service
		if err := p.st.Get(key, &svc); err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, nil
}

// GetRevision loads one revision of a service.
func (p *Platform) GetRevision(svc string, rev string) (*service.Revision, error) {
	var r service.Revision
	if err := p.st.Get(p.revisionKey(svc, rev), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRevisions returns a service's revisions, oldest first.
func (p *Platform) ListRevisions(name string) ([]service.Revision, error) {
	if err := p.requireAPI(APIRun); err != nil {
		return nil, err
	}
	if _, err := p.GetService(name); err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("project/%s/service/%s/revision/", p.project, name)
	out := make([]service.Revision, 0)
	err := p.st.ListEach(prefix, func(key string, value []byte) error {
		var r service.Revision
		if err := p.st.Get(key, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Oldest first.
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })

	return out, nil
}

// DeleteService removes a service, its revisions and its policy. The
// project log keeps its history.
func (p *Platform) DeleteService(name string) error {
	if err := p.requireAPI(APIRun); err != nil {
		return err
	}
	if _, err := p.GetService(name); err != nil {
		return err
	}

	if err := p.st.DeletePrefix(p.serviceKey(name) + "/"); err != nil {
		return err
	}
	if err := p.st.Delete(p.serviceKey(name)); err != nil {
		return err
	}
	if err := p.st.Delete(p.policyKey("service/" + name)); err != nil {
		return err
	}

	p.auditResource(name, "", logbuf.Notice, "deleted service %s", name)
	return nil
}

// StopService stops routing traffic to a service without touching its
// revisions.
func (p *Platform) StopService(name string) (*service.Service, error) {
	return p.setStatus(name, service.StatusStopped, "stopped")
}

// StartService resumes a stopped service.
func (p *Platform) StartService(name string) (*service.Service, error) {
	return p.setStatus(name, service.StatusServing, "started")
}

func (p *Platform) setStatus(name string, status string, verb string) (*service.Service, error) {
	if err := p.requireAPI(APIRun); err != nil {
		return nil, err
	}

	svc, err := p.GetService(name)
	if err != nil {
		return nil, err
	}
	if svc.Status == status {
		return svc, nil
	}

	svc.Status = status
	svc.UpdateTime = time.Now().UTC()
	if err := p.st.Set(svc.Key(), svc); err != nil {
		return nil, err
	}

	p.auditResource(name, svc.LatestRevision, logbuf.Notice, "%s service %s", verb, name)
	return svc, nil
}

// verifySecretEnv checks every secret binding of a revision resolves
// to an accessible version for the service account. It does not open
// payloads, so no passphrase is needed at deploy time.
func (p *Platform) verifySecretEnv(rev *service.Revision, account string) error {
	for _, envName := range sortedKeys(rev.SecretEnv) {
		ref, err := service.ParseSecretRef(rev.SecretEnv[envName])
		if err != nil {
			return fmt.Errorf("env %s: %w", envName, err)
		}

		if err := p.CheckAccess("secret/"+ref.Name, iam.RoleSecretAccessor, account); err != nil {
			return fmt.Errorf("env %s: %w", envName, err)
		}

		v, err := p.GetVersion(ref.Name, ref.Version)
		if err != nil {
			return fmt.Errorf("env %s: %w", envName, err)
		}
		if err := v.Accessible(); err != nil {
			return fmt.Errorf("env %s: %w", envName, err)
		}
	}
	return nil
}

// ResolveSecretEnv opens every secret binding of a revision,
// returning env name to plaintext. This is the serve-time path, so a
// failure here means the revision cannot start.
func (p *Platform) ResolveSecretEnv(rev *service.Revision, account string, passphrase string) (map[string]string, error) {
	out := make(map[string]string, len(rev.SecretEnv))
	for _, envName := range sortedKeys(rev.SecretEnv) {
		ref, err := service.ParseSecretRef(rev.SecretEnv[envName])
		if err != nil {
			return nil, fmt.Errorf("env %s: %w", envName, err)
		}

		if err := p.CheckAccess("secret/"+ref.Name, iam.RoleSecretAccessor, account); err != nil {
			p.auditResource(rev.Service, rev.Name, logbuf.Error,
				"secret resolution failed for env %s: %v", envName, err)
			return nil, fmt.Errorf("env %s: %w", envName, err)
		}

		v, err := p.GetVersion(ref.Name, ref.Version)
		if err != nil {
			return nil, fmt.Errorf("env %s: %w", envName, err)
		}
		if err := v.Accessible(); err != nil {
			p.auditResource(rev.Service, rev.Name, logbuf.Error,
				"secret resolution failed for env %s: %v", envName, err)
			return nil, fmt.Errorf("env %s: %w", envName, err)
		}

		plaintext, err := secret.Open(v.Payload, passphrase)
		if err != nil {
			return nil, fmt.Errorf("env %s: opening %s: %w", envName, v.Ref(), err)
		}
		out[envName] = string(plaintext)
	}
	return out, nil
}
