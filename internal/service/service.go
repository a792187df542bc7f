// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package service models the deployable unit and its immutable
// revisions. A service is mutable routing and policy around a chain
// of revisions. Every deploy or settings change mints a new revision.
package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/staranto/runctlgo/internal/scale"
)

// DefaultPort is the port a container is expected to listen on when
// the deploy does not name one. It reaches the container as $PORT.
const DefaultPort = 8080

// Ingress settings.
const (
	IngressAll      = "all"
	IngressInternal = "internal"
)

// Service status.
const (
	StatusServing = "serving"
	StatusStopped = "stopped"
)

var nameRE = regexp.MustCompile(`^[a-z]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidateName enforces DNS-label service names.
func ValidateName(name string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("invalid service name %q: must be a lowercase DNS label", name)
	}
	return nil
}

// ValidateIngress rejects unknown ingress settings.
func ValidateIngress(ingress string) error {
	switch ingress {
	case IngressAll, IngressInternal:
		return nil
	}
	return fmt.Errorf("invalid ingress %q: want %s or %s",
		ingress, IngressAll, IngressInternal)
}

// Service is the mutable resource. Container and scaling details live
// on its revisions.
type Service struct {
	Name           string    `json:"name"`
	Project        string    `json:"project"`
	Region         string    `json:"region"`
	Ingress        string    `json:"ingress"`
	ServiceAccount string    `json:"serviceAccount,omitempty"`
	Status         string    `json:"status"`
	URL            string    `json:"url"`
	LatestRevision string    `json:"latestRevision,omitempty"`
	NextRevision   int       `json:"nextRevision"`
	CreateTime     time.Time `json:"createTime"`
	UpdateTime     time.Time `json:"updateTime"`
}

// Key is the store key of the service.
func (s *Service) Key() string {
	return fmt.Sprintf("project/%s/service/%s", s.Project, s.Name)
}

// ComputeURL derives the stable service URL. It never changes across
// revisions.
func ComputeURL(name string, project string, region string) string {
	return fmt.Sprintf("https://%s-%s.%s.run.internal", name, project, region)
}

// Revision is one immutable deployment of a service.
type Revision struct {
	Name       string            `json:"name"`
	Service    string            `json:"service"`
	Project    string            `json:"project"`
	Number     int               `json:"number"`
	Image      string            `json:"image"`
	Port       int               `json:"port"`
	Env        map[string]string `json:"env,omitempty"`
	SecretEnv  map[string]string `json:"secretEnv,omitempty"`
	Scaling    scale.Settings    `json:"scaling"`
	Active     bool              `json:"active"`
	CreateTime time.Time         `json:"createTime"`
}

// Key is the store key of the revision.
func (r *Revision) Key() string {
	return fmt.Sprintf("project/%s/service/%s/revision/%s", r.Project, r.Service, r.Name)
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RevisionName mints the name of revision number n of a service,
// <service>-NNNNN-xxx. The random suffix keeps names unique even if a
// service is deleted and recreated.
func RevisionName(service string, n int) string {
	suffix := make([]byte, 3)
	for i := range suffix {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(suffixAlphabet))))
		if err != nil {
			// crypto/rand only fails when the platform source is
			// broken. Degrade to a fixed suffix rather than panic.
			suffix[i] = 'x'
			continue
		}
		suffix[i] = suffixAlphabet[idx.Int64()]
	}
	return fmt.Sprintf("%s-%05d-%s", service, n, suffix)
}

// RuntimeEnv returns the environment handed to the container. PORT is
// always injected from the revision's port. resolved carries the
// secret-backed values, keyed by env name.
func (r *Revision) RuntimeEnv(resolved map[string]string) map[string]string {
	env := make(map[string]string, len(r.Env)+len(resolved)+1)
	for k, v := range r.Env {
		env[k] = v
	}
	for k, v := range resolved {
		env[k] = v
	}
	env["PORT"] = fmt.Sprintf("%d", r.Port)
	return env
}

// ValidateEnv rejects reserved variable names. PORT belongs to the
// platform.
func ValidateEnv(env map[string]string, secretEnv map[string]string) error {
	for _, m := range []map[string]string{env, secretEnv} {
		for k := range m {
			if k == "PORT" {
				return fmt.Errorf("env PORT is reserved and set by the platform")
			}
			if k == "" {
				return fmt.Errorf("empty env variable name")
			}
		}
	}
	for k := range secretEnv {
		if _, ok := env[k]; ok {
			return fmt.Errorf("env %s set both literally and from a secret", k)
		}
	}
	return nil
}

// SecretRef is a parsed secret env binding.
type SecretRef struct {
	Name    string
	Version string
}

// ParseSecretRef parses <secret>[:<version>]. The version defaults to
// the latest alias.
func ParseSecretRef(ref string) (SecretRef, error) {
	name, version, found := strings.Cut(ref, ":")
	if name == "" {
		return SecretRef{}, fmt.Errorf("invalid secret reference %q", ref)
	}
	if !found || version == "" {
		version = "latest"
	}
	return SecretRef{Name: name, Version: version}, nil
}

func (sr SecretRef) String() string {
	return sr.Name + ":" + sr.Version
}
