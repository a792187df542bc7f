// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package manifest loads the per-app deployment manifest, runctl.yaml
// or runctl.hcl. The manifest names the runtime, the entrypoint
// template, env bindings and URL routes for a service. It is input to
// deploy, not stored state.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"github.com/staranto/runctlgo/internal/scale"
	"github.com/staranto/runctlgo/internal/service"
)

// Manifest describes how to run one service.
type Manifest struct {
	Runtime    string            `yaml:"runtime" hcl:"runtime"`
	Service    string            `yaml:"service" hcl:"service"`
	Entrypoint string            `yaml:"entrypoint" hcl:"entrypoint"`
	Port       int               `yaml:"port" hcl:"port,optional"`
	Ingress    string            `yaml:"ingress" hcl:"ingress,optional"`
	Env        map[string]string `yaml:"env" hcl:"env,optional"`
	SecretEnv  map[string]string `yaml:"secret_env" hcl:"secret_env,optional"`
	Scaling    *ScalingBlock     `yaml:"scaling" hcl:"scaling,block"`
	Routes     []Route           `yaml:"routes" hcl:"route,block"`
}

// ScalingBlock mirrors scale.Settings with manifest field names.
type ScalingBlock struct {
	MinInstances       int  `yaml:"min-instances" hcl:"min_instances,optional"`
	MaxInstances       int  `yaml:"max-instances" hcl:"max_instances,optional"`
	Concurrency        int  `yaml:"concurrency" hcl:"concurrency,optional"`
	CPUAlwaysAllocated bool `yaml:"cpu-always-allocated" hcl:"cpu_always_allocated,optional"`
}

// Settings converts the block to the platform's scaling settings,
// filling defaults for unset fields.
func (b *ScalingBlock) Settings() scale.Settings {
	s := scale.Defaults()
	if b == nil {
		return s
	}
	s.MinInstances = b.MinInstances
	if b.MaxInstances != 0 {
		s.MaxInstances = b.MaxInstances
	}
	if b.Concurrency != 0 {
		s.Concurrency = b.Concurrency
	}
	s.CPUAlwaysAllocated = b.CPUAlwaysAllocated
	return s
}

// Route maps a URL path pattern to either the app itself or a static
// directory.
type Route struct {
	Path      string `yaml:"path" hcl:"path,label"`
	Script    string `yaml:"script" hcl:"script,optional"`
	StaticDir string `yaml:"static_dir" hcl:"static_dir,optional"`
}

var runtimeRE = regexp.MustCompile(`^[a-z][a-z0-9]+$`)

// Load reads a manifest by path. The format follows the extension,
// .yaml/.yml or .hcl.
func Load(path string) (*Manifest, error) {
	ext := filepath.Ext(path)
	switch ext {
	case ".yaml", ".yml", ".hcl":
	default:
		return nil, fmt.Errorf("unsupported manifest format %q (want .yaml, .yml or .hcl)", ext)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(src, &m); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".hcl":
		// ${port} in an HCL manifest resolves to the literal $PORT
		// placeholder. Substitution of the real port happens at
		// container start, same as the yaml form.
		ctx := &hcl.EvalContext{
			Variables: map[string]cty.Value{
				"port": cty.StringVal("$PORT"),
			},
		}
		if err := hclsimple.Decode(filepath.Base(path), src, ctx, &m); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &m, nil
}

// Validate checks the manifest for fields deploy cannot default.
func (m *Manifest) Validate() error {
	if !runtimeRE.MatchString(m.Runtime) {
		return fmt.Errorf("invalid runtime %q", m.Runtime)
	}
	if err := service.ValidateName(m.Service); err != nil {
		return err
	}
	if strings.TrimSpace(m.Entrypoint) == "" {
		return fmt.Errorf("entrypoint is required")
	}
	if m.Port < 0 || m.Port > 65535 {
		return fmt.Errorf("invalid port %d", m.Port)
	}
	if m.Ingress != "" {
		if err := service.ValidateIngress(m.Ingress); err != nil {
			return err
		}
	}
	if err := service.ValidateEnv(m.Env, m.SecretEnv); err != nil {
		return err
	}
	if err := m.Scaling.Settings().Validate(); err != nil {
		return err
	}

	for i, route := range m.Routes {
		if route.Path == "" {
			return fmt.Errorf("route %d: path is required", i)
		}
		if (route.Script == "") == (route.StaticDir == "") {
			return fmt.Errorf("route %s: exactly one of script or static_dir", route.Path)
		}
		if _, err := regexp.Compile(route.Path); err != nil {
			return fmt.Errorf("route %s: %w", route.Path, err)
		}
	}

	return nil
}

// EffectivePort returns the port the container is told to listen on.
func (m *Manifest) EffectivePort() int {
	if m.Port == 0 {
		return service.DefaultPort
	}
	return m.Port
}

// RenderEntrypoint substitutes $PORT and ${PORT} in the entrypoint
// template. Other variables pass through untouched for the container
// environment to resolve.
func (m *Manifest) RenderEntrypoint(port int) string {
	return os.Expand(m.Entrypoint, func(name string) string {
		if name == "PORT" {
			return fmt.Sprintf("%d", port)
		}
		return "$" + name
	})
}
