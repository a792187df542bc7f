// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package build turns a manifest into the container build context,
// which for now means generating a Dockerfile matching the platform's
// runtime contract: listen on $PORT, dependencies installed before the
// app is copied, exec-form CMD.
package build

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/staranto/runctlgo/internal/manifest"
)

// Runtime base images. The key is the manifest runtime id.
var baseImages = map[string]string{
	"python311": "python:3.11-slim",
	"python312": "python:3.12-slim",
	"node20":    "node:20-slim",
	"node22":    "node:22-slim",
	"go122":     "golang:1.22",
	"go124":     "golang:1.24",
}

// Dependency manifests copied and installed ahead of the app source so
// the layer caches across code-only changes.
var depSteps = map[string]struct {
	files   []string
	install string
}{
	"python311": {[]string{"requirements.txt"}, "pip install --no-cache-dir -r requirements.txt"},
	"python312": {[]string{"requirements.txt"}, "pip install --no-cache-dir -r requirements.txt"},
	"node20":    {[]string{"package.json", "package-lock.json"}, "npm ci --omit=dev"},
	"node22":    {[]string{"package.json", "package-lock.json"}, "npm ci --omit=dev"},
	"go122":     {[]string{"go.mod", "go.sum"}, "go mod download"},
	"go124":     {[]string{"go.mod", "go.sum"}, "go mod download"},
}

// Runtimes returns the supported runtime ids, sorted.
func Runtimes() []string {
	out := make([]string, 0, len(baseImages))
	for id := range baseImages {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var dockerfileTmpl = template.Must(template.New("dockerfile").Parse(
	`FROM {{.BaseImage}}

WORKDIR /app

{{range .DepFiles}}COPY {{.}} ./
{{end}}RUN {{.DepInstall}}

COPY . .

ENV PORT={{.Port}}
EXPOSE {{.Port}}

CMD [{{.CMD}}]
`))

type dockerfileData struct {
	BaseImage  string
	DepFiles   []string
	DepInstall string
	Port       int
	CMD        string
}

// Dockerfile renders the Dockerfile for a manifest. The entrypoint's
// $PORT reference survives into the image; the runtime environment
// resolves it.
func Dockerfile(m *manifest.Manifest) (string, error) {
	base, ok := baseImages[m.Runtime]
	if !ok {
		return "", fmt.Errorf("unsupported runtime %q (want one of %s)",
			m.Runtime, strings.Join(Runtimes(), ", "))
	}

	deps := depSteps[m.Runtime]

	data := dockerfileData{
		BaseImage:  base,
		DepFiles:   deps.files,
		DepInstall: deps.install,
		Port:       m.EffectivePort(),
		CMD:        cmdJSON(m.Entrypoint),
	}

	var sb strings.Builder
	if err := dockerfileTmpl.Execute(&sb, data); err != nil {
		return "", err
	}

	return sb.String(), nil
}

// cmdJSON renders the exec-form CMD list. $PORT expansion needs a
// shell, so the entrypoint runs under sh -c.
func cmdJSON(entrypoint string) string {
	parts := []string{"sh", "-c", entrypoint}
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	return strings.Join(quoted, ", ")
}

// ImageTag names the image built for a service revision.
func ImageTag(project string, svc string, revision string) string {
	return fmt.Sprintf("runctl/%s/%s:%s", project, svc, revision)
}
