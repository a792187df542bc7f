// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package platform is the control plane. It owns the store, gates
// every operation on project API enablement, and writes an audit
// trail into the project log. Commands talk to a Platform, never to
// the store directly.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/apex/log"

	"github.com/staranto/runctlgo/internal/iam"
	"github.com/staranto/runctlgo/internal/logbuf"
	"github.com/staranto/runctlgo/internal/store"
)

// APIs a project can enable. Operations against a disabled API fail.
const (
	APIRun           = "run"
	APISecretManager = "secretmanager"
	APILogging       = "logging"
)

// KnownAPIs lists every API the platform understands, sorted.
var KnownAPIs = []string{APILogging, APIRun, APISecretManager}

// ErrAPIDisabled is returned when an operation needs an API the
// project has not enabled.
var ErrAPIDisabled = errors.New("api not enabled")

// ErrNotFound wraps store misses with resource context.
var ErrNotFound = store.ErrNotFound

// Options configure Open.
type Options struct {
	// Home is the platform state directory. Empty falls back to
	// RUNCTL_HOME and then ~/.runctl.
	Home string

	// Project scopes every operation.
	Project string

	// Region is recorded on services at deploy time.
	Region string

	// Account is the caller identity used for IAM checks, in member
	// form such as user:staff@example.edu.
	Account string
}

// Platform is an open handle on one project's control plane.
type Platform struct {
	st      *store.Store
	logs    *logbuf.Buffer
	project string
	region  string
	account string
}

// Open opens the platform state for a project.
func Open(opts Options) (*Platform, error) {
	if opts.Project == "" {
		return nil, fmt.Errorf("project is required")
	}

	home := opts.Home
	if home == "" {
		home = os.Getenv("RUNCTL_HOME")
	}
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home: %w", err)
		}
		home = filepath.Join(userHome, ".runctl")
	}

	st, err := store.Open(filepath.Join(home, "state"))
	if err != nil {
		return nil, err
	}

	logs, err := logbuf.New(st, opts.Project)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	account := opts.Account
	if account == "" {
		var stored storedAccount
		if err := st.Get(accountKey, &stored); err == nil {
			account = stored.Member
		}
	}

	log.Debugf("platform open, project=%s region=%s", opts.Project, opts.Region)

	return &Platform{
		st:      st,
		logs:    logs,
		project: opts.Project,
		region:  opts.Region,
		account: account,
	}, nil
}

// accountKey is global across projects. A login applies to the whole
// state directory.
const accountKey = "auth/account"

type storedAccount struct {
	Member    string    `json:"member"`
	LoginTime time.Time `json:"loginTime"`
}

// SaveAccount records the member as the default identity for future
// invocations that pass no explicit account.
func (p *Platform) SaveAccount(member string) error {
	if err := iam.ValidateMember(member); err != nil {
		return err
	}

	if err := p.st.Set(accountKey, storedAccount{
		Member:    member,
		LoginTime: time.Now().UTC(),
	}); err != nil {
		return err
	}

	p.account = member
	p.audit(logbuf.Notice, "logged in as %s", member)
	return nil
}

// CurrentAccount returns the effective identity, explicit or stored.
func (p *Platform) CurrentAccount() string {
	return p.account
}

// Close releases the store.
func (p *Platform) Close() error {
	return p.st.Close()
}

// Project returns the project this handle is scoped to.
func (p *Platform) Project() string {
	return p.project
}

// Logs exposes the project log buffer for the logs commands.
func (p *Platform) Logs() *logbuf.Buffer {
	return p.logs
}

type apiState struct {
	Enabled    bool      `json:"enabled"`
	UpdateTime time.Time `json:"updateTime"`
}

func (p *Platform) apiKey(api string) string {
	return store.Key("project", p.project, "api", api)
}

func validAPI(api string) error {
	for _, known := range KnownAPIs {
		if api == known {
			return nil
		}
	}
	return fmt.Errorf("unknown api %q (want one of %v)", api, KnownAPIs)
}

// EnableAPI turns an API on for the project. Enabling twice is a
// no-op.
func (p *Platform) EnableAPI(api string) error {
	if err := validAPI(api); err != nil {
		return err
	}
	if err := p.st.Set(p.apiKey(api), apiState{Enabled: true, UpdateTime: time.Now().UTC()}); err != nil {
		return err
	}
	p.audit(logbuf.Notice, "enabled api %s", api)
	return nil
}

// DisableAPI turns an API off. Existing state stays in the store but
// operations against it start failing.
func (p *Platform) DisableAPI(api string) error {
	if err := validAPI(api); err != nil {
		return err
	}
	if err := p.st.Set(p.apiKey(api), apiState{Enabled: false, UpdateTime: time.Now().UTC()}); err != nil {
		return err
	}
	p.audit(logbuf.Notice, "disabled api %s", api)
	return nil
}

// APIEnabled reports whether the project has enabled an API. APIs
// default to disabled.
func (p *Platform) APIEnabled(api string) (bool, error) {
	var state apiState
	err := p.st.Get(p.apiKey(api), &state)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return state.Enabled, nil
}

// ListAPIs returns every known API and its enablement.
func (p *Platform) ListAPIs() (map[string]bool, error) {
	out := make(map[string]bool, len(KnownAPIs))
	for _, api := range KnownAPIs {
		enabled, err := p.APIEnabled(api)
		if err != nil {
			return nil, err
		}
		out[api] = enabled
	}
	return out, nil
}

func (p *Platform) requireAPI(api string) error {
	enabled, err := p.APIEnabled(api)
	if err != nil {
		return err
	}
	if !enabled {
		return fmt.Errorf("%s on project %s: %w", api, p.project, ErrAPIDisabled)
	}
	return nil
}

// audit appends a platform-level entry to the project log. Audit
// failures are logged and swallowed so they never fail the operation
// they describe.
func (p *Platform) audit(sev logbuf.Severity, format string, args ...interface{}) {
	p.auditResource("", "", sev, format, args...)
}

func (p *Platform) auditResource(svc string, rev string, sev logbuf.Severity, format string, args ...interface{}) {
	_, err := p.logs.Append(logbuf.Entry{
		Severity: sev,
		Service:  svc,
		Revision: rev,
		Message:  fmt.Sprintf(format, args...),
	})
	if err != nil {
		log.WithError(err).Warn("audit append failed")
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
