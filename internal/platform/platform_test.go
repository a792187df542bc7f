// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/runctlgo/internal/iam"
	"github.com/staranto/runctlgo/internal/logbuf"
	"github.com/staranto/runctlgo/internal/scale"
	"github.com/staranto/runctlgo/internal/secret"
	"github.com/staranto/runctlgo/internal/store"
)

func openTestPlatform(t *testing.T) *Platform {
	t.Helper()
	p, err := Open(Options{
		Home:    t.TempDir(),
		Project: "class-assistant",
		Region:  "us-central1",
		Account: "user:staff@example.edu",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// enableAll flips on every API so tests can focus on their own gate.
func enableAll(t *testing.T, p *Platform) {
	t.Helper()
	for _, api := range KnownAPIs {
		require.NoError(t, p.EnableAPI(api))
	}
}

func TestOpenRequiresProject(t *testing.T) {
	_, err := Open(Options{Home: t.TempDir()})
	assert.ErrorContains(t, err, "project is required")
}

func TestAPIGateDefaultsClosed(t *testing.T) {
	p := openTestPlatform(t)

	_, _, err := p.Deploy(DeploySpec{Service: "grader", Image: "img"})
	assert.ErrorIs(t, err, ErrAPIDisabled)

	_, err = p.CreateSecret("flag-key", nil)
	assert.ErrorIs(t, err, ErrAPIDisabled)
}

func TestAPIEnableDisable(t *testing.T) {
	p := openTestPlatform(t)

	enabled, err := p.APIEnabled(APIRun)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, p.EnableAPI(APIRun))
	enabled, err = p.APIEnabled(APIRun)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, p.DisableAPI(APIRun))
	enabled, err = p.APIEnabled(APIRun)
	require.NoError(t, err)
	assert.False(t, enabled)

	assert.ErrorContains(t, p.EnableAPI("compute"), "unknown api")
}

func TestListAPIs(t *testing.T) {
	p := openTestPlatform(t)
	require.NoError(t, p.EnableAPI(APIRun))

	apis, err := p.ListAPIs()
	require.NoError(t, err)
	assert.True(t, apis[APIRun])
	assert.False(t, apis[APISecretManager])
	assert.Len(t, apis, len(KnownAPIs))
}

func TestSecretLifecycle(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)

	s, err := p.CreateSecret("openai-api-key", map[string]string{"env": "prod"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.NextVersion)

	_, err = p.CreateSecret("openai-api-key", nil)
	assert.ErrorContains(t, err, "already exists")

	v1, err := p.AddVersion("openai-api-key", []byte("sk-one"), "pw")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Number)

	v2, err := p.AddVersion("openai-api-key", []byte("sk-two"), "pw")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Number)

	// latest resolves to the highest number.
	got, err := p.GetVersion("openai-api-key", secret.Latest)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Number)

	versions, err := p.ListVersions("openai-api-key")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Number)
	assert.Equal(t, 2, versions[1].Number)
}

func TestAccessVersionFailsClosed(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)

	_, err := p.CreateSecret("flag-key", nil)
	require.NoError(t, err)
	_, err = p.AddVersion("flag-key", []byte("CTF{top}"), "pw")
	require.NoError(t, err)

	// No binding yet.
	_, err = p.AccessVersion("flag-key", "latest", "pw")
	assert.ErrorIs(t, err, iam.ErrPermissionDenied)

	require.NoError(t, p.AddBinding("secret/flag-key", iam.RoleSecretAccessor, "user:staff@example.edu"))

	plaintext, err := p.AccessVersion("flag-key", "latest", "pw")
	require.NoError(t, err)
	assert.Equal(t, "CTF{top}", string(plaintext))

	// Wrong passphrase never leaks the payload.
	_, err = p.AccessVersion("flag-key", "latest", "nope")
	assert.ErrorIs(t, err, secret.ErrBadPassphrase)
}

func TestVersionStateTransitions(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)
	require.NoError(t, p.AddBinding("secret/db-pass", iam.RoleSecretAccessor, "user:staff@example.edu"))

	_, err := p.CreateSecret("db-pass", nil)
	require.NoError(t, err)
	_, err = p.AddVersion("db-pass", []byte("hunter2"), "pw")
	require.NoError(t, err)

	_, err = p.DisableVersion("db-pass", "1")
	require.NoError(t, err)
	_, err = p.AccessVersion("db-pass", "1", "pw")
	assert.ErrorIs(t, err, secret.ErrDisabled)

	_, err = p.EnableVersion("db-pass", "1")
	require.NoError(t, err)
	_, err = p.AccessVersion("db-pass", "1", "pw")
	assert.NoError(t, err)

	v, err := p.DestroyVersion("db-pass", "1")
	require.NoError(t, err)
	assert.Nil(t, v.Payload)

	_, err = p.AccessVersion("db-pass", "1", "pw")
	assert.ErrorIs(t, err, secret.ErrDestroyed)

	// Destroyed versions stay listed.
	versions, err := p.ListVersions("db-pass")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, secret.Destroyed, versions[0].State)

	// Version numbers are never reused.
	v2, err := p.AddVersion("db-pass", []byte("hunter3"), "pw")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Number)
}

func TestDeleteSecret(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)

	_, err := p.CreateSecret("tmp", nil)
	require.NoError(t, err)
	_, err = p.AddVersion("tmp", []byte("x"), "pw")
	require.NoError(t, err)

	require.NoError(t, p.DeleteSecret("tmp"))

	_, err = p.GetSecret("tmp")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, p.DeleteSecret("tmp"), store.ErrNotFound)
}

func TestDeployCreatesServiceAndRevision(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)

	svc, rev, err := p.Deploy(DeploySpec{
		Service: "grader",
		Image:   "runctl/class-assistant/grader:dev",
		Env:     map[string]string{"MODEL": "small"},
	})
	require.NoError(t, err)

	assert.Equal(t, "grader", svc.Name)
	assert.Equal(t, "us-central1", svc.Region)
	assert.Equal(t, "serving", svc.Status)
	assert.Equal(t, "https://grader-class-assistant.us-central1.run.internal", svc.URL)
	assert.Equal(t, rev.Name, svc.LatestRevision)
	assert.Regexp(t, `^grader-00001-[a-z0-9]{3}$`, rev.Name)
	assert.Equal(t, 8080, rev.Port)
	assert.True(t, rev.Active)
	assert.Equal(t, scale.Defaults(), rev.Scaling)
}

func TestDeploySecondRevisionRetargets(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)

	_, rev1, err := p.Deploy(DeploySpec{Service: "grader", Image: "img:v1"})
	require.NoError(t, err)

	svc, rev2, err := p.Deploy(DeploySpec{Service: "grader", Image: "img:v2"})
	require.NoError(t, err)

	assert.Equal(t, 2, rev2.Number)
	assert.Equal(t, rev2.Name, svc.LatestRevision)

	// URL is stable across revisions.
	assert.Equal(t, "https://grader-class-assistant.us-central1.run.internal", svc.URL)

	old, err := p.GetRevision("grader", rev1.Name)
	require.NoError(t, err)
	assert.False(t, old.Active)

	revisions, err := p.ListRevisions("grader")
	require.NoError(t, err)
	require.Len(t, revisions, 2)
	assert.Equal(t, rev1.Name, revisions[0].Name)
	assert.Equal(t, rev2.Name, revisions[1].Name)
}

func TestDeployRejectsUnresolvableSecret(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)

	// Secret missing entirely.
	_, _, err := p.Deploy(DeploySpec{
		Service:        "grader",
		Image:          "img",
		SecretEnv:      map[string]string{"OPENAI_API_KEY": "openai-api-key:latest"},
		ServiceAccount: "serviceAccount:grader@class-assistant.iam",
	})
	assert.Error(t, err)

	// Secret exists but the service account has no accessor role.
	_, err = p.CreateSecret("openai-api-key", nil)
	require.NoError(t, err)
	_, err = p.AddVersion("openai-api-key", []byte("sk"), "pw")
	require.NoError(t, err)

	_, _, err = p.Deploy(DeploySpec{
		Service:        "grader",
		Image:          "img",
		SecretEnv:      map[string]string{"OPENAI_API_KEY": "openai-api-key:latest"},
		ServiceAccount: "serviceAccount:grader@class-assistant.iam",
	})
	assert.ErrorIs(t, err, iam.ErrPermissionDenied)

	// Nothing was written for the failed deploys.
	_, err = p.GetService("grader")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// With the binding in place the deploy goes through.
	require.NoError(t, p.AddBinding("secret/openai-api-key",
		iam.RoleSecretAccessor, "serviceAccount:grader@class-assistant.iam"))

	_, _, err = p.Deploy(DeploySpec{
		Service:        "grader",
		Image:          "img",
		SecretEnv:      map[string]string{"OPENAI_API_KEY": "openai-api-key:latest"},
		ServiceAccount: "serviceAccount:grader@class-assistant.iam",
	})
	assert.NoError(t, err)
}

func TestDeployRejectsReservedPortEnv(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)

	_, _, err := p.Deploy(DeploySpec{
		Service: "grader",
		Image:   "img",
		Env:     map[string]string{"PORT": "80"},
	})
	assert.ErrorContains(t, err, "PORT is reserved")
}

func TestUpdateMintsRevision(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)

	_, _, err := p.Deploy(DeploySpec{Service: "grader", Image: "img:v1"})
	require.NoError(t, err)

	five := 5
	svc, rev, err := p.Update("grader", UpdateSpec{
		Scaling: scale.Patch{MaxInstances: &five},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, rev.Number)
	assert.Equal(t, "img:v1", rev.Image)
	assert.Equal(t, 5, rev.Scaling.MaxInstances)
	assert.Equal(t, rev.Name, svc.LatestRevision)
}

func TestUpdateKeepsCPUAllocationMode(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)

	two := 2
	four := 4
	always := true
	_, rev1, err := p.Deploy(DeploySpec{
		Service: "grader",
		Image:   "img:v1",
		Scaling: scale.Patch{MinInstances: &two, MaxInstances: &four, CPUAlwaysAllocated: &always},
	})
	require.NoError(t, err)
	require.True(t, rev1.Scaling.CPUAlwaysAllocated)

	// An image-only update keeps every scaling knob of the latest
	// revision, the boolean included.
	_, rev2, err := p.Update("grader", UpdateSpec{Image: "img:v2"})
	require.NoError(t, err)
	assert.True(t, rev2.Scaling.CPUAlwaysAllocated)
	assert.Equal(t, 2, rev2.Scaling.MinInstances)
	assert.Equal(t, 4, rev2.Scaling.MaxInstances)

	// An explicit zero is a real change, not a keep.
	zero := 0
	off := false
	_, rev3, err := p.Update("grader", UpdateSpec{
		Scaling: scale.Patch{MinInstances: &zero, CPUAlwaysAllocated: &off},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, rev3.Scaling.MinInstances)
	assert.False(t, rev3.Scaling.CPUAlwaysAllocated)
	assert.Equal(t, 4, rev3.Scaling.MaxInstances)
}

func TestUpdateIngressOnly(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)

	_, _, err := p.Deploy(DeploySpec{Service: "grader", Image: "img"})
	require.NoError(t, err)

	svc, rev, err := p.Update("grader", UpdateSpec{Ingress: "internal"})
	require.NoError(t, err)
	assert.Nil(t, rev)
	assert.Equal(t, "internal", svc.Ingress)

	// No new revision was minted.
	revisions, err := p.ListRevisions("grader")
	require.NoError(t, err)
	assert.Len(t, revisions, 1)

	_, _, err = p.Update("grader", UpdateSpec{})
	assert.ErrorContains(t, err, "nothing to update")
}

func TestStopStart(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)

	_, _, err := p.Deploy(DeploySpec{Service: "grader", Image: "img"})
	require.NoError(t, err)

	svc, err := p.StopService("grader")
	require.NoError(t, err)
	assert.Equal(t, "stopped", svc.Status)

	svc, err = p.StartService("grader")
	require.NoError(t, err)
	assert.Equal(t, "serving", svc.Status)
}

func TestDeleteService(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)

	_, _, err := p.Deploy(DeploySpec{Service: "grader", Image: "img"})
	require.NoError(t, err)

	require.NoError(t, p.DeleteService("grader"))

	_, err = p.GetService("grader")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = p.ListRevisions("grader")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResolveSecretEnv(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)

	account := "serviceAccount:grader@class-assistant.iam"
	_, err := p.CreateSecret("openai-api-key", nil)
	require.NoError(t, err)
	_, err = p.AddVersion("openai-api-key", []byte("sk-live"), "pw")
	require.NoError(t, err)
	require.NoError(t, p.AddBinding("secret/openai-api-key", iam.RoleSecretAccessor, account))

	_, rev, err := p.Deploy(DeploySpec{
		Service:        "grader",
		Image:          "img",
		SecretEnv:      map[string]string{"OPENAI_API_KEY": "openai-api-key:latest"},
		ServiceAccount: account,
	})
	require.NoError(t, err)

	env, err := p.ResolveSecretEnv(rev, account, "pw")
	require.NoError(t, err)
	assert.Equal(t, "sk-live", env["OPENAI_API_KEY"])

	// Disabling the version breaks serve-time resolution and leaves
	// an error in the log.
	_, err = p.DisableVersion("openai-api-key", "1")
	require.NoError(t, err)

	_, err = p.ResolveSecretEnv(rev, account, "pw")
	assert.ErrorIs(t, err, secret.ErrDisabled)

	entries, err := p.Logs().Read(logbuf.ReadOptions{MinSeverity: logbuf.Error})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[len(entries)-1].Message, "secret resolution failed")
}

func TestSaveAccountPersistsAcrossOpens(t *testing.T) {
	home := t.TempDir()

	p, err := Open(Options{Home: home, Project: "class-assistant"})
	require.NoError(t, err)
	assert.Empty(t, p.CurrentAccount())

	require.NoError(t, p.SaveAccount("user:staff@example.edu"))
	assert.Equal(t, "user:staff@example.edu", p.CurrentAccount())
	require.NoError(t, p.Close())

	// A fresh handle with no explicit account picks up the login.
	p, err = Open(Options{Home: home, Project: "class-assistant"})
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "user:staff@example.edu", p.CurrentAccount())
}

func TestSaveAccountRejectsBadMember(t *testing.T) {
	p := openTestPlatform(t)

	assert.Error(t, p.SaveAccount("not-a-member"))
	// The handle's identity is unchanged on failure.
	assert.Equal(t, "user:staff@example.edu", p.CurrentAccount())
}

func TestExplicitAccountWinsOverStored(t *testing.T) {
	home := t.TempDir()

	p, err := Open(Options{Home: home, Project: "class-assistant"})
	require.NoError(t, err)
	require.NoError(t, p.SaveAccount("user:staff@example.edu"))
	require.NoError(t, p.Close())

	p, err = Open(Options{
		Home:    home,
		Project: "class-assistant",
		Account: "user:sub@example.edu",
	})
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "user:sub@example.edu", p.CurrentAccount())
}

func TestAuditTrail(t *testing.T) {
	p := openTestPlatform(t)
	enableAll(t, p)

	_, _, err := p.Deploy(DeploySpec{Service: "grader", Image: "img"})
	require.NoError(t, err)

	entries, err := p.Logs().Read(logbuf.ReadOptions{Service: "grader"})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[0].Message, "created and deployed service grader")
}
