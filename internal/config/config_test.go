// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// setupTestConfig sets RUNCTL_CFG to point to a test config file.
// Returns cleanup function that should be deferred.
func setupTestConfig(t *testing.T, testdataFile string) (cleanup func()) {
	t.Helper()

	configPath := filepath.Join("testdata", testdataFile)
	absPath, err := filepath.Abs(configPath)
	assert.NoError(t, err, "failed to get absolute path for test config")

	t.Setenv("RUNCTL_CFG", absPath)

	// Reset the global Config to force reload
	Config = Type{}

	return func() {
		Config = Type{}
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		testFile  string
		wantErr   bool
		checkFunc func(*testing.T, Type)
	}{
		{
			name:     "simple string values",
			testFile: "simple.yaml",
			wantErr:  false,
			checkFunc: func(t *testing.T, cfg Type) {
				assert.NotEmpty(t, cfg.Source)
				assert.Contains(t, cfg.Data, "project")
				assert.Equal(t, "class-assistant", cfg.Data["project"])
				assert.Equal(t, "us-central1", cfg.Data["region"])
			},
		},
		{
			name:     "nested structure",
			testFile: "nested.yaml",
			wantErr:  false,
			checkFunc: func(t *testing.T, cfg Type) {
				logs, ok := cfg.Data["logs"].(map[string]interface{})
				assert.True(t, ok, "logs should be a map")
				read, ok := logs["read"].(map[string]interface{})
				assert.True(t, ok, "read should be a map")
				assert.Equal(t, "WARNING", read["severity"])
				assert.Equal(t, 50, read["limit"])
			},
		},
		{
			name:     "mixed types",
			testFile: "mixed-types.yaml",
			wantErr:  false,
			checkFunc: func(t *testing.T, cfg Type) {
				assert.Equal(t, "test-project", cfg.Data["name"])
				assert.Equal(t, 1, cfg.Data["version"])
				assert.Equal(t, true, cfg.Data["enabled"])
				assert.Equal(t, 30.5, cfg.Data["timeout"])
				tags, ok := cfg.Data["tags"].([]interface{})
				assert.True(t, ok)
				assert.Len(t, tags, 2)
			},
		},
		{
			name:     "empty file",
			testFile: "empty.yaml",
			wantErr:  false,
			checkFunc: func(t *testing.T, cfg Type) {
				// Empty YAML unmarshals to nil map, which is acceptable
				assert.NotEmpty(t, cfg.Source, "should have a source path")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestConfig(t, tt.testFile)
			defer cleanup()

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			if tt.checkFunc != nil {
				tt.checkFunc(t, cfg)
			}
		})
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv("RUNCTL_CFG", "/nonexistent/path/runctl.yaml")
	Config = Type{}

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_RUNCTL_CFG_IsDirectory(t *testing.T) {
	t.Setenv("RUNCTL_CFG", "testdata")
	Config = Type{}

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "points to a directory")
}

func TestGetString(t *testing.T) {
	tests := []struct {
		name         string
		testFile     string
		key          string
		defaultValue []string
		want         string
		wantErr      bool
	}{
		{
			name:     "simple string value",
			testFile: "simple.yaml",
			key:      "region",
			want:     "us-central1",
			wantErr:  false,
		},
		{
			name:     "nested string value",
			testFile: "nested.yaml",
			key:      "logs.read.severity",
			want:     "WARNING",
			wantErr:  false,
		},
		{
			name:         "missing key with default",
			testFile:     "simple.yaml",
			key:          "missing",
			defaultValue: []string{"default-value"},
			want:         "default-value",
			wantErr:      false,
		},
		{
			name:     "missing key without default",
			testFile: "simple.yaml",
			key:      "missing",
			want:     "",
			wantErr:  true,
		},
		{
			name:     "non-string value",
			testFile: "mixed-types.yaml",
			key:      "version",
			want:     "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestConfig(t, tt.testFile)
			defer cleanup()

			// Force load
			_, _ = Load()

			got, err := GetString(tt.key, tt.defaultValue...)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetInt(t *testing.T) {
	tests := []struct {
		name         string
		testFile     string
		key          string
		defaultValue []int
		want         int
		wantErr      bool
	}{
		{
			name:     "int value",
			testFile: "mixed-types.yaml",
			key:      "version",
			want:     1,
		},
		{
			name:     "nested int value",
			testFile: "nested.yaml",
			key:      "logs.read.limit",
			want:     50,
		},
		{
			name:         "missing key with default",
			testFile:     "simple.yaml",
			key:          "missing",
			defaultValue: []int{42},
			want:         42,
		},
		{
			name:     "missing key without default",
			testFile: "simple.yaml",
			key:      "missing",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestConfig(t, tt.testFile)
			defer cleanup()

			_, _ = Load()

			got, err := GetInt(tt.key, tt.defaultValue...)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetStringSlice(t *testing.T) {
	cleanup := setupTestConfig(t, "mixed-types.yaml")
	defer cleanup()

	_, _ = Load()

	got, err := GetStringSlice("deploy.defaults")
	assert.NoError(t, err)
	assert.Equal(t, []string{"--output json", "--titles"}, got)

	_, err = GetStringSlice("missing")
	assert.Error(t, err)

	got, err = GetStringSlice("missing", []string{})
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestGet(t *testing.T) {
	cleanup := setupTestConfig(t, "mixed-types.yaml")
	defer cleanup()

	_, _ = Load()

	got, err := Get("enabled")
	assert.NoError(t, err)
	assert.Equal(t, true, got)

	_, err = Get("missing")
	assert.Error(t, err)
}

func TestSetRoundTrip(t *testing.T) {
	// Work on a copy so testdata stays pristine.
	src, err := os.ReadFile(filepath.Join("testdata", "simple.yaml"))
	assert.NoError(t, err)

	path := filepath.Join(t.TempDir(), "runctl.yaml")
	assert.NoError(t, os.WriteFile(path, src, 0o644))

	t.Setenv("RUNCTL_CFG", path)
	Config = Type{}
	defer func() { Config = Type{} }()

	_, _ = Load()

	assert.NoError(t, Set("deploy.min-instances", 2))
	assert.NoError(t, Set("region", "us-east1"))

	// Reload from disk and confirm both writes stuck.
	Config = Type{}
	_, err = Load()
	assert.NoError(t, err)

	n, err := GetInt("deploy.min-instances")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	s, err := GetString("region")
	assert.NoError(t, err)
	assert.Equal(t, "us-east1", s)

	// The untouched key survives the rewrite.
	s, err = GetString("project")
	assert.NoError(t, err)
	assert.Equal(t, "class-assistant", s)
}

func TestFlatten(t *testing.T) {
	cleanup := setupTestConfig(t, "nested.yaml")
	defer cleanup()

	_, _ = Load()

	leaves := Flatten()
	assert.Equal(t, "WARNING", leaves["logs.read.severity"])
	assert.Equal(t, 50, leaves["logs.read.limit"])
	_, ok := leaves["logs"]
	assert.False(t, ok, "interior nodes should not appear")
}

func TestNamespaceFallback(t *testing.T) {
	cleanup := setupTestConfig(t, "nested.yaml")
	defer cleanup()

	_, _ = Load()
	Config.Namespace = "logs.read"

	// Namespaced key wins when present.
	got, err := GetString("severity")
	assert.NoError(t, err)
	assert.Equal(t, "WARNING", got)
}
