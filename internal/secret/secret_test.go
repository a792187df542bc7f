// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package secret

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "openai-api-key"},
		{name: "underscores", input: "DB_PASSWORD"},
		{name: "empty", input: "", wantErr: true},
		{name: "slash", input: "a/b", wantErr: true},
		{name: "space", input: "a b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVersionLifecycle(t *testing.T) {
	v := &Version{Secret: "flag-key", Number: 1, State: Enabled, Payload: []byte("x")}

	assert.NoError(t, v.Accessible())

	require.NoError(t, v.Disable())
	assert.Equal(t, Disabled, v.State)
	assert.ErrorIs(t, v.Accessible(), ErrDisabled)

	// Disabled versions keep their payload and can come back.
	assert.NotNil(t, v.Payload)
	require.NoError(t, v.Enable())
	assert.NoError(t, v.Accessible())

	now := time.Now()
	v.Destroy(now)
	assert.Equal(t, Destroyed, v.State)
	assert.Nil(t, v.Payload)
	assert.Equal(t, now, v.DestroyTime)
	assert.ErrorIs(t, v.Accessible(), ErrDestroyed)

	// Terminal: no transitions out of destroyed.
	assert.ErrorIs(t, v.Enable(), ErrDestroyed)
	assert.ErrorIs(t, v.Disable(), ErrDestroyed)

	// Destroy is idempotent and keeps the original timestamp.
	v.Destroy(now.Add(time.Hour))
	assert.Equal(t, now, v.DestroyTime)
}

func TestVersionRef(t *testing.T) {
	v := &Version{Secret: "flag-key", Number: 3}
	assert.Equal(t, "secret/flag-key/version/3", v.Ref())
}

func TestSealOpen(t *testing.T) {
	plaintext := []byte("sk-not-a-real-key")

	sealed, err := Seal(plaintext, "correct horse")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), string(plaintext))

	got, err := Open(sealed, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, err := Seal([]byte("payload"), "right")
	require.NoError(t, err)

	_, err = Open(sealed, "wrong")
	assert.ErrorIs(t, err, ErrBadPassphrase)
}

func TestOpenTruncated(t *testing.T) {
	_, err := Open([]byte("short"), "pw")
	assert.ErrorContains(t, err, "too short")
}

func TestSealUniquePerCall(t *testing.T) {
	a, err := Seal([]byte("same"), "pw")
	require.NoError(t, err)
	b, err := Seal([]byte("same"), "pw")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
