// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKVs_Empty(t *testing.T) {
	out, err := ParseKVs(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestParseKVs_Pairs(t *testing.T) {
	out, err := ParseKVs([]string{"A=1", "B=two", "C=x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "two", "C": "x=y"}, out)
}

func TestParseKVs_Invalid(t *testing.T) {
	_, err := ParseKVs([]string{"no-equals"})
	assert.Error(t, err)

	_, err = ParseKVs([]string{"=value"})
	assert.Error(t, err)
}

func TestAgeColumn_AddsAge(t *testing.T) {
	then := time.Now().Add(-2 * time.Hour).Format(time.RFC3339Nano)
	data := []map[string]interface{}{
		{"name": "grader", "createTime": then},
	}

	require.NoError(t, AgeColumn("createTime")(data))

	age, ok := data[0]["age"].(string)
	require.True(t, ok)
	assert.Contains(t, age, "hours ago")
}

func TestAgeColumn_IgnoresBadValues(t *testing.T) {
	data := []map[string]interface{}{
		{"name": "no-timestamp"},
		{"name": "bad", "createTime": "not-a-time"},
		{"name": "wrong-type", "createTime": 42},
	}

	require.NoError(t, AgeColumn("createTime")(data))

	for _, row := range data {
		_, ok := row["age"]
		assert.False(t, ok)
	}
}

func TestCoerceScalar(t *testing.T) {
	assert.Equal(t, 5, coerceScalar("5"))
	assert.Equal(t, true, coerceScalar("true"))
	assert.Equal(t, false, coerceScalar("false"))
	assert.Equal(t, "demo", coerceScalar("demo"))
	// Leading zeros still parse as ints.
	assert.Equal(t, 7, coerceScalar("07"))
}

func TestSeverityValidator(t *testing.T) {
	assert.NoError(t, SeverityValidator("warning"))
	assert.NoError(t, SeverityValidator("WARNING"))
	assert.Error(t, SeverityValidator("loud"))
}

func TestIngressValidator(t *testing.T) {
	assert.NoError(t, IngressValidator("all"))
	assert.NoError(t, IngressValidator("internal"))
	assert.Error(t, IngressValidator("vpc"))
}

func TestOutputValidator(t *testing.T) {
	for _, ok := range []string{"text", "json", "raw", "yaml"} {
		assert.NoError(t, OutputValidator(ok))
	}
	assert.Error(t, OutputValidator("xml"))
}
