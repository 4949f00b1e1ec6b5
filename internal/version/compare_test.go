package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxtech-lab/argo-backfill/pkg/errors"
)

func TestCheckSchemaCompatibility(t *testing.T) {
	compatible := []struct {
		name    string
		current string
		stored  string
	}{
		{name: "exact match", current: "1.2.0", stored: "1.2.0"},
		{name: "build patch ahead", current: "1.2.1", stored: "1.2.0"},
		{name: "cache patch ahead", current: "1.2.0", stored: "1.2.5"},
		{name: "dev build skips check", current: "main", stored: "1.2.0"},
		{name: "dev cache skips check", current: "1.2.0", stored: "main"},
		{name: "v prefix tolerated", current: "v1.2.0", stored: "1.2.0"},
		{name: "prerelease suffix ignored", current: "1.2.0-alpha", stored: "1.2.0"},
		{name: "build metadata ignored", current: "1.2.0+build123", stored: "1.2.0"},
	}

	for _, tt := range compatible {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, CheckSchemaCompatibility(tt.current, tt.stored))
		})
	}

	incompatible := []struct {
		name     string
		current  string
		stored   string
		contains string
	}{
		{name: "build minor ahead", current: "1.3.0", stored: "1.2.0", contains: "minor schema version mismatch"},
		{name: "cache minor ahead", current: "1.1.0", stored: "1.2.0", contains: "minor schema version mismatch"},
		{name: "major differs", current: "2.0.0", stored: "1.2.0", contains: "major schema version mismatch"},
	}

	for _, tt := range incompatible {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSchemaCompatibility(tt.current, tt.stored)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.True(t, errors.IsSchemaMismatchError(err))

			var mismatch *errors.SchemaMismatchError
			require.ErrorAs(t, err, &mismatch)
			assert.Equal(t, tt.current, mismatch.Build)
			assert.Equal(t, tt.stored, mismatch.Stored)
		})
	}
}

func TestCheckSchemaCompatibilityRejectsGarbage(t *testing.T) {
	err := CheckSchemaCompatibility("not-a-version", "1.2.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schema version")
	assert.False(t, errors.IsSchemaMismatchError(err))

	err = CheckSchemaCompatibility("1.2.0", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid stored schema version")
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}

func TestSchemaVersionIsValidSemver(t *testing.T) {
	require.NoError(t, CheckSchemaCompatibility(SchemaVersion, SchemaVersion))
}
