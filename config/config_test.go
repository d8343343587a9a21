package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeOverridesOnlyNonZeroFields(t *testing.T) {
	base := Default()
	override := Config{MaxComplexity: 99}

	merged := Merge(base, override)
	assert.Equal(t, 99, merged.MaxComplexity)
	assert.Equal(t, base.MaxRows, merged.MaxRows)
}

func TestMergeAllowsBoolOverride(t *testing.T) {
	base := Default()
	assert.False(t, base.AllowCrossJoins)

	merged := Merge(base, Config{AllowCrossJoins: true})
	assert.True(t, merged.AllowCrossJoins)
}

func TestValidateRejectsNonPositiveFields(t *testing.T) {
	cfg := Default()
	cfg.PoolSize = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MaxComplexity = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadFileMergesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	contents := "max_complexity: 75\npool_size: 8\n"
	assert.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, 75, cfg.MaxComplexity)
	assert.Equal(t, 8, cfg.PoolSize)
	assert.Equal(t, Default().MaxRows, cfg.MaxRows)
}

func TestLoadFileRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("not_a_real_field: 1\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
