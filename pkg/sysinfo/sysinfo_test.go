package sysinfo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParserGetLines(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f", "one\n\n# comment\n  two  \n")

	lines, err := NewParser().GetLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestParserGetLinesErrors(t *testing.T) {
	p := NewParser()

	_, err := p.GetLines("")
	assert.Error(t, err)

	_, err = p.GetLines(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestParserGetMap(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "os-release",
		"NAME=\"Ubuntu\"\nPRETTY_NAME=\"Ubuntu 24.04 LTS\"\nID=ubuntu\nBROKEN_LINE\nEMPTY=\n")

	params, err := NewParser(WithVTrimChars(`"'`)).GetMap(path)
	require.NoError(t, err)

	assert.Equal(t, "Ubuntu 24.04 LTS", params["PRETTY_NAME"])
	assert.Equal(t, "ubuntu", params["ID"])
	assert.NotContains(t, params, "BROKEN_LINE")
	assert.NotContains(t, params, "EMPTY")
}

func TestParserGetMapColonDelimiter(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "meminfo", "MemTotal:       16384256 kB\nMemFree:        1024 kB\n")

	params, err := NewParser(WithKVDelimiter(":")).GetMap(path)
	require.NoError(t, err)
	assert.Equal(t, "16384256 kB", params["MemTotal"])
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	orig := struct{ kernel, meminfo, osrel string }{kernelReleasePath, meminfoPath, osReleasePathPrimary}
	t.Cleanup(func() {
		kernelReleasePath = orig.kernel
		meminfoPath = orig.meminfo
		osReleasePathPrimary = orig.osrel
	})

	kernelReleasePath = writeFile(t, dir, "osrelease", "6.8.0-31-generic\n")
	meminfoPath = writeFile(t, dir, "meminfo", "MemTotal:       16777216 kB\n")
	osReleasePathPrimary = writeFile(t, dir, "os-release", "PRETTY_NAME=\"Debian GNU/Linux 12\"\n")

	env := Collect(context.Background())

	assert.Equal(t, "6.8.0-31-generic", env.Kernel)
	assert.Equal(t, "Debian GNU/Linux 12", env.OS)
	assert.InDelta(t, 16.0, env.MemoryGB, 0.01)
	assert.Positive(t, env.CPUCount)
	assert.NotEmpty(t, env.Arch)
}

func TestCollectDegradesGracefully(t *testing.T) {
	orig := struct{ kernel, meminfo, osrelP, osrelS string }{
		kernelReleasePath, meminfoPath, osReleasePathPrimary, osReleasePathSecondary,
	}
	t.Cleanup(func() {
		kernelReleasePath = orig.kernel
		meminfoPath = orig.meminfo
		osReleasePathPrimary = orig.osrelP
		osReleasePathSecondary = orig.osrelS
	})

	dir := t.TempDir()
	kernelReleasePath = filepath.Join(dir, "nope")
	meminfoPath = filepath.Join(dir, "nope")
	osReleasePathPrimary = filepath.Join(dir, "nope")
	osReleasePathSecondary = filepath.Join(dir, "nope")

	env := Collect(context.Background())

	assert.Equal(t, "unknown", env.Kernel)
	assert.Equal(t, "unknown", env.OS)
	assert.Zero(t, env.MemoryGB)
}
