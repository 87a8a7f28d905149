package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func setBuild(t *testing.T, v, commit, built string) {
	t.Helper()
	oldV, oldC, oldB := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = oldV, oldC, oldB })
	Version, Commit, BuildTime = v, commit, built
}

func TestInfoTruncatesCommit(t *testing.T) {
	setBuild(t, "1.4.0", "0123456789abcdef", "2026-01-02")

	info := Info()
	assert.True(t, strings.HasPrefix(info, "Dashgate 1.4.0 "))
	assert.Contains(t, info, "(01234567)")
	assert.Contains(t, info, "2026-01-02")
	assert.NotContains(t, info, "89abcdef")
}

func TestLdflagsWinOverBuildInfo(t *testing.T) {
	setBuild(t, "2.0.1", "abc", "yesterday")

	b := Current()
	assert.Equal(t, "2.0.1", b.Version)
	assert.Equal(t, "abc", b.Commit)
	assert.Equal(t, "abc", b.ShortCommit())
	assert.Equal(t, "yesterday", b.BuildTime)
	assert.NotEmpty(t, b.GoVersion)
}

func TestUserAgent(t *testing.T) {
	setBuild(t, "1.4.0", "unknown", "unknown")

	assert.Equal(t, "Dashgate/1.4.0", UserAgent())
}
