package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	origVersion, origCommit, origBuildTime := Version, GitCommit, BuildTime
	defer func() { Version, GitCommit, BuildTime = origVersion, origCommit, origBuildTime }()

	Version = "1.2.3"
	GitCommit = "unknown"
	assert.Equal(t, "1.2.3", String())

	GitCommit = "0123456789abcdef"
	assert.Equal(t, "1.2.3-01234567", String())
}

func TestStringFull(t *testing.T) {
	origVersion, origCommit, origBuildTime := Version, GitCommit, BuildTime
	defer func() { Version, GitCommit, BuildTime = origVersion, origCommit, origBuildTime }()

	Version = "1.2.3"
	GitCommit = "unknown"
	BuildTime = "unknown"
	assert.Equal(t, "Version=1.2.3", StringFull())

	GitCommit = "0123456789abcdef"
	BuildTime = "2026-08-24T00:00:00Z"
	assert.Equal(t, "Version=1.2.3 Commit=01234567 BuildTime=2026-08-24T00:00:00Z", StringFull())
}
