package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion(t *testing.T) {
	assert.NotEmpty(t, GetVersion())

	orig := version
	t.Cleanup(func() { version = orig })
	version = "v1.4.0"
	assert.Equal(t, "v1.4.0", GetVersion())
}

func TestBuildInfo(t *testing.T) {
	assert.Equal(t, "unknown", GetCommit())
	assert.Equal(t, "unknown", GetBuildDate())
}
