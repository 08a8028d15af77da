package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartDetachedWithPath(t *testing.T) {
	const echo = "/bin/echo"
	if _, err := os.Stat(echo); err != nil {
		t.Skip("no /bin/echo on this system")
	}

	pid, err := StartDetachedWithPath(echo, "--detach-test")
	require.NoError(t, err)
	assert.Positive(t, pid)
}

func TestStartDetachedWithPath_MissingExecutable(t *testing.T) {
	_, err := StartDetachedWithPath(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
