package integration

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

// execInContainer runs cmd inside the SFTP or FTP server container and
// returns its exit code and stdout.
func execInContainer(ctx context.Context, container testcontainers.Container, cmd []string) (int, string, error) {
	exitCode, reader, err := container.Exec(ctx, cmd)
	if err != nil {
		return exitCode, "", err
	}

	var stdout bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, io.Discard, reader); err != nil {
		return exitCode, "", err
	}
	return exitCode, stdout.String(), nil
}

// writeRemoteFile leaves a stale file in the served tree, outside any sync.
func writeRemoteFile(t *testing.T, ctx context.Context, container testcontainers.Container, path string) {
	t.Helper()
	exitCode, _, err := execInContainer(ctx, container, []string{"sh", "-c", "echo stale > '" + path + "'"})
	require.NoError(t, err)
	require.Equal(t, 0, exitCode, "failed to write %s", path)
}

// assertFileExists checks that an uploaded path exists on the server
func assertFileExists(t *testing.T, ctx context.Context, container testcontainers.Container, path string) {
	t.Helper()
	exitCode, _, err := execInContainer(ctx, container, []string{"test", "-e", path})
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode, "file %s should exist", path)
}

// assertFileContains checks that an uploaded file carries every expected substring
func assertFileContains(t *testing.T, ctx context.Context, container testcontainers.Container, path string, expected []string) {
	t.Helper()
	exitCode, content, err := execInContainer(ctx, container, []string{"cat", path})
	require.NoError(t, err)
	require.Equal(t, 0, exitCode, "failed to read file %s", path)

	for _, substr := range expected {
		assert.Contains(t, content, substr, "file %s should contain %q", path, substr)
	}
}

// assertIsDirectory checks that the sync created path as a directory
func assertIsDirectory(t *testing.T, ctx context.Context, container testcontainers.Container, path string) {
	t.Helper()
	exitCode, _, err := execInContainer(ctx, container, []string{"test", "-d", path})
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode, "%s should be a directory", path)
}

// assertIsFile checks that path was uploaded as a regular file
func assertIsFile(t *testing.T, ctx context.Context, container testcontainers.Container, path string) {
	t.Helper()
	exitCode, _, err := execInContainer(ctx, container, []string{"test", "-f", path})
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode, "%s should be a regular file", path)
}

// assertNotExists checks that the erase step removed path
func assertNotExists(t *testing.T, ctx context.Context, container testcontainers.Container, path string) {
	t.Helper()
	exitCode, _, err := execInContainer(ctx, container, []string{"test", "-e", path})
	require.NoError(t, err)
	assert.NotEqual(t, 0, exitCode, "%s should not exist", path)
}

// assertCommandOutput runs cmd on the server and checks its stdout, used to
// compare the whole remote tree with the expected file list
func assertCommandOutput(t *testing.T, ctx context.Context, container testcontainers.Container, cmd []string, expectedStdout []string) {
	t.Helper()
	exitCode, output, err := execInContainer(ctx, container, cmd)
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode, "command %v should succeed", cmd)

	for _, expected := range expectedStdout {
		assert.Contains(t, output, expected, "command output should contain %q", expected)
	}
}
