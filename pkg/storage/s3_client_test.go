package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := NewMemoryClient()

	require.NoError(t, client.Upload(ctx, "bucket", "a/b.txt", strings.NewReader("payload")))

	body, err := client.Download(ctx, "bucket", "a/b.txt")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	url, err := client.GetPresignedURL(ctx, "bucket", "a/b.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, "memory://bucket/a/b.txt", url)

	require.NoError(t, client.Delete(ctx, "bucket", "a/b.txt"))
	_, err = client.Download(ctx, "bucket", "a/b.txt")
	assert.Error(t, err)
}
