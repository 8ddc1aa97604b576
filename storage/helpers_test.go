package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ruteri/storage-adapters/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgresBackend_TableName(t *testing.T) {
	_, err := NewPostgresBackend("postgres://localhost/blobs", "blobs; DROP TABLE x", nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	// sql.Open does not connect, so a valid name succeeds offline.
	b, err := NewPostgresBackend("postgres://localhost/blobs", "", nil)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, `"storage_blobs"`, b.table)
	assert.Equal(t, "storage.postgres", b.TypeName())
}

func TestVaultBackend_SecretPath(t *testing.T) {
	b := &VaultBackend{mountPath: "secret", dataPath: "blobs"}
	assert.Equal(t, "secret/data/blobs/f1/a.txt", b.secretPath("data", "/f1/a.txt"))
	assert.Equal(t, "secret/metadata/blobs/f1/a.txt", b.secretPath("metadata", "f1/a.txt"))

	b.dataPath = ""
	assert.Equal(t, "secret/data/f1/a.txt", b.secretPath("data", "f1/a.txt"))
}

func TestParseVaultTime(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)
	assert.True(t, parseVaultTime(ts.Format(time.RFC3339Nano)).Equal(ts))
	assert.True(t, parseVaultTime("yesterday").IsZero())
	assert.True(t, parseVaultTime(42).IsZero())
}

func TestS3Backend_ObjectKey(t *testing.T) {
	b := &S3Backend{}
	assert.Equal(t, "f1/a.txt", b.objectKey("f1/a.txt"))

	b.prefix = "tenant"
	assert.Equal(t, "tenant/f1/a.txt", b.objectKey("f1/a.txt"))
}

func TestIsS3NotFound(t *testing.T) {
	assert.True(t, isS3NotFound(awserr.New(s3.ErrCodeNoSuchKey, "gone", nil)))
	assert.True(t, isS3NotFound(awserr.New("NotFound", "gone", nil)))
	assert.False(t, isS3NotFound(awserr.New("AccessDenied", "no", nil)))
	assert.False(t, isS3NotFound(errors.New("connection reset")))
}
