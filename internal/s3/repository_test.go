package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r, err := New(
		WithRegion("us-east-1"),
		WithBucket("results"),
		WithPrefix("exports/run-1"),
		WithEndpoint("http://localhost:4566"),
		WithForcePathStyle(true),
	)
	require.NoError(t, err)

	cfg := r.awsConfig()
	assert.Equal(t, "us-east-1", *cfg.Region)
	assert.Equal(t, "http://localhost:4566", *cfg.Endpoint)
	assert.True(t, *cfg.S3ForcePathStyle)

	assert.Equal(t, "exports/run-1/users.jsonl", r.ObjectKey("users.jsonl"))
}
