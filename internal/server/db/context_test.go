package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDFrom(t *testing.T) {
	ctx := context.Background()

	_, ok := RequestIDFrom(ctx)
	assert.False(t, ok)

	id, ok := RequestIDFrom(WithRequestID(ctx, "req-1"))
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)

	// an empty id counts as absent
	_, ok = RequestIDFrom(WithRequestID(ctx, ""))
	assert.False(t, ok)
}
