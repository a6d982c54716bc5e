package api_response

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/okieraised/ahu-fdd/internal/constants"
	"github.com/stretchr/testify/assert"
)

func TestOK_UsesContextRequestID(t *testing.T) {
	ctx := context.WithValue(context.Background(), constants.APIFieldRequestID, "req-1") //nolint:staticcheck
	resp := OK(ctx, []string{"fc1"}).WithCount(1).WithMetaKV("site_id", "site-a")

	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "site-a", resp.Meta["site_id"])
	assert.NotZero(t, resp.ServerTime)
}

func TestError_MintsRequestID(t *testing.T) {
	resp := Error[any](context.Background(), "460006", "unknown fault rule")
	_, err := uuid.Parse(resp.RequestID)
	assert.NoError(t, err)
	assert.Equal(t, "460006", resp.Code)
	assert.Nil(t, resp.Data)
}
