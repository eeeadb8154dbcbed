package security_test

import (
	"context"
	"testing"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/security"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndList(t *testing.T) {
	db := testutil.NewDB(t)
	rec := security.NewRecorder(db)
	ctx := context.Background()

	rec.Record(ctx, security.Event{Type: models.EventLoginFailed, IP: "1.1.1.1", Details: map[string]interface{}{"identifier": "x"}})
	time.Sleep(5 * time.Millisecond)
	rec.Record(ctx, security.Event{Type: models.EventRefreshReuse, Severity: models.SeverityCritical, UserID: "u1"})

	events, total, err := rec.List(ctx, security.Filter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventRefreshReuse, events[0].Type)
	assert.Equal(t, models.SeverityInfo, events[1].Severity)
	assert.Equal(t, "x", events[1].Details["identifier"])

	events, total, err = rec.List(ctx, security.Filter{Severity: "critical", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "u1", *events[0].UserID)

	_, total, err = rec.List(ctx, security.Filter{UserID: "nobody", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRecordWithoutDatabase(t *testing.T) {
	var rec *security.Recorder
	assert.NotPanics(t, func() {
		rec.Record(context.Background(), security.Event{Type: models.EventRateLimitExceeded})
	})
}
