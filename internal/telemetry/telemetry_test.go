package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := NewProvider(recorder, nil, 1)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func spanNames(spans []sdktrace.ReadOnlySpan) []string {
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	return names
}

func TestInitTracerDisabled(t *testing.T) {
	tp, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, tp)
}

func TestForumEvents(t *testing.T) {
	recorder := installRecorder(t)
	fe := &ForumEvents{tracer: otel.Tracer("forum")}

	_, span := fe.TraceCreateThread(context.Background(), "u1", []string{"go"})
	EndSpan(span, nil)
	_, span = fe.TraceModeration(context.Background(), "post", "p1", "hidden")
	EndSpan(span, errors.New("denied"))

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "forum.thread.create", ended[0].Name())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}

func TestGORMTracingPlugin(t *testing.T) {
	recorder := installRecorder(t)
	db := testutil.NewDB(t)
	require.NoError(t, db.Use(GORMTracingPlugin()))

	ctx := context.Background()
	user := testutil.CreateUser(t, db.WithContext(ctx), "alice", models.RoleMember)

	var found models.User
	require.NoError(t, db.WithContext(ctx).First(&found, "id = ?", user.ID).Error)

	names := spanNames(recorder.Ended())
	assert.Contains(t, names, "db.insert")
	assert.Contains(t, names, "db.select")
}
