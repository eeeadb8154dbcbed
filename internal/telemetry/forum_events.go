package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ForumEvents opens spans for domain operations that outlive a single query
type ForumEvents struct {
	tracer trace.Tracer
}

var (
	forumEvents     *ForumEvents
	forumEventsOnce sync.Once
)

// Events returns the shared ForumEvents. The tracer is resolved lazily from
// the global provider so InitTracer may run first.
func Events() *ForumEvents {
	forumEventsOnce.Do(func() {
		forumEvents = &ForumEvents{tracer: otel.Tracer("forum")}
	})
	return forumEvents
}

func (fe *ForumEvents) TraceCreateThread(ctx context.Context, authorID string, tags []string) (context.Context, trace.Span) {
	return fe.tracer.Start(ctx, "forum.thread.create",
		trace.WithAttributes(
			attribute.String("user.id", authorID),
			attribute.StringSlice("thread.tags", tags),
		),
	)
}

func (fe *ForumEvents) TraceCreatePost(ctx context.Context, threadID string, isReply bool) (context.Context, trace.Span) {
	return fe.tracer.Start(ctx, "forum.post.create",
		trace.WithAttributes(
			attribute.String("thread.id", threadID),
			attribute.Bool("post.is_reply", isReply),
		),
	)
}

// TraceModeration covers a status change on a thread or post
func (fe *ForumEvents) TraceModeration(ctx context.Context, target, targetID, status string) (context.Context, trace.Span) {
	return fe.tracer.Start(ctx, "forum.moderation",
		trace.WithAttributes(
			attribute.String("moderation.target", target),
			attribute.String("moderation.target_id", targetID),
			attribute.String("moderation.status", status),
		),
	)
}

func (fe *ForumEvents) TraceSearch(ctx context.Context, backend, query string) (context.Context, trace.Span) {
	return fe.tracer.Start(ctx, "forum.search",
		trace.WithAttributes(
			attribute.String("search.backend", backend),
			attribute.Int("search.query_length", len(query)),
		),
	)
}

func (fe *ForumEvents) TraceNotify(ctx context.Context, candidates int) (context.Context, trace.Span) {
	return fe.tracer.Start(ctx, "forum.notify",
		trace.WithAttributes(attribute.Int("notify.candidates", candidates)),
	)
}

// EndSpan records err, if any, and ends span
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	span.End()
}
