package tracing

import (
	"context"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartJobSpanTags(t *testing.T) {
	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)

	span, _ := StartJobSpan(context.Background(), "jobs.RunJob", 7, "co-abc")
	span.Finish()

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "jobs.RunJob", spans[0].OperationName)
	assert.Equal(t, int64(7), spans[0].Tags()["job.id"])
	assert.Equal(t, "co-abc", spans[0].Tags()["job.coconut_id"])
}

func TestStartJobSpanBeforeSubmission(t *testing.T) {
	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)

	// No remote reference yet; the tag stays off rather than empty.
	span, _ := StartJobSpan(context.Background(), "jobs.RunJob", 7, "")
	span.Finish()

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	assert.NotContains(t, spans[0].Tags(), "job.coconut_id")
}
