package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"landledger/internal/platform/config"
	dErrors "landledger/pkg/domain-errors"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OTelConfig{Enabled: true}, "landledger")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestEndMarksOnlyServerFailures(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := Start(context.Background(), "land.Claim", attribute.String("land_id", "x"))
	End(span, dErrors.New(dErrors.CodeNotVerified, "user is not verified"))

	_, span = Start(context.Background(), "transfer.Approve")
	End(span, dErrors.New(dErrors.CodeIntegrityViolation, "mismatch"))

	_, span = Start(context.Background(), "relay")
	End(span, errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, codes.Error, spans[2].Status().Code)
}
