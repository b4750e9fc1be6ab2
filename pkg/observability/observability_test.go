package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "smart-account", config.ServiceName)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
	require.Equal(t, 1.0, config.SampleRate)
	require.False(t, config.Enabled)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)
	require.False(t, p.Enabled())

	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Meter())
}

func TestNewProviderWithNilConfig(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)
	require.False(t, p.Enabled())
}

func TestTrackOperation(t *testing.T) {
	p := Disabled()

	newCtx, finish := p.TrackOperation(context.Background(), "policy.pre_execute",
		HookOperation("aura1acct", "spend-limit", "pre_execute")...)
	require.NotNil(t, newCtx)
	time.Sleep(time.Millisecond)
	finish(nil)

	_, finish = p.TrackOperation(context.Background(), "policy.after_execute")
	finish(errors.New("limit exceeded"))
}

func TestRecordMetricsDisabled(t *testing.T) {
	p := Disabled()
	ctx := context.Background()

	p.RecordRequest(ctx, attribute.String("test", "value"))
	p.RecordError(ctx, errors.New("test"), attribute.String("test", "value"))
	p.RecordDuration(ctx, 100*time.Millisecond, attribute.String("test", "value"))
	AddSpanEvent(ctx, "charge", AttrDenom.String("uaura"))
}

func TestShutdown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, Disabled().Shutdown(ctx))
}

func TestHookOperation(t *testing.T) {
	attrs := HookOperation("aura1acct", "recovery", "recover")
	require.Len(t, attrs, 3)
	require.Equal(t, "smart_account.module", string(attrs[1].Key))
	require.Equal(t, "recovery", attrs[1].Value.AsString())
}

func TestTxOperation(t *testing.T) {
	attrs := TxOperation("aura1acct", "tx-1", 2)
	require.Len(t, attrs, 3)
	require.Equal(t, int64(2), attrs[2].Value.AsInt64())
}
