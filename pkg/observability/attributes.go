package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Semantic attributes for policy invocations.
var (
	AttrAccount  = attribute.Key("smart_account.account")
	AttrModule   = attribute.Key("smart_account.module")
	AttrHook     = attribute.Key("smart_account.hook")
	AttrTxID     = attribute.Key("smart_account.tx.id")
	AttrMsgCount = attribute.Key("smart_account.tx.msg_count")
	AttrDenom    = attribute.Key("smart_account.denom")
	AttrOutcome  = attribute.Key("smart_account.outcome")
)

// HookOperation creates attributes for a hook invocation on an account.
func HookOperation(account, module, hook string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrAccount.String(account),
		AttrModule.String(module),
		AttrHook.String(hook),
	}
}

// TxOperation creates attributes for a delivered transaction.
func TxOperation(account, txID string, msgCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrAccount.String(account),
		AttrTxID.String(txID),
		AttrMsgCount.Int(msgCount),
	}
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}
