package ksotel

import (
	"fmt"

	otelattr "go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	otpnoop "go.opentelemetry.io/otel/trace/noop"
)

type TracerProvider = oteltrace.TracerProvider

type Tracer = oteltrace.Tracer

type Span = oteltrace.Span

type KeyValueAttr = otelattr.KeyValue

// TracerName is the instrumentation scope name for spans
// started by the register.
const TracerName = "github.com/gordian-engine/keyedstate"

// NopTracerProvider returns the otel no-op tracer provider.
// This is intended to use as a fallback when a nil tracer provider is given.
func NopTracerProvider() TracerProvider {
	return otpnoop.NewTracerProvider()
}

// WithAttributes is an alias to [oteltrace.WithAttributes]
// to allow consumers to only reference the ksotel package.
func WithAttributes(attrs ...KeyValueAttr) oteltrace.SpanStartEventOption {
	return oteltrace.WithAttributes(attrs...)
}

// LazyValueAttr returns an attribute that uses fmt.Sprint(val)
// but only evaluates the Sprint call if the span is sampled.
func LazyValueAttr(key string, val any) KeyValueAttr {
	return otelattr.Stringer(key, lazyValue{val: val})
}

type lazyValue struct {
	val any
}

func (v lazyValue) String() string {
	return fmt.Sprint(v.val)
}

// SpanError sets the given span to error status,
// with detail from err.Error().
func SpanError(span Span, err error) {
	span.SetStatus(otelcodes.Error, err.Error())
}

// ErrorAttr returns an attribute with the key "err"
// and the lazily evaluated value of err's Error() method.
func ErrorAttr(err error) KeyValueAttr {
	return otelattr.Stringer("err", errStringer{err: err})
}

type errStringer struct {
	err error
}

func (e errStringer) String() string {
	return e.err.Error()
}

// SubscriptionIDAttr returns the attribute identifying a single subscription.
func SubscriptionIDAttr(id fmt.Stringer) KeyValueAttr {
	return otelattr.Stringer("subscription.id", id)
}
