package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracerName  = "github.com/unkn0wn-root/reststudio/internal/telemetry"
	httpHostKey = attribute.Key("http.host")
)

// Instrumenter wraps sends in spans and receives out-of-band failures such
// as history writes that could not be finalized.
type Instrumenter interface {
	Start(ctx context.Context, info SendStart) (context.Context, SendSpan)
	ReportError(ctx context.Context, op string, err error)
	Shutdown(ctx context.Context) error
}

type SendStart struct {
	Method       string
	URL          string
	Environment  string
	RequestBytes int
}

type SendResult struct {
	Err           error
	StatusCode    int
	Status        string
	ResponseBytes int
	Duration      time.Duration
	HistoryID     string
}

type SendSpan interface {
	End(result SendResult)
}

type providerOptions struct {
	exporter       sdktrace.SpanExporter
	spanProcessors []sdktrace.SpanProcessor
}

type Option func(*providerOptions)

func WithSpanProcessor(proc sdktrace.SpanProcessor) Option {
	return func(opts *providerOptions) {
		if proc != nil {
			opts.spanProcessors = append(opts.spanProcessors, proc)
		}
	}
}

func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(opts *providerOptions) {
		if exp != nil {
			opts.exporter = exp
		}
	}
}

type manager struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	shutdown sync.Once
}

func New(cfg Config, opts ...Option) (Instrumenter, error) {
	builder := providerOptions{}
	for _, opt := range opts {
		opt(&builder)
	}

	if !cfg.Enabled() && builder.exporter == nil && len(builder.spanProcessors) == 0 {
		return Noop(), nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(buildResourceAttributes(cfg)...),
	)
	if err != nil {
		return nil, err
	}

	exporter := builder.exporter
	if exporter == nil && cfg.Enabled() {
		exporter, err = newExporter(cfg)
		if err != nil {
			return nil, err
		}
	}

	var tpOpts []sdktrace.TracerProviderOption
	tpOpts = append(tpOpts, sdktrace.WithResource(res))
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	for _, proc := range builder.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(proc))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	return &manager{tracer: tp.Tracer(tracerName), provider: tp}, nil
}

func (m *manager) Start(ctx context.Context, info SendStart) (context.Context, SendSpan) {
	ctx, span := m.tracer.Start(
		ctx,
		spanNameFor(info),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(buildSpanAttributes(info)...),
	)
	return ctx, &sendSpan{span: span}
}

// ReportError attaches err to the span active in ctx. Without one, a short
// standalone span is emitted so the failure is still exported.
func (m *manager) ReportError(ctx context.Context, op string, err error) {
	if err == nil {
		return
	}
	attrs := trace.WithAttributes(attribute.String("reststudio.operation", op))
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(err, attrs)
		span.AddEvent("reststudio.error", attrs)
		return
	}
	_, span := m.tracer.Start(ctx, "reststudio."+op, attrs)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
}

func (m *manager) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	var shutdownErr error
	m.shutdown.Do(func() {
		shutdownErr = m.provider.Shutdown(ctx)
	})
	return shutdownErr
}

type sendSpan struct {
	span trace.Span
}

func (ss *sendSpan) End(result SendResult) {
	if ss == nil || ss.span == nil {
		return
	}

	if result.StatusCode > 0 {
		ss.span.SetAttributes(semconv.HTTPStatusCodeKey.Int(result.StatusCode))
	}
	if result.Status != "" {
		ss.span.SetAttributes(attribute.String("reststudio.history.status", result.Status))
	}
	if result.HistoryID != "" {
		ss.span.SetAttributes(attribute.String("reststudio.history.id", result.HistoryID))
	}
	ss.span.SetAttributes(
		attribute.Int("reststudio.response.bytes", result.ResponseBytes),
		attribute.Int64("reststudio.duration_ms", result.Duration.Milliseconds()),
	)

	statusCode := codes.Ok
	statusMsg := "OK"
	switch {
	case result.Err != nil:
		ss.span.RecordError(result.Err)
		statusCode = codes.Error
		statusMsg = result.Err.Error()
	case result.StatusCode == 0:
		statusCode = codes.Error
		statusMsg = "network error"
	case result.StatusCode >= 400:
		statusCode = codes.Error
		statusMsg = fmt.Sprintf("HTTP %d", result.StatusCode)
	}

	ss.span.SetStatus(statusCode, statusMsg)
	ss.span.End()
}

func Noop() Instrumenter {
	return noopInstrumenter{}
}

type noopInstrumenter struct{}

type noopSpan struct{}

func (noopInstrumenter) Start(ctx context.Context, _ SendStart) (context.Context, SendSpan) {
	return ctx, noopSpan{}
}

func (noopInstrumenter) ReportError(context.Context, string, error) {}

func (noopInstrumenter) Shutdown(context.Context) error { return nil }

func (noopSpan) End(SendResult) {}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("telemetry endpoint is required")
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	client := otlptracegrpc.NewClient(clientOpts...)
	return otlptrace.New(ctx, client)
}

func buildResourceAttributes(cfg Config) []attribute.KeyValue {
	name := cfg.ServiceName
	if strings.TrimSpace(name) == "" {
		name = defaultServiceName
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
	}
	if strings.TrimSpace(cfg.Version) != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Version))
	}
	return attrs
}

func buildSpanAttributes(info SendStart) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int("reststudio.request.bytes", info.RequestBytes),
	}
	if info.Method != "" {
		attrs = append(attrs, semconv.HTTPMethodKey.String(info.Method))
	}
	if env := strings.TrimSpace(info.Environment); env != "" {
		attrs = append(attrs, attribute.String("reststudio.environment", env))
	}
	if u, err := url.Parse(info.URL); err == nil && u.Host != "" {
		if u.Scheme != "" {
			attrs = append(attrs, semconv.HTTPSchemeKey.String(u.Scheme))
		}
		attrs = append(attrs, httpHostKey.String(u.Host))
		attrs = append(attrs, semconv.HTTPTargetKey.String(u.RequestURI()))
		attrs = append(attrs, semconv.HTTPURLKey.String(u.String()))
	}
	return attrs
}

func spanNameFor(info SendStart) string {
	method := info.Method
	if method == "" {
		method = "SEND"
	}
	if u, err := url.Parse(info.URL); err == nil && u.Host != "" {
		return fmt.Sprintf("%s %s", method, u.Host)
	}
	return method
}
