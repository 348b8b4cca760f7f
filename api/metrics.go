package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	mutationEventName   = "kanban.mutation"
	mutationEventDomain = "kanban"
	tracerName          = "useteam-api"
)

// mutationMetrics instruments the structural mutation routes (moves
// and reorders): one span per request plus an observability event on
// the structured log.
type mutationMetrics struct {
	logger          *log.Logger
	span            trace.Span
	route           string
	start           time.Time
	persistDuration time.Duration
	errorStage      string
}

func newMutationMetrics(ctx context.Context, logger *log.Logger, route string) (*mutationMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, route)
	return &mutationMetrics{
		logger: logger,
		span:   span,
		route:  route,
		start:  time.Now(),
	}, spanCtx
}

func (m *mutationMetrics) ObservePersist(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.persistDuration = duration
}

func (m *mutationMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *mutationMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	total := durationToMillis(time.Since(m.start))
	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64("kanban.mutation.total_ms", total),
	}
	if m.persistDuration > 0 {
		attrs = append(attrs, attribute.Float64("kanban.mutation.persist_ms", durationToMillis(m.persistDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("kanban.mutation.error_stage", m.errorStage))
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		if err != nil {
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		} else if status < 400 {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.AddEvent("observability.event", trace.WithAttributes(attrs...))
		m.span.End()
	}

	if m.logger == nil {
		return
	}

	attrMap := map[string]any{
		"http.route":               m.route,
		"http.status_code":         status,
		"kanban.mutation.total_ms": total,
	}
	if m.persistDuration > 0 {
		attrMap["kanban.mutation.persist_ms"] = durationToMillis(m.persistDuration)
	}
	if m.errorStage != "" {
		attrMap["kanban.mutation.error_stage"] = m.errorStage
	}

	severityText, severityNumber := severityForStatus(status)
	fields := log.Fields{
		"event.name":      mutationEventName,
		"event.domain":    mutationEventDomain,
		"attributes":      attrMap,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}

	entry := m.logger.WithFields(fields)
	switch {
	case status >= 500:
		entry.Error("observability.event")
	case status >= 400:
		entry.Warn("observability.event")
	default:
		entry.Info("observability.event")
	}
}

func severityForStatus(status int) (string, int) {
	switch {
	case status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
