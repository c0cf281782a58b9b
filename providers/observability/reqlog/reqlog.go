// Package reqlog records provider request and response payloads through the
// observability logger, with secrets redacted and a correlation id attached
// so a request can be matched with its response across log lines.
package reqlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/leofalp/aigate/internal/utils"
	"github.com/leofalp/aigate/providers/observability"
)

// defaultMaxBodyLen bounds logged payload bodies.
const defaultMaxBodyLen = 500

// redactedPaths are the JSON fields masked before a payload is logged.
// Vendor request bodies occasionally carry credentials inline (proxy
// configurations, signed URLs), so redaction runs on every payload.
var redactedPaths = []string{
	"api_key",
	"apiKey",
	"authorization",
	"headers.Authorization",
	"headers.x-api-key",
}

// mask replaces a redacted value, keeping its presence visible in logs.
const mask = "[REDACTED]"

// NewCorrelationID returns a fresh id for tying request and response log
// entries together.
func NewCorrelationID() string {
	return uuid.NewString()
}

// Redact returns body with every known credential field masked. Invalid JSON
// is returned unchanged; redaction is best effort and never fails the call.
func Redact(body string) string {
	if !gjson.Valid(body) {
		return body
	}
	for _, path := range redactedPaths {
		if gjson.Get(body, path).Exists() {
			if masked, err := sjson.Set(body, path, mask); err == nil {
				body = masked
			}
		}
	}
	return body
}

// Recorder logs one request/response exchange. The zero value is not usable;
// create one per call with Start.
type Recorder struct {
	correlationID string
	provider      string
	model         string
	startedAt     time.Time
	maxBodyLen    int
}

// Start logs the outgoing request payload at debug level and returns a
// Recorder whose Finish method logs the matching response.
func Start(ctx context.Context, provider, model, requestBody string) *Recorder {
	r := &Recorder{
		correlationID: NewCorrelationID(),
		provider:      provider,
		model:         model,
		startedAt:     time.Now(),
		maxBodyLen:    defaultMaxBodyLen,
	}

	observer := observability.ObserverFromContext(ctx)
	observer.Debug(ctx, "Provider request",
		observability.String(observability.AttrRequestCorrelationID, r.correlationID),
		observability.String(observability.AttrLLMProvider, provider),
		observability.String(observability.AttrLLMModel, model),
		observability.String("request.body", utils.TruncateString(Redact(requestBody), r.maxBodyLen)),
	)
	return r
}

// CorrelationID returns the id shared by this exchange's log entries.
func (r *Recorder) CorrelationID() string {
	return r.correlationID
}

// Finish logs the response payload, or the error if the call failed, with the
// same correlation id as the request entry.
func (r *Recorder) Finish(ctx context.Context, responseBody string, err error) {
	observer := observability.ObserverFromContext(ctx)
	attrs := []observability.Attribute{
		observability.String(observability.AttrRequestCorrelationID, r.correlationID),
		observability.String(observability.AttrLLMProvider, r.provider),
		observability.String(observability.AttrLLMModel, r.model),
		observability.Duration(observability.AttrDuration, time.Since(r.startedAt)),
	}

	if err != nil {
		attrs = append(attrs, observability.Error(err))
		observer.Error(ctx, "Provider request failed", attrs...)
		return
	}

	attrs = append(attrs, observability.String("response.body",
		utils.TruncateString(Redact(responseBody), r.maxBodyLen)))
	observer.Debug(ctx, "Provider response", attrs...)
}
