package observability

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/atelier-goods/api/internal/platform/requestctx"
)

const traceparentHeader = "traceparent"

// TraceMiddleware reads the W3C traceparent header, minting fresh identifiers
// when the header is absent or malformed, and stores the trace metadata on the
// request context so logs can be correlated across services.
func TraceMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			info, ok := parseTraceparent(r.Header.Get(traceparentHeader))
			if !ok {
				info = newTraceInfo()
			}

			ctx = requestctx.WithTrace(ctx, info)
			r = r.WithContext(ctx)

			w.Header().Set(traceparentHeader, formatTraceparent(info))
			next.ServeHTTP(w, r)
		})
	}
}

// parseTraceparent accepts "00-<32 hex>-<16 hex>-<2 hex>" per the W3C Trace
// Context spec. Anything else is rejected and a new trace starts.
func parseTraceparent(header string) (requestctx.TraceInfo, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return requestctx.TraceInfo{}, false
	}

	parts := strings.Split(header, "-")
	if len(parts) != 4 {
		return requestctx.TraceInfo{}, false
	}
	version, traceID, spanID, flags := parts[0], parts[1], parts[2], parts[3]
	if version != "00" || len(traceID) != 32 || len(spanID) != 16 || len(flags) != 2 {
		return requestctx.TraceInfo{}, false
	}
	if !isHex(traceID) || !isHex(spanID) || !isHex(flags) {
		return requestctx.TraceInfo{}, false
	}
	if traceID == strings.Repeat("0", 32) || spanID == strings.Repeat("0", 16) {
		return requestctx.TraceInfo{}, false
	}

	return requestctx.TraceInfo{
		TraceID: strings.ToLower(traceID),
		SpanID:  strings.ToLower(spanID),
		Sampled: strings.HasSuffix(strings.ToLower(flags), "1"),
	}, true
}

func newTraceInfo() requestctx.TraceInfo {
	return requestctx.TraceInfo{
		TraceID: randomHex(16),
		SpanID:  randomHex(8),
		Sampled: false,
	}
}

func randomHex(bytes int) string {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return strings.Repeat("0", bytes*2)
	}
	return hex.EncodeToString(buf)
}

func isHex(value string) bool {
	if value == "" {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}

func formatTraceparent(info requestctx.TraceInfo) string {
	flags := "00"
	if info.Sampled {
		flags = "01"
	}
	return fmt.Sprintf("00-%s-%s-%s", info.TraceID, info.SpanID, flags)
}
