package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"clubline-hq/saturn/pkg/admission"
	"clubline-hq/saturn/pkg/identity"
	"clubline-hq/saturn/pkg/telemetry/logging"
)

// Rate-limit response headers.
const (
	HeaderLimit       = "X-RateLimit-Limit"
	HeaderRemaining   = "X-RateLimit-Remaining"
	HeaderReset       = "X-RateLimit-Reset"
	HeaderOverageCost = "X-Overage-Cost-USD"
)

// denialBody is the JSON payload of a denied request.
type denialBody struct {
	Error denialError `json:"error"`
}

type denialError struct {
	Type              string  `json:"type"`
	Limit             string  `json:"limit,omitempty"`
	Message           string  `json:"message"`
	RetryAfterSeconds float64 `json:"retry_after_seconds"`
}

// admissionHandler judges each request and proxies admitted ones to the
// upstream. The concurrency slot claimed by the decision is held for the
// full request lifetime and released when the response is done, so the
// in-flight count reflects actual upstream load.
func (s *Server) admissionHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := identity.FromRequest(r)
		endpoint := strings.Trim(r.URL.Path, "/")

		res := s.controller.Decide(ctx, id, endpoint)
		defer func() {
			// The request context dies with the client; cleanup must
			// still reach the counter stores after an abort.
			cleanup := context.WithoutCancel(ctx)
			s.controller.Release(cleanup, id, res)
			if s.recorder != nil {
				s.recorder.Record(cleanup, id, endpoint, res, map[string]string{
					"request_id": logging.GetRequestID(ctx),
					"method":     r.Method,
				})
			}
		}()

		writeRateLimitHeaders(w, res)

		if !res.Allowed {
			writeDenial(w, res)
			return
		}

		if res.Overage() {
			w.Header().Set(HeaderOverageCost, strconv.FormatFloat(res.OverageCost, 'f', -1, 64))
		}

		if s.upstream == nil {
			// Decision-only mode.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.upstream.ServeHTTP(w, r)
	})
}

func writeRateLimitHeaders(w http.ResponseWriter, res *admission.Result) {
	h := w.Header()
	if res.Limits.Unlimited {
		h.Set(HeaderLimit, "unlimited")
		h.Set(HeaderRemaining, "unlimited")
		return
	}
	h.Set(HeaderLimit, strconv.FormatFloat(res.Limits.RequestsPerHour, 'f', -1, 64))
	h.Set(HeaderRemaining, strconv.FormatFloat(res.RemainingHourly(), 'f', -1, 64))
	if res.Usage.Hourly.TimeRemaining > 0 {
		h.Set(HeaderReset, strconv.FormatInt(int64(math.Ceil(res.Usage.Hourly.TimeRemaining.Seconds())), 10))
	}
}

func writeDenial(w http.ResponseWriter, res *admission.Result) {
	retrySeconds := res.RetryAfter.Seconds()
	if retrySeconds > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(math.Ceil(retrySeconds)), 10))
	}
	w.Header().Set("Content-Type", "application/json")

	// A denial without a named limit means the failure policy denied it.
	status := http.StatusTooManyRequests
	body := denialBody{Error: denialError{
		Type:              "rate_limit_exceeded",
		Limit:             string(res.LimitTypeHit),
		Message:           denialMessage(res.LimitTypeHit),
		RetryAfterSeconds: retrySeconds,
	}}
	if res.LimitTypeHit == admission.LimitNone {
		status = http.StatusServiceUnavailable
		body.Error = denialError{
			Type:              "admission_unavailable",
			Message:           "admission checks are temporarily unavailable",
			RetryAfterSeconds: retrySeconds,
		}
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func denialMessage(limit admission.LimitType) string {
	switch limit {
	case admission.LimitHourly:
		return "hourly request quota exceeded"
	case admission.LimitBurst:
		return "per-minute burst quota exceeded"
	case admission.LimitConcurrent:
		return "too many concurrent requests"
	default:
		return "request denied"
	}
}
