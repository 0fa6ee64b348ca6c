package server

import (
	"encoding/json"
	"errors"
	"net/http"

	bulletsmithErrors "bulletsmith/internal/errors"
	"bulletsmith/internal/observability"
	"bulletsmith/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// createReviseHandler wraps the revise handler with observability
func (s *Server) createReviseHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("bulletsmith.api")
		ctx, span := tracer.Start(ctx, "api.revise")
		defer span.End()

		if r.Method != http.MethodPost {
			writeErrorResponse(w, "Method not allowed", "Only POST is supported", http.StatusMethodNotAllowed)
			return
		}

		// Parse request. Field-level validation happens inside the pipeline,
		// so rejected inputs count toward the job outcome metrics.
		var input types.JobInput
		if err := parseJSONRequest(r, &input); err != nil {
			span.SetAttributes(attribute.String("error.type", "validation"))
			span.RecordError(err)
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		span.SetAttributes(
			attribute.Int("request.bullet_count", len(input.Bullets)),
			attribute.Int("request.description_length", len(input.Description)),
			attribute.String("operation", "revise"),
		)

		// The same caller key feeds the request limiter and the spend ledger,
		// so denials and usage line up per API key or client IP
		output, err := s.pipeline.ExecuteForCaller(ctx, callerKey(r), input)
		if err != nil {
			span.RecordError(err)
			status, title, message, errType := reviseErrorResponse(err)
			span.SetAttributes(attribute.String("error.type", errType))
			writeErrorResponse(w, title, message, status)
			return
		}

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.String("job.id", output.JobID),
			attribute.Int("response.red_flags", len(output.RedFlags)),
		)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(output); err != nil {
			// Headers are gone by now, so the client sees a truncated body.
			span.RecordError(err)
			s.Logger.Warn("Failed to encode revise response", "error", err)
		}
	}
}

// reviseErrorResponse maps a pipeline error onto an HTTP status and a safe
// response body. Wrapped causes stay in logs and spans; only the structured
// message reaches the caller.
func reviseErrorResponse(err error) (status int, title, message, errType string) {
	var appErr *bulletsmithErrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, "Job failed", "internal error", "internal"
	}

	switch {
	case appErr.Code == bulletsmithErrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests, "Rate limit exceeded", appErr.Message, "rate_limit"
	case appErr.Code == bulletsmithErrors.ErrCodeBudgetExceeded:
		return http.StatusTooManyRequests, "Budget exceeded", appErr.Message, "budget"
	case appErr.Type == bulletsmithErrors.ErrorTypeValidation:
		return http.StatusBadRequest, "Invalid input", appErr.Message, "validation"
	default:
		return http.StatusInternalServerError, "Job failed", appErr.Message, string(appErr.Type)
	}
}
