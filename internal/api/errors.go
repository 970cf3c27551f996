package api

import (
	"errors"
	"net/http"

	"barberbook/internal/domain"
	"barberbook/internal/service"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errBadRequest = errors.New("malformed request")

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

// describeError maps service errors onto an HTTP status and a stable error code.
// Unknown errors are reported without their text.
func describeError(err error) (int, errorResponse) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorResponse{Error: "validation_error", Message: ve.Message, Field: ve.Field}
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: err.Error()}
	case errors.Is(err, domain.ErrSlotUnavailable):
		return http.StatusConflict, errorResponse{Error: "slot_unavailable", Message: "the selected time is no longer available"}
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict, errorResponse{Error: "concurrent_modification", Message: err.Error()}
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict, errorResponse{Error: "invalid_transition", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "not_found", Message: err.Error()}
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Message: err.Error()}
	case errors.Is(err, errForbiddenBusiness):
		return http.StatusForbidden, errorResponse{Error: "forbidden", Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal", Message: "internal error"}
	}
}

func grpcError(err error) error {
	if err == nil {
		return nil
	}
	code, body := describeError(err)
	msg := body.Message
	if body.Field != "" {
		msg = body.Field + ": " + msg
	}
	switch code {
	case http.StatusBadRequest:
		return status.Error(codes.InvalidArgument, msg)
	case http.StatusNotFound:
		return status.Error(codes.NotFound, msg)
	case http.StatusTooManyRequests:
		return status.Error(codes.ResourceExhausted, msg)
	case http.StatusForbidden:
		return status.Error(codes.PermissionDenied, msg)
	case http.StatusConflict:
		if body.Error == "invalid_transition" {
			return status.Error(codes.FailedPrecondition, msg)
		}
		return status.Error(codes.Aborted, body.Error+": "+msg)
	default:
		return status.Error(codes.Internal, msg)
	}
}
