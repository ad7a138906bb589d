package http

import (
	"errors"
	"net/http"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeValidationFailed    = "validation_failed"
	codeInvalidID           = "invalid_id"
	codeInvalidQuantity     = "invalid_quantity"
	codeInvalidPrice        = "invalid_price"
	codeInvalidOutcome      = "invalid_status"
	codeIdempotencyRequired = "idempotency_key_required"
	codeNameRequired        = "product_name_required"
	codeProductNotFound     = "product_not_found"
	codeHoldNotFound        = "hold_not_found"
	codeOrderNotFound       = "order_not_found"
	codeOrderNotReady       = "order_not_ready"
	codeInsufficientStock   = "insufficient_stock"
	codeHoldAlreadyUsed     = "hold_already_used"
	codeHoldReleased        = "hold_released"
	codeHoldExpired         = "hold_expired"
	codeTransient           = "transient"
	codeForbidden           = "forbidden"
	codeInternalError       = "internal_error"
)

// retryAfterSeconds is sent with every 503 so clients back off before retrying.
const retryAfterSeconds = "5"

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Error: msg,
		Code:  code,
	})
}

// writeBindError answers a failed ShouldBindJSON: malformed JSON is a 400,
// well-formed input that fails validation is a 422.
func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		writeError(c, http.StatusUnprocessableEntity, codeValidationFailed, verrs.Error())
		return
	}
	writeError(c, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
}

// writeDomainError maps an engine error onto the HTTP error envelope. Errors
// that fall through to 500 are attached to the context for the request logger.
func writeDomainError(c *gin.Context, err error) {
	status, code := classify(err)
	switch status {
	case http.StatusInternalServerError:
		_ = c.Error(err)
		writeError(c, status, code, "internal error")
		return
	case http.StatusServiceUnavailable:
		_ = c.Error(err)
		c.Header("Retry-After", retryAfterSeconds)
	}
	writeError(c, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, codeProductNotFound
	case errors.Is(err, domain.ErrHoldNotFound):
		return http.StatusNotFound, codeHoldNotFound
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, codeOrderNotFound
	case errors.Is(err, domain.ErrHoldAlreadyUsed):
		return http.StatusConflict, codeHoldAlreadyUsed
	case errors.Is(err, domain.ErrHoldReleased):
		return http.StatusConflict, codeHoldReleased
	case errors.Is(err, domain.ErrHoldExpired):
		return http.StatusConflict, codeHoldExpired
	case errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest, codeInvalidID
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusUnprocessableEntity, codeInvalidQuantity
	case errors.Is(err, domain.ErrInvalidPrice):
		return http.StatusUnprocessableEntity, codeInvalidPrice
	case errors.Is(err, domain.ErrInvalidOutcome):
		return http.StatusUnprocessableEntity, codeInvalidOutcome
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return http.StatusUnprocessableEntity, codeIdempotencyRequired
	case errors.Is(err, domain.ErrProductNameRequired):
		return http.StatusUnprocessableEntity, codeNameRequired
	}

	switch domain.Kind(err) {
	case domain.KindInsufficientStock:
		return http.StatusConflict, codeInsufficientStock
	case domain.KindTransient:
		return http.StatusServiceUnavailable, codeTransient
	case domain.KindInvalidInput:
		return http.StatusUnprocessableEntity, codeValidationFailed
	case domain.KindNotFound:
		return http.StatusNotFound, codeNotFound
	default:
		return http.StatusInternalServerError, codeInternalError
	}
}
