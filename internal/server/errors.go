package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	addressdomain "github.com/smallbiznis/storefront/internal/address/domain"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/authorization"
	coupondomain "github.com/smallbiznis/storefront/internal/coupon/domain"
	inventorydomain "github.com/smallbiznis/storefront/internal/inventory/domain"
	invoicedomain "github.com/smallbiznis/storefront/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	pricingdomain "github.com/smallbiznis/storefront/internal/pricing/domain"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"github.com/smallbiznis/storefront/pkg/db"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
	Details map[string]any    `json:"details,omitempty"`
}

type errorResponse struct {
	Success bool         `json:"success"`
	Error   errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Success: false, Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, internalPayload()
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    code,
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	if coupondomain.IsCouponRejection(err) {
		return http.StatusUnprocessableEntity, couponPayload(err)
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, authorization.ErrInvalidRole):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Code:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Code:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    notFoundCode(err),
			Message: "not found",
		}
	case isDuplicateError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    duplicateCode(err),
			Message: "already exists",
		}
	case isStateConflict(err):
		return http.StatusConflict, conflictPayload(err)
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Code:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Code:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, internalPayload()
	}
}

// classifyErrorForLog returns the type and code a request log line carries.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, payload.Code
}

func internalPayload() errorPayload {
	return errorPayload{
		Type:    "internal_error",
		Code:    "internal_error",
		Message: "something went wrong",
	}
}

func couponPayload(err error) errorPayload {
	payload := errorPayload{Type: "coupon_error"}

	var below *coupondomain.BelowMinimumOrderError
	switch {
	case errors.As(err, &below):
		payload.Code = coupondomain.ErrBelowMinimumOrder.Error()
		payload.Message = below.Error()
		payload.Details = map[string]any{
			"min_order_amount": below.Minimum.StringFixed(2),
			"subtotal":         below.Subtotal.StringFixed(2),
			"shortfall":        below.Shortfall().StringFixed(2),
		}
	case errors.Is(err, coupondomain.ErrCouponNotFound):
		payload.Code = coupondomain.ErrCouponNotFound.Error()
		payload.Message = "coupon code is not valid"
	case errors.Is(err, coupondomain.ErrCouponNotYetActive):
		payload.Code = coupondomain.ErrCouponNotYetActive.Error()
		payload.Message = "coupon is not active yet"
	case errors.Is(err, coupondomain.ErrCouponExpired):
		payload.Code = coupondomain.ErrCouponExpired.Error()
		payload.Message = "coupon has expired"
	case errors.Is(err, coupondomain.ErrCouponExhausted):
		payload.Code = coupondomain.ErrCouponExhausted.Error()
		payload.Message = "coupon usage limit has been reached"
	default:
		payload.Code = coupondomain.ErrBelowMinimumOrder.Error()
		payload.Message = "minimum order amount not reached"
	}
	return payload
}

func conflictPayload(err error) errorPayload {
	payload := errorPayload{Type: "conflict", Message: err.Error()}

	var transition *orderdomain.InvalidTransitionError
	var priceChanged *orderdomain.PriceChangedError
	var insufficient *inventorydomain.InsufficientStockError
	switch {
	case errors.As(err, &transition):
		payload.Code = orderdomain.ErrInvalidTransition.Error()
		payload.Message = transition.Error()
		payload.Details = map[string]any{
			"from":    string(transition.From),
			"to":      string(transition.To),
			"allowed": transition.From.AllowedTransitions(),
		}
	case errors.As(err, &priceChanged):
		payload.Code = orderdomain.ErrPriceChanged.Error()
		payload.Message = priceChanged.Error()
		payload.Details = map[string]any{
			"expected_total": priceChanged.Expected.StringFixed(2),
			"actual_total":   priceChanged.Actual.StringFixed(2),
		}
	case errors.As(err, &insufficient):
		payload.Code = inventorydomain.ErrInsufficientStock.Error()
		payload.Message = insufficient.Error()
		payload.Details = map[string]any{
			"variant_id": insufficient.VariantID.String(),
			"requested":  insufficient.Requested,
		}
	default:
		payload.Code = stateConflictCode(err)
	}
	return payload
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationSentinels = []error{
	ErrInvalidRequest,
	coupondomain.ErrInvalidID,
	coupondomain.ErrInvalidCode,
	coupondomain.ErrInvalidDiscountType,
	coupondomain.ErrInvalidDiscountValue,
	coupondomain.ErrInvalidMinOrderAmount,
	coupondomain.ErrInvalidWindow,
	coupondomain.ErrInvalidMaxUsage,
	coupondomain.ErrInvalidSubtotal,
	productdomain.ErrInvalidName,
	productdomain.ErrInvalidSKU,
	productdomain.ErrInvalidPrice,
	productdomain.ErrInvalidStock,
	productdomain.ErrInvalidID,
	inventorydomain.ErrInvalidID,
	inventorydomain.ErrInvalidQuantity,
	inventorydomain.ErrInvalidReason,
	orderdomain.ErrInvalidID,
	orderdomain.ErrInvalidStatus,
	orderdomain.ErrInvalidFulfillmentStatus,
	orderdomain.ErrReopenReasonRequired,
	orderdomain.ErrInvalidShipment,
	orderdomain.ErrInvalidPageToken,
	addressdomain.ErrInvalidID,
	addressdomain.ErrInvalidUser,
	addressdomain.ErrInvalidFullName,
	addressdomain.ErrInvalidLine1,
	addressdomain.ErrInvalidCity,
	addressdomain.ErrInvalidPostalCode,
	addressdomain.ErrInvalidCountry,
	auditdomain.ErrInvalidPageToken,
	auditdomain.ErrInvalidTimeRange,
	auditdomain.ErrInvalidAction,
	auditdomain.ErrInvalidEntityType,
	auditdomain.ErrInvalidEntityID,
}

func isValidationError(err error) bool {
	if pricingdomain.IsValidationError(err) {
		return true
	}
	return matchSentinel(err, validationSentinels) != nil
}

var notFoundSentinels = []error{
	ErrNotFound,
	productdomain.ErrNotFound,
	productdomain.ErrVariantNotFound,
	inventorydomain.ErrLevelNotFound,
	orderdomain.ErrOrderNotFound,
	orderdomain.ErrFulfillmentNotFound,
	addressdomain.ErrNotFound,
	gorm.ErrRecordNotFound,
}

func isNotFoundError(err error) bool {
	return matchSentinel(err, notFoundSentinels) != nil
}

func notFoundCode(err error) string {
	if target := matchSentinel(err, notFoundSentinels); target != nil && target != gorm.ErrRecordNotFound {
		return target.Error()
	}
	return "not_found"
}

var duplicateSentinels = []error{
	coupondomain.ErrCouponCodeTaken,
	productdomain.ErrSKUTaken,
	productdomain.ErrSlugTaken,
	inventorydomain.ErrLevelExists,
}

func isDuplicateError(err error) bool {
	return matchSentinel(err, duplicateSentinels) != nil || db.IsDuplicateKeyErr(err)
}

func duplicateCode(err error) string {
	if target := matchSentinel(err, duplicateSentinels); target != nil {
		return target.Error()
	}
	return "already_exists"
}

var stateConflictSentinels = []error{
	orderdomain.ErrInvalidTransition,
	orderdomain.ErrOrderTerminal,
	orderdomain.ErrOrderNotTerminal,
	orderdomain.ErrPriceChanged,
	orderdomain.ErrCheckoutInProgress,
	inventorydomain.ErrInsufficientStock,
	inventorydomain.ErrReservationMissing,
	invoicedomain.ErrOrderNotInvoiceable,
	ratelimit.ErrLockBusy,
}

func isStateConflict(err error) bool {
	return matchSentinel(err, stateConflictSentinels) != nil
}

func stateConflictCode(err error) string {
	if errors.Is(err, ratelimit.ErrLockBusy) {
		return orderdomain.ErrCheckoutInProgress.Error()
	}
	if target := matchSentinel(err, stateConflictSentinels); target != nil {
		return target.Error()
	}
	return "conflict"
}

func matchSentinel(err error, targets []error) error {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	if target := matchSentinel(err, validationSentinels); target != nil {
		return target.Error()
	}
	for _, target := range []error{
		pricingdomain.ErrInvalidQuantity,
		pricingdomain.ErrInvalidUnitPrice,
		pricingdomain.ErrInvalidShippingFee,
		pricingdomain.ErrInvalidTaxPercentage,
		pricingdomain.ErrEmptyCart,
		pricingdomain.ErrInvalidItem,
		pricingdomain.ErrUnknownShipping,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "empty_cart":
		return "items"
	case "unknown_shipping_method":
		return "shipping_method"
	case "reopen_reason_required":
		return "reason"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "empty_cart":
		return "cart is empty"
	case "unknown_shipping_method":
		return "shipping method is not offered"
	case "reopen_reason_required":
		return "a reason is required to reopen an order"
	default:
		return "invalid value"
	}
}
