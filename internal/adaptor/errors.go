package adaptor

import (
	"net/http"
	"strings"

	"mindcare-booking/pkg/apperror"
	"mindcare-booking/pkg/utils"

	"go.uber.org/zap"
)

// handleServiceError maps a classified service error to its HTTP status.
// Unclassified errors never leak their message.
func handleServiceError(log *zap.Logger, w http.ResponseWriter, err error, operation string) {
	kind := apperror.KindOf(err)
	code := strings.ReplaceAll(kind.String(), " ", "_")
	fields := []zap.Field{zap.Error(err), zap.String("operation", operation), zap.Stringer("kind", kind)}

	switch kind {
	case apperror.KindValidation, apperror.KindPaymentMismatch:
		log.Warn(operation+" rejected", fields...)
		utils.ResponseError(w, http.StatusBadRequest, code, err.Error())

	case apperror.KindOwnership:
		log.Warn(operation+" forbidden", fields...)
		utils.ResponseError(w, http.StatusForbidden, code, err.Error())

	case apperror.KindNotFound:
		log.Warn(operation+" failed - not found", fields...)
		utils.ResponseError(w, http.StatusNotFound, code, err.Error())

	case apperror.KindConflict, apperror.KindState:
		log.Warn(operation+" failed - conflict", fields...)
		utils.ResponseError(w, http.StatusConflict, code, err.Error())

	case apperror.KindProvider:
		log.Error(operation+" failed - payment provider", fields...)
		utils.ResponseError(w, http.StatusInternalServerError, code, "Payment provider unavailable, try again later")

	default:
		log.Error(operation+" failed", fields...)
		utils.ResponseInternalError(w, "Internal server error")
	}
}
