package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
)

// errorBody is the wire shape of every engine error
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// respondError maps an engine error kind to an HTTP status and writes the
// machine-readable body. Unknown errors become opaque 500s.
func respondError(c echo.Context, err error) error {
	kind := apperrors.KindOf(err)

	status := http.StatusInternalServerError
	message := err.Error()

	switch kind {
	case apperrors.KindRuleNotFound, apperrors.KindNodeNotFound:
		status = http.StatusNotFound
	case apperrors.KindInvalidRuleDefinition, apperrors.KindInvalidParent,
		apperrors.KindUnknownCategory, apperrors.KindGuardRejected,
		apperrors.KindInvalidInput:
		status = http.StatusBadRequest
	case apperrors.KindDuplicateCode, apperrors.KindHasChildren,
		apperrors.KindImmutableFieldChange:
		status = http.StatusConflict
	case apperrors.KindAllocationConflict:
		status = http.StatusServiceUnavailable
	case "":
		message = "internal error"
		kind = "Internal"
	}

	return c.JSON(status, errorBody{
		Error: errorDetail{
			Kind:    string(kind),
			Message: message,
		},
	})
}
