package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/formosa-data/formosa/internal/mops"
	"github.com/formosa-data/formosa/internal/shared"
	"github.com/formosa-data/formosa/internal/xbrl"
)

// RespondError maps domain errors to HTTP responses.
//
// Upstream data we could not interpret is a gateway problem (502), an
// unreachable MOPS after retries is 503, missing filings are 404.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, mops.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, xbrl.ErrMalformedPackage),
		errors.Is(err, xbrl.ErrParse),
		errors.Is(err, mops.ErrRowParse),
		errors.Is(err, shared.ErrUpstreamData):
		Problem(w, http.StatusBadGateway, "Upstream Data Invalid", err.Error())
	case errors.Is(err, mops.ErrTransient), errors.Is(err, shared.ErrUpstreamUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Upstream Unavailable", err.Error())
	case errors.Is(err, mops.ErrClient):
		Problem(w, http.StatusBadGateway, "Upstream Rejected Request", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		Problem(w, http.StatusGatewayTimeout, "Request Cancelled", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
