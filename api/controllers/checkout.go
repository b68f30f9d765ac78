package controllers

import (
	"net/http"
	"strings"

	"github.com/hasanarpat/memento-mori/api/middleware"
	"github.com/hasanarpat/memento-mori/api/responses"
	"github.com/hasanarpat/memento-mori/api/validators"
	checkoutsvc "github.com/hasanarpat/memento-mori/internal/checkout"
	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
	"github.com/hasanarpat/memento-mori/pkg/logger"
)

// Checkout creates an order from the submitted lines. Guests must supply an
// email; signed-in users default to the address on their token.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutsvc.CreateOrderInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := optionalUserID(r)
		if strings.TrimSpace(payload.Email) == "" && userID != nil {
			payload.Email = middleware.EmailFromContext(r.Context())
		}

		order, err := svc.CreateOrder(r.Context(), userID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
