package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/forkline/forkline-backend/api/responses"
	orderssvc "github.com/forkline/forkline-backend/internal/orders"
	"github.com/forkline/forkline-backend/pkg/db/models"
	"github.com/forkline/forkline-backend/pkg/enums"
	pkgerrors "github.com/forkline/forkline-backend/pkg/errors"
	"github.com/forkline/forkline-backend/pkg/logger"
)

type orderLineResponse struct {
	DishOptionID uuid.UUID       `json:"dish_option_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ImageURL     *string         `json:"image_url,omitempty"`
}

type orderPaymentResponse struct {
	Status        string  `json:"status"`
	Gateway       string  `json:"gateway"`
	FailureReason *string `json:"failure_reason,omitempty"`
}

type orderResponse struct {
	ID          uuid.UUID             `json:"id"`
	Status      string                `json:"status"`
	Source      string                `json:"source"`
	TotalAmount decimal.Decimal       `json:"total_amount"`
	Lines       []orderLineResponse   `json:"lines"`
	Payment     *orderPaymentResponse `json:"payment,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// OrdersList returns the owner's orders, optionally filtered by status.
func OrdersList(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		owner, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.OrderStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		list, err := svc.List(r.Context(), owner.ID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(list))
		for i := range list {
			out = append(out, newOrderResponse(&list[i]))
		}
		responses.WriteSuccess(w, map[string]any{"orders": out})
	}
}

// OrderGet returns one owned order with lines and payment state.
func OrderGet(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		owner, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		order, err := svc.Get(r.Context(), owner.ID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func newOrderResponse(order *models.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineResponse{
			DishOptionID: line.DishOptionID,
			Name:         line.Name,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			Subtotal:     line.Subtotal(),
			ImageURL:     line.ImageURL,
		})
	}

	var payment *orderPaymentResponse
	if order.Payment != nil {
		payment = &orderPaymentResponse{
			Status:        string(order.Payment.Status),
			Gateway:       string(order.Payment.Gateway),
			FailureReason: order.Payment.FailureReason,
		}
	}

	return orderResponse{
		ID:          order.ID,
		Status:      string(order.Status),
		Source:      string(order.Source),
		TotalAmount: order.TotalAmount,
		Lines:       lines,
		Payment:     payment,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}
