package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/forkline/forkline-backend/internal/orders"
	"github.com/forkline/forkline-backend/internal/payments"
	"github.com/forkline/forkline-backend/pkg/enums"
	pkgerrors "github.com/forkline/forkline-backend/pkg/errors"
	"github.com/forkline/forkline-backend/pkg/logger"
	"github.com/forkline/forkline-backend/pkg/metrics"
)

const (
	stepBuild   = "build"
	stepGateway = "gateway"
	stepRecord  = "record"
	retrySource = "retry"
)

// Redirect is the result of a successful checkout: the created (or retried)
// order and the hosted payment page the client must navigate to.
type Redirect struct {
	OrderID     uuid.UUID `json:"order_id"`
	RedirectURL string    `json:"redirect_url"`
}

// Service orchestrates order building, gateway session creation and payment
// recording, strictly in that order.
type Service interface {
	CheckoutCart(ctx context.Context, owner orders.Owner) (*Redirect, error)
	BuyNow(ctx context.Context, owner orders.Owner, optionID uuid.UUID, qty int) (*Redirect, error)
	RetryOrder(ctx context.Context, owner orders.Owner, orderID uuid.UUID) (*Redirect, error)
}

// ServiceParams carries the orchestrator's dependencies.
type ServiceParams struct {
	Orders  orders.Service
	Ledger  payments.Service
	Gateway Gateway
	Logger  *logger.Logger
	Metrics *metrics.CheckoutMetrics
}

type service struct {
	orders  orders.Service
	ledger  payments.Service
	gateway Gateway
	log     *logger.Logger
	metrics *metrics.CheckoutMetrics
}

// NewService builds the checkout orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("payment ledger required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		orders:  params.Orders,
		ledger:  params.Ledger,
		gateway: params.Gateway,
		log:     params.Logger,
		metrics: params.Metrics,
	}, nil
}

func (s *service) CheckoutCart(ctx context.Context, owner orders.Owner) (*Redirect, error) {
	source := enums.OrderSourceCart.String()
	s.metrics.IncAttempt(source)

	order, err := s.orders.BuildFromCart(ctx, owner)
	if err != nil {
		s.metrics.IncFailure(source, stepBuild)
		return nil, err
	}
	return s.openSession(ctx, source, order.ID, order.OwnerID)
}

func (s *service) BuyNow(ctx context.Context, owner orders.Owner, optionID uuid.UUID, qty int) (*Redirect, error) {
	source := enums.OrderSourceDirectPurchase.String()
	s.metrics.IncAttempt(source)

	order, err := s.orders.BuildFromSingleItem(ctx, owner, optionID, qty)
	if err != nil {
		s.metrics.IncFailure(source, stepBuild)
		return nil, err
	}
	return s.openSession(ctx, source, order.ID, order.OwnerID)
}

// RetryOrder re-attempts gateway session creation for an owned PENDING order
// that never got a payment recorded, the stranded state left behind when the
// gateway was unavailable at checkout time.
func (s *service) RetryOrder(ctx context.Context, owner orders.Owner, orderID uuid.UUID) (*Redirect, error) {
	s.metrics.IncAttempt(retrySource)

	order, err := s.orders.Get(ctx, owner.ID, orderID)
	if err != nil {
		s.metrics.IncFailure(retrySource, stepBuild)
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		s.metrics.IncFailure(retrySource, stepBuild)
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending")
	}

	if _, err := s.ledger.FindByOrder(ctx, order.ID); err == nil {
		s.metrics.IncFailure(retrySource, stepBuild)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already recorded for order")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		s.metrics.IncFailure(retrySource, stepBuild)
		return nil, err
	}

	return s.openSession(ctx, retrySource, order.ID, order.OwnerID)
}

// openSession runs the gateway and ledger steps shared by every checkout
// path. A gateway failure leaves the order PENDING with no payment row; the
// returned error carries the order id so callers can retry it.
func (s *service) openSession(ctx context.Context, source string, orderID, ownerID uuid.UUID) (*Redirect, error) {
	ctx = s.log.WithOrderID(ctx, orderID.String())

	order, err := s.orders.Get(ctx, ownerID, orderID)
	if err != nil {
		return nil, err
	}

	sess, err := s.gateway.CreateCheckout(ctx, order)
	if err != nil {
		s.metrics.IncFailure(source, stepGateway)
		s.log.Warn(ctx, "gateway session creation failed, order left pending")
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed.WithDetails(map[string]string{"order_id": orderID.String()})
		}
		return nil, err
	}

	if _, err := s.ledger.Record(ctx, order.ID, sess.Reference, order.TotalAmount); err != nil {
		s.metrics.IncFailure(source, stepRecord)
		s.log.Error(ctx, "payment record failed after session creation", err)
		return nil, err
	}

	s.log.Info(ctx, "checkout session created")
	return &Redirect{OrderID: order.ID, RedirectURL: sess.RedirectURL}, nil
}
