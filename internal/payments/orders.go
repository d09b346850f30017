package payments

import (
	"context"
	"fmt"

	"github.com/gharbazaar/backend/pkg/enums"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
	"github.com/gharbazaar/backend/pkg/logger"
)

// OrderService prices an intent and opens it with the requested gateway.
type OrderService struct {
	builder  *IntentBuilder
	registry *Registry
	logg     *logger.Logger
}

// NewOrderService wires the order flow.
func NewOrderService(builder *IntentBuilder, registry *Registry, logg *logger.Logger) (*OrderService, error) {
	if builder == nil {
		return nil, fmt.Errorf("intent builder required")
	}
	if registry == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	return &OrderService{builder: builder, registry: registry, logg: logg}, nil
}

// CreateOrder validates, prices and registers the order with the provider.
func (s *OrderService) CreateOrder(ctx context.Context, method enums.PaymentMethod, input BuildIntentInput) (*ProviderOrder, *OrderIntent, error) {
	gw, err := s.registry.Get(method)
	if err != nil {
		return nil, nil, err
	}

	intent, err := s.builder.Build(ctx, input)
	if err != nil {
		return nil, nil, err
	}

	if s.logg != nil {
		ctx = s.logg.WithProvider(ctx, method.String())
	}

	order, err := gw.CreateOrder(ctx, *intent)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, nil, err
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create provider order")
	}

	if s.logg != nil {
		infoCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":     order.ID,
			"amount_minor": order.AmountMinor,
			"kind":         intent.Kind.String(),
		})
		s.logg.Info(infoCtx, "provider order created")
	}
	return order, intent, nil
}
