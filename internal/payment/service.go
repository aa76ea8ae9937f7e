package payment

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"paysync/internal/models"
	"paysync/internal/repository"
)

// OrderRepository is the order persistence the service needs.
type OrderRepository interface {
	OrderStore
	FindByID(ctx context.Context, id uint) (*models.Order, error)
	FindByCartNumber(ctx context.Context, cartNumber string) (*models.Order, error)
	ListForReconciliation(ctx context.Context, providers []string, limit int) ([]models.Order, error)
	MarkPolled(ctx context.Context, id uint, at time.Time) error
}

// SettingsSource loads the configuration of one provider alias.
type SettingsSource interface {
	ProviderSettings(ctx context.Context, provider string) (map[string]string, error)
}

// Service is the host-facing entry point: it resolves provider and settings
// for an order and commits the states the providers report.
type Service struct {
	registry *Registry
	orders   OrderRepository
	settings SettingsSource
	logger   *zap.Logger
}

func NewService(registry *Registry, orders OrderRepository, settings SettingsSource, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{registry: registry, orders: orders, settings: settings, logger: logger}
}

// Resolve returns the provider registered under alias with its settings.
func (s *Service) Resolve(ctx context.Context, alias string) (Provider, Settings, error) {
	p, err := s.registry.Get(alias)
	if err != nil {
		return nil, nil, err
	}
	raw, err := s.settings.ProviderSettings(ctx, alias)
	if err != nil {
		return nil, nil, fmt.Errorf("load settings for %s: %w", alias, err)
	}
	return p, Settings(raw), nil
}

// EventSource wraps r with the webhook signing secret configured for alias.
func (s *Service) EventSource(ctx context.Context, alias string, r *http.Request) (*EventSource, error) {
	_, settings, err := s.Resolve(ctx, alias)
	if err != nil {
		return nil, err
	}
	return NewEventSource(r, settings.WebhookSecret()), nil
}

// Form builds the checkout form for the order with the given cart number.
func (s *Service) Form(ctx context.Context, alias, cartNumber string, extra map[string]string) (*CheckoutForm, error) {
	p, settings, err := s.Resolve(ctx, alias)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.FindByCartNumber(ctx, cartNumber)
	if err != nil {
		return nil, err
	}
	return p.GenerateForm(ctx, order, settings, extra)
}

// ContinueURL returns where the customer goes after a successful payment.
func (s *Service) ContinueURL(ctx context.Context, alias string) (string, error) {
	p, settings, err := s.Resolve(ctx, alias)
	if err != nil {
		return "", err
	}
	return p.ContinueURL(settings)
}

// CancelURL returns where the customer goes after abandoning the payment.
func (s *Service) CancelURL(ctx context.Context, alias string) (string, error) {
	p, settings, err := s.Resolve(ctx, alias)
	if err != nil {
		return "", err
	}
	return p.CancelURL(settings)
}

// Callback runs the redirect path for a cart and commits a successful result.
func (s *Service) Callback(ctx context.Context, alias, cartNumber string, form url.Values) (CallbackResult, error) {
	p, settings, err := s.Resolve(ctx, alias)
	if err != nil {
		return CallbackResult{}, err
	}
	order, err := s.orders.FindByCartNumber(ctx, cartNumber)
	if err != nil {
		return CallbackResult{}, err
	}
	props := maps.Clone(order.Properties)
	res, err := p.HandleCallback(ctx, order, form, settings)
	if err != nil || res.Info == nil {
		return res, err
	}
	if err := s.commitCallback(ctx, order, res.Info, !maps.Equal(props, order.Properties)); err != nil {
		return CallbackResult{}, err
	}
	return res, nil
}

// CommitCallback records a callback result on the order.
// The callback's charge replaces the recorded one unless the order already
// sits at a higher or terminal state; the state itself only moves forward.
// Nothing is written when the order already holds both.
func (s *Service) CommitCallback(ctx context.Context, order *models.Order, info *CallbackInfo) error {
	return s.commitCallback(ctx, order, info, false)
}

func (s *Service) commitCallback(ctx context.Context, order *models.Order, info *CallbackInfo, propertiesChanged bool) error {
	changed := propertiesChanged
	if order.TransactionID != info.TransactionID && supersedes(order, info.State) {
		order.TransactionID = info.TransactionID
		changed = true
	}
	if CanAdvance(order.PaymentState, info.State) {
		order.PaymentState = info.State
		changed = true
	}
	if !changed {
		s.logger.Debug("callback already recorded",
			zap.Uint("order_id", order.ID), zap.String("transaction_id", order.TransactionID))
		return nil
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return fmt.Errorf("commit callback for order %d: %w", order.ID, err)
	}
	return nil
}

// supersedes reports whether a charge at state may replace the order's recorded one.
func supersedes(order *models.Order, state models.PaymentState) bool {
	if order.TransactionID == "" {
		return true
	}
	return !IsTerminal(order.PaymentState) && stateRank(state) >= stateRank(order.PaymentState)
}

// Notify runs the webhook path. Events that reference no known order are
// acknowledged without effect.
func (s *Service) Notify(ctx context.Context, alias string, src *EventSource) error {
	p, settings, err := s.Resolve(ctx, alias)
	if err != nil {
		return err
	}
	cart := p.ExtractCorrelationID(src, settings)
	if cart == "" {
		return nil
	}
	order, err := s.orders.FindByCartNumber(ctx, cart)
	if errors.Is(err, repository.ErrOrderNotFound) {
		s.logger.Warn("webhook for unknown order", zap.String("provider", alias), zap.String("cart_number", cart))
		return nil
	}
	if err != nil {
		return err
	}
	return p.HandleNotification(ctx, order, src, settings)
}

func (s *Service) Status(ctx context.Context, orderID uint) (*StatusResult, error) {
	return s.run(ctx, orderID, OpStatus)
}

func (s *Service) Capture(ctx context.Context, orderID uint) (*StatusResult, error) {
	return s.run(ctx, orderID, OpCapture)
}

func (s *Service) Refund(ctx context.Context, orderID uint) (*StatusResult, error) {
	return s.run(ctx, orderID, OpRefund)
}

func (s *Service) Cancel(ctx context.Context, orderID uint) (*StatusResult, error) {
	return s.run(ctx, orderID, OpCancel)
}

func (s *Service) run(ctx context.Context, orderID uint, op Operation) (*StatusResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, order, op)
}

func (s *Service) apply(ctx context.Context, order *models.Order, op Operation) (*StatusResult, error) {
	p, settings, err := s.Resolve(ctx, order.PaymentProvider)
	if err != nil {
		return nil, err
	}
	if !p.Capabilities().Supports(op) {
		return nil, fmt.Errorf("%s on %s: %w", op, p.Alias(), ErrUnsupported)
	}

	var res *StatusResult
	switch op {
	case OpStatus:
		res, err = p.GetStatus(ctx, order, settings)
	case OpCapture:
		res, err = p.Capture(ctx, order, settings)
	case OpRefund:
		res, err = p.Refund(ctx, order, settings)
	case OpCancel:
		res, err = p.Cancel(ctx, order, settings)
	default:
		return nil, fmt.Errorf("payment: unknown operation %q", op)
	}
	if err != nil {
		return nil, err
	}

	if CanAdvance(order.PaymentState, res.State) {
		from := order.PaymentState
		order.PaymentState = res.State
		if order.TransactionID == "" {
			order.TransactionID = res.TransactionID
		}
		if err := s.orders.Save(ctx, order); err != nil {
			return nil, fmt.Errorf("save order %d: %w", order.ID, err)
		}
		s.logger.Info("order state advanced",
			zap.Uint("order_id", order.ID),
			zap.String("operation", string(op)),
			zap.String("from", string(from)),
			zap.String("to", string(res.State)))
	}
	return res, nil
}

// ReconcileReport summarises one polling pass.
type ReconcileReport struct {
	Checked int
	Updated int
	Skipped int
	Failed  int
}

// Reconcile polls the gateway for orders still waiting on a final state.
// It covers webhooks that were missed or delayed. Only providers that can
// fetch a status are polled, and each polled order moves to the back of the
// queue so a batch never stalls on orders that legitimately stay authorized.
func (s *Service) Reconcile(ctx context.Context, limit int) (ReconcileReport, error) {
	var report ReconcileReport
	orders, err := s.orders.ListForReconciliation(ctx, s.pollableProviders(), limit)
	if err != nil {
		return report, fmt.Errorf("list orders: %w", err)
	}
	for i := range orders {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		order := &orders[i]
		p, err := s.registry.Get(order.PaymentProvider)
		if err != nil || !p.Capabilities().Status {
			report.Skipped++
			continue
		}
		report.Checked++
		before := order.PaymentState
		_, err = s.apply(ctx, order, OpStatus)
		if perr := s.orders.MarkPolled(ctx, order.ID, time.Now()); perr != nil {
			s.logger.Warn("record poll failed", zap.Uint("order_id", order.ID), zap.Error(perr))
		}
		if err != nil {
			report.Failed++
			s.logger.Warn("reconcile failed", zap.Uint("order_id", order.ID), zap.Error(err))
			continue
		}
		if order.PaymentState != before {
			report.Updated++
		}
	}
	return report, nil
}

func (s *Service) pollableProviders() []string {
	var out []string
	for _, alias := range s.registry.Aliases() {
		if p, err := s.registry.Get(alias); err == nil && p.Capabilities().Status {
			out = append(out, alias)
		}
	}
	return out
}
