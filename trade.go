package fliggy

import (
	"context"
	"fmt"
)

// Trade and refund methods ride the legacy open-platform gateway; the dot in
// the method name routes them there.
const (
	MethodTradeQuery   = "alitrip.travel.trade.query"
	MethodTradeGet     = "alitrip.travel.trade.get"
	MethodTradeCodeGet = "alitrip.travel.trade.code.get"
	MethodTradeCreate  = "alitrip.travel.trade.create"
	MethodTradeClose   = "alitrip.travel.trade.close"
	MethodRefundApply  = "alitrip.travel.refund.new.apply"
	MethodRefundGet    = "alitrip.travel.refund.new.get"
)

// QueryTrades pages through orders matching the given filters (time window,
// status, pagination keys are passed through as-is).
func (s *Service) QueryTrades(ctx context.Context, filters map[string]any) (Outcome, error) {
	return s.Execute(ctx, MethodTradeQuery, filters)
}

func (s *Service) GetTrade(ctx context.Context, orderID string) (Outcome, error) {
	return s.Execute(ctx, MethodTradeGet, map[string]any{
		"order_id": orderID,
	})
}

// GetTradeCodes fetches the verification codes issued for an order.
func (s *Service) GetTradeCodes(ctx context.Context, orderID string) (Outcome, error) {
	return s.Execute(ctx, MethodTradeCodeGet, map[string]any{
		"order_id": orderID,
	})
}

func (s *Service) CreateTrade(ctx context.Context, params map[string]any) (Outcome, error) {
	return s.Execute(ctx, MethodTradeCreate, params)
}

func (s *Service) CloseTrade(ctx context.Context, orderID, reason string) (Outcome, error) {
	return s.Execute(ctx, MethodTradeClose, map[string]any{
		"order_id":     orderID,
		"close_reason": reason,
	})
}

func (s *Service) ApplyRefund(ctx context.Context, params map[string]any) (Outcome, error) {
	return s.Execute(ctx, MethodRefundApply, params)
}

func (s *Service) GetRefund(ctx context.Context, refundID string) (Outcome, error) {
	return s.Execute(ctx, MethodRefundGet, map[string]any{
		"refund_id": refundID,
	})
}

// ProcessOrderPush applies a verified order push by dispatching on pushType.
// Each branch hands the payload to its callback; a push type added by the
// partner after this build is logged and acknowledged so redelivery stops.
func (s *Service) ProcessOrderPush(ctx context.Context, payload map[string]any) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("fliggy: service is not configured")
	}
	orderID := payloadString(payload, "orderId")
	pushType := payloadString(payload, "pushType")
	if orderID == "" {
		return fmt.Errorf("fliggy: order push has no orderId")
	}

	var callback func(ctx context.Context, orderID string, payload map[string]any) error
	switch pushType {
	case "ORDER_STATUS_CHANGE":
		callback = s.callbacks.OrderStatusChanged
	case "ORDER_SEND_CODE_NOTIFY":
		callback = s.callbacks.OrderCodeSent
	case "ORDER_REFUND_NOTIFY":
		callback = s.callbacks.OrderRefunded
	case "ORDER_VERIFY_NOTIFY":
		callback = s.callbacks.OrderVerified
	default:
		s.logInfo(ctx, "order push type has no local effect",
			"order_id", orderID,
			"push_type", pushType,
		)
		return nil
	}

	if callback == nil {
		s.logInfo(ctx, "order push dropped, no callback wired",
			"order_id", orderID,
			"push_type", pushType,
		)
		return nil
	}
	return callback(ctx, orderID, payload)
}
