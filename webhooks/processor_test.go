package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/goliatone/go-fliggy/core"
)

type stubVerifier struct {
	err error
}

func (v stubVerifier) Verify(context.Context, map[string]any) error {
	return v.err
}

type stubEnqueuer struct {
	messages []*core.JobExecutionMessage
	err      error
}

func (e *stubEnqueuer) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	if e.err != nil {
		return e.err
	}
	e.messages = append(e.messages, msg)
	return nil
}

func orderPushBody(t *testing.T, overrides map[string]any) []byte {
	t.Helper()
	payload := map[string]any{
		"pushType":      "ORDER_STATUS_CHANGE",
		"distributorId": "dist-100",
		"orderId":       "O-1",
		"outOrderId":    "EXT-1",
		"timestamp":     "1750000000000",
		"messageId":     "m-1",
		"data":          map[string]any{"orderStatus": "PAID"},
		"sign":          "signature",
	}
	for key, value := range overrides {
		if value == nil {
			delete(payload, key)
			continue
		}
		payload[key] = value
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return body
}

func TestProcessorAcceptsAndEnqueuesOrderPush(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	processor := NewProcessor(stubVerifier{}, NewMemoryDeliveryLedger(), enqueuer, nil)

	result, err := processor.Handle(context.Background(), core.InboundRequest{
		Category: CategoryOrder,
		Body:     orderPushBody(t, nil),
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !result.Accepted || result.Token != TokenSuccess || result.StatusCode != http.StatusOK {
		t.Fatalf("expected success token, got %+v", result)
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected one enqueued job, got %d", len(enqueuer.messages))
	}
	msg := enqueuer.messages[0]
	if msg.JobID != JobOrderPush {
		t.Fatalf("unexpected job id %q", msg.JobID)
	}
	if msg.IdempotencyKey != "m-1" {
		t.Fatalf("expected messageId as idempotency key, got %q", msg.IdempotencyKey)
	}
}

func TestProcessorDeduplicatesByMessageID(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	processor := NewProcessor(stubVerifier{}, NewMemoryDeliveryLedger(), enqueuer, nil)

	req := core.InboundRequest{Category: CategoryOrder, Body: orderPushBody(t, nil)}
	if _, err := processor.Handle(context.Background(), req); err != nil {
		t.Fatalf("first handle: %v", err)
	}
	second, err := processor.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("duplicate handle: %v", err)
	}
	if !second.Accepted || second.Token != TokenSuccess {
		t.Fatalf("duplicates must still answer success, got %+v", second)
	}
	if second.Metadata["deduped"] != true {
		t.Fatal("expected deduped marker on duplicate")
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("duplicate must not enqueue again, got %d jobs", len(enqueuer.messages))
	}
}

func TestProcessorRejectsInvalidSignature(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	processor := NewProcessor(stubVerifier{err: errors.New("signature mismatch")}, NewMemoryDeliveryLedger(), enqueuer, nil)

	result, err := processor.Handle(context.Background(), core.InboundRequest{
		Category: CategoryOrder,
		Body:     orderPushBody(t, nil),
	})
	if err == nil {
		t.Fatal("expected verification error")
	}
	if result.Accepted || result.Token != TokenError || result.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected error token with 400, got %+v", result)
	}
	if len(enqueuer.messages) != 0 {
		t.Fatal("rejected pushes must not be enqueued")
	}
}

func TestProcessorRejectsMissingRequiredFields(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	processor := NewProcessor(stubVerifier{}, NewMemoryDeliveryLedger(), enqueuer, nil)

	result, err := processor.Handle(context.Background(), core.InboundRequest{
		Category: CategoryOrder,
		Body:     orderPushBody(t, map[string]any{"orderId": nil, "outOrderId": nil}),
	})
	if err == nil {
		t.Fatal("expected missing-field rejection")
	}
	if result.Accepted || result.Token != TokenError {
		t.Fatalf("expected error token, got %+v", result)
	}
}

func TestProcessorRejectsWrongTenant(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	processor := NewProcessor(stubVerifier{}, NewMemoryDeliveryLedger(), enqueuer, nil)
	processor.DistributorID = "dist-100"

	result, err := processor.Handle(context.Background(), core.InboundRequest{
		Category: CategoryOrder,
		Body:     orderPushBody(t, map[string]any{"distributorId": "dist-999"}),
	})
	if err == nil {
		t.Fatal("expected wrong-tenant rejection")
	}
	if result.Accepted || result.Token != TokenError || result.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected error token with 400, got %+v", result)
	}
	if len(enqueuer.messages) != 0 {
		t.Fatal("wrong-tenant pushes must not be enqueued")
	}

	accepted, err := processor.Handle(context.Background(), core.InboundRequest{
		Category: CategoryOrder,
		Body:     orderPushBody(t, nil),
	})
	if err != nil {
		t.Fatalf("matching tenant must pass: %v", err)
	}
	if !accepted.Accepted {
		t.Fatalf("expected matching tenant accepted, got %+v", accepted)
	}
}

func TestProcessorRejectsUnknownCategory(t *testing.T) {
	processor := NewProcessor(stubVerifier{}, NewMemoryDeliveryLedger(), &stubEnqueuer{}, nil)
	if _, err := processor.Handle(context.Background(), core.InboundRequest{
		Category: "hotel",
		Body:     orderPushBody(t, nil),
	}); err == nil {
		t.Fatal("expected unknown category rejection")
	}
}

func TestProcessorAcceptsUnknownPushType(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	processor := NewProcessor(stubVerifier{}, NewMemoryDeliveryLedger(), enqueuer, nil)

	result, err := processor.Handle(context.Background(), core.InboundRequest{
		Category: CategoryOrder,
		Body:     orderPushBody(t, map[string]any{"pushType": "ORDER_FUTURE_THING"}),
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !result.Accepted {
		t.Fatal("unknown push types must still be accepted")
	}
	if len(enqueuer.messages) != 1 {
		t.Fatal("unknown push types must still be enqueued")
	}
}

func TestProcessorAcceptsProductPush(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	processor := NewProcessor(stubVerifier{}, NewMemoryDeliveryLedger(), enqueuer, nil)

	payload := map[string]any{
		"pushType":        "VACATION_RESOURCE_PRICE_STOCK_CHANGE",
		"productCategory": "TICKET",
		"productId":       "P-5",
		"distributorId":   "dist-100",
		"changedTime":     "2026-03-15 10:00:00",
		"timestamp":       "1750000000000",
		"messageId":       "m-p-1",
		"sign":            "signature",
	}
	body, _ := json.Marshal(payload)

	result, err := processor.Handle(context.Background(), core.InboundRequest{
		Category: CategoryProduct,
		Body:     body,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected product push accepted, got %+v", result)
	}
	if enqueuer.messages[0].JobID != JobProductPush {
		t.Fatalf("unexpected job id %q", enqueuer.messages[0].JobID)
	}
}

func TestProcessorMarksRetryOnEnqueueFailure(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	processor := NewProcessor(stubVerifier{}, ledger, &stubEnqueuer{err: errors.New("queue unavailable")}, nil)

	result, err := processor.Handle(context.Background(), core.InboundRequest{
		Category: CategoryOrder,
		Body:     orderPushBody(t, nil),
	})
	if err == nil {
		t.Fatal("expected enqueue failure to surface")
	}
	if result.Accepted {
		t.Fatal("failed enqueue must answer error so the partner redelivers")
	}

	record, err := ledger.Get(context.Background(), CategoryOrder, "m-1")
	if err != nil {
		t.Fatalf("load delivery record: %v", err)
	}
	if record.Status != DeliveryStatusRetryReady {
		t.Fatalf("expected retry-ready status, got %q", record.Status)
	}
}

func TestProcessorAcceptsFormEncodedPush(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	processor := NewProcessor(stubVerifier{}, NewMemoryDeliveryLedger(), enqueuer, nil)

	form := url.Values{}
	form.Set("pushType", "ORDER_STATUS_CHANGE")
	form.Set("distributorId", "dist-100")
	form.Set("orderId", "O-1")
	form.Set("outOrderId", "EXT-1")
	form.Set("timestamp", "1750000000000")
	form.Set("messageId", "m-form-1")
	form.Set("data", `{"orderStatus":"PAID"}`)
	form.Set("sign", "signature")

	result, err := processor.Handle(context.Background(), core.InboundRequest{
		Category: CategoryOrder,
		Headers:  map[string]string{"content-type": "application/x-www-form-urlencoded; charset=utf-8"},
		Body:     []byte(form.Encode()),
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !result.Accepted || result.Token != TokenSuccess {
		t.Fatalf("expected form push accepted, got %+v", result)
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected one enqueued job, got %d", len(enqueuer.messages))
	}
	msg := enqueuer.messages[0]
	if msg.IdempotencyKey != "m-form-1" {
		t.Fatalf("expected messageId as idempotency key, got %q", msg.IdempotencyKey)
	}
	if msg.Parameters["orderId"] != "O-1" {
		t.Fatalf("expected flattened form values, got %#v", msg.Parameters["orderId"])
	}
}

func TestProcessorRejectsMalformedBody(t *testing.T) {
	processor := NewProcessor(stubVerifier{}, NewMemoryDeliveryLedger(), &stubEnqueuer{}, nil)
	result, err := processor.Handle(context.Background(), core.InboundRequest{
		Category: CategoryOrder,
		Body:     []byte("{not json"),
	})
	if err == nil {
		t.Fatal("expected decode error")
	}
	if result.Token != TokenError {
		t.Fatalf("expected error token, got %q", result.Token)
	}
}
