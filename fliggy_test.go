package fliggy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-fliggy/core"
)

type stubSigner struct {
	verifyOK bool
}

func (s *stubSigner) Sign([]byte) (string, error) { return "stub-signature", nil }

func (s *stubSigner) Verify([]byte, string) bool { return s.verifyOK }

type stubTransport struct {
	requests []core.TransportRequest
	respond  func(req core.TransportRequest) core.TransportResponse
}

func (s *stubTransport) Kind() string { return "stub" }

func (s *stubTransport) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	s.requests = append(s.requests, req)
	if s.respond != nil {
		return s.respond(req), nil
	}
	return core.TransportResponse{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"success":true}`),
	}, nil
}

func jsonResponse(body string) core.TransportResponse {
	return core.TransportResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}
}

func testServiceConfig() Config {
	return Config{
		DistributorID: "dist-100",
		AppKey:        "app-key-1",
		PrivateKey:    "unused-by-stub-signer",
	}
}

func newTestService(t *testing.T, transport *stubTransport, options ...ServiceOption) *Service {
	t.Helper()
	all := append([]ServiceOption{
		WithClientOptions(
			core.WithSigner(&stubSigner{verifyOK: true}),
			core.WithTransport(transport),
		),
	}, options...)
	service, err := NewService(testServiceConfig(), all...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func productPushBody(t *testing.T, overrides map[string]any) []byte {
	t.Helper()
	payload := map[string]any{
		"pushType":        "VACATION_RESOURCE_INFO_CHANGE",
		"productCategory": "TICKET",
		"productId":       "P1",
		"distributorId":   "dist-100",
		"changedTime":     "2026-03-15 10:30:00",
		"timestamp":       "1750000000000",
		"messageId":       "mp-1",
		"sign":            "sig",
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
		t.Fatalf("marshal push body: %v", err)
	}
	return body
}

func orderPushBody(t *testing.T, overrides map[string]any) []byte {
	t.Helper()
	payload := map[string]any{
		"pushType":      "ORDER_STATUS_CHANGE",
		"distributorId": "dist-100",
		"orderId":       "O1",
		"outOrderId":    "X1",
		"timestamp":     "1750000000000",
		"messageId":     "mo-1",
		"data":          map[string]any{"orderStatus": "PAID"},
		"sign":          "sig",
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
		t.Fatalf("marshal push body: %v", err)
	}
	return body
}

func postPush(t *testing.T, server *httptest.Server, path string, body []byte) (int, string) {
	t.Helper()
	resp, err := http.Post(server.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post push: %v", err)
	}
	defer resp.Body.Close()
	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read answer: %v", err)
	}
	return resp.StatusCode, string(answer)
}

func TestServiceProductPushEndToEnd(t *testing.T) {
	transport := &stubTransport{
		respond: func(core.TransportRequest) core.TransportResponse {
			return jsonResponse(`{"success":true,"data":{"productId":"P1","name":"Beach Tour"}}`)
		},
	}

	var refreshedID string
	var refreshedDetail map[string]any
	service := newTestService(t, transport, WithCallbacks(Callbacks{
		ProductRefreshed: func(_ context.Context, productID string, detail map[string]any) error {
			refreshedID = productID
			refreshedDetail = detail
			return nil
		},
	}))

	mux := http.NewServeMux()
	service.Mount(mux, "/webhooks/fliggy")
	server := httptest.NewServer(mux)
	defer server.Close()

	status, answer := postPush(t, server, "/webhooks/fliggy/product", productPushBody(t, nil))
	if status != http.StatusOK || answer != "success" {
		t.Fatalf("expected 200 success, got %d %q", status, answer)
	}
	if refreshedID != "P1" {
		t.Fatalf("expected product P1 refreshed, got %q", refreshedID)
	}
	if refreshedDetail == nil {
		t.Fatal("expected detail payload handed to callback")
	}
	if len(transport.requests) != 1 {
		t.Fatalf("expected one outbound refetch, got %d", len(transport.requests))
	}
	if got := transport.requests[0].URL; !bytes.Contains([]byte(got), []byte("queryProductDetailInfo")) {
		t.Fatalf("expected detail refetch, got %q", got)
	}
}

func TestServiceOrderPushEndToEnd(t *testing.T) {
	transport := &stubTransport{}
	var gotOrderID string
	service := newTestService(t, transport, WithCallbacks(Callbacks{
		OrderStatusChanged: func(_ context.Context, orderID string, _ map[string]any) error {
			gotOrderID = orderID
			return nil
		},
	}))

	mux := http.NewServeMux()
	service.Mount(mux, "/webhooks/fliggy")
	server := httptest.NewServer(mux)
	defer server.Close()

	status, answer := postPush(t, server, "/webhooks/fliggy/order", orderPushBody(t, nil))
	if status != http.StatusOK || answer != "success" {
		t.Fatalf("expected 200 success, got %d %q", status, answer)
	}
	if gotOrderID != "O1" {
		t.Fatalf("expected order O1 handled, got %q", gotOrderID)
	}
	if len(transport.requests) != 0 {
		t.Fatalf("order status change must not trigger outbound calls, saw %d", len(transport.requests))
	}
}

func TestServiceRejectsBadSignature(t *testing.T) {
	transport := &stubTransport{}
	called := false
	service, err := NewService(testServiceConfig(),
		WithClientOptions(
			core.WithSigner(&stubSigner{verifyOK: false}),
			core.WithTransport(transport),
		),
		WithCallbacks(Callbacks{
			OrderStatusChanged: func(context.Context, string, map[string]any) error {
				called = true
				return nil
			},
		}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	mux := http.NewServeMux()
	service.Mount(mux, "/webhooks/fliggy")
	server := httptest.NewServer(mux)
	defer server.Close()

	status, answer := postPush(t, server, "/webhooks/fliggy/order", orderPushBody(t, nil))
	if status != http.StatusBadRequest || answer != "error" {
		t.Fatalf("expected 400 error, got %d %q", status, answer)
	}
	if called {
		t.Fatal("rejected push must not reach the handler")
	}
}

func TestServiceDeduplicatesByMessageID(t *testing.T) {
	transport := &stubTransport{}
	calls := 0
	service := newTestService(t, transport, WithCallbacks(Callbacks{
		OrderStatusChanged: func(context.Context, string, map[string]any) error {
			calls++
			return nil
		},
	}))

	mux := http.NewServeMux()
	service.Mount(mux, "/webhooks/fliggy")
	server := httptest.NewServer(mux)
	defer server.Close()

	body := orderPushBody(t, nil)
	for i := 0; i < 2; i++ {
		status, answer := postPush(t, server, "/webhooks/fliggy/order", body)
		if status != http.StatusOK || answer != "success" {
			t.Fatalf("delivery %d: expected 200 success, got %d %q", i+1, status, answer)
		}
	}
	if calls != 1 {
		t.Fatalf("expected exactly one handler run, got %d", calls)
	}
}

func TestNewServiceValidatesConfig(t *testing.T) {
	if _, err := NewService(Config{}); err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestExecuteWithoutServiceFails(t *testing.T) {
	var service *Service
	outcome, err := service.Execute(context.Background(), "queryProductDetailInfo", nil)
	if err == nil {
		t.Fatal("expected error from nil service")
	}
	if outcome.Kind != OutcomeTransportError {
		t.Fatalf("expected transport error outcome, got %q", outcome.Kind)
	}
}
