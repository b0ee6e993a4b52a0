package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

type stubSigner struct {
	signature string
	signed    [][]byte
}

func (s *stubSigner) Sign(data []byte) (string, error) {
	s.signed = append(s.signed, append([]byte(nil), data...))
	if s.signature == "" {
		return "stub-signature", nil
	}
	return s.signature, nil
}

func (s *stubSigner) Verify([]byte, string) bool { return false }

type stubTransport struct {
	requests []TransportRequest
	response TransportResponse
	err      error
}

func (s *stubTransport) Kind() string { return "stub" }

func (s *stubTransport) Do(_ context.Context, req TransportRequest) (TransportResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return TransportResponse{}, s.err
	}
	return s.response, nil
}

func testClientConfig() Config {
	return Config{
		DistributorID: "dist-100",
		AppKey:        "app-key-1",
		PrivateKey:    "unused-by-stub-signer",
	}
}

func newTestClient(t *testing.T, cfg Config, transport *stubTransport, signer *stubSigner) *Client {
	t.Helper()
	fixed := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	client, err := NewClient(cfg,
		WithSigner(signer),
		WithTransport(transport),
		WithClock(func() time.Time { return fixed }),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestExecuteOpenPlatformBuildsSignedFormPost(t *testing.T) {
	transport := &stubTransport{response: TransportResponse{
		StatusCode: 200,
		Body:       []byte(`{"result":"ok"}`),
	}}
	signer := &stubSigner{}
	client := newTestClient(t, testClientConfig(), transport, signer)

	outcome, err := client.Execute(context.Background(), "alitrip.travel.items.get", map[string]any{
		"page_no": 1,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !outcome.IsSuccess() {
		t.Fatalf("expected success, got %s", outcome.Kind)
	}
	if len(transport.requests) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(transport.requests))
	}

	req := transport.requests[0]
	if req.Method != http.MethodPost {
		t.Fatalf("expected POST, got %s", req.Method)
	}
	if !strings.HasSuffix(req.URL, OpenPlatformPath) {
		t.Fatalf("expected router path, got %s", req.URL)
	}
	if req.Headers["Content-Type"] != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected content type %q", req.Headers["Content-Type"])
	}

	form, err := url.ParseQuery(string(req.Body))
	if err != nil {
		t.Fatalf("parse form body: %v", err)
	}
	for key, want := range map[string]string{
		"method":      "alitrip.travel.items.get",
		"app_key":     "app-key-1",
		"format":      "json",
		"v":           "2.0",
		"sign_method": "hmac",
		"simplify":    "true",
		"page_no":     "1",
		"sign":        "stub-signature",
	} {
		if got := form.Get(key); got != want {
			t.Fatalf("form field %q: got %q, want %q", key, got, want)
		}
	}
	// 2026-03-15T10:30:00Z rendered in the gateway zone (UTC+8).
	if got := form.Get("timestamp"); got != "2026-03-15 18:30:00" {
		t.Fatalf("unexpected timestamp %q", got)
	}

	if len(signer.signed) != 1 {
		t.Fatalf("expected one signing call, got %d", len(signer.signed))
	}
	canonical := string(signer.signed[0])
	if strings.Contains(canonical, "sign") && strings.Contains(canonical, "stub-signature") {
		t.Fatal("signature must not feed back into the canonical string")
	}
	if !strings.Contains(canonical, "app_keyapp-key-1") {
		t.Fatalf("canonical string missing key-value concatenation: %q", canonical)
	}
}

func TestExecuteOpenPlatformBusinessParamsWin(t *testing.T) {
	transport := &stubTransport{response: TransportResponse{StatusCode: 200, Body: []byte(`{}`)}}
	client := newTestClient(t, testClientConfig(), transport, &stubSigner{})

	if _, err := client.Execute(context.Background(), "alitrip.travel.items.get", map[string]any{
		"format": "xml",
	}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	form, err := url.ParseQuery(string(transport.requests[0].Body))
	if err != nil {
		t.Fatalf("parse form body: %v", err)
	}
	if got := form.Get("format"); got != "xml" {
		t.Fatalf("business parameter should shadow the system value, got format=%q", got)
	}
}

func TestExecuteOpenPlatformGetUsesRFC3986Encoding(t *testing.T) {
	transport := &stubTransport{response: TransportResponse{StatusCode: 200, Body: []byte(`{}`)}}
	client := newTestClient(t, testClientConfig(), transport, &stubSigner{})

	if _, err := client.Execute(context.Background(), "alitrip.travel.items.get", map[string]any{
		"title": "beach tour",
	}, WithHTTPGet()); err != nil {
		t.Fatalf("execute: %v", err)
	}

	req := transport.requests[0]
	if req.Method != http.MethodGet {
		t.Fatalf("expected GET, got %s", req.Method)
	}
	if strings.Contains(req.URL, "+") {
		t.Fatalf("query must percent-encode spaces, got %s", req.URL)
	}
	if !strings.Contains(req.URL, "beach%20tour") {
		t.Fatalf("expected %%20 encoded space in %s", req.URL)
	}
	if len(req.Body) != 0 {
		t.Fatal("GET dispatch must not carry a body")
	}
}

func TestExecuteOpenPlatformRequiresAppKey(t *testing.T) {
	cfg := testClientConfig()
	cfg.AppKey = ""
	transport := &stubTransport{}
	client := newTestClient(t, cfg, transport, &stubSigner{})

	_, err := client.Execute(context.Background(), "alitrip.travel.items.get", nil)
	if err == nil {
		t.Fatal("expected configuration error without app_key")
	}
	if len(transport.requests) != 0 {
		t.Fatal("no request may be dispatched when configuration is incomplete")
	}
}

func TestExecuteCustomConventionBuildsJSONPost(t *testing.T) {
	transport := &stubTransport{response: TransportResponse{
		StatusCode: 200,
		Body:       []byte(`{"success":true,"data":[]}`),
	}}
	signer := &stubSigner{}
	client := newTestClient(t, testClientConfig(), transport, signer)

	outcome, err := client.Execute(context.Background(), "queryProductBaseInfoByPage", map[string]any{
		"pageNo":   1,
		"pageSize": 20,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !outcome.IsSuccess() {
		t.Fatalf("expected success, got %s", outcome.Kind)
	}

	req := transport.requests[0]
	if req.Method != http.MethodPost {
		t.Fatalf("expected POST, got %s", req.Method)
	}
	if !strings.HasSuffix(req.URL, "/queryProductBaseInfoByPage?format=json") {
		t.Fatalf("unexpected custom url %s", req.URL)
	}
	if req.Headers["Content-Type"] != "application/json" {
		t.Fatalf("unexpected content type %q", req.Headers["Content-Type"])
	}

	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["distributorId"] != "dist-100" {
		t.Fatalf("expected distributorId injected, got %#v", body["distributorId"])
	}
	timestamp, _ := body["timestamp"].(string)
	if len(timestamp) != 13 {
		t.Fatalf("expected 13-digit millisecond timestamp, got %q", timestamp)
	}
	if body["sign"] != "stub-signature" {
		t.Fatalf("expected signature in body, got %#v", body["sign"])
	}

	canonical := string(signer.signed[0])
	want := "distributorId=dist-100,pageNo=1,pageSize=20,timestamp=" + timestamp
	if canonical != want {
		t.Fatalf("canonical string mismatch:\n got %q\nwant %q", canonical, want)
	}
}

func TestExecuteCustomConventionGetUsesQueryString(t *testing.T) {
	transport := &stubTransport{response: TransportResponse{StatusCode: 200, Body: []byte(`{}`)}}
	client := newTestClient(t, testClientConfig(), transport, &stubSigner{})

	if _, err := client.Execute(context.Background(), "queryProductDetailInfo", map[string]any{
		"productId": "P 1",
	}, WithHTTPGet()); err != nil {
		t.Fatalf("execute: %v", err)
	}

	req := transport.requests[0]
	if req.Method != http.MethodGet {
		t.Fatalf("expected GET, got %s", req.Method)
	}
	if !strings.Contains(req.URL, "/queryProductDetailInfo?format=json&") {
		t.Fatalf("unexpected custom url %s", req.URL)
	}
	if !strings.Contains(req.URL, "distributorId=dist-100") {
		t.Fatalf("expected distributorId in query, got %s", req.URL)
	}
	if !strings.Contains(req.URL, "sign=stub-signature") {
		t.Fatalf("expected signature in query, got %s", req.URL)
	}
	if !strings.Contains(req.URL, "productId=P%201") {
		t.Fatalf("expected %%20 encoded space in %s", req.URL)
	}
	if len(req.Body) != 0 {
		t.Fatal("GET dispatch must not carry a body")
	}
}

func TestExecuteCustomConventionReservedKeysUnshadowable(t *testing.T) {
	transport := &stubTransport{response: TransportResponse{StatusCode: 200, Body: []byte(`{}`)}}
	client := newTestClient(t, testClientConfig(), transport, &stubSigner{})

	if _, err := client.Execute(context.Background(), "queryOrder", map[string]any{
		"distributorId": "spoofed",
		"timestamp":     "1",
		"sign":          "spoofed",
		"orderId":       "O1",
	}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(transport.requests[0].Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["distributorId"] != "dist-100" {
		t.Fatalf("reserved distributorId was shadowed: %#v", body["distributorId"])
	}
	if body["sign"] == "spoofed" {
		t.Fatal("reserved sign was shadowed")
	}
}

func TestExecuteTransportFailure(t *testing.T) {
	transport := &stubTransport{err: context.DeadlineExceeded}
	client := newTestClient(t, testClientConfig(), transport, &stubSigner{})

	outcome, err := client.Execute(context.Background(), "queryOrder", nil)
	if err == nil {
		t.Fatal("expected error on transport failure")
	}
	if outcome.Kind != OutcomeTransportError {
		t.Fatalf("expected transport outcome, got %s", outcome.Kind)
	}
}

func TestExecuteRequiresTransport(t *testing.T) {
	client, err := NewClient(testClientConfig(), WithSigner(&stubSigner{}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Execute(context.Background(), "queryOrder", nil); err == nil {
		t.Fatal("expected configuration error without a transport adapter")
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(Config{}, WithSigner(&stubSigner{}))
	if err == nil {
		t.Fatal("expected validation error for empty config")
	}
}

func TestClassifyMethod(t *testing.T) {
	if got := ClassifyMethod("alitrip.travel.items.get"); got != ConventionOpenPlatform {
		t.Fatalf("expected open platform, got %s", got)
	}
	if got := ClassifyMethod("queryProductBaseInfoByPage"); got != ConventionCustom {
		t.Fatalf("expected custom, got %s", got)
	}
}
