package core

import (
	"strings"
	"testing"
)

func TestBuildOpenPlatformSigningString(t *testing.T) {
	params := map[string]any{
		"method":    "alitrip.travel.test",
		"app_key":   "K",
		"a":         "1",
		"timestamp": "2026-01-02 15:04:05",
	}
	got, err := BuildOpenPlatformSigningString(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "a1app_keyKmethodalitrip.travel.testtimestamp2026-01-02 15:04:05"
	if got != want {
		t.Fatalf("signing string mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestBuildOpenPlatformSigningStringSkipsEmptyAndSign(t *testing.T) {
	params := map[string]any{
		"a":    "1",
		"b":    "",
		"c":    nil,
		"sign": "should-never-appear",
	}
	got, err := BuildOpenPlatformSigningString(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a1" {
		t.Fatalf("expected empty and nil values skipped, got %q", got)
	}
}

func TestBuildOpenPlatformSigningStringRejectsNestedMap(t *testing.T) {
	_, err := BuildOpenPlatformSigningString(map[string]any{
		"a": map[string]any{"nested": true},
	})
	if err == nil {
		t.Fatal("expected error for unflattened nested value")
	}
}

func TestBuildCustomSigningString(t *testing.T) {
	params := map[string]any{
		"pageSize":  20,
		"pageNo":    1,
		"tenantId":  "T100",
		"timestamp": "1750000000000",
	}
	got, err := BuildCustomSigningString(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "pageNo=1,pageSize=20,tenantId=T100,timestamp=1750000000000"
	if got != want {
		t.Fatalf("signing string mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestBuildCustomSigningStringExcludesSignature(t *testing.T) {
	got, err := BuildCustomSigningString(map[string]any{
		"orderId": "O1",
		"sign":    "previous",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, "sign") {
		t.Fatalf("signature field leaked into canonical string: %q", got)
	}
}

func TestBuildWebhookSigningStringValuesOnly(t *testing.T) {
	payload := map[string]any{
		"pushType":  "ORDER_STATUS_CHANGE",
		"messageId": "m-1",
		"orderId":   "O9",
		"sign":      "ignored",
	}
	got, err := BuildWebhookSigningString(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Keys sort as messageId, orderId, pushType; only values are joined.
	want := "m-1,O9,ORDER_STATUS_CHANGE"
	if got != want {
		t.Fatalf("canonical string mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestBuildWebhookSigningStringRendersCompositeAsJSON(t *testing.T) {
	payload := map[string]any{
		"messageId": "m-2",
		"data":      map[string]any{"orderStatus": "PAID"},
	}
	got, err := BuildWebhookSigningString(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"orderStatus":"PAID"},m-2`
	if got != want {
		t.Fatalf("canonical string mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestFormatParamValueScalars(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"uint", uint(9), "9"},
		{"bool", true, "true"},
		{"float", 1.5, "1.5"},
		{"float_whole", 20.0, "20"},
		{"string_slice", []string{"a", "b"}, "a,b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, skip, err := formatParamValue(tc.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if skip {
				t.Fatal("value should not be skipped")
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatParamValueSkips(t *testing.T) {
	for _, value := range []any{nil, "", []string{}, []any{}} {
		_, skip, err := formatParamValue(value)
		if err != nil {
			t.Fatalf("unexpected error for %#v: %v", value, err)
		}
		if !skip {
			t.Fatalf("expected %#v to be skipped", value)
		}
	}
}
