package core

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ResponseNormalizer collapses every wire response into an Outcome. Both
// conventions funnel through the same normalizer so callers see a single
// three-way result regardless of gateway quirks.
type ResponseNormalizer struct {
	logger Logger
}

func NewResponseNormalizer(logger Logger) *ResponseNormalizer {
	return &ResponseNormalizer{logger: logger}
}

// Normalize classifies a transport response. Resolution order: HTTP status,
// empty body, XML sniffing, JSON decoding, then envelope inspection.
func (n *ResponseNormalizer) Normalize(response *TransportResponse) Outcome {
	if response == nil {
		return TransportErrorOutcome(transportError(nil, "core: nil transport response"))
	}

	body := bytes.TrimSpace(response.Body)

	if response.StatusCode != http.StatusOK {
		return n.normalizeNonOK(response.StatusCode, body)
	}

	if len(body) == 0 {
		return TransportErrorOutcome(transportError(nil, "core: partner returned an empty body with status 200"))
	}

	if looksLikeXML(body, response.Headers) {
		decoded, err := decodeXMLDocument(body)
		if err != nil {
			return TransportErrorOutcome(decodeError(err, "core: undecodable xml response"))
		}
		return n.classifyEnvelope(decoded, body)
	}

	decoded := map[string]any{}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&decoded); err != nil {
		return TransportErrorOutcome(decodeError(err, "core: undecodable json response"))
	}

	return n.classifyEnvelope(decoded, body)
}

func (n *ResponseNormalizer) normalizeNonOK(status int, body []byte) Outcome {
	if len(body) > 0 {
		decoded := map[string]any{}
		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.UseNumber()
		if err := decoder.Decode(&decoded); err == nil {
			if code, message, ok := extractErrorEnvelope(decoded); ok {
				return BusinessErrorOutcome(code, message, body)
			}
		}
	}
	return TransportErrorOutcome(transportError(nil, fmt.Sprintf("core: partner returned http status %d", status)))
}

// classifyEnvelope inspects a decoded document for the partner's two error
// shapes: the open-platform error_response envelope and the custom-convention
// success:false flag. Everything else is a success.
func (n *ResponseNormalizer) classifyEnvelope(decoded map[string]any, raw []byte) Outcome {
	if errEnvelope, ok := decoded["error_response"].(map[string]any); ok {
		code, message := errorCodeAndMessage(errEnvelope)
		return BusinessErrorOutcome(code, message, raw)
	}

	if success, present := decoded["success"]; present && !truthy(success) {
		code, message := errorCodeAndMessage(decoded)
		return BusinessErrorOutcome(code, message, raw)
	}

	return SuccessOutcome(decoded)
}

// extractErrorEnvelope recognizes the error shapes a failed HTTP status may
// carry: the open-platform error_response envelope, the success:false flag,
// or a bare top-level code/msg pair. The bare pair only counts here; on a 200
// it is ordinary response data.
func extractErrorEnvelope(decoded map[string]any) (code string, message string, ok bool) {
	if errEnvelope, found := decoded["error_response"].(map[string]any); found {
		code, message = errorCodeAndMessage(errEnvelope)
		return code, message, true
	}
	if success, present := decoded["success"]; present && !truthy(success) {
		code, message = errorCodeAndMessage(decoded)
		return code, message, true
	}
	if code, message = errorCodeAndMessage(decoded); code != "" {
		return code, message, true
	}
	return "", "", false
}

func errorCodeAndMessage(envelope map[string]any) (string, string) {
	code := firstStringField(envelope, "code", "errorCode", "error_code", "sub_code")
	message := firstStringField(envelope, "msg", "message", "errorMsg", "sub_msg")
	return code, message
}

func firstStringField(envelope map[string]any, keys ...string) string {
	for _, key := range keys {
		value, present := envelope[key]
		if !present || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return fmt.Sprintf("%v", v)
		case bool:
			return fmt.Sprintf("%t", v)
		}
	}
	return ""
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	case json.Number:
		return v.String() != "0"
	case float64:
		return v != 0
	default:
		return false
	}
}

// looksLikeXML sniffs the body prefix first and falls back to the
// content-type header. The legacy gateway occasionally answers form posts
// with XML even when JSON was requested.
func looksLikeXML(body []byte, headers map[string]string) bool {
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("<?xml")) {
		return true
	}
	for name, value := range headers {
		if strings.EqualFold(name, "Content-Type") && strings.Contains(strings.ToLower(value), "xml") {
			return true
		}
	}
	return false
}

// decodeXMLDocument walks the element tree into nested maps. Repeated sibling
// elements collapse into a slice under the shared name; attributes are
// dropped since the gateway never carries data in them.
func decodeXMLDocument(body []byte) (map[string]any, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		value, err := decodeXMLElement(decoder, start)
		if err != nil {
			return nil, err
		}
		root := map[string]any{}
		if child, isMap := value.(map[string]any); isMap {
			root[start.Name.Local] = child
		} else {
			root[start.Name.Local] = value
		}
		return root, nil
	}
}

func decodeXMLElement(decoder *xml.Decoder, start xml.StartElement) (any, error) {
	children := map[string]any{}
	var text strings.Builder

	for {
		token, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("unexpected end of xml inside <%s>", start.Name.Local)
			}
			return nil, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			child, err := decodeXMLElement(decoder, t)
			if err != nil {
				return nil, err
			}
			appendXMLChild(children, t.Name.Local, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if len(children) > 0 {
				return children, nil
			}
			return strings.TrimSpace(text.String()), nil
		}
	}
}

func appendXMLChild(children map[string]any, name string, value any) {
	existing, present := children[name]
	if !present {
		children[name] = value
		return
	}
	if list, isList := existing.([]any); isList {
		children[name] = append(list, value)
		return
	}
	children[name] = []any{existing, value}
}
