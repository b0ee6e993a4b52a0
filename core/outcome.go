package core

import goerrors "github.com/goliatone/go-errors"

// OutcomeKind tags the three-way result every partner call collapses into.
type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomeBusinessError  OutcomeKind = "business_error"
	OutcomeTransportError OutcomeKind = "transport_error"
)

// Outcome is the normalized result of a partner call. Exactly one variant is
// populated: Data for success, Code/Message (plus Raw) for a business
// rejection, Cause for transport-level failure. Callers never branch on wire
// format details; the normalizer already collapsed them.
type Outcome struct {
	Kind    OutcomeKind
	Data    map[string]any
	Code    string
	Message string
	Raw     []byte
	Cause   error
}

func SuccessOutcome(data map[string]any) Outcome {
	if data == nil {
		data = map[string]any{}
	}
	return Outcome{Kind: OutcomeSuccess, Data: data}
}

func BusinessErrorOutcome(code string, message string, raw []byte) Outcome {
	return Outcome{
		Kind:    OutcomeBusinessError,
		Code:    code,
		Message: message,
		Raw:     append([]byte(nil), raw...),
	}
}

func TransportErrorOutcome(cause error) Outcome {
	return Outcome{Kind: OutcomeTransportError, Cause: cause}
}

func (o Outcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess
}

// Err surfaces the failure variants as an error value for callers that
// prefer Go error flow over inspecting the outcome.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeBusinessError:
		message := o.Message
		if message == "" {
			message = "partner rejected the request"
		}
		return newClientError("core: "+message, goerrors.CategoryOperation, ClientErrorBusiness)
	case OutcomeTransportError:
		return transportError(o.Cause, "core: partner call failed")
	default:
		return nil
	}
}
