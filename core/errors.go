package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ClientErrorConfiguration    = "FLIGGY_CONFIGURATION_ERROR"
	ClientErrorInvalidParameter = "FLIGGY_INVALID_PARAMETER"
	ClientErrorKeyLoad          = "FLIGGY_KEY_LOAD_ERROR"
	ClientErrorSigning          = "FLIGGY_SIGNING_ERROR"
	ClientErrorTransport        = "FLIGGY_TRANSPORT_ERROR"
	ClientErrorBusiness         = "FLIGGY_BUSINESS_ERROR"
	ClientErrorDecode           = "FLIGGY_DECODE_ERROR"
	ClientErrorWebhookRejected  = "FLIGGY_WEBHOOK_REJECTED"
	ClientErrorInternal         = "FLIGGY_INTERNAL_ERROR"
)

func configurationError(message string) *goerrors.Error {
	return newClientError(message, goerrors.CategoryBadInput, ClientErrorConfiguration)
}

func invalidParameterError(message string) *goerrors.Error {
	return newClientError(message, goerrors.CategoryValidation, ClientErrorInvalidParameter)
}

func keyLoadError(source error, message string) *goerrors.Error {
	return wrapClientError(source, goerrors.CategoryBadInput, message, ClientErrorKeyLoad)
}

func signingError(source error, message string) *goerrors.Error {
	return wrapClientError(source, goerrors.CategoryInternal, message, ClientErrorSigning)
}

func transportError(source error, message string) *goerrors.Error {
	return wrapClientError(source, goerrors.CategoryExternal, message, ClientErrorTransport)
}

func decodeError(source error, message string) *goerrors.Error {
	return wrapClientError(source, goerrors.CategoryExternal, message, ClientErrorDecode)
}

func newClientError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureClientErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func wrapClientError(source error, category goerrors.Category, message string, textCode string) *goerrors.Error {
	if source == nil {
		return newClientError(message, category, textCode)
	}
	return ensureClientErrorEnvelope(
		goerrors.Wrap(source, category, message).
			WithTextCode(textCode),
	)
}

func clientErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureClientErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "private key"), strings.Contains(msg, "public key"):
		return newClientError(err.Error(), goerrors.CategoryBadInput, ClientErrorKeyLoad)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newClientError(err.Error(), goerrors.CategoryBadInput, ClientErrorConfiguration)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "connection"), strings.Contains(msg, "network"):
		return newClientError(err.Error(), goerrors.CategoryExternal, ClientErrorTransport)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureClientErrorEnvelope(mapped)
}

func ensureClientErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = clientHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultClientTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultClientTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return ClientErrorConfiguration
	case goerrors.CategoryValidation:
		return ClientErrorInvalidParameter
	case goerrors.CategoryExternal:
		return ClientErrorTransport
	case goerrors.CategoryOperation:
		return ClientErrorBusiness
	default:
		return ClientErrorInternal
	}
}

func clientHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
