package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	openPlatformVersion    = "2.0"
	openPlatformSignMethod = "hmac"
	openPlatformTimeLayout = "2006-01-02 15:04:05"
)

// gatewayLocation is the timezone the open-platform gateway validates
// timestamps against. Requests stamped in any other zone drift outside the
// gateway's replay window.
var gatewayLocation = loadGatewayLocation()

func loadGatewayLocation() *time.Location {
	location, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return location
}

// Client dispatches signed partner calls over both calling conventions and
// normalizes every response into an Outcome. A single Client is safe for
// concurrent use: all state is set at construction.
type Client struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	signer          RequestSigner
	transport       TransportAdapter
	normalizer      *ResponseNormalizer
	now             func() time.Time
}

func NewClient(cfg Config, options ...Option) (*Client, error) {
	builder := defaultClientBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("fliggy", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("fliggy"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = defaultClientBuilder(cfg).errorFactory
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = time.Now
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.signer == nil {
		signer, signerErr := NewRSASigner(finalConfig.PrivateKey, finalConfig.PublicKey, logger)
		if signerErr != nil {
			return nil, mapBuildError(builder.errorMapper, signerErr)
		}
		builder.signer = signer
	}

	return &Client{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		signer:          builder.signer,
		transport:       builder.transport,
		normalizer:      NewResponseNormalizer(logger),
		now:             builder.now,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (c *Client) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.config
}

func (c *Client) Signer() RequestSigner {
	if c == nil {
		return nil
	}
	return c.signer
}

func (c *Client) Logger() Logger {
	if c == nil {
		return nil
	}
	return c.logger
}

// CallOption tweaks a single Execute call.
type CallOption func(*callSettings)

type callSettings struct {
	httpMethod string
}

// WithHTTPGet sends the call as a GET with RFC 3986 encoded query parameters
// instead of the default POST body (form for open platform, JSON for the
// custom convention).
func WithHTTPGet() CallOption {
	return func(s *callSettings) {
		s.httpMethod = http.MethodGet
	}
}

// Execute signs and dispatches one partner call. The convention is derived
// from the method name, never passed by the caller. The returned error covers
// pre-dispatch failures (configuration, canonicalization, signing) and
// transport-adapter errors; gateway rejections surface as outcome variants.
func (c *Client) Execute(ctx context.Context, method string, params map[string]any, options ...CallOption) (outcome Outcome, err error) {
	startedAt := time.Now().UTC()
	method = strings.TrimSpace(method)
	convention := ClassifyMethod(method)
	fields := map[string]any{
		"method":     method,
		"convention": string(convention),
	}
	defer func() {
		fields["outcome"] = string(outcome.Kind)
		c.observeOperation(ctx, startedAt, "execute", err, fields)
	}()

	if c == nil || c.transport == nil {
		err = configurationError("core: transport adapter is not configured")
		return TransportErrorOutcome(err), err
	}
	if method == "" {
		err = invalidParameterError("core: method name is required")
		return TransportErrorOutcome(err), err
	}

	settings := callSettings{httpMethod: http.MethodPost}
	for _, opt := range options {
		if opt != nil {
			opt(&settings)
		}
	}

	var request TransportRequest
	switch convention {
	case ConventionOpenPlatform:
		request, err = c.buildOpenPlatformRequest(method, params, settings)
	default:
		request, err = c.buildCustomRequest(method, params, settings)
	}
	if err != nil {
		return TransportErrorOutcome(err), err
	}

	response, dispatchErr := c.transport.Do(ctx, request)
	if dispatchErr != nil {
		err = transportError(dispatchErr, "core: dispatch "+method)
		return TransportErrorOutcome(err), err
	}

	outcome = c.normalizer.Normalize(&response)
	return outcome, nil
}

// buildOpenPlatformRequest assembles the legacy-gateway call: system
// parameters merged under the business parameters (business wins on
// collision), the no-separator canonical string signed, and the whole set
// sent as a form POST or RFC 3986 GET against the fixed router path.
func (c *Client) buildOpenPlatformRequest(method string, params map[string]any, settings callSettings) (TransportRequest, error) {
	appKey := strings.TrimSpace(c.config.AppKey)
	if appKey == "" {
		return TransportRequest{}, configurationError("core: app_key is required for open-platform methods")
	}

	format := strings.TrimSpace(c.config.Format)
	if format == "" {
		format = "json"
	}

	merged := map[string]any{
		"method":      method,
		"app_key":     appKey,
		"timestamp":   c.now().In(gatewayLocation).Format(openPlatformTimeLayout),
		"format":      format,
		"v":           openPlatformVersion,
		"sign_method": openPlatformSignMethod,
		"simplify":    "true",
	}
	for key, value := range params {
		if key == SignatureField {
			continue
		}
		merged[key] = value
	}

	signingString, err := BuildOpenPlatformSigningString(merged)
	if err != nil {
		return TransportRequest{}, err
	}
	signature, err := c.signer.Sign([]byte(signingString))
	if err != nil {
		return TransportRequest{}, err
	}

	wireParams, err := renderWireParams(merged)
	if err != nil {
		return TransportRequest{}, err
	}
	wireParams[SignatureField] = signature

	endpoint := c.config.ResolveBaseURL() + OpenPlatformPath

	if settings.httpMethod == http.MethodGet {
		return TransportRequest{
			Method:  http.MethodGet,
			URL:     endpoint + "?" + encodeRFC3986Query(wireParams),
			Headers: map[string]string{"Accept": "application/json"},
			Timeout: c.config.ResolveTimeout(),
			Metadata: map[string]any{
				"convention": string(ConventionOpenPlatform),
				"method":     method,
			},
		}, nil
	}

	return TransportRequest{
		Method: http.MethodPost,
		URL:    endpoint,
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"Accept":       "application/json",
		},
		Body:    []byte(encodeFormBody(wireParams)),
		Timeout: c.config.ResolveTimeout(),
		Metadata: map[string]any{
			"convention": string(ConventionOpenPlatform),
			"method":     method,
		},
	}, nil
}

// buildCustomRequest assembles the path-routed call: distributorId and a
// millisecond timestamp are reserved and cannot be shadowed by business
// parameters, the comma-joined key=value canonical string is signed, and the
// full parameter set ships as a JSON body (or an RFC 3986 query on GET).
func (c *Client) buildCustomRequest(method string, params map[string]any, settings callSettings) (TransportRequest, error) {
	merged := map[string]any{}
	for key, value := range params {
		switch key {
		case "distributorId", "timestamp", SignatureField:
			continue
		}
		merged[key] = value
	}
	merged["distributorId"] = strings.TrimSpace(c.config.DistributorID)
	merged["timestamp"] = strconv.FormatInt(c.now().UnixMilli(), 10)

	signingString, err := BuildCustomSigningString(merged)
	if err != nil {
		return TransportRequest{}, err
	}
	signature, err := c.signer.Sign([]byte(signingString))
	if err != nil {
		return TransportRequest{}, err
	}
	merged[SignatureField] = signature

	endpoint := c.config.ResolveCustomAPIBase() + "/" + url.PathEscape(method) + "?format=json"

	if settings.httpMethod == http.MethodGet {
		wireParams, err := renderWireParams(merged)
		if err != nil {
			return TransportRequest{}, err
		}
		return TransportRequest{
			Method:  http.MethodGet,
			URL:     endpoint + "&" + encodeRFC3986Query(wireParams),
			Headers: map[string]string{"Accept": "application/json"},
			Timeout: c.config.ResolveTimeout(),
			Metadata: map[string]any{
				"convention": string(ConventionCustom),
				"method":     method,
			},
		}, nil
	}

	body, err := json.Marshal(merged)
	if err != nil {
		return TransportRequest{}, invalidParameterError(fmt.Sprintf("core: encode request body: %s", err.Error()))
	}

	return TransportRequest{
		Method: http.MethodPost,
		URL:    endpoint,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		Body:    body,
		Timeout: c.config.ResolveTimeout(),
		Metadata: map[string]any{
			"convention": string(ConventionCustom),
			"method":     method,
		},
	}, nil
}

// renderWireParams stringifies parameters with the same rules canonicalization
// uses, so the signed string and the wire payload can never disagree.
func renderWireParams(params map[string]any) (map[string]string, error) {
	rendered := make(map[string]string, len(params))
	for key, value := range params {
		formatted, skip, err := formatParamValue(value)
		if err != nil {
			return nil, invalidParameterError(fmt.Sprintf("core: parameter %q: %s", key, err.Error()))
		}
		if skip {
			continue
		}
		rendered[key] = formatted
	}
	return rendered, nil
}

func encodeFormBody(params map[string]string) string {
	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	return values.Encode()
}

// encodeRFC3986Query percent-encodes spaces as %20; url.Values emits form
// encoding ("+"), which the gateway rejects on GET.
func encodeRFC3986Query(params map[string]string) string {
	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	return strings.ReplaceAll(values.Encode(), "+", "%20")
}
