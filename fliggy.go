package fliggy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-fliggy/command"
	"github.com/goliatone/go-fliggy/core"
	"github.com/goliatone/go-fliggy/webhooks"
)

// Aliases so host applications wire the whole integration from one import.
type (
	Config      = core.Config
	Outcome     = core.Outcome
	OutcomeKind = core.OutcomeKind
	Option      = core.Option
	CallOption  = core.CallOption
	Client      = core.Client
)

const (
	OutcomeSuccess        = core.OutcomeSuccess
	OutcomeBusinessError  = core.OutcomeBusinessError
	OutcomeTransportError = core.OutcomeTransportError
)

// Callbacks receive the local-side effects of verified pushes and catalog
// sync walks. Persistence is the host application's concern; a nil callback
// means the effect is dropped after logging.
type Callbacks struct {
	ProductSynced       func(ctx context.Context, product map[string]any) error
	ProductRefreshed    func(ctx context.Context, productID string, detail map[string]any) error
	PriceStockRefreshed func(ctx context.Context, productID string, priceStock map[string]any) error
	OrderStatusChanged  func(ctx context.Context, orderID string, payload map[string]any) error
	OrderCodeSent       func(ctx context.Context, orderID string, payload map[string]any) error
	OrderRefunded       func(ctx context.Context, orderID string, payload map[string]any) error
	OrderVerified       func(ctx context.Context, orderID string, payload map[string]any) error
}

// Commands exposes the push and sync handlers for callers that dispatch
// through their own bus or queue worker.
type Commands struct {
	ProcessProductChange *command.ProcessProductChangeCommand
	ProcessOrderPush     *command.ProcessOrderPushCommand
	SyncProducts         *command.SyncProductsCommand
}

// Service is the assembled integration: outbound client, webhook receiving
// chain, and the async push handlers, sharing one config and signer.
type Service struct {
	client    *core.Client
	logger    core.Logger
	processor *webhooks.Processor
	receiver  *webhooks.Receiver
	ledger    webhooks.DeliveryLedger
	commands  Commands
	callbacks Callbacks

	syncPageSize  int
	syncMaxPages  int
	syncPageDelay time.Duration
}

type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clientOptions []core.Option
	callbacks     Callbacks
	ledger        webhooks.DeliveryLedger
	enqueuer      core.JobEnqueuer
	marker        command.ProcessedMarker
	syncPageSize  int
	syncMaxPages  int
	syncPageDelay time.Duration
}

// WithClientOptions forwards options to the underlying core client
// (transport, signer, logger, clock).
func WithClientOptions(options ...core.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.clientOptions = append(o.clientOptions, options...)
	}
}

func WithCallbacks(callbacks Callbacks) ServiceOption {
	return func(o *serviceOptions) {
		o.callbacks = callbacks
	}
}

// WithDeliveryLedger swaps the in-process dedupe ledger for a shared one,
// e.g. the SQL-backed store when several receivers serve the endpoint.
func WithDeliveryLedger(ledger webhooks.DeliveryLedger) ServiceOption {
	return func(o *serviceOptions) {
		o.ledger = ledger
	}
}

// WithEnqueuer routes accepted pushes to an external queue instead of the
// default inline dispatch. The queue worker is expected to feed deliveries
// back into Commands().
func WithEnqueuer(enqueuer core.JobEnqueuer) ServiceOption {
	return func(o *serviceOptions) {
		o.enqueuer = enqueuer
	}
}

func WithProcessedMarker(marker command.ProcessedMarker) ServiceOption {
	return func(o *serviceOptions) {
		o.marker = marker
	}
}

func WithSyncPageSize(size int) ServiceOption {
	return func(o *serviceOptions) {
		o.syncPageSize = size
	}
}

func WithSyncMaxPages(pages int) ServiceOption {
	return func(o *serviceOptions) {
		o.syncMaxPages = pages
	}
}

// WithSyncPageDelay sets the pause between catalog pages so a full walk does
// not trip the partner's rate limits.
func WithSyncPageDelay(delay time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.syncPageDelay = delay
	}
}

func NewService(cfg Config, options ...ServiceOption) (*Service, error) {
	o := serviceOptions{
		syncPageSize: defaultSyncPageSize,
		syncMaxPages: defaultSyncMaxPages,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&o)
	}

	client, err := core.NewClient(cfg, o.clientOptions...)
	if err != nil {
		return nil, err
	}

	ledger := o.ledger
	if ledger == nil {
		ledger = webhooks.NewMemoryDeliveryLedger()
	}
	marker := o.marker
	if marker == nil {
		marker = command.NewMemoryProcessedMarker()
	}
	if o.syncPageSize <= 0 {
		o.syncPageSize = defaultSyncPageSize
	}
	if o.syncMaxPages <= 0 {
		o.syncMaxPages = defaultSyncMaxPages
	}

	service := &Service{
		client:        client,
		logger:        client.Logger(),
		ledger:        ledger,
		callbacks:     o.callbacks,
		syncPageSize:  o.syncPageSize,
		syncMaxPages:  o.syncMaxPages,
		syncPageDelay: o.syncPageDelay,
	}
	service.commands = Commands{
		ProcessProductChange: command.NewProcessProductChangeCommand(service, marker),
		ProcessOrderPush:     command.NewProcessOrderPushCommand(service, marker),
		SyncProducts:         command.NewSyncProductsCommand(service),
	}

	enqueuer := o.enqueuer
	if enqueuer == nil {
		enqueuer = &inlineEnqueuer{service: service}
	}

	verifier := webhooks.NewSignatureVerifier(client.Signer(), client.Logger())
	service.processor = webhooks.NewProcessor(verifier, ledger, enqueuer, client.Logger())
	service.processor.DistributorID = client.Config().DistributorID
	service.receiver = webhooks.NewReceiver(service.processor, client.Logger())

	return service, nil
}

func (s *Service) Client() *core.Client {
	if s == nil {
		return nil
	}
	return s.client
}

func (s *Service) Commands() Commands {
	if s == nil {
		return Commands{}
	}
	return s.commands
}

func (s *Service) Processor() *webhooks.Processor {
	if s == nil {
		return nil
	}
	return s.processor
}

func (s *Service) Receiver() *webhooks.Receiver {
	if s == nil {
		return nil
	}
	return s.receiver
}

// Mount registers the push endpoints under prefix, e.g. /webhooks/fliggy.
func (s *Service) Mount(mux *http.ServeMux, prefix string) {
	if s == nil || s.receiver == nil || mux == nil {
		return
	}
	s.receiver.Mount(mux, prefix)
}

// Execute dispatches one signed partner call; the convention is derived from
// the method name.
func (s *Service) Execute(ctx context.Context, method string, params map[string]any, options ...CallOption) (Outcome, error) {
	if s == nil || s.client == nil {
		err := fmt.Errorf("fliggy: service is not configured")
		return core.TransportErrorOutcome(err), err
	}
	return s.client.Execute(ctx, method, params, options...)
}

// inlineEnqueuer is the default dispatch path when no external queue is
// wired: accepted pushes run their command handlers before the partner
// connection is answered.
type inlineEnqueuer struct {
	service *Service
}

func (e *inlineEnqueuer) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if e == nil || e.service == nil {
		return fmt.Errorf("fliggy: inline enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("fliggy: execution message is required")
	}
	switch msg.JobID {
	case webhooks.JobProductPush:
		return e.service.commands.ProcessProductChange.Execute(ctx, command.ProcessProductChangeMessage{
			Payload: msg.Parameters,
		})
	case webhooks.JobOrderPush:
		return e.service.commands.ProcessOrderPush.Execute(ctx, command.ProcessOrderPushMessage{
			Payload: msg.Parameters,
		})
	default:
		return fmt.Errorf("fliggy: no handler registered for job %q", msg.JobID)
	}
}

func (s *Service) logInfo(ctx context.Context, message string, args ...any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Info(message, args...)
}

var (
	_ command.PushMutatingService = (*Service)(nil)
	_ command.CatalogSyncService  = (*Service)(nil)
	_ core.JobEnqueuer            = (*inlineEnqueuer)(nil)
)
