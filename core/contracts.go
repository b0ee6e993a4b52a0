package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// TransportRequest is the wire-level request handed to a TransportAdapter.
// Body is already encoded for the resolved convention (form or JSON).
type TransportRequest struct {
	Method   string
	URL      string
	Headers  map[string]string
	Query    map[string]string
	Body     []byte
	Metadata map[string]any
	Timeout  time.Duration
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// RequestSigner produces and verifies partner signatures over canonical
// strings. Implementations must be safe for concurrent use; key material is
// read-only after construction.
type RequestSigner interface {
	Sign(data []byte) (string, error)
	Verify(data []byte, signatureBase64 string) bool
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string)       {}
func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// JobExecutionMessage mirrors the go-job execution contract so accepted
// webhook pushes can be enqueued without the core importing the queue
// implementation. IdempotencyKey carries the partner messageId.
type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

// JobWorkerEvent mirrors the queue worker's lifecycle notification so
// observers (logging, metrics) can watch push handling without importing the
// queue implementation.
type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

// InboundRequest is a partner push as received by the webhook boundary.
type InboundRequest struct {
	Category string
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

// InboundResult carries the synchronous answer owed to the partner. Token is
// the literal response body: "success" or "error", never a JSON envelope.
type InboundResult struct {
	Accepted   bool
	StatusCode int
	Token      string
	Metadata   map[string]any
}

type WebhookHandler interface {
	Handle(ctx context.Context, req InboundRequest) (InboundResult, error)
}

type CommandDispatcher interface {
	Dispatch(ctx context.Context, msg any) error
}
