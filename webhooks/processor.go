package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-fliggy/core"
)

// Tokens are the literal response bodies the partner's dispatcher matches
// on. Anything other than "success" triggers partner-side redelivery.
const (
	TokenSuccess = "success"
	TokenError   = "error"
)

// Job identifiers for the async handlers behind accepted pushes.
const (
	JobProductPush = "fliggy.webhook.product"
	JobOrderPush   = "fliggy.webhook.order"
)

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

// Processor is the synchronous half of push handling: verify, validate,
// dedupe, enqueue, answer. All real work happens in the queued jobs; the
// partner connection is held only long enough to take custody of the push.
type Processor struct {
	Verifier Verifier
	Ledger   DeliveryLedger
	Enqueuer core.JobEnqueuer
	Logger   core.Logger
	// DistributorID, when set, must match the push's distributorId exactly;
	// pushes for another tenant are rejected.
	DistributorID string
	RetryPolicy   RetryPolicy
	ClaimLease    time.Duration
	MaxAttempts   int
	Now           func() time.Time
}

func NewProcessor(verifier Verifier, ledger DeliveryLedger, enqueuer core.JobEnqueuer, logger core.Logger) *Processor {
	return &Processor{
		Verifier:    verifier,
		Ledger:      ledger,
		Enqueuer:    enqueuer,
		Logger:      logger,
		RetryPolicy: ExponentialRetryPolicy{},
		ClaimLease:  30 * time.Second,
		MaxAttempts: 8,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

var _ core.WebhookHandler = (*Processor)(nil)

// Handle processes one inbound push end to end and always returns a result
// suitable to write back to the partner, even alongside an error. Bodies may
// be JSON or form-encoded; both flatten into the same payload map.
func (p *Processor) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if p == nil || p.Ledger == nil || p.Enqueuer == nil {
		return rejected(nil), fmt.Errorf("webhooks: processor requires ledger and enqueuer")
	}

	category := strings.ToLower(strings.TrimSpace(req.Category))
	required, knownCategory := requiredFieldsFor(category)
	if !knownCategory {
		return rejected(nil), fmt.Errorf("webhooks: unknown push category %q", req.Category)
	}

	payload, err := decodePushPayload(req)
	if err != nil {
		return rejected(nil), err
	}

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, payload); err != nil {
			p.logWarn(ctx, "push rejected", map[string]any{
				"category": category,
				"reason":   err.Error(),
			})
			return rejected(map[string]any{"category": category}), err
		}
	}

	var missing []string
	for _, field := range required {
		value, present := payload[field]
		if !present || value == nil || strings.TrimSpace(fmt.Sprint(value)) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		err := fmt.Errorf("webhooks: push is missing required fields: %s", strings.Join(missing, ", "))
		p.logWarn(ctx, "push rejected", map[string]any{
			"category": category,
			"missing":  strings.Join(missing, ","),
		})
		return rejected(map[string]any{"category": category}), err
	}

	if p.DistributorID != "" {
		if got := strings.TrimSpace(fmt.Sprint(payload["distributorId"])); got != p.DistributorID {
			err := fmt.Errorf("webhooks: push addressed to distributor %q, not this tenant", got)
			p.logWarn(ctx, "push rejected", map[string]any{
				"category": category,
				"reason":   "wrong tenant",
			})
			return rejected(map[string]any{"category": category}), err
		}
	}

	messageID := strings.TrimSpace(fmt.Sprint(payload["messageId"]))
	pushType := strings.TrimSpace(fmt.Sprint(payload["pushType"]))
	if !knownPushType(category, pushType) {
		// The partner introduces push types without notice; accept and let
		// the async handler decide what to do with it.
		p.logInfo(ctx, "unrecognized push type accepted", map[string]any{
			"category":  category,
			"push_type": pushType,
		})
	}

	delivery, claimed, err := p.Ledger.Claim(ctx, category, messageID, req.Body, p.claimLease())
	if err != nil {
		return rejected(map[string]any{"category": category}), err
	}
	if !claimed {
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Token:      TokenSuccess,
			Metadata: map[string]any{
				"category":   category,
				"message_id": messageID,
				"status":     delivery.Status,
				"deduped":    true,
			},
		}, nil
	}

	jobID := JobProductPush
	if category == CategoryOrder {
		jobID = JobOrderPush
	}
	enqueueErr := p.Enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
		JobID:          jobID,
		Parameters:     payload,
		IdempotencyKey: messageID,
		DedupPolicy:    "ignore",
	})
	if enqueueErr != nil {
		nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(delivery.Attempts))
		_ = p.Ledger.Fail(ctx, delivery.ClaimID, enqueueErr, nextAttemptAt, p.maxAttempts())
		return rejected(map[string]any{"category": category}), enqueueErr
	}

	if err := p.Ledger.Complete(ctx, delivery.ClaimID); err != nil {
		return rejected(map[string]any{"category": category}), err
	}

	p.logInfo(ctx, "push accepted", map[string]any{
		"category":   category,
		"push_type":  pushType,
		"message_id": messageID,
		"job_id":     jobID,
	})
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Token:      TokenSuccess,
		Metadata: map[string]any{
			"category":   category,
			"message_id": messageID,
			"push_type":  pushType,
		},
	}, nil
}

// decodePushPayload flattens a push body into the key-value map the verifier
// and validators work on. The partner dispatcher sends JSON for most pushes
// but form-encoded bodies on some legacy routes, so the content type decides
// which decoder runs.
func decodePushPayload(req core.InboundRequest) (map[string]any, error) {
	if isFormEncoded(req.Headers) {
		values, err := url.ParseQuery(string(bytes.TrimSpace(req.Body)))
		if err != nil {
			return nil, fmt.Errorf("webhooks: decode push form body: %w", err)
		}
		payload := make(map[string]any, len(values))
		for key, list := range values {
			if len(list) > 0 {
				payload[key] = list[0]
			}
		}
		return payload, nil
	}

	payload := map[string]any{}
	decoder := json.NewDecoder(bytes.NewReader(req.Body))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("webhooks: decode push body: %w", err)
	}
	return payload, nil
}

func isFormEncoded(headers map[string]string) bool {
	for name, value := range headers {
		if strings.EqualFold(name, "Content-Type") &&
			strings.Contains(strings.ToLower(value), "application/x-www-form-urlencoded") {
			return true
		}
	}
	return false
}

func rejected(metadata map[string]any) core.InboundResult {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["rejected"] = true
	return core.InboundResult{
		Accepted:   false,
		StatusCode: http.StatusBadRequest,
		Token:      TokenError,
		Metadata:   metadata,
	}
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return 30 * time.Second
}

func (p *Processor) maxAttempts() int {
	if p != nil && p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 8
}

func (p *Processor) logInfo(ctx context.Context, message string, fields map[string]any) {
	p.log(ctx, false, message, fields)
}

func (p *Processor) logWarn(ctx context.Context, message string, fields map[string]any) {
	p.log(ctx, true, message, fields)
}

func (p *Processor) log(ctx context.Context, warn bool, message string, fields map[string]any) {
	if p == nil || p.Logger == nil {
		return
	}
	logger := p.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	if warn {
		logger.Warn(message, args...)
		return
	}
	logger.Info(message, args...)
}
