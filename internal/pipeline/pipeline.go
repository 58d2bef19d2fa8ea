// Package pipeline runs the per-transaction classification flow: fetch the
// receipt, decode its logs, gather evidence from the swap classifier and the
// address-role rule engine, aggregate, persist, publish. Transactions are
// independent and processed by a bounded worker pool; within one transaction
// the stages are strictly sequential.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/whalewatch/whaletx/internal/classify"
	"github.com/whalewatch/whaletx/internal/domain/model"
	"github.com/whalewatch/whaletx/internal/fetch"
	"github.com/whalewatch/whaletx/internal/metrics"
	"github.com/whalewatch/whaletx/internal/tracing"
)

// Task is one transaction to classify, as observed by the upstream whale
// monitor.
type Task struct {
	TxHash       string
	Chain        model.Chain
	TokenSymbol  string
	WhaleAddress string
	USDValue     decimal.Decimal
	Timestamp    time.Time
}

// ErrRequeue wraps provider-exhaustion failures: the transaction was not
// classified and the caller may submit it again later.
var ErrRequeue = errors.New("transaction fetch failed, requeue")

// ReceiptFetcher yields a complete receipt or fails.
type ReceiptFetcher interface {
	FetchReceipt(ctx context.Context, chain model.Chain, txHash string) (*model.Receipt, error)
}

// EventDecoder turns raw logs into typed events.
type EventDecoder interface {
	DecodeAll(logs []model.RawLog) []model.DecodedEvent
}

// SwapClassifier produces directional evidence from decoded events.
type SwapClassifier interface {
	Classify(receipt *model.Receipt, events []model.DecodedEvent) model.Evidence
}

// RoleLookup resolves an address to its role, nil when unknown.
type RoleLookup interface {
	Resolve(ctx context.Context, chain model.Chain, address string) *model.AddressRole
}

// RoleClassifier runs the address-role rule engine.
type RoleClassifier interface {
	Classify(in classify.RuleInput) model.ClassificationResult
}

// Aggregator merges evidence into the final result.
type Aggregator interface {
	Aggregate(txHash string, evidenceList []model.Evidence, requiredConfidence float64) model.ClassificationResult
}

// ResultStore appends classification results.
type ResultStore interface {
	Insert(ctx context.Context, result *model.ClassificationResult) error
}

// RecordStore upserts whale transaction records.
type RecordStore interface {
	Upsert(ctx context.Context, rec *model.WhaleTransactionRecord) error
}

// ResultPublisher pushes finalized results to downstream consumers.
// Optional; a nil publisher disables publishing.
type ResultPublisher interface {
	Publish(ctx context.Context, result *model.ClassificationResult) error
}

type Config struct {
	Workers            int
	QueueSize          int
	RequiredConfidence float64
}

type Pipeline struct {
	cfg        Config
	fetcher    ReceiptFetcher
	decoder    EventDecoder
	swaps      SwapClassifier
	roles      RoleLookup
	rules      RoleClassifier
	aggregator Aggregator
	results    ResultStore
	records    RecordStore
	publisher  ResultPublisher
	logger     *slog.Logger
	tracer     trace.Tracer
	health     *Health

	tasks chan Task
}

func New(
	cfg Config,
	fetcher ReceiptFetcher,
	decoder EventDecoder,
	swaps SwapClassifier,
	roles RoleLookup,
	rules RoleClassifier,
	aggregator Aggregator,
	results ResultStore,
	records RecordStore,
	publisher ResultPublisher,
	logger *slog.Logger,
) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:        cfg,
		fetcher:    fetcher,
		decoder:    decoder,
		swaps:      swaps,
		roles:      roles,
		rules:      rules,
		aggregator: aggregator,
		results:    results,
		records:    records,
		publisher:  publisher,
		logger:     logger.With("component", "pipeline"),
		tracer:     tracing.Tracer("pipeline"),
		health:     NewHealth(),
		tasks:      make(chan Task, cfg.QueueSize),
	}
}

func (p *Pipeline) Health() *Health { return p.health }

// Submit enqueues a task, blocking when the queue is full.
func (p *Pipeline) Submit(ctx context.Context, task Task) error {
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes tasks until ctx is cancelled. Each worker drains
// independently; a single bad transaction never stops the pool.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case task := <-p.tasks:
					if err := p.Process(ctx, task); err != nil {
						p.logger.Warn("transaction not classified",
							"tx_hash", task.TxHash,
							"chain", task.Chain,
							"err", err,
						)
					}
				}
			}
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Process classifies one transaction end to end. A returned error wrapping
// ErrRequeue means the receipt could not be fetched and the task may be
// retried later; everything after a successful fetch degrades to lower
// confidence instead of failing.
func (p *Pipeline) Process(ctx context.Context, task Task) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.process", trace.WithAttributes(
		attribute.String("tx_hash", task.TxHash),
		attribute.String("chain", task.Chain.String()),
	))
	defer span.End()

	start := time.Now()
	outcome, err := p.process(ctx, task)
	elapsed := time.Since(start)

	metrics.PipelineProcessedTotal.WithLabelValues(task.Chain.String(), outcome).Inc()
	metrics.PipelineLatency.WithLabelValues(task.Chain.String()).Observe(elapsed.Seconds())
	p.health.RecordLatency(elapsed)
	if err != nil {
		p.health.RecordFailure()
	} else {
		p.health.RecordSuccess()
	}
	return err
}

func (p *Pipeline) process(ctx context.Context, task Task) (string, error) {
	receipt, err := p.fetcher.FetchReceipt(ctx, task.Chain, task.TxHash)
	switch {
	case errors.Is(err, fetch.ErrReceiptNotFound):
		p.logger.Info("receipt not found", "tx_hash", task.TxHash, "chain", task.Chain)
		return "not_found", nil
	case err != nil:
		return "fetch_failed", fmt.Errorf("%w: %s: %v", ErrRequeue, task.TxHash, err)
	}

	events := p.decoder.DecodeAll(receipt.Logs)

	trail := make([]model.Evidence, 0, 2)
	trail = append(trail, p.swaps.Classify(receipt, events))

	ruleResult := p.rules.Classify(classify.RuleInput{
		TxHash:      task.TxHash,
		Chain:       task.Chain,
		TokenSymbol: task.TokenSymbol,
		From:        p.roles.Resolve(ctx, task.Chain, receipt.From),
		To:          p.roles.Resolve(ctx, task.Chain, receipt.To),
	})
	ruleEvidence := model.NewEvidence(classify.SourceRuleEngine,
		ruleResult.Classification, ruleResult.Confidence, ruleResult.Explanation)
	trail = append(trail, ruleEvidence)

	result := p.aggregator.Aggregate(task.TxHash, trail, p.cfg.RequiredConfidence)

	if err := p.results.Insert(ctx, &result); err != nil {
		return "store_failed", fmt.Errorf("persist result %s: %w", task.TxHash, err)
	}
	if err := p.records.Upsert(ctx, p.buildRecord(ctx, task, receipt, result)); err != nil {
		return "store_failed", fmt.Errorf("persist record %s: %w", task.TxHash, err)
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, &result); err != nil {
			// The result is durable in Postgres; a publish failure only
			// delays downstream consumers.
			p.logger.Warn("result publish failed", "tx_hash", task.TxHash, "err", err)
		}
	}

	p.logger.Debug("transaction classified",
		"tx_hash", task.TxHash,
		"classification", result.Classification,
		"confidence", result.Confidence,
	)
	return string(result.Classification), nil
}

func (p *Pipeline) buildRecord(ctx context.Context, task Task, receipt *model.Receipt, result model.ClassificationResult) *model.WhaleTransactionRecord {
	counterparty := p.counterpartyFor(ctx, task, receipt)
	return &model.WhaleTransactionRecord{
		TxHash:           task.TxHash,
		TokenSymbol:      task.TokenSymbol,
		Chain:            task.Chain,
		FromAddress:      receipt.From,
		ToAddress:        receipt.To,
		WhaleAddress:     task.WhaleAddress,
		CounterpartyType: counterparty,
		USDValue:         task.USDValue,
		Classification:   result.Classification,
		Confidence:       result.Confidence,
		Timestamp:        task.Timestamp,
	}
}

// counterpartyFor classifies the non-whale side of the transfer.
func (p *Pipeline) counterpartyFor(ctx context.Context, task Task, receipt *model.Receipt) model.CounterpartyType {
	other := receipt.To
	if !strings.EqualFold(task.WhaleAddress, receipt.From) {
		other = receipt.From
	}
	role := p.roles.Resolve(ctx, task.Chain, other)
	switch role.CategoryOrUnknown() {
	case model.RoleExchange:
		return model.CounterpartyCEX
	case model.RoleDex:
		return model.CounterpartyDEX
	case model.RoleBridge:
		return model.CounterpartyBridge
	case model.RolePersonal, model.RoleMarketMaker:
		return model.CounterpartyEOA
	default:
		return model.CounterpartyUnknown
	}
}
