// Package manager implements the onode manager: the transactional façade
// that locates, creates, writes back, deletes and lists onodes stored in an
// ordered tree.
package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/felixhuettner/ceph/core/onode"
	"github.com/felixhuettner/ceph/core/transaction"
	internaltelemetry "github.com/felixhuettner/ceph/internal/telemetry"
	"github.com/felixhuettner/ceph/pkg/telemetry"
)

const (
	opContains        = "Contains"
	opGet             = "Get"
	opGetOrCreate     = "GetOrCreate"
	opGetOrCreateMany = "GetOrCreateMany"
	opWriteDirty      = "WriteDirty"
	opErase           = "Erase"
	opList            = "List"
)

// OnodeManager is stateless apart from its collaborators; all per-call state
// lives in the transaction and the onodes handed out.
type OnodeManager struct {
	tree        onode.Tree
	logger      *zap.Logger
	tracer      trace.Tracer
	metrics     *internaltelemetry.OnodeManagerMetrics
	serviceName string

	// abort is called for errors no caller can handle. It must not return
	// in production; the default logs at panic level.
	abort func(op string, err error)
}

// New builds a manager over tree. A nil tel disables tracing and metrics.
func New(tree onode.Tree, logger *zap.Logger, tel *telemetry.Telemetry) (*OnodeManager, error) {
	if tel == nil {
		tel = telemetry.Noop()
	}
	metrics, err := internaltelemetry.NewOnodeManagerMetrics(tel.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create onode manager metrics: %w", err)
	}
	m := &OnodeManager{
		tree:        tree,
		logger:      logger.Named("onode_manager"),
		tracer:      tel.Tracer,
		metrics:     metrics,
		serviceName: "onode_manager",
	}
	m.abort = m.panicOnInvariant
	return m, nil
}

// Contains reports whether oid has an entry, without decoding its record.
func (m *OnodeManager) Contains(ctx context.Context, txn *transaction.Transaction, oid onode.ObjectID) (found bool, err error) {
	ctx, span, startTime := m.startOp(ctx, opContains, txn)
	defer func() { m.endOp(ctx, span, startTime, opContains, err) }()
	if err = checkTxn(txn); err != nil {
		return false, err
	}

	found, err = m.tree.Contains(ctx, txn, oid)
	if err != nil {
		return false, m.handleTreeError(opContains, err)
	}
	return found, nil
}

// Get returns the clean onode stored under oid, or ErrNotFound.
func (m *OnodeManager) Get(ctx context.Context, txn *transaction.Transaction, oid onode.ObjectID) (o *onode.Onode, err error) {
	ctx, span, startTime := m.startOp(ctx, opGet, txn)
	defer func() { m.endOp(ctx, span, startTime, opGet, err) }()
	if err = checkTxn(txn); err != nil {
		return nil, err
	}

	cur, err := m.tree.Find(ctx, txn, oid)
	if err != nil {
		return nil, m.handleTreeError(opGet, err)
	}
	if cur.IsEnd() {
		m.logger.Debug("no entry", zap.Stringer("oid", oid), zap.Uint64("txn", txn.ID))
		return nil, fmt.Errorf("%w: %s", onode.ErrNotFound, oid)
	}
	o, err = onode.New(txn, cur)
	if err != nil {
		return nil, m.handleTreeError(opGet, err)
	}
	return o, nil
}

// GetOrCreate returns the onode under oid, inserting a default record when
// there is none. A created onode comes back Edited with Created set; an
// existing one comes back Clean and untouched.
func (m *OnodeManager) GetOrCreate(ctx context.Context, txn *transaction.Transaction, oid onode.ObjectID) (o *onode.Onode, err error) {
	ctx, span, startTime := m.startOp(ctx, opGetOrCreate, txn)
	defer func() { m.endOp(ctx, span, startTime, opGetOrCreate, err) }()
	if err = checkTxn(txn); err != nil {
		return nil, err
	}

	return m.getOrCreate(ctx, txn, oid, opGetOrCreate)
}

// GetOrCreateMany runs GetOrCreate for each oid in order. The first failure
// stops the batch; entries created before it stay in txn, which the caller
// must then abort.
func (m *OnodeManager) GetOrCreateMany(ctx context.Context, txn *transaction.Transaction, oids []onode.ObjectID) (onodes []*onode.Onode, err error) {
	ctx, span, startTime := m.startOp(ctx, opGetOrCreateMany, txn)
	defer func() { m.endOp(ctx, span, startTime, opGetOrCreateMany, err) }()
	span.SetAttributes(attribute.Int("onode.batch_size", len(oids)))
	if err = checkTxn(txn); err != nil {
		return nil, err
	}

	onodes = make([]*onode.Onode, 0, len(oids))
	for _, oid := range oids {
		o, err := m.getOrCreate(ctx, txn, oid, opGetOrCreateMany)
		if err != nil {
			return nil, err
		}
		onodes = append(onodes, o)
	}
	return onodes, nil
}

func (m *OnodeManager) getOrCreate(ctx context.Context, txn *transaction.Transaction, oid onode.ObjectID, op string) (*onode.Onode, error) {
	if err := oid.Validate(); err != nil {
		return nil, err
	}
	cur, created, err := m.tree.Insert(ctx, txn, oid, onode.LayoutSize)
	if err != nil {
		return nil, m.handleTreeError(op, err)
	}
	o, err := onode.New(txn, cur)
	if err != nil {
		return nil, m.handleTreeError(op, err)
	}
	if created {
		if err := o.MarkCreated(txn); err != nil {
			return nil, m.handleTreeError(op, err)
		}
		m.logger.Debug("created onode", zap.Stringer("oid", oid), zap.Uint64("txn", txn.ID))
	}
	return o, nil
}

// WriteDirty flushes pending effects in order: edited onodes are recorded
// and become Clean, delete-marked ones are erased and become Removed, the
// rest are skipped. The first failure stops the remainder.
func (m *OnodeManager) WriteDirty(ctx context.Context, txn *transaction.Transaction, onodes []*onode.Onode) (err error) {
	ctx, span, startTime := m.startOp(ctx, opWriteDirty, txn)
	defer func() { m.endOp(ctx, span, startTime, opWriteDirty, err) }()
	span.SetAttributes(attribute.Int("onode.batch_size", len(onodes)))
	if err = checkTxn(txn); err != nil {
		return err
	}

	for _, o := range onodes {
		switch o.State() {
		case onode.StateEdited:
			err = o.Record(ctx, txn)
		case onode.StateDeleteMarked:
			err = o.Remove(ctx, txn, m.tree)
		case onode.StateClean, onode.StateRemoved:
			continue
		}
		if err != nil {
			return m.handleTreeError(opWriteDirty, err)
		}
	}
	return nil
}

// Erase marks o for deletion on the next WriteDirty. The tree is not touched.
func (m *OnodeManager) Erase(ctx context.Context, txn *transaction.Transaction, o *onode.Onode) (err error) {
	ctx, span, startTime := m.startOp(ctx, opErase, txn)
	defer func() { m.endOp(ctx, span, startTime, opErase, err) }()
	if err = checkTxn(txn); err != nil {
		return err
	}

	o.MarkDelete()
	return nil
}

// List returns up to limit keys in [start, end) and the key the following
// page starts from. It seeks once and then steps the same cursor forward.
func (m *OnodeManager) List(ctx context.Context, txn *transaction.Transaction, start, end onode.ObjectID, limit uint64) (res onode.ListResult, err error) {
	ctx, span, startTime := m.startOp(ctx, opList, txn)
	defer func() { m.endOp(ctx, span, startTime, opList, err) }()
	if err = checkTxn(txn); err != nil {
		return onode.ListResult{}, err
	}

	if limit == 0 {
		return onode.ListResult{Keys: []onode.ObjectID{}, Next: start}, nil
	}

	cur, err := m.tree.LowerBound(ctx, txn, start)
	if err != nil {
		return onode.ListResult{}, m.handleTreeError(opList, err)
	}
	keys := make([]onode.ObjectID, 0, min(limit, 64))
	remaining := limit
	for {
		if cur.IsEnd() || onode.Compare(cur.Key(), end) >= 0 {
			res = onode.ListResult{Keys: keys, Next: end}
			break
		}
		if remaining == 0 {
			res = onode.ListResult{Keys: keys, Next: cur.Key()}
			break
		}
		keys = append(keys, cur.Key())
		remaining--
		cur, err = m.tree.Advance(ctx, txn, cur)
		if err != nil {
			return onode.ListResult{}, m.handleTreeError(opList, err)
		}
	}

	m.metrics.ListedKeysCounter.Add(ctx, int64(len(res.Keys)), metric.WithAttributes(
		attribute.String("onode.service", m.serviceName),
	))
	span.SetAttributes(attribute.Int("onode.listed_keys", len(res.Keys)))
	return res, nil
}

// checkTxn rejects a missing transaction before any tree call.
func checkTxn(txn *transaction.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: no transaction", onode.ErrTransactionClosed)
	}
	return nil
}

// handleTreeError forwards the errors a caller can act on and aborts on
// everything else.
func (m *OnodeManager) handleTreeError(op string, err error) error {
	switch {
	case errors.Is(err, onode.ErrIO),
		errors.Is(err, onode.ErrConflict),
		errors.Is(err, onode.ErrTransactionClosed):
		return err
	case errors.Is(err, onode.ErrCorruptKey),
		errors.Is(err, onode.ErrValueSize),
		errors.Is(err, onode.ErrKeyVanished),
		errors.Is(err, onode.ErrOnodeDeleted),
		errors.Is(err, onode.ErrInvalidTransition),
		errors.Is(err, onode.ErrForeignTransaction):
		m.abort(op, err)
	default:
		m.abort(op, fmt.Errorf("unexpected error kind: %w", err))
	}
	return err
}

func (m *OnodeManager) panicOnInvariant(op string, err error) {
	m.logger.Panic(fmt.Sprintf("Invalid error in OnodeManager::%s: %v", op, err),
		zap.String("op", op), zap.Error(err))
}

// startOp begins the telemetry recording for a manager operation.
func (m *OnodeManager) startOp(ctx context.Context, op string, txn *transaction.Transaction) (context.Context, trace.Span, time.Time) {
	startTime := time.Now()
	attrs := metric.WithAttributes(
		attribute.String("onode.service", m.serviceName),
		attribute.String("onode.op", op),
	)
	m.metrics.ActiveOpsUpDownCounter.Add(ctx, 1, attrs)
	m.metrics.OpsStartedCounter.Add(ctx, 1, attrs)

	spanAttrs := []attribute.KeyValue{
		attribute.String("onode.service", m.serviceName),
		attribute.String("onode.op", op),
	}
	if txn != nil {
		spanAttrs = append(spanAttrs, attribute.Int64("onode.txn", int64(txn.ID)))
	}
	ctx, span := m.tracer.Start(ctx, "OnodeManager."+op, trace.WithAttributes(spanAttrs...))
	return ctx, span, startTime
}

// endOp completes the telemetry recording for a manager operation. A miss
// on Get is a normal outcome and keeps the span status Ok.
func (m *OnodeManager) endOp(ctx context.Context, span trace.Span, startTime time.Time, op string, err error) {
	latency := time.Since(startTime).Milliseconds()

	code := otelcodes.Ok
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, onode.ErrNotFound):
		result = "not_found"
	default:
		code = otelcodes.Error
		result = "error"
		span.RecordError(err)
	}
	span.SetStatus(code, result)
	span.End()

	attrs := metric.WithAttributes(
		attribute.String("onode.service", m.serviceName),
		attribute.String("onode.op", op),
		attribute.String("onode.result", result),
	)
	m.metrics.ActiveOpsUpDownCounter.Add(ctx, -1, metric.WithAttributes(
		attribute.String("onode.service", m.serviceName),
		attribute.String("onode.op", op),
	))
	m.metrics.OpsHandledCounter.Add(ctx, 1, attrs)
	m.metrics.OpLatencyHistogram.Record(ctx, latency, attrs)
}
