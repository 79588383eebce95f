// Package services holds the rule engines for people, categories and
// transactions, and the report aggregator. Every operation validates and
// mutates inside one store transaction; side effects (report cache
// invalidation, ledger events) run only after commit.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

type options struct {
	publisher EventPublisher
	cacheTTL  time.Duration
	cacheSize int
	now       func() time.Time
	logger    *log.Logger
}

type Option func(*options)

// WithPublisher publishes a ledger event after every committed mutation.
func WithPublisher(p EventPublisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithReportCache caches computed reports for ttl. Zero disables caching.
func WithReportCache(ttl time.Duration) Option {
	return func(o *options) { o.cacheTTL = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Services bundles the rule engines over one store.
type Services struct {
	People       *PersonService
	Categories   *CategoryService
	Transactions *TransactionService
	Reports      *ReportService

	store     storage.Store
	publisher EventPublisher
}

func New(store storage.Store, opts ...Option) *Services {
	o := options{
		cacheSize: 8,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentApp})
	}

	reports := newReportService(store, o.cacheTTL, o.cacheSize, o.logger.WithComponent(log.ComponentReport))
	after := func(component string) *notifier {
		return &notifier{
			publisher:  o.publisher,
			invalidate: reports.Invalidate,
			logger:     o.logger.WithComponent(component),
		}
	}

	return &Services{
		People:       &PersonService{store: store, n: after(log.ComponentPerson)},
		Categories:   &CategoryService{store: store, n: after(log.ComponentCategory)},
		Transactions: &TransactionService{store: store, n: after(log.ComponentTransaction), now: o.now},
		Reports:      reports,
		store:        store,
		publisher:    o.publisher,
	}
}

// Ping reports whether the store is reachable.
func (s *Services) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close closes the store and, when it can be closed, the publisher.
func (s *Services) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}

// notifier runs the after-commit side effects of a mutation.
type notifier struct {
	publisher  EventPublisher
	invalidate func()
	logger     *log.Logger
}

func (n *notifier) committed(ctx context.Context, op, eventType string, fields log.LogFields, entityID int64, data any) {
	if n.invalidate != nil {
		n.invalidate()
	}
	log.NewStructuredLogger(n.logger).LogMutation(ctx, op, fields)

	if n.publisher == nil {
		return
	}
	ev, err := amqp.NewLedgerEvent(eventType, entityID, data)
	if err == nil {
		err = n.publisher.PublishEvent(ctx, ev)
	}
	if err != nil {
		// Don't fail the request: the change is already committed
		n.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, eventType, log.FieldError, err)
	}
}

// rejected logs a failed operation and passes err through. Domain errors
// are expected and logged at debug; anything else is an internal failure.
func (n *notifier) rejected(ctx context.Context, op string, err error) error {
	var domainErr *core.Error
	if errors.As(err, &domainErr) {
		fields := log.NewFields().
			WithOperation(op).
			WithRejection(core.KindName(err), domainErr.Field, domainErr.Rule).
			WithError(err)
		n.logger.DebugContext(ctx, "Operation rejected", fields.ToSlice()...)
		return err
	}
	n.logger.ErrorContext(ctx, "Operation failed", log.FieldOperation, op, log.FieldError, err)
	return err
}

// storeErr maps storage sentinels that survived the explicit checks
// (typically lost races) onto domain errors.
func storeErr(err error, duplicate, missing error) error {
	switch {
	case err == nil:
		return nil
	case duplicate != nil && errors.Is(err, storage.ErrDuplicate):
		return duplicate
	case missing != nil && (errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrForeignKey)):
		return missing
	case errors.Is(err, storage.ErrCheck):
		return core.Validation("", "value is outside the range the store accepts")
	default:
		return err
	}
}
