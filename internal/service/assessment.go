// Package service ties the tax engine to the record store, the event
// publisher and metrics.
package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dnswd/cukai"
	"github.com/dnswd/cukai/internal/credential"
	"github.com/dnswd/cukai/internal/events"
	"github.com/dnswd/cukai/internal/metrics"
	"github.com/dnswd/cukai/internal/record"
	"github.com/dnswd/cukai/internal/tax"
)

// Assessment is a computed and saved estimate.
type Assessment struct {
	Record     cukai.Record
	Chargeable cukai.Money
	Slices     []tax.Slice
}

type AssessmentService struct {
	Store     record.Store
	Publisher events.Publisher
	Schedule  *tax.Schedule
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// New fills unset collaborators with no-op defaults.
func New(store record.Store, opts ...Option) *AssessmentService {
	s := &AssessmentService{
		Store:     store,
		Publisher: events.NopPublisher{},
		Schedule:  tax.Default,
		Metrics:   metrics.New(),
		Logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type Option func(*AssessmentService)

func WithPublisher(p events.Publisher) Option { return func(s *AssessmentService) { s.Publisher = p } }
func WithMetrics(m *metrics.Metrics) Option    { return func(s *AssessmentService) { s.Metrics = m } }
func WithLogger(l *zap.Logger) Option          { return func(s *AssessmentService) { s.Logger = l } }
func WithSchedule(t *tax.Schedule) Option      { return func(s *AssessmentService) { s.Schedule = t } }

// Authenticate checks the demo IC/password pair.
func (s *AssessmentService) Authenticate(ic, password string) bool {
	ok := credential.Validate(ic, password)
	s.Metrics.ObserveCredential(ok)
	if !ok {
		s.Logger.Info("credential rejected")
	}
	return ok
}

// Estimate computes without saving.
func (s *AssessmentService) Estimate(income, relief cukai.Money) Assessment {
	chargeable := income.Subtract(relief)
	payable := s.Schedule.Compute(income.Amount, relief.Amount)
	return Assessment{
		Record: cukai.Record{
			Income:     income,
			TaxRelief:  relief,
			TaxPayable: cukai.NewMoney(payable),
		},
		Chargeable: chargeable,
		Slices:     s.Schedule.Breakdown(chargeable.Amount),
	}
}

// Assess computes tax, appends the record and publishes an event. The
// computed assessment is returned even when saving fails. Publish failures
// are logged only.
func (s *AssessmentService) Assess(ctx context.Context, userID, ic string, income, relief cukai.Money) (Assessment, error) {
	a := s.Estimate(income, relief)
	a.Record.UserID = userID
	a.Record.ICNumber = ic

	if err := s.Store.Append(ctx, a.Record); err != nil {
		s.Metrics.ObserveAssessment(metrics.ResultStoreError, a.Record.TaxPayable.Amount)
		s.Logger.Error("save record failed", zap.String("user_id", userID), zap.Error(err))
		return a, fmt.Errorf("save record: %w", err)
	}
	s.Metrics.ObserveAssessment(metrics.ResultSuccess, a.Record.TaxPayable.Amount)
	s.Logger.Info("assessment saved",
		zap.String("user_id", userID),
		zap.String("tax_payable", a.Record.TaxPayable.Fixed()))

	err := s.Publisher.PublishAssessment(ctx, a.Record)
	s.Metrics.ObservePublish(err)
	if err != nil {
		s.Logger.Warn("assessment event not published", zap.String("user_id", userID), zap.Error(err))
	}
	return a, nil
}

// Records lists everything stored so far.
func (s *AssessmentService) Records(ctx context.Context) ([]cukai.Record, error) {
	return s.Store.ReadAll(ctx)
}

// EffectiveRate is tax payable over gross income, zero when income is zero.
func (a Assessment) EffectiveRate() decimal.Decimal {
	if !a.Record.Income.Amount.IsPositive() {
		return decimal.Zero
	}
	return a.Record.TaxPayable.Amount.Div(a.Record.Income.Amount)
}
