package sale

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/pos-settlement/internal/domain/auth"
	"github.com/xenking/pos-settlement/internal/domain/cart"
	"github.com/xenking/pos-settlement/internal/domain/credit"
	"github.com/xenking/pos-settlement/internal/domain/inventory"
	"github.com/xenking/pos-settlement/internal/domain/promotion"
	"github.com/xenking/pos-settlement/internal/domain/tax"
)

// CreateRequest holds the input for creating a sale.
type CreateRequest struct {
	Items              []cart.Item
	CustomerID         string
	PaymentMethod      string
	TaxConfigurationID string
	// AmountPaid defaults to the net total when nil.
	AmountPaid *decimal.Decimal
	// ManualDiscount is added to the promotional discount before capping.
	ManualDiscount decimal.Decimal
	// ApplyCredit confirms that any shortfall may be carried as credit.
	ApplyCredit bool
}

// Result holds the output of a committed sale.
type Result struct {
	Sale              *Sale
	Discount          decimal.Decimal
	Tax               decimal.Decimal
	TaxConfiguration  *tax.Configuration
	AppliedPromotions []promotion.Applied
	CreditTransaction *credit.Transaction
}

// Service creates sales.
type Service struct {
	store Store
	now   func() time.Time

	tracer   trace.Tracer
	created  metric.Int64Counter
	rejected metric.Int64Counter
	totals   metric.Float64Histogram
}

// NewService creates a sale Service. Telemetry instruments are created from
// the given providers.
func NewService(store Store, tp trace.TracerProvider, mp metric.MeterProvider, now func() time.Time) (*Service, error) {
	if now == nil {
		now = time.Now
	}
	meter := mp.Meter("pos/sale")

	created, err := meter.Int64Counter("pos.sales.created",
		metric.WithDescription("Committed sales"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "created counter")
	}
	rejected, err := meter.Int64Counter("pos.sales.rejected",
		metric.WithDescription("Sales rejected by a business rule"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}
	totals, err := meter.Float64Histogram("pos.sales.total",
		metric.WithDescription("Net total of committed sales"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "total histogram")
	}

	return &Service{
		store:    store,
		now:      now,
		tracer:   tp.Tracer("pos/sale"),
		created:  created,
		rejected: rejected,
		totals:   totals,
	}, nil
}

// CreateSale prices, settles and persists a sale in one unit of work. On
// any failure nothing is written.
func (s *Service) CreateSale(ctx context.Context, actor auth.Actor, req CreateRequest) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "sale.Create",
		trace.WithAttributes(
			attribute.String("company.id", actor.CompanyID),
			attribute.Int("sale.items", len(req.Items)),
		),
	)
	defer span.End()

	lg := zctx.From(ctx).With(
		zap.String("company_id", actor.CompanyID),
		zap.String("user_id", actor.UserID),
	)

	if req.ManualDiscount.IsNegative() || (req.AmountPaid != nil && req.AmountPaid.IsNegative()) {
		return nil, ErrNegativeAmount
	}

	var res *Result
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		res, err = s.create(ctx, tx, actor, req)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if reason := Reason(err); reason != "" {
			s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
			lg.Warn("Sale rejected", zap.String("reason", reason), zap.Error(err))
		}
		return nil, err
	}

	total, _ := res.Sale.Total.Float64()
	s.created.Add(ctx, 1)
	s.totals.Record(ctx, total)
	span.SetAttributes(attribute.String("sale.id", res.Sale.ID))

	lg.Info("Sale created",
		zap.String("sale_id", res.Sale.ID),
		zap.Stringer("total", res.Sale.Total),
		zap.Stringer("discount", res.Discount),
		zap.Stringer("balance_due", res.Sale.BalanceDue),
		zap.Int("promotions", len(res.AppliedPromotions)),
	)
	return res, nil
}

func (s *Service) create(ctx context.Context, tx Tx, actor auth.Actor, req CreateRequest) (*Result, error) {
	now := s.now()

	// Expand the cart with container lines.
	c, err := cart.NewNormalizer(tx.Catalog()).Normalize(ctx, actor.CompanyID, req.Items)
	if err != nil {
		return nil, err
	}

	settings, err := tx.Companies().GetSettings(ctx, actor.CompanyID)
	if err != nil {
		return nil, errors.Wrap(err, "get company settings")
	}
	if req.CustomerID != "" {
		if _, err := tx.Customers().GetCustomer(ctx, actor.CompanyID, req.CustomerID); err != nil {
			return nil, errors.Wrap(err, "get customer")
		}
	}

	// Promotions see main items only, at their stated prices.
	items := make([]promotion.Item, len(c.Main))
	for i, l := range c.Main {
		items[i] = promotion.Item{
			ProductID: l.ProductID,
			Category:  c.Category(l.ProductID),
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
		}
	}
	promotions := promotion.NewResolver(tx.Promotions(), s.now)
	resolved, err := promotions.Resolve(ctx, promotion.Request{
		CompanyID:  actor.CompanyID,
		CustomerID: req.CustomerID,
		CartTotal:  c.MainTotal(),
		Items:      items,
	})
	if err != nil {
		return nil, errors.Wrap(err, "resolve promotions")
	}

	// Discount never exceeds the gross total.
	gross := c.GrossTotal()
	discount := decimal.Min(resolved.Total.Add(req.ManualDiscount), gross).Round(2)

	taxCfg, err := tax.NewResolver(tx.Taxes()).Resolve(ctx, actor.CompanyID, req.TaxConfigurationID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve tax")
	}
	breakdown := tax.Calculate(taxCfg, gross.Sub(discount))

	// Settlement works on the persisted cent values.
	total := breakdown.Net.Round(2)
	amountPaid := total
	if req.AmountPaid != nil {
		amountPaid = req.AmountPaid.Round(2)
	}
	due, err := credit.Assess(credit.Payment{
		NetTotal:      total,
		AmountPaid:    amountPaid,
		CustomerID:    req.CustomerID,
		CreditEnabled: settings.CreditPaymentEnabled,
		Confirmed:     req.ApplyCredit,
	})
	if err != nil {
		return nil, err
	}

	sale := &Sale{
		ID:            uuid.NewString(),
		CompanyID:     actor.CompanyID,
		CustomerID:    req.CustomerID,
		UserID:        actor.UserID,
		PaymentMethod: req.PaymentMethod,
		Subtotal:      gross.Round(2),
		Discount:      discount,
		Tax:           breakdown.Tax,
		Total:         total,
		AmountPaid:    amountPaid,
		BalanceDue:    due,
		CreatedAt:     now,
	}
	if taxCfg != nil {
		sale.TaxConfigurationID = taxCfg.ID
	}
	if err := tx.Sales().Create(ctx, sale); err != nil {
		return nil, errors.Wrap(err, "create sale")
	}

	var creditTx *credit.Transaction
	if sale.BalanceDue.IsPositive() {
		creditTx, err = credit.NewLedger(tx.Customers(), s.now).
			Charge(ctx, actor.CompanyID, req.CustomerID, sale.ID, sale.BalanceDue)
		if err != nil {
			return nil, errors.Wrap(err, "charge credit")
		}
	}

	sale.Items = make([]Item, len(c.Lines))
	for i, l := range c.Lines {
		sale.Items[i] = Item{
			ID:          uuid.NewString(),
			SaleID:      sale.ID,
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TotalPrice:  l.Total().Round(2),
			IsContainer: l.IsContainer,
		}
	}
	if err := tx.Sales().CreateItems(ctx, sale.Items); err != nil {
		return nil, errors.Wrap(err, "create sale items")
	}
	if err := inventory.NewMutator(tx.Stock()).Apply(ctx, actor.CompanyID, c.Lines); err != nil {
		return nil, err
	}

	if _, err := promotions.Redeem(ctx, sale.ID, req.CustomerID, resolved.Applied); err != nil {
		return nil, errors.Wrap(err, "redeem promotions")
	}

	return &Result{
		Sale:              sale,
		Discount:          discount,
		Tax:               breakdown.Tax,
		TaxConfiguration:  taxCfg,
		AppliedPromotions: resolved.Applied,
		CreditTransaction: creditTx,
	}, nil
}
