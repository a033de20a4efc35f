package handler

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-settlement/internal/domain/cart"
	"github.com/xenking/pos-settlement/internal/domain/credit"
	"github.com/xenking/pos-settlement/internal/domain/promotion"
	"github.com/xenking/pos-settlement/internal/domain/sale"
	"github.com/xenking/pos-settlement/internal/domain/tax"
)

// validationError is a malformed or out-of-range request field.
type validationError struct {
	field  string
	reason string
}

func (e *validationError) Error() string {
	return e.field + ": " + e.reason
}

func invalid(field, reason string) error {
	return &validationError{field: field, reason: reason}
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, errors.New("expected number")
	}
}

func decodeItem(d *jx.Decoder, i int) (cart.Item, error) {
	field := func(name string) string { return "items[" + strconv.Itoa(i) + "]." + name }

	var (
		item     cart.Item
		hasPrice bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Str()
			if err != nil {
				return invalid(field(key), "must be a string")
			}
			item.ProductID = v
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return invalid(field(key), "must be an integer")
			}
			item.Quantity = v
		case "price":
			v, err := decodeDecimal(d)
			if err != nil {
				return invalid(field(key), "must be a number")
			}
			item.UnitPrice = v
			hasPrice = true
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return item, err
	}
	switch {
	case item.ProductID == "":
		return item, invalid(field("product_id"), "required")
	case item.Quantity <= 0:
		return item, invalid(field("quantity"), "must be greater than 0")
	case !hasPrice:
		return item, invalid(field("price"), "required")
	case item.UnitPrice.IsNegative():
		return item, invalid(field("price"), "must not be negative")
	}
	return item, nil
}

func optionalStr(d *jx.Decoder, field string) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	v, err := d.Str()
	if err != nil {
		return "", invalid(field, "must be a string")
	}
	return v, nil
}

func optionalDecimal(d *jx.Decoder, field string) (*decimal.Decimal, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return nil, invalid(field, "must be a number")
	}
	if v.IsNegative() {
		return nil, invalid(field, "must not be negative")
	}
	return &v, nil
}

func decodeCreateSale(data []byte) (sale.CreateRequest, error) {
	var req sale.CreateRequest
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return req, invalid("body", "must be a JSON object")
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items":
			if d.Next() != jx.Array {
				return invalid(key, "must be an array")
			}
			var i int
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d, i)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				i++
				return nil
			})
		case "customer_id":
			req.CustomerID, err = optionalStr(d, key)
		case "payment_method":
			req.PaymentMethod, err = optionalStr(d, key)
		case "tax_configuration_id":
			req.TaxConfigurationID, err = optionalStr(d, key)
		case "amount_paid":
			req.AmountPaid, err = optionalDecimal(d, key)
		case "discount":
			var v *decimal.Decimal
			if v, err = optionalDecimal(d, key); err == nil && v != nil {
				req.ManualDiscount = *v
			}
		case "apply_credit":
			if d.Next() == jx.Null {
				return d.Null()
			}
			if req.ApplyCredit, err = d.Bool(); err != nil {
				return invalid(key, "must be a boolean")
			}
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		var ve *validationError
		if errors.As(err, &ve) {
			return req, ve
		}
		return req, invalid("body", "malformed JSON")
	}
	if len(req.Items) == 0 {
		return req, invalid("items", "required")
	}
	return req, nil
}

func encodeMoney(e *jx.Encoder, field string, v decimal.Decimal) {
	e.FieldStart(field)
	e.Num(jx.Num(v.StringFixed(2)))
}

func encodeOptionalStr(e *jx.Encoder, field, v string) {
	e.FieldStart(field)
	if v == "" {
		e.Null()
		return
	}
	e.Str(v)
}

func encodeTaxConfiguration(e *jx.Encoder, cfg *tax.Configuration) {
	if cfg == nil {
		e.Null()
		return
	}
	e.ObjStart()
	e.FieldStart("id")
	e.Str(cfg.ID)
	e.FieldStart("name")
	e.Str(cfg.Name)
	e.FieldStart("rate")
	e.Num(jx.Num(cfg.Rate.String()))
	e.FieldStart("is_inclusive")
	e.Bool(cfg.IsInclusive)
	e.ObjEnd()
}

func encodeSale(e *jx.Encoder, s *sale.Sale, cfg *tax.Configuration) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(s.ID)
	e.FieldStart("company_id")
	e.Str(s.CompanyID)
	encodeOptionalStr(e, "customer_id", s.CustomerID)
	e.FieldStart("user_id")
	e.Str(s.UserID)
	encodeOptionalStr(e, "payment_method", s.PaymentMethod)
	encodeMoney(e, "subtotal", s.Subtotal)
	encodeMoney(e, "discount", s.Discount)
	encodeMoney(e, "tax", s.Tax)
	encodeMoney(e, "total", s.Total)
	encodeMoney(e, "amount_paid", s.AmountPaid)
	encodeMoney(e, "balance_due", s.BalanceDue)
	e.FieldStart("created_at")
	e.Str(s.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"))

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range s.Items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(it.ID)
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		encodeMoney(e, "unit_price", it.UnitPrice)
		encodeMoney(e, "unit_price_without_tax", tax.PriceWithoutTax(cfg, it.UnitPrice))
		encodeMoney(e, "total_price", it.TotalPrice)
		e.FieldStart("is_container")
		e.Bool(it.IsContainer)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("tax_configuration")
	encodeTaxConfiguration(e, cfg)
	e.ObjEnd()
}

func encodeApplied(e *jx.Encoder, applied []promotion.Applied) {
	e.ArrStart()
	for _, a := range applied {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(a.PromotionID)
		e.FieldStart("name")
		e.Str(a.Name)
		encodeMoney(e, "discount", a.Discount)
		e.FieldStart("type")
		e.Str(string(a.Type))
		e.ObjEnd()
	}
	e.ArrEnd()
}

func encodeCreditTransaction(e *jx.Encoder, tx *credit.Transaction) {
	if tx == nil {
		e.Null()
		return
	}
	e.ObjStart()
	e.FieldStart("id")
	e.Str(tx.ID)
	e.FieldStart("customer_id")
	e.Str(tx.CustomerID)
	e.FieldStart("type")
	e.Str(string(tx.Type))
	encodeMoney(e, "amount", tx.Amount)
	encodeMoney(e, "balance_before", tx.BalanceBefore)
	encodeMoney(e, "balance_after", tx.BalanceAfter)
	e.ObjEnd()
}

// encodeResult renders the 201 body of a created sale.
func encodeResult(res *sale.Result) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("sale")
	encodeSale(e, res.Sale, res.TaxConfiguration)
	encodeMoney(e, "discount", res.Discount)
	encodeMoney(e, "tax", res.Tax)
	e.FieldStart("applied_promotions")
	encodeApplied(e, res.AppliedPromotions)
	e.FieldStart("credit_transaction")
	encodeCreditTransaction(e, res.CreditTransaction)
	e.ObjEnd()

	return append([]byte(nil), e.Bytes()...)
}
