package memory

import (
	"slices"

	"github.com/xenking/pos-settlement/internal/domain/catalog"
	"github.com/xenking/pos-settlement/internal/domain/company"
	"github.com/xenking/pos-settlement/internal/domain/credit"
	"github.com/xenking/pos-settlement/internal/domain/promotion"
	"github.com/xenking/pos-settlement/internal/domain/sale"
	"github.com/xenking/pos-settlement/internal/domain/tax"
)

// PutProduct inserts or replaces a product.
func (s *Store) PutProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p
}

// PutSettings inserts or replaces company settings.
func (s *Store) PutSettings(st company.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.settings[st.CompanyID] = st
}

// PutPromotion inserts or replaces a promotion.
func (s *Store) PutPromotion(p promotion.Promotion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.state.promotions, func(x promotion.Promotion) bool { return x.ID == p.ID }); i >= 0 {
		s.state.promotions[i] = p
		return
	}
	s.state.promotions = append(s.state.promotions, p)
}

// PutTaxConfiguration inserts or replaces a tax configuration.
func (s *Store) PutTaxConfiguration(c tax.Configuration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.state.taxes, func(x tax.Configuration) bool { return x.ID == c.ID }); i >= 0 {
		s.state.taxes[i] = c
		return
	}
	s.state.taxes = append(s.state.taxes, c)
}

// PutCustomer inserts or replaces a customer.
func (s *Store) PutCustomer(c credit.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.customers[c.ID] = c
}

// Product returns the committed state of a product.
func (s *Store) Product(id string) (catalog.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.products[id]
	return p, ok
}

// Promotion returns the committed state of a promotion.
func (s *Store) Promotion(id string) (promotion.Promotion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.state.promotions, func(x promotion.Promotion) bool { return x.ID == id })
	if i < 0 {
		return promotion.Promotion{}, false
	}
	return s.state.promotions[i], true
}

// Customer returns the committed state of a customer.
func (s *Store) Customer(id string) (credit.Customer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.customers[id]
	return c, ok
}

// Sales returns all committed sales without their items.
func (s *Store) Sales() []sale.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.sales)
}

// SaleItems returns all committed sale items.
func (s *Store) SaleItems() []sale.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.saleItems)
}

// Usages returns all committed promotion usage rows.
func (s *Store) Usages() []promotion.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.usages)
}

// CreditTransactions returns all committed credit ledger rows.
func (s *Store) CreditTransactions() []credit.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.creditTxs)
}
