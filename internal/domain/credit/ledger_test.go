package credit

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type mockRepo struct {
	customers map[string]*Customer
	txs       []Transaction
}

func (m *mockRepo) GetCustomer(_ context.Context, companyID, customerID string) (*Customer, error) {
	c, ok := m.customers[customerID]
	if !ok || c.CompanyID != companyID {
		return nil, ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) AddToBalance(_ context.Context, companyID, customerID string, amount decimal.Decimal) (*Customer, error) {
	c, ok := m.customers[customerID]
	if !ok || c.CompanyID != companyID {
		return nil, ErrCustomerNotFound
	}
	c.CreditBalance = c.CreditBalance.Add(amount)
	cp := *c
	return &cp, nil
}

func (m *mockRepo) CreateTransaction(_ context.Context, tx *Transaction) error {
	m.txs = append(m.txs, *tx)
	return nil
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name    string
		payment Payment
		wantDue string
		wantErr error
	}{
		{
			name:    "paid in full",
			payment: Payment{NetTotal: d("810"), AmountPaid: d("900")},
			wantDue: "0",
		},
		{
			name:    "negative amount paid clamps to zero",
			payment: Payment{NetTotal: d("10"), AmountPaid: d("-5"), CustomerID: "c1", CreditEnabled: true, Confirmed: true},
			wantDue: "10",
		},
		{
			name:    "credit disabled",
			payment: Payment{NetTotal: d("100"), AmountPaid: d("40"), CustomerID: "c1", Confirmed: true},
			wantDue: "60",
			wantErr: ErrCreditDisabled,
		},
		{
			name:    "customer required",
			payment: Payment{NetTotal: d("100"), AmountPaid: d("40"), CreditEnabled: true, Confirmed: true},
			wantDue: "60",
			wantErr: ErrCustomerRequired,
		},
		{
			name:    "confirmation required",
			payment: Payment{NetTotal: d("100"), AmountPaid: d("40"), CustomerID: "c1", CreditEnabled: true},
			wantDue: "60",
			wantErr: ErrConfirmationRequired,
		},
		{
			name:    "credit allowed",
			payment: Payment{NetTotal: d("100"), AmountPaid: d("40"), CustomerID: "c1", CreditEnabled: true, Confirmed: true},
			wantDue: "60",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, err := Assess(tt.payment)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.True(t, d(tt.wantDue).Equal(due), "due %s, want %s", due, tt.wantDue)
		})
	}
}

func TestLedger_Charge(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := &mockRepo{customers: map[string]*Customer{
		"c1": {ID: "c1", CompanyID: "co1", CreditBalance: d("25")},
	}}
	l := NewLedger(repo, func() time.Time { return now })

	tx, err := l.Charge(context.Background(), "co1", "c1", "sale-1", d("60"))
	require.NoError(t, err)

	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, TypeCredit, tx.Type)
	assert.Equal(t, "sale-1", tx.SaleID)
	assert.True(t, d("25").Equal(tx.BalanceBefore))
	assert.True(t, d("85").Equal(tx.BalanceAfter))
	assert.True(t, tx.BalanceBefore.Add(tx.Amount).Equal(tx.BalanceAfter))
	assert.True(t, repo.customers["c1"].CreditBalance.Equal(tx.BalanceAfter))
	assert.Equal(t, now, tx.CreatedAt)
	require.Len(t, repo.txs, 1)
	assert.Equal(t, *tx, repo.txs[0])
}

func TestLedger_ChargeErrors(t *testing.T) {
	repo := &mockRepo{customers: map[string]*Customer{
		"c1": {ID: "c1", CompanyID: "co1", CreditBalance: d("90"), CreditLimit: d("100")},
	}}
	l := NewLedger(repo, nil)

	t.Run("limit exceeded", func(t *testing.T) {
		_, err := l.Charge(context.Background(), "co1", "c1", "sale-1", d("10.01"))
		var limitErr *CreditLimitExceededError
		require.ErrorAs(t, err, &limitErr)
		assert.Equal(t, "c1", limitErr.CustomerID)
		assert.True(t, d("100.01").Equal(limitErr.Balance))
		assert.Empty(t, repo.txs)
	})

	t.Run("foreign customer", func(t *testing.T) {
		_, err := l.Charge(context.Background(), "co2", "c1", "sale-2", d("1"))
		require.ErrorIs(t, err, ErrCustomerNotFound)
	})
}
