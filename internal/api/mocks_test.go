package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/mohmed402/wasel/internal/database"
	"github.com/mohmed402/wasel/internal/finance"
	"github.com/mohmed402/wasel/internal/orders"
)

type MockCustomerStore struct {
	mock.Mock
}

func (m *MockCustomerStore) Create(ctx context.Context, in orders.CustomerInput) (*orders.Customer, error) {
	args := m.Called(ctx, in)
	c, _ := args.Get(0).(*orders.Customer)
	return c, args.Error(1)
}

func (m *MockCustomerStore) Get(ctx context.Context, id uuid.UUID) (*orders.Customer, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*orders.Customer)
	return c, args.Error(1)
}

func (m *MockCustomerStore) List(ctx context.Context, includeInactive bool, limit, offset int) ([]orders.Customer, error) {
	args := m.Called(ctx, includeInactive, limit, offset)
	list, _ := args.Get(0).([]orders.Customer)
	return list, args.Error(1)
}

func (m *MockCustomerStore) Update(ctx context.Context, id uuid.UUID, in orders.CustomerInput) (*orders.Customer, error) {
	args := m.Called(ctx, id, in)
	c, _ := args.Get(0).(*orders.Customer)
	return c, args.Error(1)
}

func (m *MockCustomerStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) Create(ctx context.Context, in orders.OrderInput) (*orders.Order, error) {
	args := m.Called(ctx, in)
	o, _ := args.Get(0).(*orders.Order)
	return o, args.Error(1)
}

func (m *MockOrderStore) Get(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*orders.Order)
	return o, args.Error(1)
}

func (m *MockOrderStore) List(ctx context.Context, status orders.Status, limit, offset int) ([]orders.Order, error) {
	args := m.Called(ctx, status, limit, offset)
	list, _ := args.Get(0).([]orders.Order)
	return list, args.Error(1)
}

func (m *MockOrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, to orders.Status) (*orders.Order, error) {
	args := m.Called(ctx, id, to)
	o, _ := args.Get(0).(*orders.Order)
	return o, args.Error(1)
}

func (m *MockOrderStore) AddExpense(ctx context.Context, orderID uuid.UUID, e orders.Expense) (*orders.Expense, error) {
	args := m.Called(ctx, orderID, e)
	saved, _ := args.Get(0).(*orders.Expense)
	return saved, args.Error(1)
}

type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) Create(ctx context.Context, in finance.AccountInput) (*finance.Account, error) {
	args := m.Called(ctx, in)
	a, _ := args.Get(0).(*finance.Account)
	return a, args.Error(1)
}

func (m *MockAccountStore) Get(ctx context.Context, id uuid.UUID) (*finance.Account, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*finance.Account)
	return a, args.Error(1)
}

func (m *MockAccountStore) List(ctx context.Context, includeInactive bool) ([]finance.Account, error) {
	args := m.Called(ctx, includeInactive)
	list, _ := args.Get(0).([]finance.Account)
	return list, args.Error(1)
}

func (m *MockAccountStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAccountStore) Record(ctx context.Context, t finance.Transaction) (*finance.Transaction, error) {
	args := m.Called(ctx, t)
	saved, _ := args.Get(0).(*finance.Transaction)
	return saved, args.Error(1)
}

func (m *MockAccountStore) Transactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]finance.Transaction, error) {
	args := m.Called(ctx, accountID, limit, offset)
	list, _ := args.Get(0).([]finance.Transaction)
	return list, args.Error(1)
}

type MockRunStore struct {
	mock.Mock
}

func (m *MockRunStore) List(ctx context.Context, limit, offset int) ([]database.ExtractionRun, error) {
	args := m.Called(ctx, limit, offset)
	runs, _ := args.Get(0).([]database.ExtractionRun)
	return runs, args.Error(1)
}

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockOutboxStats struct {
	mock.Mock
}

func (m *MockOutboxStats) Stats(ctx context.Context) (int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}
