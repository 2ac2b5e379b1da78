package services

import (
	"context"

	"github.com/ecovend/backend/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) Get(ctx context.Context, identity string) (models.Account, error) {
	args := m.Called(ctx, identity)
	return args.Get(0).(models.Account), args.Error(1)
}

func (m *MockAccountStore) Create(ctx context.Context, acct models.Account) (models.Account, error) {
	args := m.Called(ctx, acct)
	return args.Get(0).(models.Account), args.Error(1)
}

func (m *MockAccountStore) Put(ctx context.Context, acct models.Account) (models.Account, error) {
	args := m.Called(ctx, acct)
	return args.Get(0).(models.Account), args.Error(1)
}

func (m *MockAccountStore) Identities(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
