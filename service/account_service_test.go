package service

import (
	"context"
	"database/sql"
	"errors"
	"go-bankaccount-api/logger"
	"go-bankaccount-api/model"
	"go-bankaccount-api/repository"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// TestMain runs setup before any tests in this package are executed.
func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// MockAccountRepository is a mock for repository.IAccountRepository.
type MockAccountRepository struct{ mock.Mock }

func (m *MockAccountRepository) CreateAccount(account *model.Account) error {
	args := m.Called(account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetAccountByID(id int64) (*model.Account, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) GetAccountByIDAndOwner(id int64, owner string) (*model.Account, error) {
	args := m.Called(id, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) ListAccountsByOwner(owner string, limit, offset int, sortColumn string, sortAsc bool) ([]*model.Account, error) {
	args := m.Called(owner, limit, offset, sortColumn, sortAsc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Account), args.Error(1)
}

func (m *MockAccountRepository) GetAccountForUpdate(tx *sql.Tx, id int64) (*model.Account, error) {
	args := m.Called(tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) UpdateAccountBalance(tx *sql.Tx, id int64, newAmount float64) error {
	args := m.Called(tx, id, newAmount)
	return args.Error(0)
}

func (m *MockAccountRepository) DepositToAccount(id int64, amount float64) (*model.Account, error) {
	args := m.Called(id, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

// newTestService wires an AccountService against sqlmock and miniredis.
func newTestService(t *testing.T) (*AccountService, *MockAccountRepository, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	mockRepo := new(MockAccountRepository)
	return NewAccountService(db, mockRepo, redisClient), mockRepo, dbMock, mr
}

func TestAccountService_CreateNewAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("success invalidates the owner's list cache", func(t *testing.T) {
		svc, mockRepo, _, mr := newTestService(t)
		mr.Set("accounts:user1", "[]")

		account := &model.Account{ID: 1001, Amount: 200, AccountType: "SAVINGS", Owner: "user1"}
		mockRepo.On("CreateAccount", account).Return(nil).Once()

		err := svc.CreateNewAccount(ctx, account)

		assert.NoError(t, err)
		assert.False(t, mr.Exists("accounts:user1"))
		mockRepo.AssertExpectations(t)
	})

	t.Run("duplicate id yields ErrAccountExists", func(t *testing.T) {
		svc, mockRepo, _, _ := newTestService(t)

		account := &model.Account{ID: 1001, Owner: "user1"}
		mockRepo.On("CreateAccount", account).Return(repository.ErrDuplicateAccount).Once()

		err := svc.CreateNewAccount(ctx, account)

		assert.ErrorIs(t, err, ErrAccountExists)
		mockRepo.AssertExpectations(t)
	})
}

func TestAccountService_GetAccountForOwner(t *testing.T) {
	ctx := context.Background()
	principal := &model.Principal{Username: "user1", Role: model.RoleAccountOwner}

	t.Run("returns the owner's account", func(t *testing.T) {
		svc, mockRepo, _, _ := newTestService(t)
		expected := &model.Account{ID: 1001, Amount: 200, AccountType: "SAVINGS", Owner: "user1"}
		mockRepo.On("GetAccountByIDAndOwner", int64(1001), "user1").Return(expected, nil).Once()

		account, err := svc.GetAccountForOwner(ctx, 1001, principal)

		assert.NoError(t, err)
		assert.Equal(t, expected, account)
		mockRepo.AssertExpectations(t)
	})

	t.Run("missing and foreign accounts are the same not found", func(t *testing.T) {
		svc, mockRepo, _, _ := newTestService(t)
		mockRepo.On("GetAccountByIDAndOwner", int64(1009), "user1").Return(nil, sql.ErrNoRows).Once()

		_, err := svc.GetAccountForOwner(ctx, 1009, principal)

		assert.ErrorIs(t, err, ErrAccountNotFound)
		mockRepo.AssertExpectations(t)
	})
}

func TestAccountService_ListAccountsForOwner(t *testing.T) {
	ctx := context.Background()
	principal := &model.Principal{Username: "user1", Role: model.RoleAccountOwner}
	accounts := []*model.Account{
		{ID: 1002, Amount: 10, AccountType: "CHECKING", Owner: "user1"},
		{ID: 1001, Amount: 1000, AccountType: "SAVINGS", Owner: "user1"},
	}

	t.Run("default page is cached after the first hit", func(t *testing.T) {
		svc, mockRepo, _, _ := newTestService(t)
		mockRepo.On("ListAccountsByOwner", "user1", DefaultPageSize, 0, "amount", true).
			Return(accounts, nil).Once()

		first, err := svc.ListAccountsForOwner(ctx, principal, 0, 0, "", true)
		assert.NoError(t, err)
		assert.Equal(t, accounts, first)

		// Second call must be served from the cache; the mock allows one call.
		second, err := svc.ListAccountsForOwner(ctx, principal, 0, 0, "", true)
		assert.NoError(t, err)
		assert.Equal(t, accounts, second)
		mockRepo.AssertExpectations(t)
	})

	t.Run("non-default sort bypasses the cache", func(t *testing.T) {
		svc, mockRepo, _, _ := newTestService(t)
		mockRepo.On("ListAccountsByOwner", "user1", DefaultPageSize, 0, "id", false).
			Return(accounts, nil).Twice()

		for i := 0; i < 2; i++ {
			_, err := svc.ListAccountsForOwner(ctx, principal, 0, 0, "id", false)
			assert.NoError(t, err)
		}
		mockRepo.AssertExpectations(t)
	})

	t.Run("unknown sort field falls back to amount", func(t *testing.T) {
		svc, mockRepo, _, _ := newTestService(t)
		mockRepo.On("ListAccountsByOwner", "user1", DefaultPageSize, 0, "amount", true).
			Return(accounts, nil).Once()

		_, err := svc.ListAccountsForOwner(ctx, principal, 0, 0, "nonsense; DROP TABLE", true)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})
}

func TestAccountService_Deposit(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc, mockRepo, _, mr := newTestService(t)
		mr.Set("accounts:user1", "[]")

		updated := &model.Account{ID: 1001, Amount: 500, AccountType: "SAVINGS", Owner: "user1"}
		mockRepo.On("DepositToAccount", int64(1001), 300.0).Return(updated, nil).Once()

		account, err := svc.Deposit(ctx, 1001, 300)

		assert.NoError(t, err)
		assert.Equal(t, 500.0, account.Amount)
		assert.False(t, mr.Exists("accounts:user1"))
		mockRepo.AssertExpectations(t)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		svc, mockRepo, _, _ := newTestService(t)

		_, err := svc.Deposit(ctx, 1001, 0)

		assert.ErrorIs(t, err, ErrInvalidAmount)
		mockRepo.AssertNotCalled(t, "DepositToAccount")
	})

	t.Run("missing account", func(t *testing.T) {
		svc, mockRepo, _, _ := newTestService(t)
		mockRepo.On("DepositToAccount", int64(1009), 300.0).Return(nil, sql.ErrNoRows).Once()

		_, err := svc.Deposit(ctx, 1009, 300)

		assert.ErrorIs(t, err, ErrAccountNotFound)
		mockRepo.AssertExpectations(t)
	})
}

func TestAccountService_Withdraw(t *testing.T) {
	ctx := context.Background()
	owner := &model.Principal{Username: "user1", Role: model.RoleAccountOwner}

	t.Run("success", func(t *testing.T) {
		svc, mockRepo, dbMock, mr := newTestService(t)
		mr.Set("accounts:user1", "[]")

		account := &model.Account{ID: 1001, Amount: 500, AccountType: "SAVINGS", Owner: "user1"}
		dbMock.ExpectBegin()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1001)).Return(account, nil).Once()
		mockRepo.On("UpdateAccountBalance", mock.Anything, int64(1001), 350.0).Return(nil).Once()
		dbMock.ExpectCommit()

		updated, err := svc.Withdraw(ctx, 1001, 150, owner)

		assert.NoError(t, err)
		assert.Equal(t, 350.0, updated.Amount)
		assert.False(t, mr.Exists("accounts:user1"))
		mockRepo.AssertExpectations(t)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("insufficient funds leaves balance untouched", func(t *testing.T) {
		svc, mockRepo, dbMock, _ := newTestService(t)

		account := &model.Account{ID: 1001, Amount: 100, AccountType: "SAVINGS", Owner: "user1"}
		dbMock.ExpectBegin()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1001)).Return(account, nil).Once()
		dbMock.ExpectRollback()

		_, err := svc.Withdraw(ctx, 1001, 150, owner)

		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, 100.0, account.Amount)
		mockRepo.AssertNotCalled(t, "UpdateAccountBalance")
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("non-owner is denied", func(t *testing.T) {
		svc, mockRepo, dbMock, _ := newTestService(t)

		account := &model.Account{ID: 1001, Amount: 500, AccountType: "SAVINGS", Owner: "user1"}
		dbMock.ExpectBegin()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1001)).Return(account, nil).Once()
		dbMock.ExpectRollback()

		_, err := svc.Withdraw(ctx, 1001, 150, &model.Principal{Username: "user2"})

		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.Equal(t, 500.0, account.Amount)
		mockRepo.AssertNotCalled(t, "UpdateAccountBalance")
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		svc, mockRepo, dbMock, _ := newTestService(t)

		dbMock.ExpectBegin()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1009)).Return(nil, sql.ErrNoRows).Once()
		dbMock.ExpectRollback()

		_, err := svc.Withdraw(ctx, 1009, 150, owner)

		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("non-positive amount", func(t *testing.T) {
		svc, mockRepo, _, _ := newTestService(t)

		_, err := svc.Withdraw(ctx, 1001, -5, owner)

		assert.ErrorIs(t, err, ErrInvalidAmount)
		mockRepo.AssertNotCalled(t, "GetAccountForUpdate")
	})
}

func TestAccountService_Transfer(t *testing.T) {
	ctx := context.Background()
	owner := &model.Principal{Username: "user1", Role: model.RoleAccountOwner}

	t.Run("both legs apply and locks are taken in ascending id order", func(t *testing.T) {
		svc, mockRepo, dbMock, mr := newTestService(t)
		mr.Set("accounts:user1", "[]")
		mr.Set("accounts:user2", "[]")

		source := &model.Account{ID: 1003, Amount: 900, AccountType: "SAVINGS", Owner: "user1"}
		destination := &model.Account{ID: 1001, Amount: 700, AccountType: "SAVINGS", Owner: "user2"}

		var lockOrder []int64
		recordLock := func(args mock.Arguments) {
			lockOrder = append(lockOrder, args.Get(1).(int64))
		}

		dbMock.ExpectBegin()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1001)).Run(recordLock).Return(destination, nil).Once()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1003)).Run(recordLock).Return(source, nil).Once()
		mockRepo.On("UpdateAccountBalance", mock.Anything, int64(1003), 200.0).Return(nil).Once()
		mockRepo.On("UpdateAccountBalance", mock.Anything, int64(1001), 1400.0).Return(nil).Once()
		dbMock.ExpectCommit()

		updated, err := svc.Transfer(ctx, 1003, 1001, 700, owner)

		assert.NoError(t, err)
		assert.Equal(t, 200.0, updated.Amount)
		assert.Equal(t, []int64{1001, 1003}, lockOrder)
		// Conservation: 900 + 700 == 200 + 1400.
		assert.Equal(t, 1600.0, source.Amount+destination.Amount)
		assert.False(t, mr.Exists("accounts:user1"))
		assert.False(t, mr.Exists("accounts:user2"))
		mockRepo.AssertExpectations(t)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("missing source", func(t *testing.T) {
		svc, mockRepo, dbMock, _ := newTestService(t)

		destination := &model.Account{ID: 1001, Amount: 700, Owner: "user2"}
		dbMock.ExpectBegin()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1001)).Return(destination, nil).Once()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1009)).Return(nil, sql.ErrNoRows).Once()
		dbMock.ExpectRollback()

		_, err := svc.Transfer(ctx, 1009, 1001, 100, owner)

		assert.ErrorIs(t, err, ErrAccountNotFound)
		mockRepo.AssertNotCalled(t, "UpdateAccountBalance")
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("missing destination rejects atomically", func(t *testing.T) {
		svc, mockRepo, dbMock, _ := newTestService(t)

		source := &model.Account{ID: 1003, Amount: 900, Owner: "user1"}
		dbMock.ExpectBegin()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1003)).Return(source, nil).Once()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1009)).Return(nil, sql.ErrNoRows).Once()
		dbMock.ExpectRollback()

		_, err := svc.Transfer(ctx, 1003, 1009, 100, owner)

		assert.ErrorIs(t, err, ErrDestinationNotFound)
		assert.Equal(t, 900.0, source.Amount)
		mockRepo.AssertNotCalled(t, "UpdateAccountBalance")
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("non-owner of source is denied", func(t *testing.T) {
		svc, mockRepo, dbMock, _ := newTestService(t)

		source := &model.Account{ID: 1003, Amount: 900, Owner: "user2"}
		destination := &model.Account{ID: 1001, Amount: 700, Owner: "user2"}
		dbMock.ExpectBegin()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1001)).Return(destination, nil).Once()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1003)).Return(source, nil).Once()
		dbMock.ExpectRollback()

		_, err := svc.Transfer(ctx, 1003, 1001, 100, owner)

		assert.ErrorIs(t, err, ErrPermissionDenied)
		mockRepo.AssertNotCalled(t, "UpdateAccountBalance")
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("insufficient funds", func(t *testing.T) {
		svc, mockRepo, dbMock, _ := newTestService(t)

		source := &model.Account{ID: 1003, Amount: 50, Owner: "user1"}
		destination := &model.Account{ID: 1001, Amount: 700, Owner: "user2"}
		dbMock.ExpectBegin()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1001)).Return(destination, nil).Once()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1003)).Return(source, nil).Once()
		dbMock.ExpectRollback()

		_, err := svc.Transfer(ctx, 1003, 1001, 100, owner)

		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, 50.0, source.Amount)
		assert.Equal(t, 700.0, destination.Amount)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("same account", func(t *testing.T) {
		svc, mockRepo, _, _ := newTestService(t)

		_, err := svc.Transfer(ctx, 1001, 1001, 100, owner)

		assert.ErrorIs(t, err, ErrSameAccountTransfer)
		mockRepo.AssertNotCalled(t, "GetAccountForUpdate")
	})

	t.Run("commit error fails the whole transfer", func(t *testing.T) {
		svc, mockRepo, dbMock, _ := newTestService(t)

		source := &model.Account{ID: 1003, Amount: 900, Owner: "user1"}
		destination := &model.Account{ID: 1001, Amount: 700, Owner: "user2"}
		dbMock.ExpectBegin()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1001)).Return(destination, nil).Once()
		mockRepo.On("GetAccountForUpdate", mock.Anything, int64(1003)).Return(source, nil).Once()
		mockRepo.On("UpdateAccountBalance", mock.Anything, int64(1003), 800.0).Return(nil).Once()
		mockRepo.On("UpdateAccountBalance", mock.Anything, int64(1001), 800.0).Return(nil).Once()
		dbMock.ExpectCommit().WillReturnError(errors.New("commit failed"))

		_, err := svc.Transfer(ctx, 1003, 1001, 100, owner)

		assert.Error(t, err)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}
