package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"go-bankaccount-api/logger"
	"go-bankaccount-api/model"
	"go-bankaccount-api/repository"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrDestinationNotFound = errors.New("destination account not found")
	ErrPermissionDenied    = errors.New("caller does not own this account")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrSameAccountTransfer = errors.New("cannot transfer money to the same account")
	ErrAccountExists       = errors.New("account id already exists")
)

// DefaultPageSize is the listing page size when the caller does not supply one.
const DefaultPageSize = 20

const listCacheTTL = 10 * time.Minute

// IAccountService is the contract the HTTP layer depends on.
type IAccountService interface {
	CreateNewAccount(ctx context.Context, account *model.Account) error
	GetAccountForOwner(ctx context.Context, id int64, principal *model.Principal) (*model.Account, error)
	ListAccountsForOwner(ctx context.Context, principal *model.Principal, page, size int, sortField string, sortAsc bool) ([]*model.Account, error)
	Deposit(ctx context.Context, id int64, amount float64) (*model.Account, error)
	Withdraw(ctx context.Context, id int64, amount float64, principal *model.Principal) (*model.Account, error)
	Transfer(ctx context.Context, sourceID, destinationID int64, amount float64, principal *model.Principal) (*model.Account, error)
}

// AccountService holds the ledger operations and the ownership rules around
// them. Balance mutations run against Postgres with row locks; the owner
// listing is served through a Redis cache-aside.
type AccountService struct {
	db          *sql.DB
	repo        repository.IAccountRepository
	redisClient *redis.Client
}

func NewAccountService(db *sql.DB, repo repository.IAccountRepository, redisClient *redis.Client) *AccountService {
	return &AccountService{
		db:          db,
		repo:        repo,
		redisClient: redisClient,
	}
}

// CreateNewAccount persists a new account with a client-supplied id. An
// existing id is a conflict, never an overwrite.
func (s *AccountService) CreateNewAccount(ctx context.Context, account *model.Account) error {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id": account.ID,
		"owner":      account.Owner,
	})
	log.Info("Creating new account")

	err := s.repo.CreateAccount(account)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateAccount) {
			return ErrAccountExists
		}
		return err
	}

	s.invalidateListCache(ctx, account.Owner)
	return nil
}

// GetAccountForOwner returns the account only if it belongs to the caller.
// A missing account and a foreign account are the same not-found outcome, so
// existence never leaks to non-owners.
func (s *AccountService) GetAccountForOwner(ctx context.Context, id int64, principal *model.Principal) (*model.Account, error) {
	account, err := s.repo.GetAccountByIDAndOwner(id, principal.Username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// ListAccountsForOwner lists one page of the caller's accounts, sorted by the
// requested field (default: ascending amount). The default page is served
// through a cache-aside; other pages and sorts always hit the database.
func (s *AccountService) ListAccountsForOwner(ctx context.Context, principal *model.Principal, page, size int, sortField string, sortAsc bool) ([]*model.Account, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	sortColumn, ok := repository.SortColumn(sortField)
	if !ok {
		sortColumn, _ = repository.SortColumn("amount")
	}

	cacheable := page == 0 && size == DefaultPageSize && sortColumn == "amount" && sortAsc
	cacheKey := listCacheKey(principal.Username)

	if cacheable {
		cached, err := s.redisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			var accounts []*model.Account
			if err := json.Unmarshal([]byte(cached), &accounts); err == nil {
				return accounts, nil
			}
		}
	}

	accounts, err := s.repo.ListAccountsByOwner(principal.Username, size, page*size, sortColumn, sortAsc)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if data, err := json.Marshal(accounts); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, listCacheTTL)
		}
	}

	return accounts, nil
}

// Deposit increases the balance of any existing account. Ownership is not
// checked: any authenticated caller may deposit into any account.
func (s *AccountService) Deposit(ctx context.Context, id int64, amount float64) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	log := logger.Log.WithFields(logrus.Fields{
		"account_id": id,
		"amount":     amount,
	})
	log.Info("Starting deposit")

	account, err := s.repo.DepositToAccount(id, amount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	s.invalidateListCache(ctx, account.Owner)
	log.Info("Deposit completed successfully")
	return account, nil
}

// Withdraw decreases the balance of an account owned by the caller. The row
// is locked for the duration of the transaction so concurrent mutations on
// the same account cannot lose updates.
func (s *AccountService) Withdraw(ctx context.Context, id int64, amount float64, principal *model.Principal) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	log := logger.Log.WithFields(logrus.Fields{
		"account_id": id,
		"amount":     amount,
		"caller":     principal.Username,
	})
	log.Info("Starting withdrawal")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	account, err := s.repo.GetAccountForUpdate(tx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if account.Owner != principal.Username {
		log.Warn("Withdrawal attempted by non-owner")
		return nil, ErrPermissionDenied
	}
	if account.Amount < amount {
		return nil, ErrInsufficientFunds
	}

	account.Amount -= amount
	if err := s.repo.UpdateAccountBalance(tx, account.ID, account.Amount); err != nil {
		return nil, fmt.Errorf("could not update balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", err)
	}

	s.invalidateListCache(ctx, account.Owner)
	log.Info("Withdrawal completed successfully")
	return account, nil
}

// Transfer moves funds between two accounts as one atomic unit: a withdrawal
// from the caller-owned source and a deposit into the destination either both
// commit or neither does. Rows are locked in ascending id order so two
// opposing transfers cannot deadlock.
func (s *AccountService) Transfer(ctx context.Context, sourceID, destinationID int64, amount float64, principal *model.Principal) (*model.Account, error) {
	if sourceID == destinationID {
		return nil, ErrSameAccountTransfer
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	log := logger.Log.WithFields(logrus.Fields{
		"source_account_id":      sourceID,
		"destination_account_id": destinationID,
		"amount":                 amount,
		"caller":                 principal.Username,
	})
	log.Info("Starting transfer")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	firstID, secondID := sourceID, destinationID
	if destinationID < sourceID {
		firstID, secondID = destinationID, sourceID
	}

	locked := make(map[int64]*model.Account, 2)
	for _, id := range []int64{firstID, secondID} {
		acc, err := s.repo.GetAccountForUpdate(tx, id)
		if err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, err
		}
		locked[id] = acc
	}

	source := locked[sourceID]
	destination := locked[destinationID]

	// Source problems take precedence over the destination so a caller who
	// does not own the source learns nothing about either account.
	if source == nil {
		return nil, ErrAccountNotFound
	}
	if source.Owner != principal.Username {
		log.Warn("Transfer attempted by non-owner")
		return nil, ErrPermissionDenied
	}
	if source.Amount < amount {
		return nil, ErrInsufficientFunds
	}
	if destination == nil {
		return nil, ErrDestinationNotFound
	}

	source.Amount -= amount
	destination.Amount += amount

	if err := s.repo.UpdateAccountBalance(tx, source.ID, source.Amount); err != nil {
		return nil, fmt.Errorf("could not update source balance: %w", err)
	}
	if err := s.repo.UpdateAccountBalance(tx, destination.ID, destination.Amount); err != nil {
		return nil, fmt.Errorf("could not update destination balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", err)
	}

	s.invalidateListCache(ctx, source.Owner)
	s.invalidateListCache(ctx, destination.Owner)
	log.Info("Transfer completed successfully")
	return source, nil
}

func listCacheKey(owner string) string {
	return fmt.Sprintf("accounts:%s", owner)
}

func (s *AccountService) invalidateListCache(ctx context.Context, owner string) {
	s.redisClient.Del(ctx, listCacheKey(owner))
}
