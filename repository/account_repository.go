package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"go-bankaccount-api/logger"
	"go-bankaccount-api/model"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// ErrDuplicateAccount is returned by CreateAccount when the client-supplied
// id already exists. Detected via the unique violation rather than a
// pre-check so concurrent creates cannot race past it.
var ErrDuplicateAccount = errors.New("account id already exists")

// IAccountRepository defines the contract for account persistence.
type IAccountRepository interface {
	CreateAccount(account *model.Account) error
	GetAccountByID(id int64) (*model.Account, error)
	GetAccountByIDAndOwner(id int64, owner string) (*model.Account, error)
	ListAccountsByOwner(owner string, limit, offset int, sortColumn string, sortAsc bool) ([]*model.Account, error)
	GetAccountForUpdate(tx *sql.Tx, id int64) (*model.Account, error)
	UpdateAccountBalance(tx *sql.Tx, id int64, newAmount float64) error
	DepositToAccount(id int64, amount float64) (*model.Account, error)
}

// SortColumn maps a caller-supplied sort field to its column name. The
// whitelist keeps caller input out of the ORDER BY clause.
func SortColumn(field string) (string, bool) {
	switch field {
	case "", "amount":
		return "amount", true
	case "id":
		return "id", true
	case "accountType":
		return "account_type", true
	case "owner":
		return "owner", true
	}
	return "", false
}

// AccountRepository implements IAccountRepository on Postgres.
type AccountRepository struct {
	DB *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{DB: db}
}

// CreateAccount inserts a new account. The id comes from the client.
func (r *AccountRepository) CreateAccount(account *model.Account) error {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id":   account.ID,
		"account_type": account.AccountType,
		"owner":        account.Owner,
	})
	log.Info("Executing query to create a new account")

	query := `INSERT INTO accounts (id, amount, account_type, owner) VALUES ($1, $2, $3, $4)`
	_, err := r.DB.Exec(query, account.ID, account.Amount, account.AccountType, account.Owner)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			log.Info("Account id already exists")
			return ErrDuplicateAccount
		}
		log.WithError(err).Error("Failed to execute create account query")
		return err
	}
	return nil
}

// GetAccountByID retrieves an account regardless of owner.
func (r *AccountRepository) GetAccountByID(id int64) (*model.Account, error) {
	log := logger.Log.WithField("account_id", id)
	log.Info("Executing query to get account by ID")

	account := &model.Account{}
	query := `SELECT id, amount, account_type, owner FROM accounts WHERE id = $1`
	err := r.DB.QueryRow(query, id).Scan(&account.ID, &account.Amount, &account.AccountType, &account.Owner)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Info("Account not found")
		} else {
			log.WithError(err).Error("Failed to execute get account query")
		}
		return nil, err
	}
	return account, nil
}

// GetAccountByIDAndOwner retrieves an account only if it belongs to the given
// owner. A missing account and a foreign account are the same sql.ErrNoRows,
// so callers cannot distinguish them.
func (r *AccountRepository) GetAccountByIDAndOwner(id int64, owner string) (*model.Account, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id": id,
		"owner":      owner,
	})
	log.Info("Executing query to get account by ID and owner")

	account := &model.Account{}
	query := `SELECT id, amount, account_type, owner FROM accounts WHERE id = $1 AND owner = $2`
	err := r.DB.QueryRow(query, id, owner).Scan(&account.ID, &account.Amount, &account.AccountType, &account.Owner)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Info("Account not found for owner")
		} else {
			log.WithError(err).Error("Failed to execute get account by owner query")
		}
		return nil, err
	}
	return account, nil
}

// ListAccountsByOwner retrieves one page of the owner's accounts. sortColumn
// must come from SortColumn; it is interpolated into the query, never taken
// from the caller directly.
func (r *AccountRepository) ListAccountsByOwner(owner string, limit, offset int, sortColumn string, sortAsc bool) ([]*model.Account, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"owner":  owner,
		"limit":  limit,
		"offset": offset,
	})
	log.Info("Executing query to list accounts by owner")

	direction := "ASC"
	if !sortAsc {
		direction = "DESC"
	}
	query := fmt.Sprintf(
		`SELECT id, amount, account_type, owner FROM accounts WHERE owner = $1 ORDER BY %s %s LIMIT $2 OFFSET $3`,
		sortColumn, direction)

	rows, err := r.DB.Query(query, owner, limit, offset)
	if err != nil {
		log.WithError(err).Error("Failed to execute list accounts query")
		return nil, err
	}
	defer rows.Close()

	accounts := []*model.Account{}
	for rows.Next() {
		var acc model.Account
		if err := rows.Scan(&acc.ID, &acc.Amount, &acc.AccountType, &acc.Owner); err != nil {
			log.WithError(err).Error("Failed to scan account row")
			return nil, err
		}
		accounts = append(accounts, &acc)
	}
	return accounts, rows.Err()
}

// GetAccountForUpdate loads an account inside the given transaction with a
// row lock, serializing concurrent balance mutations on the same account.
func (r *AccountRepository) GetAccountForUpdate(tx *sql.Tx, id int64) (*model.Account, error) {
	log := logger.Log.WithField("account_id", id)
	log.Info("Executing query to get account for update")

	account := &model.Account{}
	query := `SELECT id, amount, account_type, owner FROM accounts WHERE id = $1 FOR UPDATE`
	err := tx.QueryRow(query, id).Scan(&account.ID, &account.Amount, &account.AccountType, &account.Owner)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Info("Account not found for update")
		} else {
			log.WithError(err).Error("Failed to execute get account for update query")
		}
		return nil, err
	}
	return account, nil
}

func (r *AccountRepository) UpdateAccountBalance(tx *sql.Tx, id int64, newAmount float64) error {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id": id,
		"new_amount": newAmount,
	})
	log.Info("Executing query to update account balance")

	query := `UPDATE accounts SET amount = $1 WHERE id = $2`
	_, err := tx.Exec(query, newAmount, id)
	if err != nil {
		log.WithError(err).Error("Failed to execute update account balance query")
		return err
	}
	return nil
}

// DepositToAccount increments the balance in a single atomic statement, so
// concurrent deposits on the same account cannot lose updates.
func (r *AccountRepository) DepositToAccount(id int64, amount float64) (*model.Account, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id": id,
		"amount":     amount,
	})
	log.Info("Executing query to deposit into account")

	account := &model.Account{}
	query := `UPDATE accounts SET amount = amount + $1 WHERE id = $2 RETURNING id, amount, account_type, owner`
	err := r.DB.QueryRow(query, amount, id).Scan(&account.ID, &account.Amount, &account.AccountType, &account.Owner)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Info("Account not found for deposit")
		} else {
			log.WithError(err).Error("Failed to execute deposit query")
		}
		return nil, err
	}
	return account, nil
}
