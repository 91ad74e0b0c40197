package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/malusev998/currency"
)

const (
	MySQLTimeFormat  = "2006-01-02 15:04:05"
	DefaultTableName = "currency"

	uuidLength = 16
)

var ErrNotEnoughBytesInGenerator = errors.New("id generator must return at least 16 bytes")

type (
	IDGenerator interface {
		Generate() []byte
	}

	UUIDGenerator struct{}

	mysqlStorage struct {
		ctx         context.Context
		db          *sql.DB
		idGenerator IDGenerator
		tableName   string
	}
)

func (UUIDGenerator) Generate() []byte {
	id := uuid.New()

	return id[:]
}

// NewMySQLDSN builds a DSN with parseTime enabled, which the storage relies on.
func NewMySQLDSN(user, password, addr, database string) string {
	config := mysql.NewConfig()
	config.User = user
	config.Passwd = password
	config.Net = "tcp"
	config.Addr = addr
	config.DBName = database
	config.ParseTime = true
	config.Loc = time.UTC

	return config.FormatDSN()
}

func NewMySQLStorage(c MySQLConfig) (currency.Storage, error) {
	config, err := mysql.ParseDSN(c.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("error while parsing mysql connection string: %w", err)
	}

	config.ParseTime = true

	db, err := sql.Open("mysql", config.FormatDSN())
	if err != nil {
		return nil, err
	}

	tableName := c.TableName
	if tableName == "" {
		tableName = DefaultTableName
	}

	return NewSQLStorage(c.context(), db, c.IDGenerator, tableName, c.Migrate)
}

// NewSQLStorage wraps an open db. A nil idGenerator defaults to random UUIDs.
func NewSQLStorage(ctx context.Context, db *sql.DB, idGenerator IDGenerator, tableName string, migrate bool) (currency.Storage, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if idGenerator == nil {
		idGenerator = UUIDGenerator{}
	}

	storage := mysqlStorage{
		ctx:         ctx,
		db:          db,
		idGenerator: idGenerator,
		tableName:   tableName,
	}

	if migrate {
		if err := storage.Migrate(); err != nil {
			return nil, err
		}
	}

	return storage, nil
}

func (m mysqlStorage) nextID() (uuid.UUID, error) {
	bytes := m.idGenerator.Generate()
	if len(bytes) < uuidLength {
		return uuid.UUID{}, ErrNotEnoughBytesInGenerator
	}

	return uuid.FromBytes(bytes[:uuidLength])
}

func (m mysqlStorage) Store(currencies []currency.Currency) ([]currency.CurrencyWithID, error) {
	tx, err := m.db.BeginTx(m.ctx, nil)
	if err != nil {
		return nil, err
	}

	stmt, err := tx.PrepareContext(m.ctx, fmt.Sprintf("INSERT INTO %s(id, currency, provider, rate, created_at) VALUES (?,?,?,?,?);", m.tableName))
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	defer stmt.Close()

	stored := make([]currency.CurrencyWithID, 0, len(currencies))

	for _, c := range currencies {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}

		id, err := m.nextID()
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}

		if _, err := stmt.ExecContext(m.ctx, id.String(), joinPair(c.From, c.To), c.Provider.String(), c.Rate, c.CreatedAt.UTC()); err != nil {
			_ = tx.Rollback()
			return nil, err
		}

		stored = append(stored, currency.CurrencyWithID{Currency: c, ID: id})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return stored, nil
}

func (m mysqlStorage) Get(from, to string, page, perPage int64) ([]currency.CurrencyWithID, error) {
	return m.query(from, to, currency.EmptyProvider, time.Time{}, time.Time{}, page, perPage)
}

func (m mysqlStorage) GetByProvider(from, to string, provider currency.Provider, page, perPage int64) ([]currency.CurrencyWithID, error) {
	return m.query(from, to, provider, time.Time{}, time.Time{}, page, perPage)
}

func (m mysqlStorage) GetByDate(from, to string, start, end time.Time, page, perPage int64) ([]currency.CurrencyWithID, error) {
	return m.query(from, to, currency.EmptyProvider, start, end, page, perPage)
}

func (m mysqlStorage) GetByDateAndProvider(from, to string, provider currency.Provider, start, end time.Time, page, perPage int64) ([]currency.CurrencyWithID, error) {
	return m.query(from, to, provider, start, end, page, perPage)
}

// query orders newest first, zero start/end leave the date unbounded.
func (m mysqlStorage) query(from, to string, provider currency.Provider, start, end time.Time, page, perPage int64) ([]currency.CurrencyWithID, error) {
	var builder strings.Builder

	args := []interface{}{joinPair(from, to)}
	builder.WriteString(fmt.Sprintf("SELECT id, currency, provider, rate, created_at FROM %s WHERE currency = ?", m.tableName))

	if provider != currency.EmptyProvider {
		builder.WriteString(" AND provider = ?")
		args = append(args, provider.String())
	}

	if !start.IsZero() {
		builder.WriteString(" AND created_at >= ?")
		args = append(args, start.UTC())
	}

	if !end.IsZero() {
		builder.WriteString(" AND created_at <= ?")
		args = append(args, end.UTC())
	}

	offset, limit := pagination(page, perPage)
	builder.WriteString(" ORDER BY created_at DESC LIMIT ? OFFSET ?;")
	args = append(args, limit, offset)

	rows, err := m.db.QueryContext(m.ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	currencies := make([]currency.CurrencyWithID, 0, limit)

	for rows.Next() {
		var (
			id, pair, providerName string
			rate                   float64
			createdAt              time.Time
		)

		if err := rows.Scan(&id, &pair, &providerName, &rate, &createdAt); err != nil {
			return nil, err
		}

		parsedID, err := uuid.Parse(id)
		if err != nil {
			return nil, err
		}

		from, to, err := splitPair(pair)
		if err != nil {
			return nil, err
		}

		currencies = append(currencies, currency.CurrencyWithID{
			Currency: currency.Currency{
				From:      from,
				To:        to,
				Provider:  currency.Provider(providerName),
				Rate:      rate,
				CreatedAt: createdAt,
			},
			ID: parsedID,
		})
	}

	return currencies, rows.Err()
}

func (m mysqlStorage) GetStorageProviderName() string {
	return string(MySQL)
}

func (m mysqlStorage) Migrate() error {
	_, err := m.db.ExecContext(m.ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
	id CHAR(36) PRIMARY KEY,
	currency VARCHAR(7) NOT NULL,
	provider VARCHAR(50) NOT NULL,
	rate DOUBLE NOT NULL,
	created_at DATETIME NOT NULL,
	INDEX %s_currency_created_at (currency, created_at)
);`, m.tableName, m.tableName))

	return err
}

func (m mysqlStorage) Drop() error {
	_, err := m.db.ExecContext(m.ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s;", m.tableName))

	return err
}

func (m mysqlStorage) Close() error {
	return m.db.Close()
}
