package repo

import (
	"context"
	"fmt"
	"strings"

	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/infra/db"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store объединяет репозитории одного хранилища.
type Store interface {
	domain.PostRepo
	domain.ChannelRepo
	domain.StyleRepo
	domain.JobStore
	domain.Balance
	TopUp(ctx context.Context, ownerID, amount int64) (int64, error)
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*SQLite)(nil)
)

// Open подключается к хранилищу выбранного драйвера.
func Open(driver, pgDSN, sqlitePath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres, "":
		pool, err := db.Connect(pgDSN)
		if err != nil {
			return nil, fmt.Errorf("подключение к postgres: %w", err)
		}
		return NewPostgres(pool), nil
	case DriverSQLite:
		conn, err := db.OpenSQLite(sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("открытие sqlite: %w", err)
		}
		return NewSQLite(conn), nil
	default:
		return nil, fmt.Errorf("неизвестный драйвер хранилища %q", driver)
	}
}
