package pg

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"signal_trader/internal/models"
	"signal_trader/pkg/db"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS symbol_settings (
	symbol     TEXT PRIMARY KEY,
	overrides  JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectAllSQL = `SELECT symbol, overrides::text FROM symbol_settings`
	upsertSQL    = `INSERT INTO symbol_settings (symbol, overrides, updated_at)
VALUES ($1, $2::jsonb, $3)
ON CONFLICT (symbol) DO UPDATE SET overrides = EXCLUDED.overrides, updated_at = EXCLUDED.updated_at`
)

// SymbolSettings: оверрайды символов в Postgres, одна строка JSONB на символ.
type SymbolSettings struct {
	db db.TxManager
}

func NewSymbolSettings(tx db.TxManager) *SymbolSettings {
	return &SymbolSettings{db: tx}
}

func (s *SymbolSettings) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Conn().Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("pg.EnsureSchema: %w", err)
	}
	return nil
}

func (s *SymbolSettings) LoadAll(ctx context.Context) (out map[string]models.SymbolOverrides, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.LoadAll: %w", err)
		}
	}()

	rows, err := s.db.Conn().Query(ctx, selectAllSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = make(map[string]models.SymbolOverrides)
	for rows.Next() {
		var (
			symbol string
			raw    string
		)
		if err = rows.Scan(&symbol, &raw); err != nil {
			return nil, err
		}
		var o models.SymbolOverrides
		if err = sonic.UnmarshalString(raw, &o); err != nil {
			return nil, fmt.Errorf("decode %s: %w", symbol, err)
		}
		out[symbol] = o
	}
	return out, rows.Err()
}

func (s *SymbolSettings) Upsert(ctx context.Context, symbol string, o models.SymbolOverrides) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Upsert: %w", err)
		}
	}()

	data, err := sonic.MarshalString(o)
	if err != nil {
		return err
	}
	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, upsertSQL, symbol, data, o.UpdatedAt)
		return err
	})
}
