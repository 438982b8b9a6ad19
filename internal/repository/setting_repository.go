package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// SettingRepository stores operator settings in app_settings.
type SettingRepository struct {
	pool *pgxpool.Pool
}

func NewSettingRepository(pool *pgxpool.Pool) *SettingRepository {
	return &SettingRepository{pool: pool}
}

func (r *SettingRepository) GetAll(ctx context.Context) ([]model.AppSetting, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value, updated_at FROM app_settings ORDER BY key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSettings(rows)
}

// GetMany returns the subset of keys that exist, keyed by name.
func (r *SettingRepository) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT key, value, updated_at FROM app_settings WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings, err := scanSettings(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(settings))
	for _, s := range settings {
		out[s.Key] = s.Value
	}
	return out, nil
}

// UpsertMany writes all pairs in one transaction.
func (r *SettingRepository) UpsertMany(ctx context.Context, values map[string]string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for key, value := range values {
			if _, err := tx.Exec(ctx,
				`INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, NOW())
				 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
				key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func scanSettings(rows pgx.Rows) ([]model.AppSetting, error) {
	var settings []model.AppSetting
	for rows.Next() {
		var s model.AppSetting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}
