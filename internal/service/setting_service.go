package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/repository"
)

// ErrOverrideNotConfigured is returned when no local admin override secret
// has been set.
var ErrOverrideNotConfigured = errors.New("admin override secret is not configured")

// DefaultAdminOverrideTimeout applies when the settings carry no timeout.
const DefaultAdminOverrideTimeout = 5 * time.Minute

// AdminOverrideSettings is the locally stored admin override material.
type AdminOverrideSettings struct {
	Hash    string
	Timeout time.Duration
	Combo   string
}

// SettingStore is the slice of the settings repository the services use.
type SettingStore interface {
	GetAll(ctx context.Context) ([]model.AppSetting, error)
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	UpsertMany(ctx context.Context, values map[string]string) error
}

var _ SettingStore = (*repository.SettingRepository)(nil)

type SettingService struct {
	settingRepo SettingStore
	log         zerolog.Logger
}

func NewSettingService(settingRepo SettingStore, log zerolog.Logger) *SettingService {
	return &SettingService{
		settingRepo: settingRepo,
		log:         log.With().Str("component", "setting_service").Logger(),
	}
}

func (s *SettingService) GetAllSettings(ctx context.Context) (map[string]string, error) {
	settingsList, err := s.settingRepo.GetAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get all settings")
		return nil, err
	}

	settingsMap := make(map[string]string, len(settingsList))
	for _, setting := range settingsList {
		if setting.Key == model.SettingAdminOverrideHash {
			continue
		}
		settingsMap[setting.Key] = setting.Value
	}
	return settingsMap, nil
}

// AdminOverride loads the local admin override material.
func (s *SettingService) AdminOverride(ctx context.Context) (*AdminOverrideSettings, error) {
	values, err := s.settingRepo.GetMany(ctx,
		model.SettingAdminOverrideHash,
		model.SettingAdminOverrideTimeout,
		model.SettingAdminOverrideCombo,
	)
	if err != nil {
		return nil, fmt.Errorf("load admin override settings: %w", err)
	}

	out := &AdminOverrideSettings{
		Hash:    values[model.SettingAdminOverrideHash],
		Timeout: DefaultAdminOverrideTimeout,
		Combo:   values[model.SettingAdminOverrideCombo],
	}
	if raw := values[model.SettingAdminOverrideTimeout]; raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			s.log.Warn().Str("value", raw).Msg("Ignoring invalid admin override timeout")
		} else {
			out.Timeout = time.Duration(secs) * time.Second
		}
	}
	return out, nil
}

// SetAdminOverride stores a bcrypt hash with its timeout and combination.
// Empty combo leaves the stored combination untouched.
func (s *SettingService) SetAdminOverride(ctx context.Context, hash string, timeout time.Duration, combo string) error {
	values := map[string]string{
		model.SettingAdminOverrideHash:    hash,
		model.SettingAdminOverrideTimeout: strconv.Itoa(int(timeout / time.Second)),
	}
	if combo != "" {
		values[model.SettingAdminOverrideCombo] = combo
	}
	if err := s.settingRepo.UpsertMany(ctx, values); err != nil {
		s.log.Error().Err(err).Msg("failed to update admin override settings")
		return err
	}
	return nil
}
