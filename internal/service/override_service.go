package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/lockdown"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/quizapi"
)

// Override verifier modes.
const (
	OverrideModeRemote = "remote"
	OverrideModeLocal  = "local"
)

// OverrideUpstream is the part of the Quiz Service the remote verifier uses.
type OverrideUpstream interface {
	ValidateAdminOverride(ctx context.Context, quizID, password string) (*quizapi.OverrideValidation, error)
	SecuritySettings(ctx context.Context) (*model.SecurityConfig, error)
}

// OverrideService verifies admin override passwords and resolves the admin
// key combination. In remote mode both come from the Quiz Service; in local
// mode they come from app_settings.
type OverrideService struct {
	mode     string
	upstream OverrideUpstream
	settings *SettingService
	auth     *AuthService
	fallback string
	log      zerolog.Logger
}

// NewOverrideService creates a verifier. fallbackCombo is used when no
// combination is configured anywhere else.
func NewOverrideService(
	mode string,
	upstream OverrideUpstream,
	settings *SettingService,
	auth *AuthService,
	fallbackCombo string,
	log zerolog.Logger,
) *OverrideService {
	if mode != OverrideModeLocal {
		mode = OverrideModeRemote
	}
	return &OverrideService{
		mode:     mode,
		upstream: upstream,
		settings: settings,
		auth:     auth,
		fallback: fallbackCombo,
		log:      log.With().Str("component", "override_service").Str("mode", mode).Logger(),
	}
}

// AdminCombination returns the combination that opens the admin prompt.
func (s *OverrideService) AdminCombination(ctx context.Context) (lockdown.Combination, error) {
	combo, err := s.configuredCombination(ctx)
	if err == nil {
		return combo, nil
	}
	s.log.Warn().Err(err).Str("fallback", s.fallback).Msg("Using fallback admin combination")
	return lockdown.ParseCombination(s.fallback)
}

func (s *OverrideService) configuredCombination(ctx context.Context) (lockdown.Combination, error) {
	if s.mode == OverrideModeLocal {
		o, err := s.settings.AdminOverride(ctx)
		if err != nil {
			return lockdown.Combination{}, err
		}
		if o.Combo == "" {
			return lockdown.Combination{}, errors.New("no admin combination in settings")
		}
		return lockdown.ParseCombination(o.Combo)
	}

	cfg, err := s.upstream.SecuritySettings(ctx)
	if err != nil {
		return lockdown.Combination{}, err
	}
	return lockdown.CombinationFrom(cfg.AdminKeyCombination)
}

// VerifyAdmin checks password and returns the override length.
func (s *OverrideService) VerifyAdmin(ctx context.Context, quizID, password string) (time.Duration, error) {
	if password == "" {
		return 0, lockdown.ErrOverrideRejected
	}
	if s.mode == OverrideModeLocal {
		return s.verifyLocal(ctx, password)
	}

	res, err := s.upstream.ValidateAdminOverride(ctx, quizID, password)
	if err != nil {
		return 0, fmt.Errorf("validate admin override: %w", err)
	}
	if !res.Valid {
		return 0, lockdown.ErrOverrideRejected
	}
	if res.SessionTimeout <= 0 {
		return DefaultAdminOverrideTimeout, nil
	}
	return time.Duration(res.SessionTimeout) * time.Second, nil
}

func (s *OverrideService) verifyLocal(ctx context.Context, password string) (time.Duration, error) {
	o, err := s.settings.AdminOverride(ctx)
	if err != nil {
		return 0, err
	}
	if o.Hash == "" {
		return 0, ErrOverrideNotConfigured
	}
	if err := s.auth.CheckPassword(o.Hash, password); err != nil {
		return 0, lockdown.ErrOverrideRejected
	}
	return o.Timeout, nil
}
