package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/lockdown"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/quizapi"
)

type fakeUpstream struct {
	validation  *quizapi.OverrideValidation
	validateErr error
	security    *model.SecurityConfig
	securityErr error
	calls       int
}

func (f *fakeUpstream) ValidateAdminOverride(ctx context.Context, quizID, password string) (*quizapi.OverrideValidation, error) {
	f.calls++
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return f.validation, nil
}

func (f *fakeUpstream) SecuritySettings(ctx context.Context) (*model.SecurityConfig, error) {
	return f.security, f.securityErr
}

type memSettings map[string]string

func (m memSettings) GetAll(ctx context.Context) ([]model.AppSetting, error) {
	out := make([]model.AppSetting, 0, len(m))
	for k, v := range m {
		out = append(out, model.AppSetting{Key: k, Value: v})
	}
	return out, nil
}

func (m memSettings) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string)
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m memSettings) UpsertMany(ctx context.Context, values map[string]string) error {
	for k, v := range values {
		m[k] = v
	}
	return nil
}

func TestRemoteVerifier(t *testing.T) {
	up := &fakeUpstream{validation: &quizapi.OverrideValidation{Valid: true, SessionTimeout: 300}}
	svc := NewOverrideService(OverrideModeRemote, up, nil, nil, "ctrl+5", zerolog.Nop())
	ctx := context.Background()

	d, err := svc.VerifyAdmin(ctx, "quiz-1", "secret")
	if err != nil || d != 300*time.Second {
		t.Fatalf("VerifyAdmin = %v, %v", d, err)
	}

	up.validation = &quizapi.OverrideValidation{Valid: false}
	if _, err := svc.VerifyAdmin(ctx, "quiz-1", "nope"); !errors.Is(err, lockdown.ErrOverrideRejected) {
		t.Fatalf("err = %v, want ErrOverrideRejected", err)
	}

	up.validateErr = &quizapi.StatusError{Op: "validate", Code: 502}
	if _, err := svc.VerifyAdmin(ctx, "quiz-1", "secret"); err == nil || errors.Is(err, lockdown.ErrOverrideRejected) {
		t.Fatalf("transport failure err = %v", err)
	}

	calls := up.calls
	if _, err := svc.VerifyAdmin(ctx, "quiz-1", ""); !errors.Is(err, lockdown.ErrOverrideRejected) {
		t.Fatalf("empty password err = %v", err)
	}
	if up.calls != calls {
		t.Fatal("empty password must not reach upstream")
	}
}

func TestRemoteVerifierDefaultTimeout(t *testing.T) {
	up := &fakeUpstream{validation: &quizapi.OverrideValidation{Valid: true}}
	svc := NewOverrideService(OverrideModeRemote, up, nil, nil, "ctrl+5", zerolog.Nop())
	d, err := svc.VerifyAdmin(context.Background(), "quiz-1", "secret")
	if err != nil || d != DefaultAdminOverrideTimeout {
		t.Fatalf("VerifyAdmin = %v, %v", d, err)
	}
}

func TestAdminCombinationResolution(t *testing.T) {
	ctx := context.Background()

	up := &fakeUpstream{security: &model.SecurityConfig{
		AdminKeyCombination: &model.KeyCombination{Modifier: "alt", Key: "7"},
	}}
	svc := NewOverrideService(OverrideModeRemote, up, nil, nil, "ctrl+5", zerolog.Nop())
	combo, err := svc.AdminCombination(ctx)
	if err != nil || combo.String() != "alt+7" {
		t.Fatalf("remote combo = %v, %v", combo, err)
	}

	up.securityErr = errors.New("down")
	combo, err = svc.AdminCombination(ctx)
	if err != nil || combo.String() != "ctrl+5" {
		t.Fatalf("fallback combo = %v, %v", combo, err)
	}
}

func TestLocalVerifier(t *testing.T) {
	auth := NewAuthService(testConfig(), nil)
	hash, err := auth.HashPassword("proctor-pass")
	if err != nil {
		t.Fatal(err)
	}
	store := memSettings{}
	settings := NewSettingService(store, zerolog.Nop())
	svc := NewOverrideService(OverrideModeLocal, nil, settings, auth, "ctrl+5", zerolog.Nop())
	ctx := context.Background()

	if _, err := svc.VerifyAdmin(ctx, "quiz-1", "proctor-pass"); !errors.Is(err, ErrOverrideNotConfigured) {
		t.Fatalf("unconfigured err = %v", err)
	}

	if err := settings.SetAdminOverride(ctx, hash, 2*time.Minute, "1+2"); err != nil {
		t.Fatal(err)
	}

	d, err := svc.VerifyAdmin(ctx, "quiz-1", "proctor-pass")
	if err != nil || d != 2*time.Minute {
		t.Fatalf("VerifyAdmin = %v, %v", d, err)
	}
	if _, err := svc.VerifyAdmin(ctx, "quiz-1", "guess"); !errors.Is(err, lockdown.ErrOverrideRejected) {
		t.Fatalf("err = %v, want ErrOverrideRejected", err)
	}

	combo, err := svc.AdminCombination(ctx)
	if err != nil || combo.String() != "1+2" {
		t.Fatalf("combo = %v, %v", combo, err)
	}

	all, err := settings.GetAllSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, leaked := all[model.SettingAdminOverrideHash]; leaked {
		t.Fatal("GetAllSettings must not expose the override hash")
	}
}

func TestLocalSettingsInvalidTimeout(t *testing.T) {
	store := memSettings{model.SettingAdminOverrideTimeout: "soon"}
	settings := NewSettingService(store, zerolog.Nop())
	o, err := settings.AdminOverride(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if o.Timeout != DefaultAdminOverrideTimeout {
		t.Fatalf("timeout = %v", o.Timeout)
	}
}
