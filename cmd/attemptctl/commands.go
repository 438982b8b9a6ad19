package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stemsi/exstem-attempt/internal/cache"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/database"
	"github.com/stemsi/exstem-attempt/internal/lockdown"
	"github.com/stemsi/exstem-attempt/internal/logger"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/repository"
	"github.com/stemsi/exstem-attempt/internal/service"
	"github.com/stemsi/exstem-attempt/internal/validator"
	"golang.org/x/term"
)

// readPassword prompts on stderr and reads without echo when stdin is a
// terminal; piped input is read as one line.
func readPassword(in io.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newSetAdminOverrideCmd(cfg *config.Config) *cobra.Command {
	var (
		timeout time.Duration
		combo   string
	)
	cmd := &cobra.Command{
		Use:   "set-admin-override",
		Short: "Store the locally verified admin override password",
		Long: "Hashes the admin override password with bcrypt and stores it in app_settings.\n" +
			"Only used when OVERRIDE_VERIFIER=local.",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), "Admin override password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}

			req := model.AdminOverrideRequest{
				Password:       password,
				TimeoutSeconds: int(timeout / time.Second),
				Combo:          combo,
			}
			if err := validator.New().Struct(req); err != nil {
				for field, msg := range validator.TranslateErrors(err) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", field, msg)
				}
				return errors.New("invalid admin override")
			}

			log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
			ctx := cmd.Context()

			pool, err := database.NewPostgresPool(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			auth := service.NewAuthService(cfg, nil)
			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}

			settings := service.NewSettingService(repository.NewSettingRepository(pool), log)
			if err := settings.SetAdminOverride(ctx, hash, timeout, combo); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Admin override updated (timeout %s)\n", timeout)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", service.DefaultAdminOverrideTimeout, "override length granted per use")
	cmd.Flags().StringVar(&combo, "combo", "", "key combination that opens the admin prompt, e.g. ctrl+5")
	return cmd
}

func newPersonalCodeCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "personal-code",
		Short: "Print the personal override combination and password for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if date != "" {
				parsed, err := time.ParseInLocation("2006-01-02", date, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
				day = parsed
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "date:        %s\n", day.Format("2006-01-02"))
			fmt.Fprintf(out, "combination: %s\n", lockdown.PersonalCombination(day))
			fmt.Fprintf(out, "password:    %s\n", lockdown.PersonalPassword(day))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to derive codes for (YYYY-MM-DD, default today)")
	return cmd
}

func newStaffTokenCmd(cfg *config.Config) *cobra.Command {
	var (
		ttl    time.Duration
		scopes []string
	)
	cmd := &cobra.Command{
		Use:   "staff-token <subject>",
		Short: "Issue a staff token for the monitor and settings endpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range scopes {
				if s != service.ScopeMonitor && s != service.ScopeSettings {
					return fmt.Errorf("unknown scope %q", s)
				}
			}
			auth := service.NewAuthService(cfg, nil)
			token, err := auth.GenerateStaffToken(args[0], ttl, scopes...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{service.ScopeMonitor}, "granted scopes ("+service.ScopeMonitor+", "+service.ScopeSettings+")")
	return cmd
}

func newFlushCacheCmd(cfg *config.Config) *cobra.Command {
	var securityOnly bool
	cmd := &cobra.Command{
		Use:   "flush-cache",
		Short: "Drop cached quiz data so it is reloaded from the Quiz Service",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
			ctx := cmd.Context()

			rdb, err := database.NewRedisClient(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rdb.Close()

			c := cache.New(rdb, cfg.CacheSessionTTL)
			if err := c.Delete(ctx, config.CacheKey.SecuritySettingsKey()); err != nil {
				return err
			}
			if !securityOnly {
				if err := c.Delete(ctx, config.CacheKey.PublicQuizzesKey()); err != nil {
					return err
				}
				if err := c.ClearSession(ctx); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache flushed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&securityOnly, "security-only", false, "only drop the cached security settings")
	return cmd
}
