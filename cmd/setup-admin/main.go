// Command setup-admin creates the first administrator account. The account
// is stored pre-verified, so it can use every session endpoint right away.
//
//	STORAGE_DRIVER=postgres PG_CONN_URL=... JWT_SECRET=... \
//		setup-admin -username admin -email admin@example.com
//
// The password is read from ADMIN_PASSWORD when -password is empty.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/rollcall/pkg/config"
	"github.com/dmitrymomot/rollcall/pkg/email"
	"github.com/dmitrymomot/rollcall/pkg/jwt"
	"github.com/dmitrymomot/rollcall/pkg/logger"
	"github.com/dmitrymomot/rollcall/svc/auth"
	"github.com/dmitrymomot/rollcall/svc/credential"
)

type setupConfig struct {
	Env           string `env:"APP_ENV" envDefault:"development"`
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"memory"`
	Password      string `env:"ADMIN_PASSWORD"`
}

func main() {
	var cfg setupConfig
	config.MustLoad(&cfg)

	var in auth.CreateAccountInput
	flag.StringVar(&in.Username, "username", "admin", "admin username")
	flag.StringVar(&in.Email, "email", "", "admin email (required)")
	flag.StringVar(&in.FullName, "name", "Administrator", "display name")
	flag.StringVar(&in.Password, "password", "", "admin password, defaults to $ADMIN_PASSWORD")
	flag.Parse()

	if in.Password == "" {
		in.Password = cfg.Password
	}
	in.Role = credential.RoleAdmin

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(logger.WithEnvironment(cfg.Env, "rollcall-setup"))

	if err := run(ctx, cfg, in); err != nil {
		log.ErrorContext(ctx, "admin setup failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg setupConfig, in auth.CreateAccountInput) error {
	if in.Email == "" || in.Password == "" {
		return errors.New("both -email and a password are required")
	}
	if cfg.StorageDriver == credential.DriverMemory {
		return errors.New("refusing to create an admin in the memory store; set STORAGE_DRIVER")
	}

	storage, err := credential.Open(ctx, cfg.StorageDriver, nil)
	if err != nil {
		return err
	}
	defer storage.Close()

	var authCfg auth.Config
	if err := config.Load(&authCfg); err != nil {
		return err
	}
	var mailCfg email.Config
	if err := config.Load(&mailCfg); err != nil {
		return err
	}
	mailer, err := email.New(mailCfg)
	if err != nil {
		return err
	}
	sessions, err := jwt.NewFromString(authCfg.JWTSecret, jwt.WithTTL(authCfg.SessionTTL), jwt.WithIssuer(authCfg.JWTIssuer))
	if err != nil {
		return err
	}

	svc, err := auth.NewService(authCfg, storage.Repository, sessions, mailer)
	if err != nil {
		return err
	}
	rec, err := svc.CreateAccount(ctx, in)
	if err != nil {
		return err
	}

	fmt.Printf("admin %q created (id %s, email %s verified)\n", rec.Username, rec.ID, rec.Email)
	return nil
}
