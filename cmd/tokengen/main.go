// This program mints bearer tokens for the slotleads API. It stands in for the
// identity provider in development.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/conf/v3"
	slotleads "github.com/phbpx/slotleads"
	"github.com/phbpx/slotleads/handler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tokengen:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := struct {
		Auth struct {
			Secret string `conf:"default:change-me,mask"`
		}
		Identity string        `conf:"required,help:identity placed in the token subject"`
		TTL      time.Duration `conf:"default:24h"`
	}{}

	help, err := conf.Parse("SLOTS", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	token, err := handler.IssueToken(cfg.Auth.Secret, slotleads.Identity(cfg.Identity), cfg.TTL)
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}

	fmt.Println(token)
	return nil
}
