// Command token mints a bearer token the booking API accepts, for local
// development against a running server:
//
//	token --sub 42 --role CUSTOMER --ttl 1h
//
// The signing secret is read from JWT_SECRET (a .env file is honoured).
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/iliyamo/eventix-booking/internal/middleware"
	"github.com/iliyamo/eventix-booking/internal/utils"
)

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Getenv("JWT_SECRET"), os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, secret string, out io.Writer) error {
	var (
		sub  uint64
		role string
		ttl  time.Duration
	)
	flagSet := pflag.NewFlagSet("token", pflag.ContinueOnError)
	flagSet.Uint64Var(&sub, "sub", 0, "user ID carried in the sub claim (required)")
	flagSet.StringVar(&role, "role", middleware.RoleCustomer, "CUSTOMER, STAFF or ADMIN")
	flagSet.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if sub == 0 {
		return errors.New("--sub is required")
	}
	role = strings.ToUpper(role)
	switch role {
	case middleware.RoleCustomer, middleware.RoleStaff, middleware.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	if ttl <= 0 {
		return fmt.Errorf("--ttl must be positive, got %s", ttl)
	}

	tok, err := utils.NewAccessToken(secret, sub, role, ttl)
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}
	_, err = fmt.Fprintln(out, tok.Token)
	return err
}
