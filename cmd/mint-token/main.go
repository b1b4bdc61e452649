// Command mint-token signs a bearer token for local testing of the API.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/barflow/barflow/internal/domain/auth"
)

// secretKeys are looked up in order, first in the env file, then in the
// process environment.
var secretKeys = []string{"BARFLOW_AUTH_SECRET", "JWT_SECRET"}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		slog.Error("mint failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("mint-token", flag.ContinueOnError)
	var (
		subject = fs.String("sub", "", "token subject")
		email   = fs.String("email", "", "email claim")
		role    = fs.String("role", string(auth.RoleStaff), "role: admin, staff or customer")
		barID   = fs.String("bar", "", "bar id claim, required for staff")
		envFile = fs.String("env-file", ".env", "env file holding BARFLOW_AUTH_SECRET or JWT_SECRET")
		ttl     = fs.Duration("ttl", time.Hour, "token lifetime")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := auth.ParseRole(*role)
	if err != nil {
		return err
	}
	if r == auth.RoleStaff {
		if *barID == "" {
			return errors.New("-bar is required for staff tokens")
		}
		if _, err := uuid.Parse(*barID); err != nil {
			return errors.Errorf("-bar %q is not a UUID", *barID)
		}
	}
	sub := *subject
	if sub == "" {
		sub = string(r) + "-" + uuid.NewString()[:8]
	}

	secret, err := lookupSecret(*envFile)
	if err != nil {
		return err
	}
	token, err := auth.MintToken([]byte(secret), auth.MintRequest{
		Subject: sub,
		Email:   *email,
		Role:    r,
		BarID:   *barID,
		TTL:     *ttl,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// lookupSecret reads the signing secret from envFile, falling back to the
// process environment when the file is missing or lacks the key.
func lookupSecret(envFile string) (string, error) {
	vars, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", errors.Wrapf(err, "read %s", envFile)
	}
	for _, k := range secretKeys {
		if v := vars[k]; v != "" {
			return v, nil
		}
	}
	for _, k := range secretKeys {
		if v := os.Getenv(k); v != "" {
			return v, nil
		}
	}
	return "", errors.Errorf("signing secret not found: set %s in %s or the environment", secretKeys[0], envFile)
}
