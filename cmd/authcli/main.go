// Command authcli drives the client half against a running server.
//
//	authcli [flags] register <username> [password]
//	authcli [flags] login <username> [password]
//	authcli [flags] refresh | logout | status | token
//	authcli [flags] get <path> [--public]
//
// A missing password is read from the terminal without echo.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/congo-pay/tokengate/internal/client/config"
	"github.com/congo-pay/tokengate/internal/client/session"
	"github.com/congo-pay/tokengate/internal/client/tokenstore"
	"github.com/congo-pay/tokengate/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, rest, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}
	if len(rest) == 0 {
		fmt.Fprintln(stderr, "usage: authcli [flags] register|login|refresh|logout|status|token|get ...")
		return 2
	}

	logger := logging.NewWithWriter(stderr, os.Getenv("LOG_LEVEL"))

	var slot tokenstore.Slot = tokenstore.NewMemorySlot()
	if cfg.StoragePath != "" {
		sqlite, err := tokenstore.OpenSQLiteSlot(cfg.StoragePath)
		if err != nil {
			fmt.Fprintf(stderr, "open token storage: %v\n", err)
			return 1
		}
		defer sqlite.Close()
		slot = sqlite
	}
	store := tokenstore.New(slot,
		tokenstore.WithKey(cfg.StorageKey),
		tokenstore.WithSafetyMargin(cfg.SafetyMargin),
	)
	sess := session.New(*cfg, store, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, sess, store, rest, stdout, stderr); err != nil {
		var se *session.StatusError
		if errors.As(err, &se) {
			fmt.Fprintf(stderr, "%s failed: %s\n", se.Op, se.Status)
			return 1
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, sess *session.Session, store *tokenstore.Store, args []string, stdout, prompt io.Writer) error {
	cmd, args := args[0], args[1:]
	switch cmd {
	case "register", "login":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("%s needs <username> [password]", cmd)
		}
		if len(args) == 1 {
			pw, err := promptPassword(prompt)
			if err != nil {
				return err
			}
			args = append(args, pw)
		}
		if cmd == "register" {
			if err := sess.Register(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "registered")
			return nil
		}
		if err := sess.LogIn(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "logged in")
	case "refresh":
		if err := sess.Refresh(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "token refreshed")
	case "logout":
		if err := sess.LogOut(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "logged out")
	case "status":
		exp, ok := store.Expiry()
		switch {
		case !ok:
			fmt.Fprintln(stdout, "not logged in")
		case sess.IsLoggedIn():
			fmt.Fprintf(stdout, "logged in, token expires %s\n", exp.Local().Format(time.RFC1123))
		default:
			fmt.Fprintf(stdout, "token expired or about to expire (%s)\n", exp.Local().Format(time.RFC1123))
		}
	case "token":
		tok, ok := sess.Token()
		if !ok {
			return errors.New("no token stored")
		}
		fmt.Fprintln(stdout, tok)
	case "get":
		if len(args) == 0 {
			return errors.New("get needs <path>")
		}
		authorized := !(len(args) > 1 && args[1] == "--public")
		body, err := sess.Get(ctx, args[0], authorized)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(body))
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}
