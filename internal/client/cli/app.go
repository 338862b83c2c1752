// Package cli implements the foldr command line client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/foldr/foldr-go/internal/client/api"
	"github.com/foldr/foldr-go/internal/client/store"
	"github.com/foldr/foldr-go/internal/client/syncer"
	"github.com/foldr/foldr-go/internal/config"
	"github.com/foldr/foldr-go/internal/lazy"
)

// ErrUsage marks a malformed command line.
var ErrUsage = errors.New("usage")

const usage = `usage: foldr [flags] <command> [args]

commands:
  signup <email>                 create an account (asks for password and invite code)
  login <email>                  log in and pull your data
  logout                         forget the stored session
  change-password <email>        change your password
  reset-password <email>         set a new password with the invite code
  sync                           send queued deletions, push, then pull
  pull                           replace local data with the server snapshot
  push                           upload local data
  delete <collection> <id>       delete a record here and on the server
  status                         show session and local record counts
  list <collection>              print local records
  trip add <name> <start> <end>  create a trip locally (dates as YYYY-MM-DD)
  proxy [-manifest paths]        serve the app through the offline cache
`

// App runs foldr commands against the local store and the server.
type App struct {
	cfg      config.ClientConfig
	in       *bufio.Reader
	out      io.Writer
	terminal bool
	now      func() time.Time

	api   *api.Client
	store *lazy.Resource[*store.Store]
}

// New builds an App. The local store is opened on first use.
func New(cfg config.ClientConfig, in io.Reader, out io.Writer) *App {
	return &App{
		cfg:      cfg,
		in:       bufio.NewReader(in),
		out:      out,
		terminal: isTerminal(in),
		now:      time.Now,
		api:      api.New(cfg.ServerURL, api.WithTimeout(cfg.Timeout)),
		store: lazy.New(
			func() (*store.Store, error) { return store.Open(cfg.DataDir) },
			func(s *store.Store) error { return s.Close() },
		),
	}
}

// Close releases the local store.
func (a *App) Close() error {
	return a.store.Terminate()
}

func (a *App) syncer() (*syncer.Syncer, *store.Store, error) {
	st, err := a.store.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("opening local store: %w", err)
	}
	return syncer.New(a.api, st), st, nil
}

// Run executes one command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return ErrUsage
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	case "signup":
		return a.signup(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "change-password":
		return a.changePassword(ctx, args)
	case "reset-password":
		return a.resetPassword(ctx, args)
	case "sync":
		return a.sync(ctx)
	case "pull":
		return a.pull(ctx)
	case "push":
		return a.push(ctx)
	case "delete":
		return a.delete(ctx, args)
	case "status":
		return a.status(ctx)
	case "list":
		return a.list(ctx, args)
	case "trip":
		return a.trip(ctx, args)
	case "proxy":
		return a.proxy(ctx, args)
	}
	fmt.Fprintf(a.out, "unknown command %q\n\n%s", cmd, usage)
	return ErrUsage
}

func usageError(format string) error {
	return fmt.Errorf("%w: foldr %s", ErrUsage, format)
}
