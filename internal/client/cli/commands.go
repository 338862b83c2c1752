package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/foldr/foldr-go/internal/client/api"
	"github.com/foldr/foldr-go/internal/client/syncer"
	"github.com/foldr/foldr-go/internal/model"
)

func (a *App) signup(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("signup <email>")
	}
	password, err := a.password("Password")
	if err != nil {
		return err
	}
	invite, err := a.line("Invite code")
	if err != nil {
		return err
	}

	s, _, err := a.syncer()
	if err != nil {
		return err
	}
	sess, err := s.Signup(ctx, args[0], password, invite)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed up as %s\n", sess.Email)
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("login <email>")
	}
	password, err := a.password("Password")
	if err != nil {
		return err
	}

	s, _, err := a.syncer()
	if err != nil {
		return err
	}
	sess, err := s.Login(ctx, args[0], password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", sess.Email)

	result, err := s.FullSync(ctx)
	if err != nil {
		slog.Warn("initial pull failed", "error", err)
		fmt.Fprintln(a.out, "Could not pull your data; run `foldr pull` once online.")
		return nil
	}
	a.printPull(result)
	return nil
}

func (a *App) logout(ctx context.Context) error {
	s, _, err := a.syncer()
	if err != nil {
		return err
	}
	if err := s.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) changePassword(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("change-password <email>")
	}
	current, err := a.password("Current password")
	if err != nil {
		return err
	}
	next, err := a.password("New password")
	if err != nil {
		return err
	}
	if err := a.api.ChangePassword(ctx, args[0], current, next); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed")
	return nil
}

func (a *App) resetPassword(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("reset-password <email>")
	}
	next, err := a.password("New password")
	if err != nil {
		return err
	}
	invite, err := a.line("Invite code")
	if err != nil {
		return err
	}
	if err := a.api.ResetPassword(ctx, args[0], next, invite); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password reset")
	return nil
}

func (a *App) sync(ctx context.Context) error {
	s, _, err := a.syncer()
	if err != nil {
		return err
	}
	result, err := s.SyncNow(ctx)
	if err != nil {
		return err
	}
	a.printPull(result)
	return nil
}

func (a *App) pull(ctx context.Context) error {
	s, _, err := a.syncer()
	if err != nil {
		return err
	}
	result, err := s.FullSync(ctx)
	if err != nil {
		return err
	}
	a.printPull(result)
	return nil
}

func (a *App) printPull(result syncer.PullResult) {
	fmt.Fprintf(a.out, "Pulled %d collections\n", len(result.Applied))
	skipped := make([]string, 0, len(result.Skipped))
	for c, err := range result.Skipped {
		skipped = append(skipped, fmt.Sprintf("  %s: %v", c, err))
	}
	sort.Strings(skipped)
	if len(skipped) > 0 {
		fmt.Fprintf(a.out, "Skipped:\n%s\n", strings.Join(skipped, "\n"))
	}
}

func (a *App) push(ctx context.Context) error {
	s, _, err := a.syncer()
	if err != nil {
		return err
	}
	resp, err := s.Push(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Pushed local data (%d records rejected)\n", resp.Skipped)
	return nil
}

func (a *App) delete(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("delete <collection> <id>")
	}
	c, err := model.ParseCollection(args[0])
	if err != nil {
		return err
	}
	s, _, err := a.syncer()
	if err != nil {
		return err
	}

	err = s.Delete(ctx, c, args[1])
	switch {
	case err == nil:
		fmt.Fprintf(a.out, "Deleted %s %s\n", c, args[1])
		return nil
	case errors.Is(err, api.ErrOffline), errors.Is(err, syncer.ErrNotLoggedIn):
		fmt.Fprintf(a.out, "Deleted %s %s locally; the server will be updated on the next sync\n", c, args[1])
		return nil
	}
	return err
}

func (a *App) status(ctx context.Context) error {
	s, st, err := a.syncer()
	if err != nil {
		return err
	}
	status, err := s.Status(ctx)
	if err != nil {
		return err
	}

	if status.LoggedIn {
		fmt.Fprintf(a.out, "Logged in as %s\n", status.Email)
	} else {
		fmt.Fprintln(a.out, "Not logged in")
	}
	fmt.Fprintf(a.out, "Server:  %s\nData:    %s\n", a.cfg.ServerURL, st.Dir())

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, c := range model.Collections {
		fmt.Fprintf(tw, "%s\t%d\n", c, status.Counts[c])
	}
	tw.Flush()
	if status.Pending > 0 {
		fmt.Fprintf(a.out, "%d deletions waiting to be sent\n", status.Pending)
	}
	return nil
}

func (a *App) list(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("list <collection>")
	}
	c, err := model.ParseCollection(args[0])
	if err != nil {
		return err
	}
	_, st, err := a.syncer()
	if err != nil {
		return err
	}
	recs, err := st.List(ctx, c)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	for _, rec := range recs {
		if c != model.Trips {
			fmt.Fprintf(tw, "%s\t%s\n", rec.ID, rec.Data)
			continue
		}
		var trip model.Trip
		if err := json.Unmarshal([]byte(rec.Data), &trip); err != nil {
			fmt.Fprintf(tw, "%s\t(unreadable: %v)\n", rec.ID, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s..%s\t%s\n", trip.ID, trip.Name, trip.StartDate, trip.EndDate, trip.Status(a.now()))
	}
	return nil
}

func (a *App) trip(ctx context.Context, args []string) error {
	if len(args) != 4 || args[0] != "add" {
		return usageError("trip add <name> <start> <end>")
	}
	trip, err := model.NewTrip(args[1], args[2], args[3], a.now())
	if err != nil {
		return err
	}
	s, _, err := a.syncer()
	if err != nil {
		return err
	}
	if _, err := s.Save(ctx, model.Trips, trip); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created trip %s (%s)\n", trip.ID, trip.Status(a.now()))
	return nil
}
