// Command confsync is the demo client for the conference sync layer: it
// mirrors the schedule into the local cache and performs the favorite,
// rating and login operations against the configured service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"

	appctx "github.com/confsync/confsync/internal/app"
	"github.com/confsync/confsync/internal/config"
	"github.com/confsync/confsync/internal/logger"
	"github.com/confsync/confsync/internal/prefs"
	"github.com/confsync/confsync/internal/remote"
	"github.com/confsync/confsync/internal/repository"
	"github.com/confsync/confsync/internal/schedule"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}
	logger.SetLevel(cfg.Misc.LogLevel)

	store, err := prefs.NewStoreFromConfig(cfg.Cache.Backend, cfg.Cache.FilePath)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot open cache store: %v", err)
	}

	client, err := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init remote client: %v", err)
	}

	repo := repository.NewConferenceRepository(store, client)

	app, err := appctx.New(cfg, store, client, repo)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init app: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		app.Cancel()
	}()

	err = run(app, os.Args[1], os.Args[2:])
	app.Shutdown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(app *appctx.App, cmd string, args []string) error {
	ctx := app.BaseCtx

	switch cmd {
	case "sync":
		return runSync(ctx, app)
	case "sessions":
		return runSessions(app)
	case "favorites":
		return runFavorites(app)
	case "favorite":
		return runFavorite(ctx, app, args)
	case "rate":
		return runRate(ctx, app, args)
	case "unrate":
		return runUnrate(ctx, app, args)
	case "login":
		return runLogin(ctx, app, args)
	case "accept-privacy":
		return runAcceptPrivacy(app)
	case "status":
		return runStatus(app)
	case "watch":
		return runWatch(ctx, app)
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: confsync <command> [arguments]

Commands:
  sync                          fetch the schedule and user state from the service
  sessions                      list the cached schedule
  favorites                     list the cached favorite sessions
  favorite [--remove] <id>      mark (or unmark) a session as favorite
  rate <id> <up|ok|down>        rate a session
  unrate <id>                   retract the rating for a session
  login <code>                  verify a voting code and log in
  accept-privacy                record privacy policy acceptance
  status                        show login and cache state
  watch                         keep syncing in the background until interrupted

Configuration comes from ./config/config.yaml, CONFSYNC_* environment
variables and an optional .env file.`)
}

func runSync(ctx context.Context, app *appctx.App) error {
	if err := app.Repo.Update(ctx); err != nil {
		return err
	}
	fmt.Printf("Synchronized %d sessions (%d favorites, %d votes).\n",
		len(app.Repo.Sessions()), len(app.Repo.Favorites()), len(app.Repo.Votes()))
	return nil
}

func runSessions(app *appctx.App) error {
	sessions := app.Repo.Sessions()
	if len(sessions) == 0 {
		fmt.Println("No sessions cached. Run `confsync sync` first.")
		return nil
	}
	printSessions(app, sessions)
	return nil
}

func runFavorites(app *appctx.App) error {
	favorites := app.Repo.Favorites()
	if len(favorites) == 0 {
		fmt.Println("No favorite sessions.")
		return nil
	}
	printSessions(app, favorites)
	return nil
}

func runFavorite(ctx context.Context, app *appctx.App, args []string) error {
	flags := flag.NewFlagSet("favorite", flag.ContinueOnError)
	remove := flags.Bool("remove", false, "remove the session from favorites")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("usage: confsync favorite [--remove] <session-id>")
	}

	sessionID := flags.Arg(0)
	if err := app.Repo.SetFavorite(ctx, sessionID, !*remove); err != nil {
		return err
	}

	if *remove {
		fmt.Printf("Removed %s from favorites.\n", sessionTitle(app, sessionID))
	} else {
		fmt.Printf("Added %s to favorites.\n", sessionTitle(app, sessionID))
	}
	return nil
}

func runRate(ctx context.Context, app *appctx.App, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: confsync rate <session-id> <up|ok|down>")
	}

	rating, err := schedule.ParseRating(args[1])
	if err != nil {
		return err
	}
	if err := app.Repo.AddRating(ctx, args[0], rating); err != nil {
		return err
	}

	fmt.Printf("Rated %s %s.\n", sessionTitle(app, args[0]), rating)
	return nil
}

func runUnrate(ctx context.Context, app *appctx.App, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: confsync unrate <session-id>")
	}

	if err := app.Repo.RemoveRating(ctx, args[0]); err != nil {
		return err
	}

	fmt.Printf("Removed the rating for %s.\n", sessionTitle(app, args[0]))
	return nil
}

func runLogin(ctx context.Context, app *appctx.App, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: confsync login <code>")
	}

	if err := app.Repo.VerifyAndSetCode(ctx, args[0]); err != nil {
		return err
	}

	fmt.Println("Code accepted. You are logged in.")
	return nil
}

func runAcceptPrivacy(app *appctx.App) error {
	app.Repo.AcceptPrivacyPolicy()
	fmt.Println("Privacy policy acceptance recorded.")
	return nil
}

func runStatus(app *appctx.App) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if app.Repo.LoggedIn() {
		fmt.Fprintf(w, "Logged in:\tyes (code %s)\n", app.Repo.UserID())
	} else {
		fmt.Fprintf(w, "Logged in:\tno\n")
	}
	fmt.Fprintf(w, "Privacy policy accepted:\t%v\n", app.Repo.PrivacyPolicyAccepted())
	fmt.Fprintf(w, "Cached sessions:\t%d\n", len(app.Repo.Sessions()))
	fmt.Fprintf(w, "Cached favorites:\t%d\n", len(app.Repo.Favorites()))
	fmt.Fprintf(w, "Cached votes:\t%d\n", len(app.Repo.Votes()))
	return w.Flush()
}

func runWatch(ctx context.Context, app *appctx.App) error {
	app.Repo.RegisterRefreshListener(func() {
		fmt.Printf("Schedule refreshed: %d sessions, %d favorites, %d votes.\n",
			len(app.Repo.Sessions()), len(app.Repo.Favorites()), len(app.Repo.Votes()))
	})

	// First sync up front; the scheduler takes over from there.
	if err := app.Repo.Update(ctx); err != nil {
		logger.WithComponent("main").Errorf("initial refresh failed: %v", err)
	}

	scheduler := app.StartSync()
	fmt.Printf("Watching for schedule changes every %v. Press Ctrl-C to stop.\n",
		app.Config.Misc.SyncInterval)

	<-ctx.Done()

	if at, err := scheduler.LastResult(); !at.IsZero() {
		if err != nil {
			fmt.Printf("Last refresh at %s failed: %v\n", at.Format("15:04:05"), err)
		} else {
			fmt.Printf("Last refresh at %s.\n", at.Format("15:04:05"))
		}
	}
	return nil
}

func printSessions(app *appctx.App, sessions []schedule.Session) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tROOM\tTITLE")
	for _, s := range sessions {
		marks := ""
		if app.Repo.IsFavorite(s.ID) {
			marks += " *"
		}
		if rating, ok := app.Repo.Rating(s.ID); ok {
			marks += fmt.Sprintf(" [%s]", rating)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\n", s.ID, formatWhen(s), s.Room, s.Title, marks)
	}
	_ = w.Flush()
}

func formatWhen(s schedule.Session) string {
	if s.StartsAt.IsZero() {
		return "-"
	}
	return s.StartsAt.Local().Format("Mon 15:04") + "-" + s.EndsAt.Local().Format("15:04")
}

// sessionTitle names a session for output, falling back to the id when the
// session is not in the cache (possible for favorites of dropped sessions).
func sessionTitle(app *appctx.App, sessionID string) string {
	if s, ok := app.Repo.Session(sessionID); ok && s.Title != "" {
		return fmt.Sprintf("%q", s.Title)
	}
	return sessionID
}
