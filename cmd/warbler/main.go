// Command warbler is a small admin CLI over the Warbler data store.
//
// USAGE:
//
//	warbler migrate
//	warbler reset
//	warbler signup  -username alice -email a@example.com -password secret [-image URL]
//	warbler login   -username alice -password secret
//	warbler follow  -user alice -target bob [-undo]
//	warbler post    -user alice -text "hello"
//	warbler like    -user bob -message 1
//	warbler show    -user alice
//
// Settings come from the environment (and an optional .env file), see
// internal/config. main stays thin: it loads config, builds the logger and
// hands everything to run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sakif/warbler/internal/auth"
	"github.com/sakif/warbler/internal/config"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository/sqlite"
	"github.com/sakif/warbler/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Logs go to stderr so command output on stdout stays scriptable.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout, logger); err != nil {
		logger.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// errUsage is returned for an unknown or missing subcommand.
var errUsage = errors.New("usage: warbler <migrate|reset|signup|login|follow|post|like|show> [flags]")

// app is what every subcommand works with.
type app struct {
	store *sqlite.Store
	users *service.UserService
	out   io.Writer
}

func run(ctx context.Context, cfg config.Config, args []string, out io.Writer, logger *slog.Logger) error {
	if len(args) == 0 {
		return errUsage
	}

	commands := map[string]func(context.Context, *app, []string) error{
		"migrate": cmdMigrate,
		"reset":   cmdReset,
		"signup":  cmdSignup,
		"login":   cmdLogin,
		"follow":  cmdFollow,
		"post":    cmdPost,
		"like":    cmdLike,
		"show":    cmdShow,
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q\n%w", args[0], errUsage)
	}

	if err := ensureDir(cfg.DatabaseURL); err != nil {
		return err
	}

	store, err := sqlite.New(sqlite.Config{DSN: cfg.DatabaseURL}, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	a := &app{
		store: store,
		users: service.NewUserService(store, auth.NewPasswordServiceWithCost(cfg.BcryptCost), logger),
		out:   out,
	}
	return cmd(ctx, a, args[1:])
}

// ensureDir creates the parent directory of a plain database file path,
// like `mkdir -p`. URIs and in-memory databases are left alone.
func ensureDir(dsn string) error {
	if dsn == sqlite.MemoryDSN || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	return nil
}

// =========================================================================
// SUBCOMMANDS
// =========================================================================

func cmdMigrate(_ context.Context, a *app, _ []string) error {
	// sqlite.New already migrated; Version is reported by the store's logger.
	fmt.Fprintln(a.out, "schema up to date")
	return nil
}

func cmdReset(ctx context.Context, a *app, _ []string) error {
	if err := a.store.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "database reset")
	return nil
}

func cmdSignup(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	fs.SetOutput(a.out)
	username := fs.String("username", "", "username (required, unique)")
	email := fs.String("email", "", "email (required, unique)")
	password := fs.String("password", "", "password (required)")
	image := fs.String("image", "", "profile image URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := a.users.Register(ctx, *username, *email, *password, *image)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created user %d (%s)\n", u.ID, u.Username)
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := a.users.Authenticate(ctx, *username, *password)
	if err != nil {
		return err
	}
	if u == nil {
		return errors.New("invalid username or password")
	}
	fmt.Fprintf(a.out, "hello, %s\n", u.Username)
	return nil
}

func cmdFollow(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("follow", flag.ContinueOnError)
	fs.SetOutput(a.out)
	user := fs.String("user", "", "follower username")
	target := fs.String("target", "", "username to follow")
	undo := fs.Bool("undo", false, "unfollow instead")
	if err := fs.Parse(args); err != nil {
		return err
	}

	follower, err := a.store.GetUserByUsername(ctx, *user)
	if err != nil {
		return err
	}
	followed, err := a.store.GetUserByUsername(ctx, *target)
	if err != nil {
		return err
	}

	if *undo {
		if err := a.users.Unfollow(ctx, follower, followed); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s unfollowed %s\n", follower.Username, followed.Username)
		return nil
	}
	if err := a.users.Follow(ctx, follower, followed); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s now follows %s\n", follower.Username, followed.Username)
	return nil
}

func cmdPost(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	fs.SetOutput(a.out)
	user := fs.String("user", "", "author username")
	text := fs.String("text", "", "message text")
	if err := fs.Parse(args); err != nil {
		return err
	}

	author, err := a.store.GetUserByUsername(ctx, *user)
	if err != nil {
		return err
	}
	m, err := a.users.Post(ctx, author, *text)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "posted message %d\n", m.ID)
	return nil
}

func cmdLike(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("like", flag.ContinueOnError)
	fs.SetOutput(a.out)
	user := fs.String("user", "", "username")
	messageID := fs.Int64("message", 0, "message id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := a.store.GetUserByUsername(ctx, *user)
	if err != nil {
		return err
	}
	m, err := a.store.GetMessageByID(ctx, *messageID)
	if err != nil {
		return err
	}
	liked, err := a.users.ToggleLike(ctx, u, m)
	if err != nil {
		return err
	}
	verb := "liked"
	if !liked {
		verb = "unliked"
	}
	fmt.Fprintf(a.out, "%s %s message %d\n", u.Username, verb, m.ID)
	return nil
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(a.out)
	user := fs.String("user", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := a.store.GetUserByUsername(ctx, *user)
	if err != nil {
		return err
	}
	messages, err := a.store.Messages(ctx, u.ID)
	if err != nil {
		return err
	}
	following, err := a.store.Following(ctx, u.ID)
	if err != nil {
		return err
	}
	followers, err := a.store.Followers(ctx, u.ID)
	if err != nil {
		return err
	}
	likes, err := a.store.Likes(ctx, u.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s <%s> id=%d\n", u.Username, u.Email, u.ID)
	fmt.Fprintf(a.out, "following: %s\n", usernames(following))
	fmt.Fprintf(a.out, "followers: %s\n", usernames(followers))
	fmt.Fprintf(a.out, "likes: %d\n", len(likes))
	for _, m := range messages {
		fmt.Fprintf(a.out, "  [%d] %s  %s\n", m.ID, m.Timestamp.Format("2006-01-02 15:04"), m.Text)
	}
	return nil
}

func usernames(users []model.User) string {
	if len(users) == 0 {
		return "-"
	}
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Username
	}
	return strings.Join(names, ", ")
}
