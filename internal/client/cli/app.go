// Package cli is a small interactive harness around the session manager: it
// plays the role the page code plays in the browser surfaces, calling into
// the auth service and the API client and rendering results as text.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite"

	"github.com/reviewly/authsession/internal/client/config"
	"github.com/reviewly/authsession/internal/client/credential"
	"github.com/reviewly/authsession/internal/client/httpapi"
	"github.com/reviewly/authsession/internal/client/ratelimit"
	"github.com/reviewly/authsession/internal/client/refresh"
	"github.com/reviewly/authsession/internal/client/services"
	"github.com/reviewly/authsession/internal/client/session"
	"github.com/reviewly/authsession/internal/logging"
)

type App struct {
	config  *config.Config
	auth    services.AuthService
	session *session.Manager
	api     *httpapi.Client

	reader *bufio.Reader
	out    io.Writer

	cleanup func()
}

// NewApp wires the whole session manager: both credential channels behind a
// dual store, the refresh coordinator, the auth transport, the rate limiter,
// the session view, and the store watcher.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewDefault()

	sqlite, err := credential.OpenSQLite(ctx, cfg.CredentialDBPath)
	if err != nil {
		return nil, fmt.Errorf("init credential db: %w", err)
	}
	cookies := credential.NewCookieFileChannel(cfg.CookieFilePath, cfg.CookieMaxAge)
	store := credential.NewDualStore(sqlite, cookies, log)

	sess := session.NewManager(store, log)

	app := &App{
		config:  cfg,
		session: sess,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}

	coordinator := refresh.New(
		httpapi.New(cfg.APIBaseURL, cfg.RequestTimeout, nil, log),
		store,
		refresh.Config{
			MaxAttempts: cfg.RefreshMaxAttempts,
			OnSessionExpired: func() {
				fmt.Fprintln(app.out, "Session expired, please login again.")
			},
		},
		log,
	)

	app.api = httpapi.New(cfg.APIBaseURL, cfg.RequestTimeout, &httpapi.AuthTransport{
		Store:     store,
		Refresher: coordinator,
		Log:       log,
	}, log)

	limiter := ratelimit.New(cfg.LoginMaxAttempts, cfg.LoginWindow)
	app.auth = services.NewAuthService(app.api, store, sess, limiter, log)

	watchCtx, stopWatch := context.WithCancel(context.Background())
	go store.Watch(watchCtx, cfg.WatchInterval)
	app.cleanup = func() {
		stopWatch()
		_ = sqlite.Close()
	}

	return app, nil
}

// Run bootstraps the session view and processes commands until quit or EOF.
func (a *App) Run(ctx context.Context) {
	defer a.cleanup()

	a.session.Subscribe(func(st session.State) {
		if st.Authenticated() {
			fmt.Fprintf(a.out, "Signed in as %s <%s>\n", st.User.Name, st.User.Email)
		} else {
			fmt.Fprintln(a.out, "Signed out.")
		}
	})

	st := a.session.Bootstrap(ctx)
	if st.Authenticated() {
		fmt.Fprintf(a.out, "Welcome back, %s.\n", st.User.Name)
	}

	for {
		cmd, err := GetSimpleText(a.reader, "Command (login, admin, register, whoami, get <path>, logout, quit):", a.out)
		if err != nil {
			return
		}
		if done := a.dispatch(ctx, cmd); done {
			return
		}
	}
}

func (a *App) dispatch(ctx context.Context, cmd string) bool {
	switch {
	case cmd == "login":
		a.cmdLogin(ctx)
	case cmd == "admin":
		a.cmdAdminLogin(ctx)
	case cmd == "register":
		a.cmdRegister(ctx)
	case cmd == "whoami":
		a.cmdWhoami()
	case cmd == "logout":
		a.auth.Logout(ctx)
	case len(cmd) > 4 && cmd[:4] == "get ":
		a.cmdGet(ctx, cmd[4:])
	case cmd == "quit" || cmd == "exit":
		return true
	case cmd == "":
	default:
		fmt.Fprintf(a.out, "Unknown command: %s\n", cmd)
	}
	return false
}
