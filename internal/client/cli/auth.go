package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reviewly/authsession/internal/common"
)

func (a *App) cmdLogin(ctx context.Context) {
	email, err := GetSimpleText(a.reader, "Email:", a.out)
	if err != nil {
		return
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return
	}

	user, err := a.auth.Login(ctx, email, password)
	if err != nil {
		a.printAuthError(err)
		return
	}
	fmt.Fprintf(a.out, "Logged in as %s.\n", user.Name)
}

func (a *App) cmdAdminLogin(ctx context.Context) {
	name, err := GetSimpleText(a.reader, "Admin name:", a.out)
	if err != nil {
		return
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return
	}

	if err := a.auth.AdminLogin(ctx, name, password); err != nil {
		a.printAuthError(err)
		return
	}
	fmt.Fprintln(a.out, "Admin login successful.")
}

func (a *App) cmdRegister(ctx context.Context) {
	name, err := GetSimpleText(a.reader, "Name:", a.out)
	if err != nil {
		return
	}
	email, err := GetSimpleText(a.reader, "Email:", a.out)
	if err != nil {
		return
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return
	}

	user, err := a.auth.Register(ctx, name, email, password)
	if err != nil {
		a.printAuthError(err)
		return
	}
	fmt.Fprintf(a.out, "Registered and logged in as %s.\n", user.Name)
}

func (a *App) cmdWhoami() {
	st := a.session.Current()
	if !st.Authenticated() {
		fmt.Fprintln(a.out, "Not logged in.")
		return
	}
	fmt.Fprintf(a.out, "%s <%s> (id %s)\n", st.User.Name, st.User.Email, st.User.ID)
}

// cmdGet issues an authenticated GET against the platform API and prints the
// JSON reply, demonstrating the interceptor on arbitrary calls.
func (a *App) cmdGet(ctx context.Context, path string) {
	var out any
	if err := a.api.Get(ctx, path, &out); err != nil {
		a.printAuthError(err)
		return
	}
	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(a.out, "%v\n", out)
		return
	}
	fmt.Fprintln(a.out, string(pretty))
}

// printAuthError renders the stable error categories as user-facing text.
func (a *App) printAuthError(err error) {
	switch {
	case errors.Is(err, common.ErrRateLimited):
		fmt.Fprintf(a.out, "%v\n", err)
	case errors.Is(err, common.ErrUnauthorized):
		fmt.Fprintln(a.out, "Invalid credentials.")
	case errors.Is(err, common.ErrSessionExpired):
		fmt.Fprintln(a.out, "Session expired, please login again.")
	case errors.Is(err, common.ErrForbidden):
		fmt.Fprintln(a.out, "You don't have access to that.")
	case errors.Is(err, common.ErrNotFound):
		fmt.Fprintln(a.out, "Not found.")
	case errors.Is(err, common.ErrTimeout):
		fmt.Fprintln(a.out, "The server took too long to respond.")
	case errors.Is(err, common.ErrNetwork):
		fmt.Fprintln(a.out, "Could not reach the server.")
	default:
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
}
