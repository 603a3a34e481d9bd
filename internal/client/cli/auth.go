package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) readCredentials() (string, []byte, error) {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return "", nil, err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

// Register prompts for an email and password and creates the account. The
// new session becomes current.
func (a *App) Register(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	acc, err := a.client.Registration(ctx, email, string(password))
	if err != nil {
		printlnFn("Registration failed:", err.Error())
		return err
	}

	printlnFn(fmt.Sprintf("Registered %s (id %s). Check your inbox for the activation link.", acc.Email, acc.ID))
	return nil
}

// Login prompts for credentials and opens a session.
func (a *App) Login(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	acc, err := a.client.Login(ctx, email, string(password))
	if err != nil {
		printlnFn("Login unsuccessful:", err.Error())
		return err
	}

	printlnFn("Logged in as", acc.Email)
	return nil
}

// Logout ends the current session on the server.
func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.Logout(ctx); err != nil {
		printlnFn("Logout failed:", err.Error())
		return err
	}

	printlnFn("Logged out")
	return nil
}

// Refresh rotates the session tokens.
func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if _, err := a.client.Refresh(ctx); err != nil {
		printlnFn("Refresh failed:", err.Error())
		return err
	}

	printlnFn("Session refreshed")
	return nil
}

// WhoAmI prints the current account.
func (a *App) WhoAmI(ctx context.Context) error {
	acc := a.client.Current()
	if acc == nil {
		printlnFn("Not logged in")
		return nil
	}

	printlnFn(fmt.Sprintf("%s id=%s activated=%t", acc.Email, acc.ID, acc.IsActivated))
	return nil
}
