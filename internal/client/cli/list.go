package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
)

// List prints every account known to the server.
func (a *App) List(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	accounts, err := a.client.ListAccounts(ctx)
	if err != nil {
		printlnFn("List failed:", err.Error())
		return err
	}

	if len(accounts) == 0 {
		printlnFn("No accounts")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tACTIVATED")
	for _, acc := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%t\n", acc.ID, acc.Email, acc.IsActivated)
	}
	return w.Flush()
}
