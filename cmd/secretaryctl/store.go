package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/config"
	"github.com/himawari-tools/line-secretary/internal/factory"
	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/store"
)

// openStore connects to the store named by the environment, the same
// configuration the services read.
func openStore(ctx context.Context) (store.Store, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return factory.NewStore(ctx, cfg, zerolog.Nop())
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runUserGet(ctx context.Context, userID string, out io.Writer) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	u, err := st.Users().Get(ctx, userID)
	if err != nil {
		return err
	}
	return printJSON(out, u)
}

func runUserList(ctx context.Context, limit int, out io.Writer) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	users, err := st.Users().List(ctx, limit)
	if err != nil {
		return err
	}
	return printJSON(out, users)
}

func runWarikanList(ctx context.Context, userID, status string, limit int, out io.Writer) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	warikans, err := st.Warikans().ListByCreator(ctx, userID, model.WarikanStatus(status), limit)
	if err != nil {
		return err
	}
	return printJSON(out, warikans)
}

func runScheduleList(ctx context.Context, userID string, limit int, out io.Writer) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	schedules, err := st.Schedules().ListByUser(ctx, userID, limit)
	if err != nil {
		return err
	}
	return printJSON(out, schedules)
}

func runUsageReset(ctx context.Context, limit int, out io.Writer) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	n, err := st.Users().ResetMonthlyUsage(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "reset %d users\n", n)
	return nil
}
