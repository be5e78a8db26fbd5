package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/sankalp/sankalp/internal/server"
	"github.com/sankalp/sankalp/internal/streak"
)

// appContext is passed to every command's Run method.
type appContext struct {
	ctx    context.Context
	logger *slog.Logger
	out    io.Writer
	deps   *server.Deps
}

type RecomputeCmd struct {
	User string `help:"Only this user ID; default is every user."`
}

func (c *RecomputeCmd) Run(app *appContext) error {
	if c.User != "" {
		res, err := app.deps.CheckIns.Recompute(app.ctx, c.User)
		if err != nil {
			return err
		}
		app.logger.Info("recomputed",
			slog.String("user_id", c.User),
			slog.Int("current_streak", res.CurrentStreak),
			slog.Int("longest_streak", res.LongestStreak),
			slog.Int("new_badges", len(res.NewBadges)),
			slog.Int("xp_gained", res.XPGained),
		)
		return nil
	}

	n, err := app.deps.CheckIns.RecomputeAll(app.ctx)
	app.logger.Info("recompute finished", slog.Int("users", n))
	return err
}

type RemindCmd struct{}

func (c *RemindCmd) Run(app *appContext) error {
	n, err := app.deps.Reminders.RunOnce(app.ctx)
	if err != nil {
		return err
	}
	app.logger.Info("reminders handed off", slog.Int("sent", n))
	return nil
}

type StatsCmd struct {
	User string `help:"User ID." required:""`
}

func (c *StatsCmd) Run(app *appContext) error {
	details, err := app.deps.Stats.Details(app.ctx, c.User)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(app.out)
	enc.SetIndent("", "  ")
	return enc.Encode(details)
}

type BadgesCmd struct{}

func (c *BadgesCmd) Run(app *appContext) error {
	tw := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMETRIC\tTHRESHOLD\tXP")
	for _, b := range streak.Catalog() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", b.ID, b.Name, b.Metric, b.Threshold, b.XP)
	}
	return tw.Flush()
}
