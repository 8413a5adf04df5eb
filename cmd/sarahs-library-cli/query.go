package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sarahcodeswell/sarahs-library-sub002/cmd/sarahs-library-cli/ui"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/app"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/library"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/recommend"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/routing"
)

// readerFlags select the reader history merged into a request.
type readerFlags struct {
	userID      string
	historyFile string
}

func (f *readerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.userID, "user", "", "load the reading queue and owned books of this user ID from the database")
	cmd.Flags().StringVar(&f.historyFile, "history", "", `JSON file with "reading_queue" and "owned" arrays`)
}

// build returns the request for query with stored and file history merged.
func (f *readerFlags) build(ctx context.Context, a *app.App, query string) (recommend.Request, error) {
	req := recommend.Request{Query: query}

	if f.userID != "" {
		userID, err := uuid.Parse(f.userID)
		if err != nil {
			return req, fmt.Errorf("invalid --user: %w", err)
		}
		if a.History == nil {
			return req, errors.New("--user requires a database")
		}
		req.ReadingQueue, req.Owned, err = a.History.Load(ctx, userID)
		if err != nil {
			return req, fmt.Errorf("load history: %w", err)
		}
	}

	if f.historyFile != "" {
		data, err := os.ReadFile(f.historyFile)
		if err != nil {
			return req, fmt.Errorf("read history: %w", err)
		}
		var fromFile recommend.Request
		if err := json.Unmarshal(data, &fromFile); err != nil {
			return req, fmt.Errorf("parse history %s: %w", f.historyFile, err)
		}
		for _, item := range fromFile.ReadingQueue {
			if !item.Status.Valid() {
				return req, fmt.Errorf("history %s: invalid status %q for %q", f.historyFile, item.Status, item.BookTitle)
			}
		}
		req.ReadingQueue = append(req.ReadingQueue, fromFile.ReadingQueue...)
		req.Owned = append(req.Owned, fromFile.Owned...)
	}

	return req, nil
}

func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func queryArg(args []string) (string, error) {
	q := strings.TrimSpace(strings.Join(args, " "))
	if q == "" {
		return "", recommend.ErrEmptyQuery
	}
	return q, nil
}

func newRouteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route <query>",
		Short: "Show the recommendation path for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := queryArg(args)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				d := a.Service.Route(ctx, query)
				if outputJSON {
					return ui.JSON(d)
				}
				printDecision(d)
				return nil
			})
		},
	}
}

func newShortlistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shortlist <query>",
		Short: "Show the catalog shortlist for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := queryArg(args)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				list := a.Service.Shortlist(query)
				if outputJSON {
					return ui.JSON(map[string]interface{}{
						"catalog_size": list.CatalogSize,
						"titles":       list.Titles(),
					})
				}
				printShortlist(list)
				return nil
			})
		},
	}
}

func newPromptCmd() *cobra.Command {
	var reader readerFlags

	cmd := &cobra.Command{
		Use:   "prompt <query>",
		Short: "Assemble the prompt for a query without calling the model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := queryArg(args)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				req, err := reader.build(ctx, a, query)
				if err != nil {
					return err
				}
				res, err := a.Service.Preview(ctx, req)
				if err != nil {
					return err
				}
				if outputJSON {
					return ui.JSON(res)
				}

				printDecision(res.Decision)
				ui.Section("System prompt")
				for i, seg := range res.System {
					ui.KeyValue(fmt.Sprintf("segment %d", i+1), fmt.Sprintf("cacheable=%t", seg.Cacheable))
					ui.Text(seg.Text)
				}
				ui.Section("User message")
				ui.Text(res.User)
				return nil
			})
		},
	}
	reader.register(cmd)
	return cmd
}

func newRecommendCmd() *cobra.Command {
	var reader readerFlags

	cmd := &cobra.Command{
		Use:   "recommend <query>",
		Short: "Get book recommendations for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := queryArg(args)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				req, err := reader.build(ctx, a, query)
				if err != nil {
					return err
				}

				var spin *ui.Spinner
				if !outputJSON {
					spin = ui.NewSpinner("Finding books...")
					spin.Start()
				}
				res, err := a.Service.Recommend(ctx, req)
				if spin != nil {
					spin.Stop()
				}
				if err != nil {
					return err
				}

				if outputJSON {
					return ui.JSON(res)
				}

				printDecision(res.Decision)
				ui.Section("Recommendations")
				ui.Text(strings.TrimSpace(res.Completion.Text))
				if len(res.Titles) == 0 {
					ui.Warning("No Title: lines found in the reply")
				}
				u := res.Completion.Usage
				ui.Section("Usage")
				ui.KeyValue("model", res.Completion.Model)
				ui.KeyValue("latency", res.Completion.Latency.Round(time.Millisecond).String())
				ui.KeyValue("tokens", fmt.Sprintf("%d in (%d cached), %d out", u.InputTokens, u.CacheReadInputTokens, u.OutputTokens))
				return nil
			})
		},
	}
	reader.register(cmd)
	return cmd
}

func printDecision(d routing.Decision) {
	ui.Section("Route")
	ui.KeyValue("path", ui.PathColor(string(d.Path)))
	ui.KeyValue("reason", d.Reason)
	ui.KeyValue("stage", string(d.Stage))
	ui.KeyValue("confidence", string(d.Confidence))
	if d.TopSimilarity > 0 {
		ui.KeyValue("similarity", fmt.Sprintf("%.3f", d.TopSimilarity))
	}
	if d.Cached {
		ui.KeyValue("cached", "yes")
	}
}

func printShortlist(list library.Shortlist) {
	ui.Section(fmt.Sprintf("Shortlist (%d of %d books)", list.Len(), list.CatalogSize))
	if list.Len() == 0 {
		ui.Warning("No catalog books match this query")
		return
	}
	labels := make([]string, 0, list.Len())
	for _, b := range list.Books {
		l := b.Title
		if b.Author != "" {
			l += " by " + b.Author
		}
		if b.Favorite {
			l += " ★"
		}
		labels = append(labels, l)
	}
	ui.List(labels)
}
