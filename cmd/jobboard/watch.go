package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/jobboard/internal/watchlist"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage your watch list",
}

func printWatchList(items []watchlist.WatchedJob) {
	if len(items) == 0 {
		fmt.Println("Watch list is empty.")
		return
	}
	for _, it := range items {
		fmt.Printf("%s  %s  %s  watched %s\n",
			colorize(colorCyan, it.ID),
			colorize(colorBold, truncate(it.Title, maxTitleWidth)),
			it.Company,
			it.FollowedAt.Local().Format("2006-01-02"),
		)
	}
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched postings",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/watchlist")
		if err != nil {
			return err
		}
		var items []watchlist.WatchedJob
		if err := decodeJSON(resp, &items); err != nil {
			return err
		}
		printWatchList(items)
		return nil
	},
}

var watchToggleCmd = &cobra.Command{
	Use:   "toggle <job-id>",
	Short: "Watch a posting, or stop watching it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/watchlist/"+url.PathEscape(args[0])+"/toggle", nil)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		switch result["outcome"] {
		case "added":
			printSuccess("Watching %s", args[0])
		case "removed":
			printSuccess("Stopped watching %s", args[0])
		default:
			printWarning("Not signed in; use --user or set auth.user")
		}
		return nil
	},
}

// readEvents calls fn with the data of every "watchlist" event on r.
func readEvents(r io.Reader, fn func(data string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	event := ""
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && event == "watchlist":
			if err := fn(strings.TrimPrefix(line, "data: ")); err != nil {
				return err
			}
		case line == "":
			event = ""
		}
	}
	return sc.Err()
}

var watchStreamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Print the watch list every time it changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		resp, err := client.stream(ctx, "/watchlist/stream")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		err = readEvents(resp.Body, func(data string) error {
			var items []watchlist.WatchedJob
			if err := json.Unmarshal([]byte(data), &items); err != nil {
				return fmt.Errorf("decoding event: %w", err)
			}
			printStep("%d watched", len(items))
			printWatchList(items)
			return nil
		})
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.AddCommand(watchListCmd, watchToggleCmd, watchStreamCmd)
}
