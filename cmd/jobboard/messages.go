package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kalambet/jobboard/internal/api"
	"github.com/kalambet/jobboard/internal/profile"
	"github.com/kalambet/jobboard/internal/storage"
)

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Read your inbox",
}

var messagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List received messages, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/messages?limit=%d", limit))
		if err != nil {
			return err
		}
		var msgs []storage.Message
		if err := decodeJSON(resp, &msgs); err != nil {
			return err
		}

		if len(msgs) == 0 {
			fmt.Println("No messages.")
			return nil
		}
		for _, m := range msgs {
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, m.CreatedAt.Local().Format("2006-01-02 15:04")),
				colorize(colorBold, m.SenderName),
				truncate(messageSummary(m), 80),
			)
		}
		return nil
	},
}

func messageSummary(m storage.Message) string {
	if m.Type != api.MessageTypeProfileCard {
		return m.Body
	}
	var card profile.Card
	if err := json.Unmarshal([]byte(m.ProfileCard), &card); err != nil {
		return "applied to " + m.JobTitle
	}
	s := "applied to " + m.JobTitle
	if card.Email != "" {
		s += " <" + card.Email + ">"
	}
	return s
}

func init() {
	messagesListCmd.Flags().Int("limit", 50, "maximum number of messages to list")
	messagesCmd.AddCommand(messagesListCmd)
}
