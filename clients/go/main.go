// showchat CLI - command line client for the showfolio chat API
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/showfolio/chat/clients/go/showchat"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("SHOWCHAT_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := os.Getenv("SHOWCHAT_TOKEN")

	client := showchat.NewClient(baseURL, token)
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health()
		exitOnError(err)
		printJSON(resp)

	case "inbox":
		resp, err := client.ListConversations()
		exitOnError(err)
		for _, c := range resp.Conversations {
			badge := ""
			if c.UnreadCount > 0 {
				badge = fmt.Sprintf(" (%d unread)", c.UnreadCount)
			}
			preview := ""
			if c.LastMessage != nil {
				preview = c.LastMessage.Content
				if len(preview) > 60 {
					preview = preview[:60] + "..."
				}
			}
			fmt.Printf("  %s  %s / %s%s\n      %s\n", c.Conversation.ID, c.ProjectName, c.Counterpart.DisplayName, badge, preview)
		}
		fmt.Printf("%d conversations, %d unread\n", resp.Total, resp.UnreadTotal)

	case "read":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: showchat read <conversation_id>")
			os.Exit(1)
		}
		resp, err := client.GetHistory(os.Args[2])
		exitOnError(err)
		for _, msg := range resp.Messages {
			ts := time.UnixMilli(msg.Timestamp).Format("2006-01-02 15:04:05")
			from := msg.SenderID
			if len(from) > 8 {
				from = from[:8]
			}
			fmt.Printf("[%s] %s: %s\n", ts, from, msg.Content)
		}

	case "send":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: showchat send <project_id> <user_id> <message>")
			os.Exit(1)
		}
		resp, err := client.Send(os.Args[2], os.Args[3], os.Args[4], "")
		exitOnError(err)
		if resp.ConversationCreated {
			fmt.Printf("Started conversation: %s\n", resp.Conversation.ID)
		}
		fmt.Printf("Sent: %s\n", resp.Message.ID)

	case "watch":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: showchat watch <conversation_id>")
			os.Exit(1)
		}
		watch(client, os.Args[2])

	case "who":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: showchat who <user_id>")
			os.Exit(1)
		}
		resp, err := client.GetUser(os.Args[2])
		exitOnError(err)
		printJSON(resp)

	case "project":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: showchat project <project_id>")
			os.Exit(1)
		}
		resp, err := client.GetProject(os.Args[2])
		exitOnError(err)
		printJSON(resp)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func watch(client *showchat.Client, conversationID string) {
	ch := showchat.NewLiveChannel(client, conversationID, func(ev showchat.ClientEvent) {
		switch ev.Type {
		case "message.created":
			ts := time.UnixMilli(ev.Message.Timestamp).Format("15:04:05")
			from := ev.Message.SenderID
			if len(from) > 8 {
				from = from[:8]
			}
			fmt.Printf("[%s] %s: %s\n", ts, from, ev.Message.Content)
		case "message.read":
			fmt.Printf("-- %d message(s) read\n", len(ev.MessageIDs))
		}
	}, func(s showchat.ChannelState) {
		fmt.Fprintf(os.Stderr, "-- channel %s\n", s)
	}, showchat.LiveOptions{})
	ch.Start()
	defer ch.Close()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

func usage() {
	fmt.Println(`showchat CLI - showfolio project messaging

Usage: showchat <command> [options]

Commands:
  inbox                               List conversations
  read <conversation_id>              Show conversation history
  send <project_id> <user_id> <text>  Send a message
  watch <conversation_id>             Stream live events
  who <user_id>                       Get user profile
  project <project_id>                Get project info
  health                              Check server health

Environment:
  SHOWCHAT_URL     Server URL (default: http://localhost:8080)
  SHOWCHAT_TOKEN   Session token`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
