package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/aura/internal/api"
	"github.com/kalambet/aura/internal/config"
	"github.com/kalambet/aura/internal/conversation"
	"github.com/kalambet/aura/internal/storage"
	"github.com/kalambet/aura/internal/tasks"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant",
	Long: `Start a session and chat with the assistant from the terminal.

Inside the chat:
  /upload <path>   add a file the assistant can read
  /files           list uploaded files
  /tasks           list suggested tasks
  /quit            leave the chat`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		resume, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runChat(cmd.Context(), client, os.Stdin, os.Stdout, resume, api.StartSessionRequest{FullName: name, Email: email})
	},
}

func init() {
	chatCmd.Flags().String("name", os.Getenv("USER"), "name the assistant greets you by")
	chatCmd.Flags().String("email", "", "email used when no name is given")
	chatCmd.Flags().String("session", "", "resume an existing session")
}

// assistantLabel is the prompt prefix of assistant turns.
const assistantLabel = "aura"

func runChat(ctx context.Context, client *apiClient, in io.Reader, out io.Writer, sessionID string, who api.StartSessionRequest) error {
	if sessionID == "" {
		resp, err := client.post(ctx, "/sessions", who)
		if err != nil {
			return err
		}
		var started api.StartSessionResponse
		if err := decodeJSON(resp, &started); err != nil {
			return err
		}
		sessionID = started.Session.ID
		for _, t := range started.Messages {
			printTurn(out, assistantLabel, t)
		}
		printStatus("Session", "%s", sessionID)
	}
	base := "/sessions/" + sessionID

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, colorize(colorBold, "you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/tasks":
			if err := listTasks(ctx, client, out, sessionID); err != nil {
				printError("%v", err)
			}
		case line == "/files":
			var files []struct {
				Name     string `json:"name"`
				MIMEType string `json:"mime_type"`
				Size     int    `json:"size"`
			}
			resp, err := client.get(ctx, base+"/files")
			if err == nil {
				err = decodeJSON(resp, &files)
			}
			if err != nil {
				printError("%v", err)
				continue
			}
			if len(files) == 0 {
				fmt.Fprintln(out, "No files uploaded.")
			}
			for _, f := range files {
				fmt.Fprintf(out, "  %s (%s, %d bytes)\n", f.Name, f.MIMEType, f.Size)
			}
		case strings.HasPrefix(line, "/upload "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/upload "))
			data, err := os.ReadFile(path)
			if err != nil {
				printError("reading file: %v", err)
				continue
			}
			resp, err := client.upload(ctx, base+"/files", filepath.Base(path), data)
			var result api.TurnsResponse
			if err == nil {
				err = decodeJSON(resp, &result)
			}
			if err != nil {
				printError("%v", err)
				continue
			}
			for _, t := range result.Turns {
				printTurn(out, assistantLabel, t)
			}
		default:
			resp, err := client.post(ctx, base+"/messages", api.SubmitRequest{Text: line})
			var result api.TurnsResponse
			if err == nil {
				err = decodeJSON(resp, &result)
			}
			if err != nil {
				printError("%v", err)
				continue
			}
			for _, t := range result.Turns {
				if t.Role == conversation.RoleAssistant {
					printTurn(out, assistantLabel, t)
				}
			}
		}
	}
}

// --- tasks ---

var tasksCmd = &cobra.Command{
	Use:   "tasks <session>",
	Short: "List or update the tasks suggested in a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]
		taskID, _ := cmd.Flags().GetString("task")
		status, _ := cmd.Flags().GetString("status")

		if taskID != "" && !tasks.Status(status).Valid() {
			return fmt.Errorf("invalid --status %q: want pending, processing or completed", status)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if taskID == "" {
			return listTasks(cmd.Context(), client, os.Stdout, sessionID)
		}
		resp, err := client.patch(cmd.Context(), "/sessions/"+sessionID+"/tasks/"+url.PathEscape(taskID), api.SetTaskStatusRequest{Status: tasks.Status(status)})
		if err != nil {
			return err
		}
		var updated tasks.Suggestion
		if err := decodeJSON(resp, &updated); err != nil {
			return err
		}
		printSuccess("%s is now %s", updated.Title, updated.Status)
		return nil
	},
}

func init() {
	tasksCmd.Flags().String("task", "", "task ID to update")
	tasksCmd.Flags().String("status", string(tasks.StatusCompleted), "new status for --task")
}

func listTasks(ctx context.Context, client *apiClient, out io.Writer, sessionID string) error {
	resp, err := client.get(ctx, "/sessions/"+sessionID+"/tasks")
	if err != nil {
		return err
	}
	var list []tasks.Suggestion
	if err := decodeJSON(resp, &list); err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Fprintln(out, "No suggested tasks.")
		return nil
	}
	for _, s := range list {
		mark := colorize(colorYellow, "○")
		switch s.Status {
		case tasks.StatusProcessing:
			mark = colorize(colorCyan, "◐")
		case tasks.StatusCompleted:
			mark = colorize(colorGreen, "●")
		}
		fmt.Fprintf(out, "%s %s  %s\n", mark, colorize(colorBold, s.Title), s.ID)
	}
	return nil
}

// --- orders ---

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List confirmed bookings",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/orders?limit=%d", limit))
		if err != nil {
			return err
		}
		var orders []storage.Order
		if err := decodeJSON(resp, &orders); err != nil {
			return err
		}

		if len(orders) == 0 {
			fmt.Println("No orders yet.")
			return nil
		}
		for _, o := range orders {
			fmt.Printf("%s  %s  %-20s %s\n",
				colorize(colorCyan, o.Confirmation),
				o.CreatedAt.Local().Format("2006-01-02 15:04"),
				o.Domain,
				o.Summary,
			)
		}
		return nil
	},
}

func init() {
	ordersCmd.Flags().Int("limit", 20, "maximum number of orders to list")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, st := range config.Settings(cfg) {
			line := fmt.Sprintf("  %s = %s", colorize(colorBold, st.Key), st.Value)
			if st.FromEnv {
				line += colorize(colorYellow, " (from "+st.Env+")")
			}
			fmt.Println(line)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.Set(key, value); err != nil {
			printWarning("editable keys: %s", strings.Join(config.EditableKeys(), ", "))
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
