package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kalambet/frontdesk/internal/config"
	"github.com/kalambet/frontdesk/internal/knowledge"
	"github.com/kalambet/frontdesk/internal/storage"
)

// requestRow mirrors the API's help request shape.
type requestRow struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Question           string `json:"question"`
	Context            string `json:"context"`
	Status             string `json:"status"`
	SupervisorResponse string `json:"supervisor_response"`
	CreatedAt          string `json:"created_at"`
	ResolvedAt         string `json:"resolved_at"`
	TimeoutAt          string `json:"timeout_at"`
}

type knowledgeRow struct {
	ID              string `json:"id"`
	Question        string `json:"question"`
	Answer          string `json:"answer"`
	Context         string `json:"context"`
	SourceRequestID string `json:"source_request_id"`
	CreatedAt       string `json:"created_at"`
}

type answerResult struct {
	Text      string `json:"text"`
	Escalated bool   `json:"escalated"`
	RequestID string `json:"request_id"`
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question as a customer",
	Long: `Ask a question as a customer. Known questions are answered from the
knowledge base; unknown ones are escalated to the supervisor.

Examples:
  frontdesk ask "What are your hours?"
  frontdesk ask --customer "+15551234567" "Do you do keratin treatments?"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		customer, _ := cmd.Flags().GetString("customer")
		qContext, _ := cmd.Flags().GetString("context")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/questions", map[string]string{
			"customer": customer,
			"question": args[0],
			"context":  qContext,
		})
		if err != nil {
			return err
		}

		var result answerResult
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Escalated {
			printWarning("Escalated to supervisor (request %s)", result.RequestID)
		}
		fmt.Println(result.Text)
		return nil
	},
}

func init() {
	askCmd.Flags().String("customer", "cli", "customer identifier, e.g. a phone number")
	askCmd.Flags().String("context", "", "extra conversation context passed with the question")
}

// --- respond ---

var respondCmd = &cobra.Command{
	Use:   "respond <request-id> <answer>",
	Short: "Answer a pending help request as the supervisor",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/requests/"+args[0]+"/response", map[string]string{
			"response": args[1],
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Resolved request %s", args[0])
		return nil
	},
}

// --- requests ---

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Inspect help requests",
}

var requestsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List help requests (pending by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		resolved, _ := cmd.Flags().GetBool("resolved")

		path := "/requests/pending"
		switch {
		case all:
			path = "/requests"
		case resolved:
			path = "/requests/resolved"
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var rows []requestRow
		if err := decodeJSON(resp, &rows); err != nil {
			return err
		}

		if len(rows) == 0 {
			fmt.Println("no requests")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("%s  %-10s  %s  %q\n", r.ID, r.Status, r.CreatedAt, r.Question)
		}
		return nil
	},
}

var requestsShowCmd = &cobra.Command{
	Use:   "show <request-id>",
	Short: "Show a single help request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/requests/"+args[0])
		if err != nil {
			return err
		}

		var r requestRow
		if err := decodeJSON(resp, &r); err != nil {
			return err
		}

		printStatus("ID", "%s", r.ID)
		printStatus("Customer", "%s", r.Customer)
		printStatus("Question", "%s", r.Question)
		printStatus("Status", "%s", r.Status)
		printStatus("Created", "%s", r.CreatedAt)
		printStatus("Deadline", "%s", r.TimeoutAt)
		if r.Context != "" {
			printStatus("Context", "%s", r.Context)
		}
		if r.SupervisorResponse != "" {
			printStatus("Answer", "%s", r.SupervisorResponse)
		}
		if r.ResolvedAt != "" {
			printStatus("Closed", "%s", r.ResolvedAt)
		}
		return nil
	},
}

func init() {
	requestsListCmd.Flags().Bool("all", false, "list every request regardless of status")
	requestsListCmd.Flags().Bool("resolved", false, "list resolved requests")

	requestsCmd.AddCommand(requestsListCmd)
	requestsCmd.AddCommand(requestsShowCmd)
}

// --- knowledge ---

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Inspect and manage learned answers",
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active knowledge entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/knowledge")
		if err != nil {
			return err
		}

		var rows []knowledgeRow
		if err := decodeJSON(resp, &rows); err != nil {
			return err
		}

		if len(rows) == 0 {
			fmt.Println("no knowledge entries")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("%s  %q\n    %s\n", r.ID, r.Question, r.Answer)
		}
		return nil
	},
}

var knowledgeDeactivateCmd = &cobra.Command{
	Use:   "deactivate <entry-id>",
	Short: "Retire a knowledge entry so it stops serving answers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/knowledge/"+args[0]+"/deactivate", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deactivated entry %s", args[0])
		return nil
	},
}

var knowledgeImportCmd = &cobra.Command{
	Use:   "import <faq.pdf>",
	Short: "Import Q:/A: pairs from a FAQ PDF into the knowledge base",
	Long: `Import Q:/A: pairs from a FAQ PDF into the knowledge base.

The import opens the data directory directly, so run it while the server
is stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		var matcher knowledge.Matcher
		if len(cfg.Matching.StopWords) > 0 {
			matcher = knowledge.NewLexicalMatcher(cfg.Matching.StopWords)
		}
		kb := knowledge.NewBase(store, matcher, nil)

		n, err := kb.ImportFAQ(args[0])
		if err != nil {
			return err
		}

		printSuccess("Imported %d entries from %s", n, args[0])
		return nil
	},
}

func init() {
	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.AddCommand(knowledgeDeactivateCmd)
	knowledgeCmd.AddCommand(knowledgeImportCmd)
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show request and knowledge counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/stats")
		if err != nil {
			return err
		}

		var stats struct {
			storage.Stats
			NotificationsSent *int64 `json:"notifications_sent"`
		}
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Pending", "%d", stats.Pending)
		printStatus("Resolved", "%d", stats.Resolved)
		printStatus("Unresolved", "%d", stats.Unresolved)
		printStatus("Total requests", "%d", stats.TotalRequests)
		printStatus("Knowledge entries", "%d", stats.KnowledgeCount)
		if stats.NotificationsSent != nil {
			printStatus("Notifications sent", "%d", *stats.NotificationsSent)
		}
		return nil
	},
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

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
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

		if err := config.SetKey(key, value); err != nil {
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
