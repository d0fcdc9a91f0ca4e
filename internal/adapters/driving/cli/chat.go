package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/services"
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION...",
	Short: "Ask the backend a question",
	Long: `Sends a question to the backend and prints the answer with its sources.
The exchange is appended to the conversation shown by 'ragdesk chat messages'.

Examples:
  ragdesk ask what does the contract say about termination
  ragdesk ask --detail detailed --reasoning "summarise the Q3 report"
  ragdesk ask --focus finance --exclude marketing "budget for 2025"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Work with the conversation",
}

var chatMessagesCmd = &cobra.Command{
	Use:     "messages",
	Aliases: []string{"history"},
	Short:   "Show the conversation",
	Args:    cobra.NoArgs,
	RunE:    runChatMessages,
}

var chatRateCmd = &cobra.Command{
	Use:   "rate MESSAGE_ID RATING",
	Short: "Rate an answer from 1 to 5",
	Args:  cobra.ExactArgs(2),
	RunE:  runChatRate,
}

var chatRegenerateCmd = &cobra.Command{
	Use:   "regenerate MESSAGE_ID",
	Short: "Answer a question again",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatRegenerate,
}

var chatClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the conversation",
	Args:  cobra.NoArgs,
	RunE:  runChatClear,
}

var chatAnalyzeCmd = &cobra.Command{
	Use:       "analyze MESSAGE_ID ACTION",
	Short:     "Summarize, analyze or extract insights from an answer's topic analyses",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(domain.ActionSummarize), string(domain.ActionAnalyze), string(domain.ActionInsights)},
	RunE:      runChatAnalyze,
}

var chatExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the conversation",
	Args:  cobra.NoArgs,
	RunE:  runChatExport,
}

var chatExportAnalysesCmd = &cobra.Command{
	Use:   "export-analyses MESSAGE_ID",
	Short: "Export an answer's topic analyses",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatExportAnalyses,
}

var chatSuggestionsCmd = &cobra.Command{
	Use:   "suggestions [PARTIAL...]",
	Short: "Suggest questions",
	RunE:  runChatSuggestions,
}

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Browse backend query history",
}

var queriesHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Recent queries",
	Args:  cobra.NoArgs,
	RunE:  runQueriesHistory,
}

var queriesPopularCmd = &cobra.Command{
	Use:   "popular",
	Short: "Most asked queries",
	Args:  cobra.NoArgs,
	RunE:  runQueriesPopular,
}

var queriesSearchCmd = &cobra.Command{
	Use:   "search TEXT...",
	Short: "Search past queries",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQueriesSearch,
}

var (
	askMaxTopics int
	askDetail    string
	askReasoning bool
	askFocus     []string
	askExclude   []string

	exportFormat string
	exportOutput string
	queriesLimit int
)

func init() {
	defaults := domain.DefaultQueryOptions()
	askCmd.Flags().IntVar(&askMaxTopics, "max-topics", defaults.MaxTopics, "maximum topics to consult")
	askCmd.Flags().StringVar(&askDetail, "detail", string(defaults.DetailLevel), "detail level: brief, standard or detailed")
	askCmd.Flags().BoolVar(&askReasoning, "reasoning", false, "include the backend's reasoning")
	askCmd.Flags().StringSliceVar(&askFocus, "focus", nil, "topics to focus on")
	askCmd.Flags().StringSliceVar(&askExclude, "exclude", nil, "topics to leave out")

	for _, c := range []*cobra.Command{chatExportCmd, chatExportAnalysesCmd} {
		c.Flags().StringVarP(&exportFormat, "format", "f", "markdown", "markdown, json, yaml or csv")
		c.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
	}

	for _, c := range []*cobra.Command{queriesHistoryCmd, queriesPopularCmd} {
		c.Flags().IntVar(&queriesLimit, "limit", 20, "maximum entries")
	}

	chatCmd.AddCommand(
		chatMessagesCmd,
		chatRateCmd,
		chatRegenerateCmd,
		chatClearCmd,
		chatAnalyzeCmd,
		chatExportCmd,
		chatExportAnalysesCmd,
		chatSuggestionsCmd,
	)
	queriesCmd.AddCommand(queriesHistoryCmd, queriesPopularCmd, queriesSearchCmd)

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(queriesCmd)
}

func parseDetail(s string) (domain.DetailLevel, error) {
	switch d := domain.DetailLevel(strings.ToLower(s)); d {
	case domain.DetailBrief, domain.DetailStandard, domain.DetailDetailed:
		return d, nil
	}
	return "", fmt.Errorf("%w: detail must be brief, standard or detailed", domain.ErrInvalidInput)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return notConfigured("chat")
	}
	detail, err := parseDetail(askDetail)
	if err != nil {
		return err
	}

	msg, err := chatService.Send(cmd.Context(), strings.Join(args, " "), domain.QueryOptions{
		MaxTopics:        askMaxTopics,
		DetailLevel:      detail,
		IncludeReasoning: askReasoning,
		FocusTopics:      askFocus,
		ExcludeTopics:    askExclude,
	})
	if err != nil && msg == nil {
		return fmt.Errorf("query failed: %s", services.UserMessage(err))
	}

	if jsonOutput {
		if jerr := printJSON(cmd, msg); jerr != nil {
			return jerr
		}
	} else {
		printAnswer(cmd, msg)
	}
	if err != nil {
		return fmt.Errorf("query failed: %s", services.UserMessage(err))
	}
	if msg.Failed {
		return errors.New("query failed")
	}
	return nil
}

func printAnswer(cmd *cobra.Command, msg *domain.ChatMessage) {
	cmd.Println(strings.TrimSpace(msg.Content))
	if msg.Reasoning != "" {
		cmd.Printf("\nReasoning:\n%s\n", strings.TrimSpace(msg.Reasoning))
	}
	if len(msg.TopicAnalyses) > 0 {
		names := make([]string, 0, len(msg.TopicAnalyses))
		for _, a := range msg.TopicAnalyses {
			names = append(names, a.TopicName)
		}
		cmd.Printf("\nTopics: %s\n", strings.Join(names, ", "))
	}
	if len(msg.Sources) > 0 {
		cmd.Println("\nSources:")
		for i, s := range msg.Sources {
			label := s.Filename
			if label == "" {
				label = s.DocumentID
			}
			if s.Page > 0 {
				label = fmt.Sprintf("%s p.%d", label, s.Page)
			}
			cmd.Printf("  [%d] %s\n", i+1, label)
		}
	}
	if !msg.Failed {
		cmd.Printf("\n(message %s)\n", msg.ID)
	}
}

func runChatMessages(cmd *cobra.Command, _ []string) error {
	if chatService == nil {
		return notConfigured("chat")
	}
	msgs, err := chatService.Messages(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load conversation: %s", services.UserMessage(err))
	}
	if jsonOutput {
		return printJSON(cmd, msgs)
	}
	if len(msgs) == 0 {
		cmd.Println("No messages.")
		return nil
	}
	for _, m := range msgs {
		header := fmt.Sprintf("%s · %s · %s", m.Role, m.ID, humanize.Time(m.CreatedAt))
		if m.IsRated() {
			header += fmt.Sprintf(" · %s", strings.Repeat("★", m.Rating))
		}
		if m.Failed {
			header += " · failed"
		}
		cmd.Printf("%s\n%s\n\n", header, strings.TrimSpace(m.Content))
	}
	return nil
}

func runChatRate(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return notConfigured("chat")
	}
	rating, err := strconv.Atoi(args[1])
	if err != nil || !domain.ValidRating(rating) {
		return fmt.Errorf("%w: rating must be %d to %d", domain.ErrInvalidInput, domain.MinRating, domain.MaxRating)
	}
	if err := chatService.Rate(cmd.Context(), args[0], rating); err != nil {
		return fmt.Errorf("failed to rate: %s", services.UserMessage(err))
	}
	cmd.Printf("Rated %s %d/%d.\n", args[0], rating, domain.MaxRating)
	return nil
}

func runChatRegenerate(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return notConfigured("chat")
	}
	msg, err := chatService.Regenerate(cmd.Context(), args[0])
	if err != nil && msg == nil {
		return fmt.Errorf("regenerate failed: %s", services.UserMessage(err))
	}
	if jsonOutput {
		return printJSON(cmd, msg)
	}
	printAnswer(cmd, msg)
	if err != nil {
		return fmt.Errorf("regenerate failed: %s", services.UserMessage(err))
	}
	return nil
}

func runChatClear(cmd *cobra.Command, _ []string) error {
	if chatService == nil {
		return notConfigured("chat")
	}
	if !confirm(cmd, "Clear the whole conversation?") {
		return errAborted
	}
	if err := chatService.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear: %s", services.UserMessage(err))
	}
	cmd.Println("Conversation cleared.")
	return nil
}

func runChatAnalyze(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return notConfigured("chat")
	}
	action := domain.AnalysisAction(strings.ToLower(args[1]))
	if !action.IsValid() {
		return fmt.Errorf("%w: action must be summarize, analyze or insights", domain.ErrInvalidInput)
	}
	out, err := chatService.Analyze(cmd.Context(), args[0], action)
	if err != nil {
		return fmt.Errorf("%s failed: %s", action, services.UserMessage(err))
	}
	cmd.Println(strings.TrimSpace(out))
	return nil
}

func parseFormat() (domain.ExportFormat, error) {
	f, ok := domain.ParseExportFormat(strings.ToLower(exportFormat))
	if !ok {
		return "", fmt.Errorf("%w: unknown format %q", domain.ErrInvalidInput, exportFormat)
	}
	return f, nil
}

// writeExport writes data to --output, or to stdout when unset.
func writeExport(cmd *cobra.Command, data []byte) error {
	if exportOutput == "" || exportOutput == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	cmd.Printf("Wrote %s (%s).\n", exportOutput, humanize.IBytes(uint64(len(data))))
	return nil
}

func runChatExport(cmd *cobra.Command, _ []string) error {
	if chatService == nil {
		return notConfigured("chat")
	}
	format, err := parseFormat()
	if err != nil {
		return err
	}
	data, err := chatService.Export(cmd.Context(), format)
	if err != nil {
		return fmt.Errorf("export failed: %s", services.UserMessage(err))
	}
	return writeExport(cmd, data)
}

func runChatExportAnalyses(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return notConfigured("chat")
	}
	format, err := parseFormat()
	if err != nil {
		return err
	}
	data, err := chatService.ExportAnalyses(cmd.Context(), args[0], format)
	if err != nil {
		return fmt.Errorf("export failed: %s", services.UserMessage(err))
	}
	return writeExport(cmd, data)
}

func runChatSuggestions(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return notConfigured("chat")
	}
	suggestions := chatService.Suggestions(cmd.Context(), strings.Join(args, " "))
	if jsonOutput {
		return printJSON(cmd, suggestions)
	}
	if len(suggestions) == 0 {
		cmd.Println("No suggestions.")
		return nil
	}
	for _, s := range suggestions {
		cmd.Println(s)
	}
	return nil
}

func runQueriesHistory(cmd *cobra.Command, _ []string) error {
	if chatService == nil {
		return notConfigured("chat")
	}
	return printQueries(cmd, chatService.History(cmd.Context(), queriesLimit))
}

func runQueriesPopular(cmd *cobra.Command, _ []string) error {
	if chatService == nil {
		return notConfigured("chat")
	}
	return printQueries(cmd, chatService.Popular(cmd.Context(), queriesLimit))
}

func runQueriesSearch(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return notConfigured("chat")
	}
	return printQueries(cmd, chatService.SearchHistory(cmd.Context(), strings.Join(args, " ")))
}

func printQueries(cmd *cobra.Command, queries []domain.QuerySummary) error {
	if jsonOutput {
		return printJSON(cmd, queries)
	}
	if len(queries) == 0 {
		cmd.Println("No queries.")
		return nil
	}
	for _, q := range queries {
		var meta []string
		if q.Count > 1 {
			meta = append(meta, fmt.Sprintf("×%d", q.Count))
		}
		if q.Rating > 0 {
			meta = append(meta, fmt.Sprintf("%.1f★", q.Rating))
		}
		if !q.CreatedAt.IsZero() {
			meta = append(meta, humanize.Time(q.CreatedAt))
		}
		line := q.Query
		if len(meta) > 0 {
			line += "  (" + strings.Join(meta, ", ") + ")"
		}
		cmd.Println(line)
	}
	return nil
}
