package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/services"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

var topicsCmd = &cobra.Command{
	Use:     "topics",
	Aliases: []string{"topic"},
	Short:   "Browse and curate topics",
	Long: `Topics are derived by the backend from processed documents. They can be
browsed, renamed, merged and cleaned up, but never created here.

Examples:
  ragdesk topics list --category science
  ragdesk topics merge t1 t2 t3 --name "Machine learning"
  ragdesk topics dedupe --threshold 0.9 --apply`,
}

var topicsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a page of topics",
	Args:  cobra.NoArgs,
	RunE:  runTopicsList,
}

var topicsSearchCmd = &cobra.Command{
	Use:   "search QUERY...",
	Short: "Search topics",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTopicsSearch,
}

var topicsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a topic and its relationships",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicsShow,
}

var topicsCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List topic categories",
	Args:  cobra.NoArgs,
	RunE:  runTopicsCategories,
}

var topicsContentCmd = &cobra.Command{
	Use:   "content ID",
	Short: "Show the chunks behind a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicsContent,
}

var topicsSimilarCmd = &cobra.Command{
	Use:   "similar ID",
	Short: "List topics similar to a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicsSimilar,
}

var topicsUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Edit a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicsUpdate,
}

var topicsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicsDelete,
}

var topicsMergeCmd = &cobra.Command{
	Use:   "merge TARGET SOURCE...",
	Short: "Merge topics into a target topic",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTopicsMerge,
}

var topicsBulkMergeCmd = &cobra.Command{
	Use:   "bulk-merge FILE",
	Short: "Run merges listed in a YAML file",
	Long: `Runs every merge listed in FILE and reports how many succeeded.

The file holds a list of merges:

  - target: t1
    sources: [t2, t3]
    name: Machine learning
  - target: t7
    sources: [t8]`,
	Args: cobra.ExactArgs(1),
	RunE: runTopicsBulkMerge,
}

var topicsDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Find duplicate topics",
	Args:  cobra.NoArgs,
	RunE:  runTopicsDuplicates,
}

var topicsDedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Merge duplicate topics automatically",
	Long:  "Reports what would be merged. Pass --apply to merge.",
	Args:  cobra.NoArgs,
	RunE:  runTopicsDedupe,
}

var topicsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove topics with no content",
	Args:  cobra.NoArgs,
	RunE:  runTopicsCleanup,
}

var topicsMaintenanceCmd = &cobra.Command{
	Use:   "maintenance ACTION",
	Short: "Run a backend topic maintenance action",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicsMaintenance,
}

var topicsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show topic statistics",
	Args:  cobra.NoArgs,
	RunE:  runTopicsStats,
}

var topicsInsightsCmd = &cobra.Command{
	Use:   "insights NAME",
	Short: "Show a backend topic report (stats, quality, usage, performance)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicsInsights,
}

var (
	topicsPage        int
	topicsLimit       int
	similarLimit      int
	topicsCategory    string
	topicsName        string
	topicsDescription string
	topicsKeywords    []string
	topicsThreshold   float64
	topicsApply       bool
)

// defaultDuplicateThreshold is the similarity above which topics are duplicates.
const defaultDuplicateThreshold = 0.85

func init() {
	topicsListCmd.Flags().IntVar(&topicsPage, "page", 1, "page number")
	topicsListCmd.Flags().IntVar(&topicsLimit, "limit", 20, "topics per page")
	topicsListCmd.Flags().StringVar(&topicsCategory, "category", "", "only this category")

	topicsSimilarCmd.Flags().IntVar(&similarLimit, "limit", 10, "maximum results")

	topicsUpdateCmd.Flags().StringVar(&topicsName, "name", "", "new name")
	topicsUpdateCmd.Flags().StringVar(&topicsDescription, "description", "", "new description")
	topicsUpdateCmd.Flags().StringVar(&topicsCategory, "category", "", "new category")
	topicsUpdateCmd.Flags().StringSliceVar(&topicsKeywords, "keywords", nil, "replace keywords (comma separated)")

	topicsMergeCmd.Flags().StringVar(&topicsName, "name", "", "rename the merged topic")

	topicsDuplicatesCmd.Flags().Float64Var(&topicsThreshold, "threshold", defaultDuplicateThreshold, "similarity threshold (0-1)")
	topicsDedupeCmd.Flags().Float64Var(&topicsThreshold, "threshold", defaultDuplicateThreshold, "similarity threshold (0-1)")
	topicsDedupeCmd.Flags().BoolVar(&topicsApply, "apply", false, "merge instead of reporting")

	topicsCmd.AddCommand(
		topicsListCmd,
		topicsSearchCmd,
		topicsShowCmd,
		topicsCategoriesCmd,
		topicsContentCmd,
		topicsSimilarCmd,
		topicsUpdateCmd,
		topicsDeleteCmd,
		topicsMergeCmd,
		topicsBulkMergeCmd,
		topicsDuplicatesCmd,
		topicsDedupeCmd,
		topicsCleanupCmd,
		topicsMaintenanceCmd,
		topicsStatsCmd,
		topicsInsightsCmd,
	)
	rootCmd.AddCommand(topicsCmd)
}

func runTopicsList(cmd *cobra.Command, _ []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	page, err := topicService.List(cmd.Context(), domain.TopicFilter{
		Page:     topicsPage,
		Limit:    topicsLimit,
		Category: topicsCategory,
	})
	if err != nil {
		return fmt.Errorf("failed to list topics: %s", services.UserMessage(err))
	}

	if jsonOutput {
		return printJSON(cmd, page)
	}
	printTopics(cmd, page.Topics)
	if page.TotalPages > 0 {
		cmd.Printf("\nPage %d of %d (%d topics)\n", page.Page, page.TotalPages, page.Total)
	}
	return nil
}

func runTopicsSearch(cmd *cobra.Command, args []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	topics, err := topicService.Search(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("search failed: %s", services.UserMessage(err))
	}
	if jsonOutput {
		return printJSON(cmd, topics)
	}
	printTopics(cmd, topics)
	return nil
}

func printTopics(cmd *cobra.Command, topics []domain.Topic) {
	if len(topics) == 0 {
		cmd.Println("No topics.")
		return
	}
	cmd.Printf("%-24s  %-32s  %-14s  %5s  %6s\n", "ID", "NAME", "CATEGORY", "DOCS", "CHUNKS")
	for i := range topics {
		t := &topics[i]
		cmd.Printf("%-24s  %-32s  %-14s  %5d  %6d\n",
			t.ID, truncate(t.Name, 32), truncate(t.Category, 14), t.DocumentCount, t.ChunkCount)
	}
}

func runTopicsShow(cmd *cobra.Command, args []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	ctx := cmd.Context()
	topic, err := topicService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get topic: %s", services.UserMessage(err))
	}
	// Relationships are optional detail.
	rels, relErr := topicService.Relationships(ctx, args[0])
	if relErr != nil {
		logger.Debug("relationships for %s: %v", args[0], relErr)
	}

	if jsonOutput {
		return printJSON(cmd, struct {
			*domain.Topic
			Relationships []domain.TopicRelationship `json:"relationships"`
		}{topic, rels})
	}

	cmd.Printf("%s (%s)\n", topic.Name, topic.ID)
	if topic.Description != "" {
		cmd.Printf("\n%s\n\n", topic.Description)
	}
	if topic.Category != "" {
		cmd.Printf("Category:   %s\n", topic.Category)
	}
	if len(topic.Keywords) > 0 {
		cmd.Printf("Keywords:   %s\n", strings.Join(topic.Keywords, ", "))
	}
	cmd.Printf("Documents:  %d\n", topic.DocumentCount)
	cmd.Printf("Chunks:     %d\n", topic.ChunkCount)
	if topic.Relevance > 0 {
		cmd.Printf("Relevance:  %.2f\n", topic.Relevance)
	}
	if topic.Coherence > 0 {
		cmd.Printf("Coherence:  %.2f\n", topic.Coherence)
	}
	if !topic.UpdatedAt.IsZero() {
		cmd.Printf("Updated:    %s\n", humanize.Time(topic.UpdatedAt))
	}
	if len(rels) > 0 {
		cmd.Println("\nRelated:")
		for _, r := range rels {
			cmd.Printf("  %-32s  %-12s  %.2f\n", truncate(r.TopicName, 32), r.Type, r.Strength)
		}
	}
	return nil
}

func runTopicsCategories(cmd *cobra.Command, _ []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	cats, err := topicService.Categories(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list categories: %s", services.UserMessage(err))
	}
	if jsonOutput {
		return printJSON(cmd, cats)
	}
	if len(cats) == 0 {
		cmd.Println("No categories.")
		return nil
	}
	for _, c := range cats {
		cmd.Printf("%-24s %d\n", c.Name, c.Count)
	}
	return nil
}

func runTopicsContent(cmd *cobra.Command, args []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	chunks, err := topicService.Content(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load content: %s", services.UserMessage(err))
	}
	if jsonOutput {
		return printJSON(cmd, chunks)
	}
	if len(chunks) == 0 {
		cmd.Println("No content.")
		return nil
	}
	for _, c := range chunks {
		cmd.Printf("── %s #%d ──\n%s\n\n", c.DocumentID, c.Index, strings.TrimSpace(c.Content))
	}
	return nil
}

func runTopicsSimilar(cmd *cobra.Command, args []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	similar, err := topicService.Similar(cmd.Context(), args[0], similarLimit)
	if err != nil {
		return fmt.Errorf("failed to find similar topics: %s", services.UserMessage(err))
	}
	if jsonOutput {
		return printJSON(cmd, similar)
	}
	if len(similar) == 0 {
		cmd.Println("No similar topics.")
		return nil
	}
	for _, s := range similar {
		cmd.Printf("%.2f  %-24s  %s\n", s.Similarity, s.Topic.ID, s.Topic.Name)
	}
	return nil
}

func runTopicsUpdate(cmd *cobra.Command, args []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}

	var update domain.TopicUpdate
	flags := cmd.Flags()
	if flags.Changed("name") {
		update.Name = &topicsName
	}
	if flags.Changed("description") {
		update.Description = &topicsDescription
	}
	if flags.Changed("category") {
		update.Category = &topicsCategory
	}
	if flags.Changed("keywords") {
		update.Keywords = &topicsKeywords
	}
	if update.IsEmpty() {
		return fmt.Errorf("nothing to update: pass --name, --description, --category or --keywords")
	}

	topic, err := topicService.Update(cmd.Context(), args[0], update)
	if err != nil {
		return fmt.Errorf("failed to update topic: %s", services.UserMessage(err))
	}
	if jsonOutput {
		return printJSON(cmd, topic)
	}
	cmd.Printf("Updated %s (%s).\n", topic.Name, topic.ID)
	return nil
}

func runTopicsDelete(cmd *cobra.Command, args []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	if !confirm(cmd, fmt.Sprintf("Delete topic %s?", args[0])) {
		return errAborted
	}
	if err := topicService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete topic: %s", services.UserMessage(err))
	}
	cmd.Printf("Deleted %s.\n", args[0])
	return nil
}

func runTopicsMerge(cmd *cobra.Command, args []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	req := domain.MergeRequest{TargetID: args[0], SourceIDs: args[1:], NewName: topicsName}
	if !confirm(cmd, fmt.Sprintf("Merge %d topic(s) into %s?", len(req.SourceIDs), req.TargetID)) {
		return errAborted
	}

	topic, err := topicService.Merge(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("merge failed: %s", services.UserMessage(err))
	}
	if jsonOutput {
		return printJSON(cmd, topic)
	}
	cmd.Printf("Merged into %s (%s).\n", topic.Name, topic.ID)
	return nil
}

// mergeEntry is one entry of a bulk-merge file.
type mergeEntry struct {
	Target  string   `yaml:"target"`
	Sources []string `yaml:"sources"`
	Name    string   `yaml:"name,omitempty"`
}

// readMergeFile parses a bulk-merge file.
func readMergeFile(path string) ([]domain.MergeRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []mergeEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s lists no merges", domain.ErrInvalidInput, path)
	}

	reqs := make([]domain.MergeRequest, 0, len(entries))
	for _, e := range entries {
		reqs = append(reqs, domain.MergeRequest{TargetID: e.Target, SourceIDs: e.Sources, NewName: e.Name})
	}
	return reqs, nil
}

func runTopicsBulkMerge(cmd *cobra.Command, args []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	reqs, err := readMergeFile(args[0])
	if err != nil {
		return err
	}
	if !confirm(cmd, fmt.Sprintf("Run %d merge(s)?", len(reqs))) {
		return errAborted
	}

	res := topicService.BulkMerge(cmd.Context(), reqs)
	if jsonOutput {
		return printJSON(cmd, res)
	}
	cmd.Printf("%d of %d merge(s) succeeded.\n", res.Succeeded, res.Total())
	if res.Failed > 0 {
		cmd.Printf("Failed targets: %s\n", strings.Join(res.FailedIDs, ", "))
		return fmt.Errorf("%d merge(s) failed", res.Failed)
	}
	return nil
}

func runTopicsDuplicates(cmd *cobra.Command, _ []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	groups, err := topicService.Duplicates(cmd.Context(), topicsThreshold)
	if err != nil {
		return fmt.Errorf("failed to find duplicates: %s", services.UserMessage(err))
	}
	if jsonOutput {
		return printJSON(cmd, groups)
	}
	printDuplicateGroups(cmd, groups)
	return nil
}

func printDuplicateGroups(cmd *cobra.Command, groups []domain.DuplicateGroup) {
	if len(groups) == 0 {
		cmd.Println("No duplicates.")
		return
	}
	for i, g := range groups {
		names := make([]string, 0, len(g.Topics))
		for _, t := range g.Topics {
			names = append(names, fmt.Sprintf("%s (%s)", t.Name, t.ID))
		}
		cmd.Printf("%d. %.2f  %s\n", i+1, g.Similarity, strings.Join(names, ", "))
	}
}

func runTopicsDedupe(cmd *cobra.Command, _ []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	dryRun := !topicsApply
	if !dryRun && !confirm(cmd, fmt.Sprintf("Merge all topics above %.2f similarity?", topicsThreshold)) {
		return errAborted
	}

	report, err := topicService.AutoDeduplicate(cmd.Context(), topicsThreshold, dryRun)
	if err != nil {
		return fmt.Errorf("deduplication failed: %s", services.UserMessage(err))
	}
	if jsonOutput {
		return printJSON(cmd, report)
	}
	printDuplicateGroups(cmd, report.Groups)
	if report.DryRun {
		cmd.Printf("\n%d group(s) found. Run with --apply to merge.\n", report.GroupsFound)
		return nil
	}
	cmd.Printf("\n%d group(s) found, %d topic(s) merged.\n", report.GroupsFound, report.TopicsMerged)
	return nil
}

func runTopicsCleanup(cmd *cobra.Command, _ []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	if !confirm(cmd, "Remove every topic with no documents or chunks?") {
		return errAborted
	}
	report, err := topicService.CleanupEmpty(cmd.Context())
	if err != nil {
		return fmt.Errorf("cleanup failed: %s", services.UserMessage(err))
	}
	if jsonOutput {
		return printJSON(cmd, report)
	}
	cmd.Printf("Removed %d empty topic(s).\n", report.Removed)
	return nil
}

func runTopicsMaintenance(cmd *cobra.Command, args []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	out, err := topicService.Maintenance(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("maintenance failed: %s", services.UserMessage(err))
	}
	return printMap(cmd, out)
}

func runTopicsStats(cmd *cobra.Command, _ []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	stats := topicService.Stats(cmd.Context())
	if jsonOutput {
		return printJSON(cmd, stats)
	}
	cmd.Printf("Topics:        %s\n", humanize.Comma(int64(stats.Total)))
	cmd.Printf("Empty:         %d\n", stats.Empty)
	cmd.Printf("With keywords: %d\n", stats.WithKeywords)
	cmd.Printf("Coverage:      %.1f%%\n", stats.CoveragePct)
	cmd.Printf("Avg relevance: %.2f\n", stats.AvgRelevance)
	cmd.Printf("Documents:     %s\n", humanize.Comma(int64(stats.TotalDocuments)))
	if len(stats.Categories) > 0 {
		cmd.Println("Categories:")
		for _, c := range stats.Categories {
			cmd.Printf("  %-22s %d\n", c.Name, c.Count)
		}
	}
	return nil
}

func runTopicsInsights(cmd *cobra.Command, args []string) error {
	if topicService == nil {
		return notConfigured("topic")
	}
	out, err := topicService.Insights(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load insights: %s", services.UserMessage(err))
	}
	return printMap(cmd, out)
}

// printMap prints a free-form backend report as sorted key/value lines.
func printMap(cmd *cobra.Command, m map[string]any) error {
	if jsonOutput {
		return printJSON(cmd, m)
	}
	if len(m) == 0 {
		cmd.Println("No data.")
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Printf("%-24s %s\n", k, services.FormatValue(m[k]))
	}
	return nil
}

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
