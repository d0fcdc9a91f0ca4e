package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/dropfolder"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/services"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"doc", "docs"},
	Short:   "Manage backend documents",
	Long: `Upload, process and inspect the documents held by the backend.

Examples:
  ragdesk documents list
  ragdesk documents upload report.pdf --process --wait
  ragdesk documents watch ~/inbox --process`,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsUploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocumentsUpload,
}

var documentsProcessCmd = &cobra.Command{
	Use:   "process ID",
	Short: "Start processing a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsProcess,
}

var documentsReprocessCmd = &cobra.Command{
	Use:   "reprocess ID",
	Short: "Process a document again",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsReprocess,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

var documentsBatchDeleteCmd = &cobra.Command{
	Use:   "batch-delete ID...",
	Short: "Delete several documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocumentsBatchDelete,
}

var documentsDownloadCmd = &cobra.Command{
	Use:   "download ID",
	Short: "Download the original file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDownload,
}

var documentsChunksCmd = &cobra.Command{
	Use:   "chunks ID",
	Short: "Show the chunks of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsChunks,
}

var documentsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document statistics",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsStats,
}

var documentsHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show document pipeline health",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsHealth,
}

var documentsWatchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Upload files dropped into a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsWatch,
}

var (
	docsLocal    bool
	docsProcess  bool
	docsWait     bool
	docsOutput   string
	docsExisting bool
	docsTimeout  time.Duration
)

func init() {
	documentsListCmd.Flags().BoolVar(&docsLocal, "local", false, "list the local copy without contacting the backend")

	documentsUploadCmd.Flags().BoolVar(&docsProcess, "process", false, "start processing after upload")
	documentsUploadCmd.Flags().BoolVar(&docsWait, "wait", false, "wait until processing finishes")
	documentsUploadCmd.Flags().DurationVar(&docsTimeout, "timeout", 10*time.Minute, "maximum time to wait")

	for _, c := range []*cobra.Command{documentsProcessCmd, documentsReprocessCmd} {
		c.Flags().BoolVar(&docsWait, "wait", false, "wait until processing finishes")
		c.Flags().DurationVar(&docsTimeout, "timeout", 10*time.Minute, "maximum time to wait")
	}

	documentsDownloadCmd.Flags().StringVarP(&docsOutput, "output", "o", "", "output file (default: original filename)")

	documentsWatchCmd.Flags().BoolVar(&docsProcess, "process", false, "start processing after upload")
	documentsWatchCmd.Flags().BoolVar(&docsExisting, "existing", false, "upload files already in the directory")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsUploadCmd)
	documentsCmd.AddCommand(documentsProcessCmd)
	documentsCmd.AddCommand(documentsReprocessCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	documentsCmd.AddCommand(documentsBatchDeleteCmd)
	documentsCmd.AddCommand(documentsDownloadCmd)
	documentsCmd.AddCommand(documentsChunksCmd)
	documentsCmd.AddCommand(documentsStatsCmd)
	documentsCmd.AddCommand(documentsHealthCmd)
	documentsCmd.AddCommand(documentsWatchCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	var (
		docs []domain.Document
		err  error
	)
	if docsLocal {
		docs, err = documentService.List(cmd.Context())
	} else {
		docs, err = documentService.Refresh(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to list documents: %s", services.UserMessage(err))
	}

	if jsonOutput {
		return printJSON(cmd, docs)
	}
	if len(docs) == 0 {
		cmd.Println("No documents.")
		return nil
	}

	cmd.Printf("%-36s  %-11s  %8s  %6s  %-14s  %s\n", "ID", "STATUS", "SIZE", "CHUNKS", "UPLOADED", "FILENAME")
	for i := range docs {
		d := &docs[i]
		cmd.Printf("%-36s  %-11s  %8s  %6d  %-14s  %s\n",
			d.ID, d.Status, humanize.IBytes(uint64(max(d.Size, 0))), d.ChunkCount,
			humanize.Time(d.UploadedAt), d.Filename)
		if d.Status == domain.StatusError && d.ErrorMessage != "" {
			cmd.Printf("  └─ %s\n", d.ErrorMessage)
		}
	}
	cmd.Printf("\n%d document(s)\n", len(docs))
	return nil
}

func runDocumentsUpload(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}
	ctx := cmd.Context()

	events, cancel := subscribeIfWaiting()
	defer cancel()

	var (
		started []string
		failed  int
	)
	for _, path := range args {
		doc, err := uploadFile(ctx, path)
		if err != nil {
			cmd.PrintErrf("✗ %s: %s\n", path, services.UserMessage(err))
			failed++
			continue
		}
		cmd.Printf("✓ %s uploaded as %s (%s)\n", doc.Filename, doc.ID, humanize.IBytes(uint64(max(doc.Size, 0))))

		if !docsProcess {
			continue
		}
		if err := documentService.Process(ctx, doc.ID); err != nil {
			cmd.PrintErrf("✗ %s: processing failed: %s\n", doc.Filename, services.UserMessage(err))
			failed++
			continue
		}
		started = append(started, doc.ID)
	}

	if events != nil && len(started) > 0 {
		if waitFailed := waitForDocuments(cmd, events, started); waitFailed > 0 {
			failed += waitFailed
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(args))
	}
	return nil
}

func uploadFile(ctx context.Context, path string) (*domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}
	return documentService.Upload(ctx, filepath.Base(path), info.Size(), f)
}

func runDocumentsProcess(cmd *cobra.Command, args []string) error {
	return startProcessing(cmd, args[0], domain.PollProcessing)
}

func runDocumentsReprocess(cmd *cobra.Command, args []string) error {
	if !confirm(cmd, fmt.Sprintf("Reprocess %s? Its chunks and topics will be rebuilt.", args[0])) {
		return errAborted
	}
	return startProcessing(cmd, args[0], domain.PollReprocessing)
}

func startProcessing(cmd *cobra.Command, id string, mode domain.PollMode) error {
	if documentService == nil {
		return notConfigured("document")
	}

	events, cancel := subscribeIfWaiting()
	defer cancel()

	start := documentService.Process
	if mode == domain.PollReprocessing {
		start = documentService.Reprocess
	}
	if err := start(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to start %s: %s", mode, services.UserMessage(err))
	}
	cmd.Printf("Started %s of %s.\n", mode, id)

	if events == nil {
		return nil
	}
	if waitForDocuments(cmd, events, []string{id}) > 0 {
		return fmt.Errorf("%s of %s failed", mode, id)
	}
	return nil
}

// subscribeIfWaiting subscribes to status events when --wait is set.
// It must run before processing starts so no terminal event is missed.
func subscribeIfWaiting() (<-chan domain.DocumentStatusEvent, func()) {
	if !docsWait || statusPoller == nil {
		return nil, func() {}
	}
	return statusPoller.Subscribe()
}

// waitForDocuments blocks until every id reaches a terminal status and
// returns how many ended in error.
func waitForDocuments(cmd *cobra.Command, events <-chan domain.DocumentStatusEvent, ids []string) int {
	pending := make(map[string]bool, len(ids))
	for _, id := range ids {
		pending[id] = true
	}

	timeout := time.NewTimer(docsTimeout)
	defer timeout.Stop()

	failed := 0
	for len(pending) > 0 {
		select {
		case <-cmd.Context().Done():
			return failed + len(pending)
		case <-timeout.C:
			cmd.PrintErrf("Timed out waiting for %d document(s).\n", len(pending))
			return failed + len(pending)
		case ev, ok := <-events:
			if !ok {
				return failed + len(pending)
			}
			if !pending[ev.DocumentID] {
				continue
			}
			if !ev.Terminal {
				logger.Debug("%s: %s → %s", ev.DocumentID, ev.Previous, ev.Status)
				continue
			}
			delete(pending, ev.DocumentID)
			name := ev.Filename
			if name == "" {
				name = ev.DocumentID
			}
			if ev.Status == domain.StatusError {
				failed++
				cmd.PrintErrf("✗ %s failed after %s\n", name, ev.Elapsed.Round(time.Second))
				continue
			}
			cmd.Printf("✓ %s %s in %s\n", name, ev.Status, ev.Elapsed.Round(time.Second))
		}
	}
	return failed
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}
	id := args[0]
	if !confirm(cmd, fmt.Sprintf("Delete document %s?", id)) {
		return errAborted
	}
	if err := documentService.Delete(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to delete %s: %s", id, services.UserMessage(err))
	}
	cmd.Printf("Deleted %s.\n", id)
	return nil
}

func runDocumentsBatchDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}
	if !confirm(cmd, fmt.Sprintf("Delete %d document(s)?", len(args))) {
		return errAborted
	}

	res := documentService.BatchDelete(cmd.Context(), args)
	if jsonOutput {
		return printJSON(cmd, res)
	}
	cmd.Printf("Deleted %d of %d document(s).\n", res.Succeeded, res.Total())
	if res.Failed > 0 {
		cmd.Printf("Failed: %s\n", strings.Join(res.FailedIDs, ", "))
		return fmt.Errorf("%d deletion(s) failed", res.Failed)
	}
	return nil
}

func runDocumentsDownload(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}
	ctx := cmd.Context()
	id := args[0]

	out := docsOutput
	if out == "" {
		doc, err := documentService.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("unknown document %s, pass --output: %s", id, services.UserMessage(err))
		}
		out = filepath.Base(doc.Filename)
	}

	var w io.Writer
	if out == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	n, err := documentService.Download(ctx, id, w)
	if err != nil {
		if out != "-" {
			os.Remove(out) //nolint:errcheck
		}
		return fmt.Errorf("failed to download %s: %s", id, services.UserMessage(err))
	}
	if out != "-" {
		cmd.Printf("Saved %s (%s).\n", out, humanize.IBytes(uint64(max(n, 0))))
	}
	return nil
}

func runDocumentsChunks(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}
	chunks, err := documentService.Chunks(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load chunks: %s", services.UserMessage(err))
	}

	if jsonOutput {
		return printJSON(cmd, chunks)
	}
	if len(chunks) == 0 {
		cmd.Println("No chunks. Has the document been processed?")
		return nil
	}
	for _, c := range chunks {
		cmd.Printf("── chunk %d ──\n%s\n\n", c.Index, strings.TrimSpace(c.Content))
	}
	return nil
}

func runDocumentsStats(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return notConfigured("document")
	}
	stats := documentService.Stats(cmd.Context())
	if jsonOutput {
		return printJSON(cmd, stats)
	}

	cmd.Printf("Documents:  %s (%.0f%% processed)\n", humanize.Comma(int64(stats.Total)), stats.ProcessedPercent())
	for _, s := range domain.AllStatuses {
		if n := stats.ByStatus[s]; n > 0 {
			cmd.Printf("  %-11s %d\n", s, n)
		}
	}
	cmd.Printf("Size:       %s\n", humanize.IBytes(uint64(max(stats.TotalSize, 0))))
	cmd.Printf("Chunks:     %s\n", humanize.Comma(int64(stats.TotalChunks)))
	cmd.Printf("Topics:     %s\n", humanize.Comma(int64(stats.TotalTopics)))
	if stats.InFlight > 0 {
		cmd.Printf("In flight:  %d\n", stats.InFlight)
	}
	return nil
}

func runDocumentsHealth(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return notConfigured("document")
	}
	return printHealth(cmd, documentService.Health(cmd.Context()))
}

// printHealth renders a health report. Shared with `analytics health`.
func printHealth(cmd *cobra.Command, h domain.SystemHealth) error {
	if jsonOutput {
		return printJSON(cmd, h)
	}
	cmd.Printf("Status:  %s\n", h.Status)
	if h.Version != "" {
		cmd.Printf("Version: %s\n", h.Version)
	}
	if h.Uptime > 0 {
		cmd.Printf("Uptime:  %s\n", (time.Duration(h.Uptime) * time.Second).String())
	}
	for _, name := range h.ComponentNames() {
		cmd.Printf("  %-16s %s\n", name, h.Components[name])
	}
	if h.Status == domain.HealthUnhealthy {
		return errors.New("backend is unhealthy")
	}
	return nil
}

func runDocumentsWatch(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	w := dropfolder.New(documentService, dropfolder.Options{
		Dir:      args[0],
		Process:  docsProcess,
		Existing: docsExisting,
		OnResult: func(r dropfolder.Result) {
			if r.Err != nil {
				cmd.PrintErrf("✗ %s: %s\n", filepath.Base(r.Path), services.UserMessage(r.Err))
				return
			}
			cmd.Printf("✓ %s uploaded as %s\n", filepath.Base(r.Path), r.Document.ID)
		},
	})

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
