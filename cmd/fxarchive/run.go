package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fxarchive/pkg/archiver"
	"fxarchive/pkg/auth"
	"fxarchive/pkg/config"
	"fxarchive/pkg/logger"
	"fxarchive/pkg/models"
	"fxarchive/pkg/ui"
)

var (
	assumeYes     bool
	useCheckpoint bool
	notify        bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover the whole history, then download it",
	Long: `Crawl the generation history page by page, save the item list as a
checkpoint, ask for confirmation and download every image with its prompt.

With --use-checkpoint an existing checkpoint replaces the crawl, which is how
an interrupted download is resumed.`,
	Example: `  # Crawl and download with the stored default session
  fxarchive run

  # Resume from the saved item list without asking
  fxarchive run --use-checkpoint --yes --skip-existing

  # Gentler on the service
  fxarchive run --concurrency 4 --rpm 120`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Only discover the history and save the checkpoint",
	Args:  cobra.NoArgs,
	RunE:  runCrawl,
}

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the items listed in an existing checkpoint",
	Args:  cobra.NoArgs,
	RunE:  runDownload,
}

func init() {
	rootCmd.AddCommand(runCmd, crawlCmd, downloadCmd)

	addRunFlags(runCmd)
	crawlCmd.Flags().Int("max-items", 0, "stop discovery after this many items (0 = all)")
	crawlCmd.Flags().Duration("page-delay", 0, "pause between history pages")
	addDownloadFlags(downloadCmd)
	downloadCmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when done")
}

// addRunFlags registers the flags of a full run on cmd. The root command gets
// them too since it runs the same pipeline.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation before downloading")
	cmd.Flags().BoolVar(&useCheckpoint, "use-checkpoint", false, "load the item list from the checkpoint instead of crawling")
	cmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when done")
	cmd.Flags().Int("max-items", 0, "stop discovery after this many items (0 = all)")
	cmd.Flags().Duration("page-delay", 0, "pause between history pages")
	addDownloadFlags(cmd)
}

func addDownloadFlags(cmd *cobra.Command) {
	cmd.Flags().Int("concurrency", 0, "number of downloads in flight")
	cmd.Flags().Bool("skip-existing", false, "skip items whose image is already on disk")
}

// pipeline is what every command needs before it can talk to the service.
type pipeline struct {
	cfg         *config.Config
	archiver    *archiver.Archiver
	stopMetrics func()
}

func newPipeline(cmd *cobra.Command) (*pipeline, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		return nil, errSilent
	}

	session, err := resolveSession(cfg, newSessionManager)
	if err != nil {
		logger.WithError(err).Error("No usable session")
		ui.PrintError("No ImageFX session found", err)
		fmt.Fprintln(ui.Out, "\nCopy the Cookie header of a signed-in labs.google tab:")
		auth.ShowQuickExtractGuide(ui.Out)
		fmt.Fprintln(ui.Out, "\nStore it with:\n  fxarchive auth login")
		fmt.Fprintln(ui.Out, "\nor pass the cookie directly:\n  export FXARCHIVE_COOKIE='...'")
		return nil, errSilent
	}
	ui.PrintInfo("Session", session.Name)

	a, err := archiver.New(cfg, session.Headers(), logger.GetLogger())
	if err != nil {
		return nil, err
	}

	stop, err := startMetrics(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	return &pipeline{cfg: cfg, archiver: a, stopMetrics: stop}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.stopMetrics()

	ctx, cancel := signalContext()
	defer cancel()

	var progress *ui.Progress
	opts := archiver.RunOptions{
		UseCheckpoint: useCheckpoint,
		OnDiscovered: func(items []models.ItemRecord, stats *models.CrawlStats) {
			if stats != nil {
				ui.PrintCrawlStats(*stats)
			} else {
				ui.PrintInfo("Checkpoint", fmt.Sprintf("%d items from %s", len(items), p.archiver.Checkpoint().Path()))
			}
			progress = newProgress(len(items))
		},
		OnOutcome: func(o models.FetchOutcome) {
			if progress != nil {
				progress.Observe(o)
			}
		},
	}
	if !assumeYes {
		opts.Confirm = func(n int) bool {
			return ui.Confirm(os.Stdin, ui.Out, fmt.Sprintf("Download %d images to %s?", n, p.archiver.OutputDir()))
		}
	}

	report, err := p.archiver.Run(ctx, opts)
	finishProgress(progress)
	if err != nil {
		if errors.Is(err, archiver.ErrNoItems) {
			ui.PrintWarning("Nothing to download")
			return nil
		}
		logger.WithError(err).Error("Run failed")
		notifyResult(false, err.Error())
		return err
	}
	if report.Declined {
		ui.PrintInfo("Cancelled", "the item list is kept in "+p.archiver.Checkpoint().Path())
		return nil
	}

	return finish(report.Result)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.stopMetrics()

	ctx, cancel := signalContext()
	defer cancel()

	items, stats, err := p.archiver.Discover(ctx)
	ui.PrintCrawlStats(stats)
	if len(items) > 0 {
		ui.PrintInfo("Checkpoint", p.archiver.Checkpoint().Path())
	}
	if err != nil {
		logger.WithError(err).Error("Crawl halted")
		return fmt.Errorf("crawl halted after %d items: %w", len(items), err)
	}
	ui.PrintSuccess(fmt.Sprintf("Discovered %d items", len(items)))
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.stopMetrics()

	items, err := p.archiver.LoadCheckpoint()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		ui.PrintError("No checkpoint found", p.archiver.Checkpoint().Path())
		fmt.Fprintln(ui.Out, "\nRun 'fxarchive crawl' first.")
		return errSilent
	}

	ctx, cancel := signalContext()
	defer cancel()

	var onOutcome func(models.FetchOutcome)
	progress := newProgress(len(items))
	if progress != nil {
		onOutcome = progress.Observe
	}
	result := p.archiver.Download(ctx, items, onOutcome)
	finishProgress(progress)

	return finish(result)
}

// finish prints the summary and turns failed items into a non-zero exit.
func finish(result models.DispatchResult) error {
	ui.PrintSummary(result)
	if result.Failed > 0 {
		notifyResult(false, fmt.Sprintf("%d of %d downloads failed", result.Failed, result.Submitted))
		return errSilent
	}
	notifyResult(true, fmt.Sprintf("%d images saved", result.SuccessCount))
	return nil
}

func notifyResult(ok bool, msg string) {
	if !notify {
		return
	}
	n := ui.NewNotifier()
	if ok {
		n.SendSuccess("fxarchive", msg)
	} else {
		n.SendError("fxarchive", msg)
	}
}

func finishProgress(p *ui.Progress) {
	if p == nil {
		return
	}
	_ = p.Finish()
	if _, _, skipped, bytes := p.Counts(); bytes > 0 || skipped > 0 {
		ui.PrintInfo("Transferred", fmt.Sprintf("%.1f MiB, %d already on disk", float64(bytes)/(1<<20), skipped))
	}
}

// newProgress draws a bar on stderr when it is a terminal.
func newProgress(total int) *ui.Progress {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return ui.NewProgress(total, os.Stderr)
}
