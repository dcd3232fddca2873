package automation

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"github.com/jonathan/report-retriever/internal/config"
	"github.com/jonathan/report-retriever/internal/jobs"
)

// Retriever executes the report retrieval sequence against the portal.
// One Retriever serves all jobs; each run gets its own browser context.
type Retriever struct {
	baseURL       string
	headless      bool
	downloadsDir  string
	artifactsDir  string
	navTimeout    time.Duration
	reportTimeout time.Duration
}

// New creates a Retriever from the runtime configuration.
func New(cfg *config.Config) *Retriever {
	return &Retriever{
		baseURL:       cfg.BaseURL,
		headless:      cfg.Headless,
		downloadsDir:  cfg.DownloadsDir,
		artifactsDir:  cfg.ArtifactsDir,
		navTimeout:    cfg.NavTimeout,
		reportTimeout: cfg.ReportTimeout,
	}
}

// Task binds a payload into a jobs.Task for the runner.
func (r *Retriever) Task(payload Payload) jobs.Task {
	return func(ctx context.Context, report jobs.StepReporter) (*jobs.Result, error) {
		return r.Run(ctx, report, payload)
	}
}

// step reports a step active, runs fn and reports the step done. On error
// the step is left active so the runner's failure capture attributes the
// error to it.
func step(report jobs.StepReporter, id int, fn func() error) error {
	report(id, jobs.StepActive)
	if fn == nil {
		report(id, jobs.StepDone)
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	report(id, jobs.StepDone)
	return nil
}

// Run drives the portal end to end and returns the saved report artifact.
// Step transitions are announced through the reporter in increasing order.
func (r *Retriever) Run(ctx context.Context, report jobs.StepReporter, payload Payload) (*jobs.Result, error) {
	if err := step(report, 1, func() error {
		if payload.Username == "" || payload.Password == "" {
			return fmt.Errorf("missing credentials")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	finalName := reportFileName(payload.StartDate, payload.EndDate, time.Now())
	finalPath := filepath.Join(r.downloadsDir, finalName)

	downloadDir, err := filepath.Abs(r.downloadsDir)
	if err != nil {
		return nil, fmt.Errorf("resolving downloads dir: %w", err)
	}

	// Step 2: launch the browser.
	var browserCtx context.Context
	var cancels []context.CancelFunc
	defer func() {
		for i := len(cancels) - 1; i >= 0; i-- {
			cancels[i]()
		}
	}()

	if err := step(report, 2, func() error {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", r.headless && !payload.Debug),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
		cancels = append(cancels, cancel)

		browserCtx, cancel = chromedp.NewContext(allocCtx)
		cancels = append(cancels, cancel)

		// Starting the browser eagerly keeps launch failures inside step 2.
		return r.run(browserCtx, chromedp.Navigate("about:blank"))
	}); err != nil {
		return nil, err
	}

	// Completed downloads are routed into the downloads dir under their GUID.
	downloads := trackDownloads(browserCtx)
	if err := chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	); err != nil {
		return nil, fmt.Errorf("configuring download behavior: %w", err)
	}

	result, err := r.drivePortal(browserCtx, report, payload, downloads, downloadDir, finalName, finalPath)
	if err != nil {
		r.captureFailure(browserCtx)
		return nil, err
	}
	return result, nil
}

// drivePortal performs steps 3-15 on an already-running browser.
func (r *Retriever) drivePortal(
	browserCtx context.Context,
	report jobs.StepReporter,
	payload Payload,
	downloads <-chan string,
	downloadDir, finalName, finalPath string,
) (*jobs.Result, error) {
	if err := step(report, 3, func() error {
		return r.run(browserCtx,
			chromedp.Navigate(r.baseURL),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	}); err != nil {
		return nil, err
	}

	// A stored session may skip the login form entirely.
	if r.loginFormVisible(browserCtx) {
		if err := step(report, 4, func() error {
			return r.run(browserCtx,
				chromedp.SendKeys(`input[name='username'], input#username`, payload.Username, chromedp.ByQuery),
				chromedp.SendKeys(`input[type='password']`, payload.Password, chromedp.ByQuery),
				chromedp.Click(`button[type='submit']`, chromedp.ByQuery, chromedp.NodeVisible),
				chromedp.WaitReady("body", chromedp.ByQuery),
			)
		}); err != nil {
			return nil, err
		}
	} else {
		report(4, jobs.StepActive)
		report(4, jobs.StepDone)
	}

	if err := step(report, 5, func() error {
		return r.clickText(browserCtx, "a", "Analytics")
	}); err != nil {
		return nil, err
	}

	if err := step(report, 6, func() error {
		return r.clickText(browserCtx, "*[@role='tab']", "Reports")
	}); err != nil {
		return nil, err
	}

	if err := step(report, 7, func() error {
		return r.clickText(browserCtx, "*", "Physician Productivity Report")
	}); err != nil {
		return nil, err
	}

	if err := step(report, 8, func() error {
		return r.clickText(browserCtx, "*", "Radiologist Report")
	}); err != nil {
		return nil, err
	}

	if err := step(report, 9, func() error {
		if err := r.clickText(browserCtx, "*", "Exam Date Search"); err != nil {
			return err
		}
		if err := r.clickText(browserCtx, "*", "Completed Between"); err != nil {
			return err
		}
		if err := r.clickText(browserCtx, "*", "Absolute Dates"); err != nil {
			return err
		}
		if err := r.fillLabeled(browserCtx, "Start Date", payload.StartDate); err != nil {
			return err
		}
		return r.fillLabeled(browserCtx, "End Date", payload.EndDate)
	}); err != nil {
		return nil, err
	}

	if err := step(report, 10, func() error {
		if err := r.clickText(browserCtx, "*", "Radiologist"); err != nil {
			return err
		}
		return r.clickText(browserCtx, "*", "Current User")
	}); err != nil {
		return nil, err
	}

	if err := step(report, 11, func() error {
		return r.clickText(browserCtx, "button", "Create Report")
	}); err != nil {
		return nil, err
	}

	var linkText string
	if err := step(report, 12, func() error {
		var err error
		linkText, err = r.waitForReportLink(browserCtx)
		return err
	}); err != nil {
		return nil, err
	}

	var downloadName string
	if err := step(report, 13, func() error {
		if err := r.clickText(browserCtx, "a", linkText); err != nil {
			return err
		}
		select {
		case name := <-downloads:
			downloadName = name
			return nil
		case <-time.After(r.reportTimeout):
			return fmt.Errorf("timed out waiting for report download")
		case <-browserCtx.Done():
			return browserCtx.Err()
		}
	}); err != nil {
		return nil, err
	}

	if err := step(report, 14, func() error {
		return os.Rename(filepath.Join(downloadDir, downloadName), finalPath)
	}); err != nil {
		return nil, err
	}

	if err := step(report, 15, nil); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(finalPath)
	if err != nil {
		absPath = finalPath
	}
	return &jobs.Result{FileName: finalName, FilePath: absPath}, nil
}

// run executes actions with the per-navigation timeout applied.
func (r *Retriever) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(ctx, r.navTimeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// loginFormVisible probes briefly for the password input.
func (r *Retriever) loginFormVisible(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err := chromedp.Run(probeCtx, chromedp.WaitVisible(`input[type='password']`, chromedp.ByQuery))
	return err == nil
}

// clickText clicks the first visible element of the given kind whose text
// contains the given fragment.
func (r *Retriever) clickText(ctx context.Context, element, text string) error {
	selector := fmt.Sprintf(`//%s[contains(., %s)]`, element, xpathString(text))
	if err := r.run(ctx, chromedp.Click(selector, chromedp.BySearch, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("clicking %q: %w", text, err)
	}
	return nil
}

// fillLabeled fills the input that follows a label containing the given text.
func (r *Retriever) fillLabeled(ctx context.Context, label, value string) error {
	selector := fmt.Sprintf(`//label[contains(., %s)]/following::input[1]`, xpathString(label))
	if err := r.run(ctx,
		chromedp.WaitVisible(selector, chromedp.BySearch),
		chromedp.SendKeys(selector, value, chromedp.BySearch),
	); err != nil {
		return fmt.Errorf("filling %q: %w", label, err)
	}
	return nil
}

// waitForReportLink polls the rendered page until the generated .xls link
// appears, up to the report timeout.
func (r *Retriever) waitForReportLink(ctx context.Context) (string, error) {
	deadline := time.Now().Add(r.reportTimeout)
	for {
		var html string
		pollCtx, cancel := context.WithTimeout(ctx, r.navTimeout)
		err := chromedp.Run(pollCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
		cancel()
		if err == nil {
			if link, ok := findReportLink(html); ok {
				return link, nil
			}
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("timed out waiting for generated report link")
		}
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// trackDownloads returns a channel that yields the GUID file name of each
// completed download in the browser context.
func trackDownloads(ctx context.Context) <-chan string {
	completed := make(chan string, 1)
	chromedp.ListenTarget(ctx, func(ev any) {
		if e, ok := ev.(*browser.EventDownloadProgress); ok {
			if e.State == browser.DownloadProgressStateCompleted {
				select {
				case completed <- e.GUID:
				default:
				}
			}
		}
	})
	return completed
}

// captureFailure saves a screenshot and the page HTML into the artifacts dir
// for post-mortem debugging. Best effort only.
func (r *Retriever) captureFailure(ctx context.Context) {
	if ctx == nil {
		return
	}
	stamp := time.Now().Format("20060102_150405")

	shotCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var shot []byte
	var html string
	if err := chromedp.Run(shotCtx,
		chromedp.FullScreenshot(&shot, 90),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		log.Printf("failure capture skipped: %v", err)
		return
	}

	shotPath := filepath.Join(r.artifactsDir, fmt.Sprintf("failure_%s.png", stamp))
	if err := os.WriteFile(shotPath, shot, 0o644); err != nil {
		log.Printf("failed to write failure screenshot: %v", err)
	}
	htmlPath := filepath.Join(r.artifactsDir, fmt.Sprintf("failure_%s.html", stamp))
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		log.Printf("failed to write failure page: %v", err)
	}
}

// xpathString quotes a literal for use inside an XPath expression.
func xpathString(s string) string {
	return "'" + s + "'"
}
