package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/perfsuite/internal/runner"
)

const maxFinishedRows = 50

// RunConfig holds orchestrator parameters for display.
type RunConfig struct {
	Client      string        // Client under test
	Environment string        // Environment label
	Files       int           // Number of discovered test files
	Concurrency int           // Maximum engine processes at once
	StartRate   float64       // Task starts per second (0 = unlimited)
	TaskTimeout time.Duration // Per-task timeout (0 = none)
	Binary      string        // Engine binary
	ConfigFile  string        // Path to config file if used
}

// Dashboard renders a live terminal UI of orchestrated tasks. It implements
// runner.Observer.
type Dashboard struct {
	board        *board
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid         *ui.Grid
	summaryPara  *widgets.Paragraph
	progress     *widgets.Gauge
	runningList  *widgets.List
	finishedList *widgets.List
	failurePara  *widgets.Paragraph
	startTime    time.Time
	runConfig    RunConfig
}

// New creates a new Dashboard. shutdownFunc is called when the user presses q.
func New(cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		board:        newBoard(cfg.Files),
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		startTime:    time.Now(),
		runConfig:    cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

func (d *Dashboard) TaskStarted(t runner.Task) {
	d.board.started(t)
}

func (d *Dashboard) TaskFinished(t runner.Task) {
	d.board.finish(t)
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.progress = widgets.NewGauge()
	d.progress.Title = "Completed"
	d.progress.Percent = 0
	d.progress.BarColor = ui.ColorBlue
	d.progress.BorderStyle.Fg = ui.ColorCyan
	d.progress.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.runningList = widgets.NewList()
	d.runningList.Title = "Running"
	d.runningList.Rows = []string{"Waiting to start"}
	d.runningList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.runningList.BorderStyle.Fg = ui.ColorCyan

	d.finishedList = widgets.NewList()
	d.finishedList.Title = "Finished"
	d.finishedList.Rows = []string{"Awaiting results"}
	d.finishedList.TextStyle = ui.NewStyle(ui.ColorWhite)
	d.finishedList.BorderStyle.Fg = ui.ColorCyan

	d.failurePara = widgets.NewParagraph()
	d.failurePara.Title = "Last Failure"
	d.failurePara.Text = "No failures"
	d.failurePara.TextStyle = ui.NewStyle(ui.ColorRed)
	d.failurePara.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.12,
			ui.NewCol(1.0, d.progress),
		),
		ui.NewRow(0.44,
			ui.NewCol(0.4, d.runningList),
			ui.NewCol(0.6, d.finishedList),
		),
		ui.NewRow(0.28,
			ui.NewCol(1.0, d.failurePara),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.update()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the runner has drained.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.mu.Lock()
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				d.mu.Unlock()
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	v := d.board.snapshot()

	d.summaryPara.Text = summaryText(d.runConfig, v, now.Sub(d.startTime))
	d.progress.Percent = v.Percent()
	d.progress.Label = fmt.Sprintf("%d/%d", len(v.Finished), v.Total)
	if v.Failed > 0 {
		d.progress.BarColor = ui.ColorRed
	}
	d.runningList.Rows = formatRunningRows(v.Running, now)
	d.finishedList.Rows = formatFinishedRows(v.Finished, maxFinishedRows)
	d.failurePara.Text = lastFailure(v.Finished)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func summaryText(cfg RunConfig, v view, elapsed time.Duration) string {
	return fmt.Sprintf(
		"%s\nElapsed: %s | Passed: %d | Failed: %d | Running: %d | Pending: %d",
		formatRunParams(cfg),
		elapsed.Round(time.Second),
		v.Passed,
		v.Failed,
		len(v.Running),
		v.Pending,
	)
}

func formatRunParams(cfg RunConfig) string {
	var parts []string

	if cfg.Client != "" {
		parts = append(parts, fmt.Sprintf("Client: %s", cfg.Client))
	}
	if cfg.Environment != "" {
		parts = append(parts, fmt.Sprintf("Env: %s", cfg.Environment))
	}
	parts = append(parts, fmt.Sprintf("Files: %d", cfg.Files))
	if cfg.Concurrency > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", cfg.Concurrency))
	}
	if cfg.StartRate > 0 {
		parts = append(parts, fmt.Sprintf("Start rate: %g/s", cfg.StartRate))
	} else {
		parts = append(parts, "Start rate: unlimited")
	}
	if cfg.TaskTimeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", cfg.TaskTimeout))
	}
	if cfg.Binary != "" {
		parts = append(parts, fmt.Sprintf("Engine: %s", cfg.Binary))
	}
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
