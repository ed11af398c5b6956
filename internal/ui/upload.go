package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Steps of a firmware upload as shown by UploadRunner
const (
	UploadStepConnect = iota + 1
	UploadStepTransferMode
	UploadStepStart
	UploadStepSend
	UploadStepFinalize
)

// UploadStepNames labels the upload steps in order
var UploadStepNames = []string{
	"Connect to device",
	"Enter transfer mode",
	"Start transfer",
	"Send image",
	"Finalize and restart",
}

// Reporter receives progress from a running operation
type Reporter interface {
	Step(stepNumber int, status StepStatus, message string)
	Bytes(sent int)
}

// UploadOperation performs the upload, reporting as it goes
type UploadOperation func(ctx context.Context, r Reporter) error

// UploadRunnerConfig holds configuration for an upload run
type UploadRunnerConfig struct {
	Title   string            // Defaults to "Firmware Upload"
	Command string            // Full command (e.g., "fieldlink upload fw.bin")
	Params  map[string]string // Parameters to display in header
	Total   int               // Image size in bytes

	// Interactive runs a live Bubble Tea view. Leave false when stdout is
	// not a terminal.
	Interactive bool

	// Troubleshoot returns tips for a failed run
	Troubleshoot func(err error) []string

	Output io.Writer // Output writer (default: os.Stdout)
}

// UploadRunner orchestrates header → progress → result for an upload
type UploadRunner struct {
	config   UploadRunnerConfig
	header   *Header
	progress *Progress
	output   io.Writer
	width    int
	lastTick int
}

// NewUploadRunner creates a runner
func NewUploadRunner(config UploadRunnerConfig) *UploadRunner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Title == "" {
		config.Title = "Firmware Upload"
	}

	width := GetTerminalWidth()
	return &UploadRunner{
		config:   config,
		header:   NewHeader(config.Title, config.Command, config.Params).SetWidth(width),
		progress: NewProgress("", UploadStepNames, config.Total).SetWidth(width),
		output:   config.Output,
		width:    width,
	}
}

// Progress exposes the tracked state, mainly for tests
func (r *UploadRunner) Progress() *Progress {
	return r.progress
}

// Run executes op with UI updates and prints the final result box.
func (r *UploadRunner) Run(ctx context.Context, op UploadOperation) error {
	start := time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	var err error
	if r.config.Interactive {
		err = r.runProgram(ctx, op)
	} else {
		err = op(ctx, plainReporter{r})
	}

	r.printResult(err, time.Since(start))
	return err
}

func (r *UploadRunner) printResult(err error, duration time.Duration) {
	_, _ = fmt.Fprintln(r.output)

	if err != nil {
		var tips []string
		if r.config.Troubleshoot != nil {
			tips = r.config.Troubleshoot(err)
		}
		result := NewFailureResult(r.config.Title+" failed", err, tips).SetWidth(r.width)
		result.AddDetail("Sent", fmt.Sprintf("%s of %s", FormatBytes(r.progress.Sent), FormatBytes(r.progress.TotalSize)))
		_, _ = fmt.Fprintln(r.output, result.Render())
		return
	}

	result := NewSuccessResult(r.config.Title+" complete", map[string]string{
		"Image":    FormatBytes(r.progress.TotalSize),
		"Duration": duration.Round(time.Millisecond).String(),
	}).SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())
}

// plainReporter prints one line per finished step and per 10% of bytes
type plainReporter struct {
	r *UploadRunner
}

func (p plainReporter) Step(n int, status StepStatus, message string) {
	prog := p.r.progress
	prog.UpdateStep(n, status, message)
	if status.Done() {
		_, _ = fmt.Fprintln(p.r.output, prog.renderStepLine(prog.Steps[n-1]))
	}
}

func (p plainReporter) Bytes(sent int) {
	prog := p.r.progress
	prog.SetSent(sent)

	tick := int(prog.Percent() * 10)
	if tick > p.r.lastTick {
		p.r.lastTick = tick
		_, _ = fmt.Fprintf(p.r.output, "        %s / %s (%d%%)\n",
			FormatBytes(prog.Sent), FormatBytes(prog.TotalSize), tick*10)
	}
}

// --- Bubble Tea live view ---

type stepMsg struct {
	n       int
	status  StepStatus
	message string
}

type bytesMsg int

type doneMsg struct{ err error }

type uploadModel struct {
	progress *Progress
	cancel   context.CancelFunc
	done     bool
}

func (m uploadModel) Init() tea.Cmd {
	return nil
}

func (m uploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stepMsg:
		m.progress.UpdateStep(msg.n, msg.status, msg.message)
	case bytesMsg:
		m.progress.SetSent(int(msg))
	case tea.WindowSizeMsg:
		m.progress.SetWidth(clampWidth(msg.Width))
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			// The operation aborts the transfer and then reports done
			m.cancel()
		}
	case doneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m uploadModel) View() string {
	return m.progress.Render() + "\n"
}

type programReporter struct {
	p *tea.Program
}

func (pr programReporter) Step(n int, status StepStatus, message string) {
	pr.p.Send(stepMsg{n: n, status: status, message: message})
}

func (pr programReporter) Bytes(sent int) {
	pr.p.Send(bytesMsg(sent))
}

func (r *UploadRunner) runProgram(ctx context.Context, op UploadOperation) error {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(uploadModel{progress: r.progress, cancel: cancel}, tea.WithOutput(r.output))

	errCh := make(chan error, 1)
	go func() {
		err := op(opCtx, programReporter{p})
		errCh <- err
		p.Send(doneMsg{err: err})
	}()

	if _, runErr := p.Run(); runErr != nil {
		cancel()
		opErr := <-errCh
		if opErr != nil {
			return opErr
		}
		return fmt.Errorf("progress display failed: %w", runErr)
	}
	return <-errCh
}
