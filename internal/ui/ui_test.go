package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{2_000_000, "1.9 MiB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestProgressPercent(t *testing.T) {
	p := NewProgress("", UploadStepNames, 1000)

	if p.Percent() != 0 {
		t.Errorf("Percent() = %v, want 0", p.Percent())
	}

	p.SetSent(250)
	if p.Percent() != 0.25 {
		t.Errorf("Percent() = %v, want 0.25", p.Percent())
	}

	p.SetSent(5000)
	if p.Percent() != 1 {
		t.Errorf("Percent() should clamp to 1, got %v", p.Percent())
	}

	empty := NewProgress("", nil, 0)
	if empty.ShowBar {
		t.Error("Progress without a size should not show a bar")
	}
}

func TestProgressUpdateStep(t *testing.T) {
	p := NewProgress("", UploadStepNames, 10)

	p.UpdateStep(UploadStepStart, StepRunning, "")
	if p.Current != UploadStepStart {
		t.Errorf("Current = %d, want %d", p.Current, UploadStepStart)
	}

	// Out of range is ignored
	p.UpdateStep(0, StepFailed, "")
	p.UpdateStep(len(UploadStepNames)+1, StepFailed, "")
	if p.Failed() {
		t.Error("Out-of-range updates should be ignored")
	}

	p.UpdateStep(UploadStepSend, StepFailed, "ERROR:WRITE_FAILED")
	if !p.Failed() {
		t.Error("Failed() should report the failed step")
	}
	if !strings.Contains(p.Render(), "ERROR:WRITE_FAILED") {
		t.Error("Render() should include the step message")
	}
}

func TestConfirmationAsk(t *testing.T) {
	c := FactoryResetConfirmation("10.0.0.2:8470")

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"exact phrase", "RESET\n", true},
		{"phrase with spaces", "  RESET  \n", true},
		{"phrase without newline", "RESET", true},
		{"wrong phrase", "reset\n", false},
		{"empty input", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if got := c.Ask(strings.NewReader(tt.input), &out); got != tt.want {
				t.Errorf("Ask() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), "FACTORY RESET") {
				t.Error("Ask() should print the warning box")
			}
		})
	}
}

func TestStyleLogLineKeepsText(t *testing.T) {
	for _, line := range []string{"[I] booted", "[W] slow", "[E] failed", "STATE:BLE=0,WIFI=2,OTA_MODE=0,IP=10.0.0.2"} {
		if !strings.Contains(StyleLogLine(line), line) {
			t.Errorf("StyleLogLine(%q) lost the text", line)
		}
	}
}

func TestLogBoxMaxLinesKeepsNewest(t *testing.T) {
	box := NewLogBox([]string{"[I] one", "[W] two", "[I] three"}).SetMaxLines(2)
	out := box.Render()

	if strings.Contains(out, "one") {
		t.Error("Render() should drop the oldest line")
	}
	if !strings.Contains(out, "two") || !strings.Contains(out, "three") {
		t.Error("Render() should keep the newest lines")
	}
}

func TestPrintLogBox(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out)

	p.PrintLogBox([]string{"[I] Command received: STATUS", "[E] Failed to connect"}, 0)
	got := out.String()
	for _, want := range []string{"Device Log", "Command received: STATUS", "Failed to connect"} {
		if !strings.Contains(got, want) {
			t.Errorf("PrintLogBox() output missing %q", want)
		}
	}

	out.Reset()
	p.PrintLogBox(nil, 0)
	if !strings.Contains(out.String(), "(no output)") {
		t.Error("PrintLogBox(nil) should say there was no output")
	}
}

func TestUploadRunnerPlainSuccess(t *testing.T) {
	var out bytes.Buffer
	runner := NewUploadRunner(UploadRunnerConfig{
		Command: "fieldlink upload fw.bin",
		Params:  map[string]string{"Device": "10.0.0.2:8470"},
		Total:   100,
		Output:  &out,
	})

	err := runner.Run(context.Background(), func(ctx context.Context, r Reporter) error {
		r.Step(UploadStepConnect, StepComplete, "")
		r.Step(UploadStepTransferMode, StepSkipped, "")
		r.Step(UploadStepStart, StepComplete, "READY")
		r.Step(UploadStepSend, StepRunning, "")
		r.Bytes(50)
		r.Bytes(100)
		r.Step(UploadStepSend, StepComplete, "")
		r.Step(UploadStepFinalize, StepComplete, "SUCCESS")
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	text := out.String()
	for _, want := range []string{"FIRMWARE UPLOAD", "Send image", "(50%)", "(100%)", "SUCCESS"} {
		if !strings.Contains(text, want) {
			t.Errorf("output should contain %q", want)
		}
	}
	if runner.Progress().Sent != 100 {
		t.Errorf("Sent = %d, want 100", runner.Progress().Sent)
	}
}

func TestUploadRunnerPlainFailure(t *testing.T) {
	var out bytes.Buffer
	runner := NewUploadRunner(UploadRunnerConfig{
		Total:  100,
		Output: &out,
		Troubleshoot: func(err error) []string {
			return []string{"Power-cycle the device"}
		},
	})

	want := errors.New("device reported ERROR:WRITE_FAILED during data")
	err := runner.Run(context.Background(), func(ctx context.Context, r Reporter) error {
		r.Bytes(40)
		r.Step(UploadStepSend, StepFailed, "ERROR:WRITE_FAILED")
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("Run() error = %v, want %v", err, want)
	}

	text := out.String()
	for _, s := range []string{"FAILED", "Power-cycle the device", "ERROR:WRITE_FAILED", "40 B of 100 B"} {
		if !strings.Contains(text, s) {
			t.Errorf("output should contain %q", s)
		}
	}
}
