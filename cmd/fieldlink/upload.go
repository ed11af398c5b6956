package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/fieldlink/internal/client"
	"github.com/muurk/fieldlink/internal/ota"
	"github.com/muurk/fieldlink/internal/ui"
)

// Upload command flags
var (
	chunkSize      int
	chunkDelay     time.Duration
	noTransferMode bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <firmware.bin>",
	Short: "Upload a firmware image",
	Long: `Upload a firmware image over the firmware transfer service.

The device is first put into transfer mode, which pauses its background
network checks. The image is then sent in chunks, verified for length and
committed. The device restarts into the new image once it reports success.

A failed or interrupted upload is aborted on the device, which keeps its
current firmware.`,
	Example: `  fieldlink upload build/firmware.bin

  # Smaller chunks for a slow link
  fieldlink upload firmware.bin --chunk-size 128 --chunk-delay 20ms`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().IntVar(&chunkSize, "chunk-size", client.DefaultChunkSize, "Bytes per data write")
	uploadCmd.Flags().DurationVar(&chunkDelay, "chunk-delay", 0, "Pause between chunks")
	uploadCmd.Flags().BoolVar(&noTransferMode, "no-transfer-mode", false, "Skip the OTA_MODE command before starting")
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]
	image, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read firmware image: %w", err)
	}
	if len(image) == 0 || len(image) > ota.MaxImageSize {
		return fmt.Errorf("firmware image is %s, want 1 byte to %s",
			ui.FormatBytes(len(image)), ui.FormatBytes(ota.MaxImageSize))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params := map[string]string{
		"Image":      filepath.Base(path),
		"Size":       ui.FormatBytes(len(image)),
		"Chunk size": strconv.Itoa(chunkSize),
	}
	if deviceFlag != "" {
		params["Device"] = deviceFlag
	}

	runner := ui.NewUploadRunner(ui.UploadRunnerConfig{
		Command:      "fieldlink upload " + path,
		Params:       params,
		Total:        len(image),
		Interactive:  ui.IsTerminal(),
		Troubleshoot: troubleshoot,
	})

	var lines []string
	err = runner.Run(ctx, func(ctx context.Context, r ui.Reporter) error {
		return uploadImage(ctx, r, image, func(line string) { lines = append(lines, line) })
	})
	if err != nil && len(lines) > 0 {
		ui.NewPrinter(os.Stdout).PrintLogBox(lines, uploadLogLines)
	}
	return err
}

// uploadLogLines is how much of the device log a failed upload shows
const uploadLogLines = 20

// stageSteps maps each upload stage to the ui step it starts
var stageSteps = map[client.Stage]int{
	client.StageTransferMode: ui.UploadStepTransferMode,
	client.StageStart:        ui.UploadStepStart,
	client.StageData:         ui.UploadStepSend,
	client.StageEnd:          ui.UploadStepFinalize,
}

func uploadImage(ctx context.Context, r ui.Reporter, image []byte, onLog func(string)) error {
	current := ui.UploadStepConnect
	r.Step(current, ui.StepRunning, "")

	c, t, _, err := connect(ctx)
	if err != nil {
		r.Step(current, ui.StepFailed, client.GetShortErrorMessage(err))
		return err
	}
	defer c.Close()
	r.Step(current, ui.StepComplete, t.String())

	if noTransferMode {
		r.Step(ui.UploadStepTransferMode, ui.StepSkipped, "--no-transfer-mode")
	}

	err = c.UploadFirmware(ctx, image, client.UploadOptions{
		ChunkSize:         chunkSize,
		ChunkDelay:        chunkDelay,
		EnterTransferMode: !noTransferMode,
		OnStage: func(s client.Stage) {
			next := stageSteps[s]
			if current != ui.UploadStepConnect {
				r.Step(current, ui.StepComplete, "")
			}
			current = next
			r.Step(current, ui.StepRunning, "")
		},
		OnProgress: func(p client.Progress) {
			r.Bytes(p.Sent)
		},
		OnLog: onLog,
	})
	if err != nil {
		r.Step(current, ui.StepFailed, client.GetShortErrorMessage(err))
		return err
	}

	r.Step(current, ui.StepComplete, "device restarting")
	return nil
}
