package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/gatt"
	"github.com/muurk/fieldlink/internal/logging"
)

const (
	// DefaultChunkSize is the DataIn payload size per write
	DefaultChunkSize = 240

	// DefaultChunkRetries is the retry count per chunk
	DefaultChunkRetries = 5

	// DefaultReadyTimeout bounds the wait for READY after START
	DefaultReadyTimeout = 5 * time.Second

	// DefaultCompletionTimeout bounds the wait for SUCCESS after END
	DefaultCompletionTimeout = 10 * time.Second

	// DefaultChunkDelay paces chunk writes
	DefaultChunkDelay = 5 * time.Millisecond

	// DefaultSettleDelay is the pause after OTA_MODE and before END
	DefaultSettleDelay = 120 * time.Millisecond
)

// Stage names a phase of an upload
type Stage int

const (
	StageTransferMode Stage = iota // OTA_MODE sent, waiting for the device to settle
	StageStart                     // START sent, waiting for READY
	StageData                      // Chunks are being written
	StageEnd                       // END sent, waiting for SUCCESS or reboot
)

func (s Stage) String() string {
	switch s {
	case StageTransferMode:
		return "mode"
	case StageStart:
		return "start"
	case StageData:
		return "data"
	case StageEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Progress is reported while an upload runs
type Progress struct {
	Sent   int
	Total  int
	Status string // last StatusOut value seen
}

// UploadOptions tunes an upload. Zero values take the defaults.
type UploadOptions struct {
	ChunkSize         int
	ChunkRetries      int
	ReadyTimeout      time.Duration
	CompletionTimeout time.Duration
	ChunkDelay        time.Duration
	SettleDelay       time.Duration

	// EnterTransferMode sends OTA_MODE before starting
	EnterTransferMode bool

	// OnProgress is called after every chunk and every status notification
	OnProgress func(Progress)

	// OnStage is called as each stage begins
	OnStage func(Stage)

	// OnLog receives diagnostic log lines seen while waiting on the device
	OnLog func(string)
}

func (o UploadOptions) withDefaults() UploadOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkRetries <= 0 {
		o.ChunkRetries = DefaultChunkRetries
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = DefaultReadyTimeout
	}
	if o.CompletionTimeout <= 0 {
		o.CompletionTimeout = DefaultCompletionTimeout
	}
	if o.ChunkDelay < 0 {
		o.ChunkDelay = 0
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.OnProgress == nil {
		o.OnProgress = func(Progress) {}
	}
	if o.OnStage == nil {
		o.OnStage = func(Stage) {}
	}
	if o.OnLog == nil {
		o.OnLog = func(string) {}
	}
	return o
}

type upload struct {
	c      *Client
	opts   UploadOptions
	total  int
	sent   int
	status string
}

// UploadFirmware transfers image to the device: START, chunks on DataIn,
// END. It returns once the device reports SUCCESS or drops the connection
// to reboot. On failure an ABORT is sent before returning.
func (c *Client) UploadFirmware(ctx context.Context, image []byte, opts UploadOptions) error {
	u := &upload{c: c, opts: opts.withDefaults(), total: len(image)}

	if err := u.run(ctx, image); err != nil {
		if !c.waitClosedNow() {
			if abortErr := c.Write(gatt.FwControlIn, []byte("ABORT")); abortErr != nil {
				logging.Debug("Failed to send ABORT", zap.Error(abortErr))
			}
		}
		return err
	}
	return nil
}

func (c *Client) waitClosedNow() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (u *upload) run(ctx context.Context, image []byte) error {
	c := u.c

	if u.opts.EnterTransferMode {
		u.opts.OnStage(StageTransferMode)
		if err := c.Command("OTA_MODE"); err != nil {
			return err
		}
		if err := sleepCtx(ctx, u.opts.SettleDelay); err != nil {
			return err
		}
	}

	u.opts.OnStage(StageStart)
	c.drainReplies()
	logging.Info("Starting firmware upload", zap.Int("bytes", u.total), zap.String("addr", c.addr))
	if err := c.Write(gatt.FwControlIn, []byte(fmt.Sprintf("START:%d", u.total))); err != nil {
		return err
	}
	if err := u.waitFor(ctx, "READY", StageStart, u.opts.ReadyTimeout, false); err != nil {
		return err
	}

	u.opts.OnStage(StageData)

	for off := 0; off < len(image); off += u.opts.ChunkSize {
		end := off + u.opts.ChunkSize
		if end > len(image) {
			end = len(image)
		}
		if err := u.sendChunk(ctx, image[off:end]); err != nil {
			return fmt.Errorf("failed to send chunk at offset %d: %w", off, err)
		}
		u.sent = end
		u.report()

		if err := u.checkStatus(); err != nil {
			return err
		}
		if u.opts.ChunkDelay > 0 {
			if err := sleepCtx(ctx, u.opts.ChunkDelay); err != nil {
				return err
			}
		}
	}

	if err := sleepCtx(ctx, u.opts.SettleDelay); err != nil {
		return err
	}
	if err := u.checkStatus(); err != nil {
		return err
	}

	u.opts.OnStage(StageEnd)
	if err := c.Write(gatt.FwControlIn, []byte("END")); err != nil {
		return err
	}
	if err := u.waitFor(ctx, "SUCCESS", StageEnd, u.opts.CompletionTimeout, true); err != nil {
		return err
	}

	logging.Info("Firmware upload complete", zap.Int("bytes", u.total))
	return nil
}

func (u *upload) sendChunk(ctx context.Context, chunk []byte) error {
	c := u.c
	var permanent error
	operation := func() error {
		err := c.Write(gatt.FwDataIn, chunk)
		if err == nil {
			err = c.pendingError(gatt.FwDataIn)
		}
		if err != nil && !IsRetryable(err) {
			// Rejected chunks are not resent
			permanent = err
			return nil
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxElapsedTime = 0
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(u.opts.ChunkRetries)), ctx))
	if permanent != nil {
		return permanent
	}
	return err
}

func (u *upload) report() {
	u.opts.OnProgress(Progress{Sent: u.sent, Total: u.total, Status: u.status})
}

// observe records a StatusOut notification and classifies it. Log lines
// are passed to OnLog.
func (u *upload) observe(n Notification, stage Stage) error {
	if n.Char == gatt.DiagLogOut {
		u.opts.OnLog(string(n.Value))
		return nil
	}
	if n.Char != gatt.FwStatusOut {
		return nil
	}
	u.status = string(n.Value)
	u.report()
	if strings.HasPrefix(u.status, "ERROR:") || u.status == "ABORTED" {
		return &TransferFailedError{Status: u.status, Stage: stage.String()}
	}
	return nil
}

// checkStatus consumes queued notifications without blocking
func (u *upload) checkStatus() error {
	for {
		select {
		case n, ok := <-u.c.notifications:
			if !ok {
				return u.c.closedError()
			}
			if err := u.observe(n, StageData); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// waitFor blocks until StatusOut reports want. When disconnectOK is set a
// dropped connection counts as success: the device reboots right after
// SUCCESS and the notification can be lost.
func (u *upload) waitFor(ctx context.Context, want string, stage Stage, timeout time.Duration, disconnectOK bool) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		select {
		case n, ok := <-u.c.notifications:
			if !ok {
				if disconnectOK {
					logging.Info("Device disconnected after END, treating as reboot")
					return nil
				}
				return u.c.closedError()
			}
			if err := u.observe(n, stage); err != nil {
				return err
			}
			if u.status == want {
				return nil
			}
		case <-ctx.Done():
			return &DeviceError{
				Type:      ErrTypeTimeout,
				Message:   fmt.Sprintf("timeout waiting for %s", want),
				Err:       ctx.Err(),
				Addr:      u.c.addr,
				Retryable: true,
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
