package session

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	apperrors "rag-chat-client/internal/errors"
	"rag-chat-client/internal/logging"
	"rag-chat-client/internal/models"
	"rag-chat-client/internal/validation"
)

// Uploader sends a document to the backend.
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader) (*models.UploadResponse, error)
}

// UploadState is a state of the upload controller.
type UploadState int

const (
	UploadIdle UploadState = iota
	UploadValidating
	UploadUploading
	UploadSucceeded
	UploadErrored
)

func (s UploadState) String() string {
	switch s {
	case UploadIdle:
		return "idle"
	case UploadValidating:
		return "validating"
	case UploadUploading:
		return "uploading"
	case UploadSucceeded:
		return "success"
	case UploadErrored:
		return "error"
	default:
		return fmt.Sprintf("UploadState(%d)", int(s))
	}
}

type uploadEvent string

const (
	uploadSubmit  uploadEvent = "submit"
	uploadAccept  uploadEvent = "accept"
	uploadSucceed uploadEvent = "succeed"
	uploadFail    uploadEvent = "fail"
	uploadSettle  uploadEvent = "settle"
)

type uploadEdge struct {
	from  UploadState
	event uploadEvent
}

var uploadTransitions = map[uploadEdge]UploadState{
	{UploadIdle, uploadSubmit}:       UploadValidating,
	{UploadValidating, uploadAccept}: UploadUploading,
	{UploadValidating, uploadFail}:   UploadErrored,
	{UploadUploading, uploadSucceed}: UploadSucceeded,
	{UploadUploading, uploadFail}:    UploadErrored,
	{UploadSucceeded, uploadSettle}:  UploadIdle,
	{UploadErrored, uploadSettle}:    UploadIdle,
}

// UploadOptions configures an UploadController. All hooks are optional and
// are called from the goroutine running Submit, never while the controller
// lock is held.
type UploadOptions struct {
	Gate   *validation.Gate
	Logger *zap.Logger

	// OnTransition observes every state change.
	OnTransition func(from, to UploadState)
	// OnResult receives each settled result.
	OnResult func(models.UploadResult)
	// ResetInput clears the surface's file picker so the same file can be
	// chosen again.
	ResetInput func()
}

// UploadController drives one document submission at a time.
type UploadController struct {
	uploader Uploader
	gate     *validation.Gate
	logger   *zap.Logger

	onTransition func(from, to UploadState)
	onResult     func(models.UploadResult)
	resetInput   func()

	mu    sync.Mutex
	state UploadState
	last  *models.UploadResult
}

// NewUploadController creates a controller in the Idle state.
func NewUploadController(uploader Uploader, opts UploadOptions) *UploadController {
	gate := opts.Gate
	if gate == nil {
		gate = validation.NewGate(nil, 0)
	}
	return &UploadController{
		uploader:     uploader,
		gate:         gate,
		logger:       logging.OrNop(opts.Logger).Named("upload"),
		onTransition: opts.OnTransition,
		onResult:     opts.OnResult,
		resetInput:   opts.ResetInput,
	}
}

// State returns the current state.
func (c *UploadController) State() UploadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether an upload request is in flight.
func (c *UploadController) Busy() bool {
	return c.State() == UploadUploading
}

// LastResult returns the most recent settled result, if any.
func (c *UploadController) LastResult() (models.UploadResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return models.UploadResult{}, false
	}
	return *c.last, true
}

// Gate returns the validation gate used for submissions.
func (c *UploadController) Gate() *validation.Gate {
	return c.gate
}

// Submit validates f and, if it passes, uploads it with a single request.
// Every outcome, including validation and backend failures, is reported in
// the returned result; the only error is ErrBusy when a submission is
// already running.
func (c *UploadController) Submit(ctx context.Context, f File) (result models.UploadResult, err error) {
	if terr := c.transition(uploadSubmit); terr != nil {
		c.logger.Debug("submission refused", zap.String("filename", f.Name), zap.Error(terr))
		return models.UploadResult{}, apperrors.ErrBusy
	}
	defer func() { result = c.settle(f.Name, result, recover()) }()

	if verr := c.gate.Validate(validation.FileInfo{Name: f.Name, Size: f.Size}); verr != nil {
		c.logger.Info("file rejected", zap.String("filename", f.Name), zap.Int64("size", f.Size), zap.Error(verr))
		_ = c.transition(uploadFail)
		return models.UploadFailed(f.Name, apperrors.Reason(verr)), nil
	}

	_ = c.transition(uploadAccept)

	resp, uerr := c.uploader.Upload(ctx, f.Name, f.Content)
	if uerr != nil {
		c.logger.Warn("upload failed", zap.String("filename", f.Name), zap.Error(uerr))
		_ = c.transition(uploadFail)
		return uploadFailure(f.Name, uerr), nil
	}

	_ = c.transition(uploadSucceed)
	c.logger.Info("document indexed", zap.String("filename", resp.Filename), zap.Int("chunks", resp.ChunkCount()))
	return models.UploadSucceeded(resp.Filename, resp.ChunkCount()), nil
}

// settle records the result, returns to Idle and resets the input. It runs
// deferred so the controller never stays busy after Submit returns, and
// recovers a panicking uploader into an error result.
func (c *UploadController) settle(filename string, result models.UploadResult, recovered any) models.UploadResult {
	if recovered != nil {
		c.logger.Error("upload panicked", zap.String("filename", filename), zap.Any("panic", recovered))
	}
	if st := c.State(); st == UploadValidating || st == UploadUploading {
		_ = c.transition(uploadFail)
		if result.Status == "" {
			result = models.UploadFailed(filename, "upload aborted")
		}
	}

	c.mu.Lock()
	c.last = &result
	c.mu.Unlock()

	_ = c.transition(uploadSettle)

	if c.resetInput != nil {
		c.resetInput()
	}
	if c.onResult != nil {
		c.onResult(result)
	}
	return result
}

// transition applies ev to the current state. It is the only place the
// state field is written.
func (c *UploadController) transition(ev uploadEvent) error {
	c.mu.Lock()
	from := c.state
	to, ok := uploadTransitions[uploadEdge{from, ev}]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("upload: no transition from %s on %s", from, ev)
	}
	c.state = to
	c.mu.Unlock()

	c.logger.Debug("state changed", zap.Stringer("from", from), zap.Stringer("to", to))
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
	return nil
}

// uploadFailure maps a backend error to a result. Application errors carry
// the backend's own message; everything else is described by the error.
func uploadFailure(filename string, err error) models.UploadResult {
	if apperrors.KindOf(err) == apperrors.KindApplication {
		r := models.UploadFailed(filename, apperrors.Reason(err))
		r.Rejected = true
		return r
	}
	return models.UploadFailed(filename, err.Error())
}
