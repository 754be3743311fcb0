package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nids-console/internal/api"
	"nids-console/internal/convert"
	nerrors "nids-console/internal/errors"
	"nids-console/internal/report"
)

var (
	// ErrInFlight is returned when an action requires no running submission.
	ErrInFlight = errors.New("a batch submission is already in progress")

	// ErrSuperseded is returned by a submission whose session was reset
	// before the classifier answered. Its result is discarded.
	ErrSuperseded = errors.New("batch submission was reset")
)

const noFileMessage = "Please select a CSV or Excel file first"

// Predictor classifies a normalized CSV payload.
type Predictor interface {
	BatchPredict(ctx context.Context, payload *convert.Payload) (*api.BatchResponse, error)
}

// Recorder observes finished submissions. result is "success" or an error
// kind such as "network".
type Recorder interface {
	ObserveSubmission(result string, elapsed time.Duration)
}

// Config configures a Controller.
type Config struct {
	Progress ProgressConfig

	// SubmitTimeout bounds one submission. Zero leaves it bounded only by
	// the caller's context.
	SubmitTimeout time.Duration

	Logger   *slog.Logger
	Recorder Recorder

	// OnChange is called with a fresh Session after every state or progress
	// change. It must not block.
	OnChange func(Session)
}

// Controller runs at most one batch submission at a time.
type Controller struct {
	client Predictor
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	file       convert.File
	session    Session
	generation uint64
	cancel     context.CancelFunc
	estimator  *estimator
}

// NewController creates an idle controller.
func NewController(client Predictor, cfg Config) *Controller {
	if cfg.Progress == (ProgressConfig{}) {
		cfg.Progress = DefaultProgressConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		session: Session{State: StateIdle},
	}
}

// View returns a copy of the current session.
func (c *Controller) View() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() Session {
	s := c.session
	if s.Results != nil {
		s.Results = append([]report.Prediction(nil), s.Results...)
	}
	return s
}

func (c *Controller) notify(s Session) {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange(s)
	}
}

// Select validates f's extension and makes it the file for the next
// submission. A rejected file leaves the previous selection in place.
func (c *Controller) Select(f convert.File) error {
	c.mu.Lock()
	if c.session.InFlight {
		c.mu.Unlock()
		return ErrInFlight
	}

	format, err := convert.DetectFormat(f.Name())
	if err != nil {
		c.session.Err = err
		c.session.Message = nerrors.UserMessage(err)
		view := c.viewLocked()
		c.mu.Unlock()
		c.notify(view)
		return err
	}

	c.file = f
	c.session.FileName = f.Name()
	c.session.Format = format
	c.session.Err = nil
	c.session.Message = ""
	if c.session.State == StateRejected {
		c.session.State = StateIdle
	}
	view := c.viewLocked()
	c.mu.Unlock()

	c.logger.Debug("batch file selected", "file", f.Name(), "format", format)
	c.notify(view)
	return nil
}

// Submit normalizes the selected file and sends it to the classifier. It
// blocks until the classifier answers, ctx is done, or the session is reset.
// A call while another submission is running returns ErrInFlight and changes
// nothing.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.session.InFlight {
		c.mu.Unlock()
		return ErrInFlight
	}

	c.session.State = StateValidating
	if c.file == nil {
		err := nerrors.NewValidation("file", noFileMessage)
		c.session.State = StateRejected
		c.session.Err = err
		c.session.Message = err.Message
		view := c.viewLocked()
		c.mu.Unlock()
		c.notify(view)
		c.record(err, 0)
		return err
	}

	file := c.file
	gen := c.generation
	submitCtx, cancel := c.submitContext(ctx)
	c.cancel = cancel

	c.session.InFlight = true
	c.session.Progress = 0
	c.session.Err = nil
	c.session.Message = ""
	if c.session.Format == convert.FormatXLSX {
		c.session.State = StateConverting
	} else {
		c.session.State = StateSubmitting
	}
	view := c.viewLocked()
	c.mu.Unlock()
	c.notify(view)

	est := c.startProgress(gen)

	start := time.Now()
	defer cancel()

	payload, err := convert.Normalize(file)
	if err != nil {
		est.Stop()
		c.finish(gen, func() {
			c.session.Progress = 0
			c.session.State = StateFailed
			c.session.Err = err
			c.session.Message = nerrors.UserMessage(err)
		})
		c.logger.Warn("batch conversion failed", "file", file.Name(), "error", err)
		c.record(err, time.Since(start))
		return err
	}

	c.transition(gen, StateConverting, StateSubmitting)

	resp, err := c.client.BatchPredict(submitCtx, payload)
	est.Stop()

	committed := c.finish(gen, func() {
		c.session.Progress = 100
		if err != nil {
			c.session.State = StateFailed
			c.session.Err = err
			c.session.Message = nerrors.UserMessage(err)
			return
		}
		c.session.State = StateSucceeded
		c.session.Results = append([]report.Prediction(nil), resp.Predictions...)
		c.session.Stats, c.session.HasStats = report.ComputeStats(c.session.Results)
		c.session.SavedCount = resp.SavedCount()
		c.session.Message = savedNotice(resp.SavedCount())
		c.file = nil
		c.session.FileName = ""
		c.session.Format = ""
	})
	if !committed {
		c.logger.Debug("discarding batch result after reset", "file", payload.Filename)
		return ErrSuperseded
	}

	elapsed := time.Since(start)
	c.record(err, elapsed)
	if err != nil {
		c.logger.Warn("batch submission failed",
			"file", payload.Filename,
			"error_kind", string(nerrors.Kind(err)),
			"error", err,
		)
		return err
	}

	c.logger.Info("batch submission completed",
		"file", payload.Filename,
		"predictions", len(resp.Predictions),
		"saved", resp.SavedCount(),
		"duration", elapsed,
	)
	return nil
}

func (c *Controller) startProgress(gen uint64) *estimator {
	est := startEstimator(c.cfg.Progress, func(p int) { c.advance(gen, p) })

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		est.Stop()
		return est
	}
	c.estimator = est
	c.mu.Unlock()
	return est
}

func (c *Controller) submitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.SubmitTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.SubmitTimeout)
	}
	return context.WithCancel(ctx)
}

// Reset returns the controller to idle, clearing file, results, error and
// progress. A running submission is cancelled and its result discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	est := c.estimator
	c.estimator = nil
	c.file = nil
	c.session = Session{State: StateIdle}
	view := c.viewLocked()
	c.mu.Unlock()

	if est != nil {
		est.Stop()
	}
	c.notify(view)
}

// advance applies an estimator tick if gen is still current.
func (c *Controller) advance(gen uint64, progress int) {
	c.mu.Lock()
	if gen != c.generation || !c.session.InFlight || progress <= c.session.Progress {
		c.mu.Unlock()
		return
	}
	c.session.Progress = progress
	view := c.viewLocked()
	c.mu.Unlock()
	c.notify(view)
}

func (c *Controller) transition(gen uint64, from, to State) {
	c.mu.Lock()
	if gen != c.generation || c.session.State != from {
		c.mu.Unlock()
		return
	}
	c.session.State = to
	view := c.viewLocked()
	c.mu.Unlock()
	c.notify(view)
}

// finish ends the submission of generation gen by applying commit. It
// reports false when the session was reset in the meantime.
func (c *Controller) finish(gen uint64, commit func()) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	commit()
	c.session.InFlight = false
	c.cancel = nil
	c.estimator = nil
	view := c.viewLocked()
	c.mu.Unlock()
	c.notify(view)
	return true
}

func (c *Controller) record(err error, elapsed time.Duration) {
	if c.cfg.Recorder == nil {
		return
	}
	result := "success"
	if err != nil {
		result = string(nerrors.Kind(err))
	}
	c.cfg.Recorder.ObserveSubmission(result, elapsed)
}

func savedNotice(saved int) string {
	if saved > 0 {
		return fmt.Sprintf("Batch analysis complete! %d records saved to database.", saved)
	}
	return "Batch analysis complete, but no records were saved to database."
}
