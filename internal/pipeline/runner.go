package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"marker-ar/internal/camera"
	"marker-ar/internal/config"

	"gocv.io/x/gocv"
)

// ErrAcquisition is returned by Run when the source fails too many times in
// a row.
var ErrAcquisition = errors.New("frame acquisition failed")

// FrameSource produces frames. Read returns io.EOF when the source is
// exhausted; other errors are treated as transient.
type FrameSource interface {
	Read(dst *gocv.Mat) error
	Close() error
}

// Sink displays processed frames. Show returns true when the user asked to
// quit. Show must not retain frame after returning.
type Sink interface {
	Show(frame gocv.Mat, res Result) bool
	Close() error
}

// Stats counts frame outcomes over a run.
type Stats struct {
	Frames       int
	ReadFailures int
	ByStatus     map[Status]int
}

func (s *Stats) count(st Status) {
	if s.ByStatus == nil {
		s.ByStatus = make(map[Status]int)
	}
	s.Frames++
	s.ByStatus[st]++
}

// Runner drives the single-threaded acquire, process, display loop.
type Runner struct {
	source      FrameSource
	sink        Sink
	pipeline    *Pipeline
	maxFailures int

	watcher *config.Watcher
	camera  camera.Model

	// OnResult, if set, is called after each processed frame.
	OnResult func(index int, res Result)
}

// NewRunner creates a runner. The runner does not close source or sink.
func NewRunner(source FrameSource, sink Sink, p *Pipeline) *Runner {
	return &Runner{
		source:      source,
		sink:        sink,
		pipeline:    p,
		maxFailures: p.Config().Capture.MaxReadFailures,
		camera:      p.camera,
	}
}

// WithWatcher reloads the pipeline whenever the watched configuration
// changes. The new pipeline takes effect at the next tick.
func (r *Runner) WithWatcher(w *config.Watcher) *Runner {
	r.watcher = w
	return r
}

// Pipeline returns the pipeline currently in use.
func (r *Runner) Pipeline() *Pipeline {
	return r.pipeline
}

// Run processes frames until the context is cancelled, the sink asks to
// quit or the source is exhausted. Cancellation is checked once per tick,
// never in the middle of a frame.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	frame := gocv.NewMat()
	defer frame.Close()

	failures := 0
	last := Status(-1)
	defer func() {
		log.Printf("Pipeline: %d frames, %d tracked, %d read failures",
			stats.Frames, stats.ByStatus[StatusTracked], stats.ReadFailures)
	}()

	for {
		if err := ctx.Err(); err != nil {
			log.Printf("Pipeline: stopping: %v", err)
			return stats, nil
		}
		r.reload()

		if err := r.source.Read(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return stats, nil
			}
			failures++
			stats.ReadFailures++
			if failures >= r.maxFailures {
				return stats, fmt.Errorf("%w after %d consecutive failures: %w", ErrAcquisition, failures, err)
			}
			continue
		}
		failures = 0

		res := r.pipeline.Process(frame)
		stats.count(res.Status)
		if res.Status != last {
			if res.Err != nil {
				log.Printf("Pipeline: %s: %v", res.Status, res.Err)
			} else {
				log.Printf("Pipeline: %s", res.Status)
			}
			last = res.Status
		}
		if r.OnResult != nil {
			r.OnResult(stats.Frames-1, res)
		}

		out, err := r.pipeline.Render(frame, res)
		if err != nil {
			log.Printf("Pipeline: render failed: %v", err)
			out.Close()
			out = frame.Clone()
		}
		quit := r.sink.Show(out, res)
		out.Close()
		if quit {
			return stats, nil
		}
	}
}

func (r *Runner) reload() {
	if r.watcher == nil {
		return
	}
	cfg, changed, err := r.watcher.Poll(time.Now())
	if err != nil {
		log.Printf("Config reload: %v", err)
		return
	}
	if !changed {
		return
	}
	p, err := New(cfg, r.camera)
	if err != nil {
		log.Printf("Config reload: keeping previous settings: %v", err)
		return
	}
	r.pipeline = p
	r.maxFailures = cfg.Capture.MaxReadFailures
	log.Printf("Config reload: applied %s", r.watcher.Path())
}
