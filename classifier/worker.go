package classifier

import (
	"context"
	"sync"
	"time"

	"civiceye/metrics"
	"civiceye/models"

	"github.com/apex/log"
)

// AssessmentStore is where the pipeline attaches normalized results.
type AssessmentStore interface {
	AttachAssessment(ctx context.Context, a models.AIAssessment) error
}

// Job is one complaint queued for classification.
type Job struct {
	ComplaintID int64  `json:"complaint_id"`
	ImagePath   string `json:"image_path"`
}

// Pipeline scores submitted complaints asynchronously with a fixed pool of
// workers. Submission never blocks on classification: Dispatch drops the job
// with a warning when the queue is full, leaving the complaint reviewable
// with no assessment.
type Pipeline struct {
	scorer  Scorer
	store   AssessmentStore
	timeout time.Duration

	workers int
	jobs    chan Job
	wg      sync.WaitGroup

	stopOnce sync.Once
}

// NewPipeline creates a classification pipeline. queueSize bounds the number
// of submissions waiting for a worker.
func NewPipeline(scorer Scorer, store AssessmentStore, workers, queueSize int, timeout time.Duration) *Pipeline {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Pipeline{
		scorer:  scorer,
		store:   store,
		timeout: timeout,
		workers: workers,
		jobs:    make(chan Job, queueSize),
	}
}

// Start launches the worker pool.
func (p *Pipeline) Start() {
	log.Infof("Starting classification pipeline with %d worker(s), model %s", p.workers, p.scorer.ModelName())
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Dispatch queues a complaint for scoring without blocking the caller.
func (p *Pipeline) Dispatch(complaintID int64, imagePath string) {
	select {
	case p.jobs <- Job{ComplaintID: complaintID, ImagePath: imagePath}:
	default:
		log.Warnf("Classification queue full, dropping complaint %d", complaintID)
		metrics.ClassifiedTotal.WithLabelValues("dropped").Inc()
	}
}

// Stop drains the queue and waits for in-flight jobs to finish.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.Process(job)
	}
}

// Process scores one complaint and attaches the result. Exported so an
// out-of-process consumer (RabbitMQ subscriber) can feed the same path.
func (p *Pipeline) Process(job Job) {
	metrics.WorkerInFlight.Inc()
	defer metrics.WorkerInFlight.Dec()

	start := time.Now()
	result := p.process(job)
	metrics.ClassifiedTotal.WithLabelValues(result).Inc()
	metrics.ClassificationDurationSeconds.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

func (p *Pipeline) process(job Job) string {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	assessment, err := p.scorer.Score(ctx, job.ImagePath)
	if err != nil {
		kind := FailureOf(err)
		switch kind {
		case LowConfidenceUnknown:
			// The degraded unknown/low-confidence assessment is still
			// attached so the admin sees what the scorer saw.
		case ImageUnavailable, ModelUnavailable:
			log.Warnf("Classification of complaint %d failed: %v", job.ComplaintID, err)
			return string(kind)
		default:
			log.Errorf("Classification of complaint %d failed: %v", job.ComplaintID, err)
			return "error"
		}
	}

	if assessment == nil {
		return "error"
	}
	assessment.ComplaintID = job.ComplaintID

	if err := p.attach(ctx, *assessment); err != nil {
		log.Errorf("Failed to attach assessment for complaint %d: %v", job.ComplaintID, err)
		return "attach_failed"
	}

	log.Infof("Complaint %d classified as %s (confidence %.2f, model %s)",
		job.ComplaintID, assessment.DetectedType, assessment.Confidence, assessment.ModelName)
	if FailureOf(err) == LowConfidenceUnknown {
		return string(LowConfidenceUnknown)
	}
	return "ok"
}

func (p *Pipeline) attach(ctx context.Context, a models.AIAssessment) error {
	// Attaching is detached from the scoring deadline: a slow scorer must
	// not cause a successful result to be thrown away.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	return p.store.AttachAssessment(ctx, a)
}
