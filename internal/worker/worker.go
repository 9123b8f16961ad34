// Package worker runs the scheduled background jobs: schedule
// reminders, the morning digest, monthly usage resets and data
// cleanup. Jobs fire on cron schedules in the service timezone and can
// be triggered manually over HTTP for operations and testing.
package worker

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/api/respond"
	"github.com/himawari-tools/line-secretary/internal/metrics"
)

// jobTimeout bounds one job run.
const jobTimeout = 5 * time.Minute

// Job is one schedulable unit of background work.
type Job interface {
	Name() string
	Execute(ctx context.Context) error
}

// Worker owns the cron schedule and the manual-trigger endpoint.
type Worker struct {
	cron *cron.Cron
	jobs map[string]Job
	log  zerolog.Logger
}

func New(loc *time.Location, log zerolog.Logger) *Worker {
	return &Worker{
		cron: cron.New(cron.WithLocation(loc)),
		jobs: make(map[string]Job),
		log:  log,
	}
}

// Register schedules a job on a cron spec and makes it available to
// the /tasks endpoint.
func (w *Worker) Register(spec string, job Job) error {
	w.jobs[job.Name()] = job
	_, err := w.cron.AddFunc(spec, func() { w.runJob(job) })
	return err
}

func (w *Worker) runJob(job Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	err := job.Execute(ctx)
	status := "success"
	if err != nil {
		status = "error"
		w.log.Error().Err(err).Str("job", job.Name()).Msg("job failed")
	} else {
		w.log.Info().Str("job", job.Name()).Dur("duration", time.Since(start)).Msg("job finished")
	}
	metrics.RecordWorkerJob(job.Name(), status, time.Since(start))
}

// Start begins cron dispatch.
func (w *Worker) Start() { w.cron.Start() }

// Stop halts dispatch and waits for running jobs, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	done := w.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TasksHandler exposes POST /tasks/{job} to run a registered job
// immediately. The run is synchronous so operators see failures.
func (w *Worker) TasksHandler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/tasks/{job}", func(rw http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["job"]
		job, ok := w.jobs[name]
		if !ok {
			respond.WriteNotFound(rw, "unknown job: "+name)
			return
		}
		w.runJob(job)
		respond.WriteJSON(rw, http.StatusOK, map[string]string{"job": name, "status": "ran"})
	}).Methods("POST")
	return router
}
