// Package watch implements continuous mode: a filesystem watcher that
// re-runs the bundle and the legacy-tree compile whenever the source tree
// or the build configuration changes.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/distbuilder/internal/config"
	"git.home.luguber.info/inful/distbuilder/internal/errors"
	"git.home.luguber.info/inful/distbuilder/internal/events"
	"git.home.luguber.info/inful/distbuilder/internal/metrics"
	"git.home.luguber.info/inful/distbuilder/internal/pipeline"
)

// Watcher drives watch mode. Each accepted change event re-runs bundle and
// compile-legacy concurrently with each other; triggers are debounced and
// single-flighted.
type Watcher struct {
	cfg       *config.Config
	orch      *pipeline.Orchestrator
	recorder  metrics.Recorder
	publisher events.Publisher
	log       *slog.Logger
}

// New creates a watcher over the orchestrator's long-lived components.
func New(cfg *config.Config, orch *pipeline.Orchestrator, recorder metrics.Recorder, publisher events.Publisher) *Watcher {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Watcher{
		cfg:       cfg,
		orch:      orch,
		recorder:  recorder,
		publisher: publisher,
		log:       slog.Default(),
	}
}

// ShouldIgnore reports whether a change event for path must not trigger a
// rebuild. Generated fragments are written by the build itself; reacting
// to them would loop forever.
func ShouldIgnore(path string) bool {
	return strings.HasSuffix(path, config.GeneratedSuffix)
}

// Start runs the watcher until ctx is done. An initial rebuild runs on
// startup.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.CategoryWatch, errors.SeverityFatal, "failed to create file watcher")
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.cfg.Resolved.SourceRoot); err != nil {
		return err
	}
	// Configuration changes re-trigger too. Watching the directory is more
	// reliable than watching the file directly (editors replace files).
	if err := fsw.Add(filepath.Dir(w.cfg.TransformConfig)); err != nil {
		w.log.Warn("Failed to watch transform config directory", "error", err)
	}

	deb := newDebouncer(w.cfg.Watch.Debounce, w.rebuild)
	go deb.run(ctx)

	if w.cfg.Watch.DailyBundle {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return errors.Wrap(err, errors.CategoryWatch, errors.SeverityFatal, "failed to create scheduler")
		}
		// Shortly after midnight UTC the banner date changes; refresh the
		// artifacts that embed it.
		if _, err := scheduler.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 30))),
			gocron.NewTask(func() { deb.trigger("schedule") }),
			gocron.WithName("daily-bundle"),
		); err != nil {
			return errors.Wrap(err, errors.CategoryWatch, errors.SeverityFatal, "failed to schedule daily bundle")
		}
		scheduler.Start()
		defer func() {
			if err := scheduler.Shutdown(); err != nil {
				w.log.Warn("Failed to stop scheduler", "error", err)
			}
		}()
	}

	w.log.Info("Watching for changes",
		"source", w.cfg.Resolved.SourceRoot,
		"debounce", w.cfg.Watch.Debounce)

	// Build once on startup.
	deb.trigger("startup")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Watcher stopped")
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, deb, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("Watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, deb *debouncer, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if ShouldIgnore(event.Name) {
		w.log.Debug("Ignoring generated file event", "file", event.Name)
		return
	}

	// New directories in the source tree need their own watch.
	if event.Op.Has(fsnotify.Create) {
		if err := w.addRecursive(fsw, event.Name); err == nil {
			w.log.Debug("Watching new path", "path", event.Name)
		}
	}

	if !w.relevant(event.Name) {
		return
	}
	w.log.Debug("Change detected", "file", event.Name, "op", event.Op.String())
	deb.trigger(event.Name)
}

// relevant reports whether a path participates in the build: a source file
// under the source root, or the transformation-profile configuration.
func (w *Watcher) relevant(path string) bool {
	if path == w.cfg.TransformConfig {
		return true
	}
	if !strings.HasPrefix(path, w.cfg.Resolved.SourceRoot+string(filepath.Separator)) {
		return false
	}
	return strings.HasSuffix(path, ".js")
}

// addRecursive watches dir and every directory below it. Non-directories
// are ignored.
func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return fsw.Add(path)
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryWatch, errors.SeverityFatal, "failed to watch source tree").
			WithContext("dir", dir)
	}
	return nil
}

// rebuild runs the two watch-mode operations concurrently with each other.
// Failures are logged and abandoned; the watcher keeps running and will
// re-attempt on the next event.
func (w *Watcher) rebuild(ctx context.Context, reason string) {
	trigger := "watch"
	if reason == "schedule" || reason == "startup" {
		trigger = reason
	}
	w.recorder.IncRebuild(trigger)

	buildID := uuid.NewString()
	start := time.Now()
	w.log.Info("Rebuilding", "build_id", buildID, "trigger", trigger, "reason", reason)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		record(w.orch.Bundler().Run(ctx))
	}()
	go func() {
		defer wg.Done()
		_, err := w.orch.Compiler().CompileLegacy(ctx)
		record(err)
	}()
	wg.Wait()

	duration := time.Since(start)
	success := len(errs) == 0
	if success {
		w.log.Info("Rebuild finished", "build_id", buildID, "duration", duration)
	} else {
		for _, err := range errs {
			w.log.Error("Rebuild failed", "build_id", buildID, "error", err)
		}
	}

	evt := events.BuildCompleted{
		BuildID:  buildID,
		Trigger:  trigger,
		Success:  success,
		Duration: duration.Milliseconds(),
	}
	if !success {
		evt.Error = errs[0].Error()
	}
	if err := w.publisher.PublishBuildCompleted(evt); err != nil {
		w.log.Warn("Failed to publish build event", "error", err)
	}
}
