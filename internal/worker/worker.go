// Package worker provides a NATS worker that processes podcast requests.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/podcast"
	"github.com/book-expert/podcast-service/internal/storage"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultTimeout bounds one request when no timeout is configured.
const DefaultTimeout = 10 * time.Minute

const (
	scratchPattern  = "podcast-job-*"
	jobOutputDir    = "out"
	documentMode    = 0o600
	fallbackDocName = "document"
)

// Log messages.
const (
	logInvalidEvent   = "Dropping invalid podcast request: %v"
	logJobStarted     = "Workflow %s: building podcast from %s (%s)"
	logJobFailed      = "Workflow %s: podcast request failed: %v"
	logJobDone        = "Workflow %s: uploaded %s (%.1fs, %d dropped turns)"
	logReplyFailed    = "Workflow %s: failed to publish reply: %v"
	logCleanupFailed  = "Failed to remove %s: %v"
	logNoReplySubject = "Workflow %s: request has no reply subject, result not published"
)

var (
	// ErrMissingDocumentKey indicates the request names no document.
	ErrMissingDocumentKey = errors.New("document key cannot be empty")
	// ErrMissingWorkflowID indicates the request header carries no workflow id.
	ErrMissingWorkflowID = errors.New("workflow id cannot be empty")
)

// Pipeline runs the full podcast pipeline on a local document and writes
// the podcast into outputDir.
type Pipeline interface {
	RunTo(ctx context.Context, path, outputDir, language string) (*podcast.Outcome, error)
}

// NatsWorker listens for podcast requests on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	documents      core.ObjectStore
	audio          core.ObjectStore
	pipeline       Pipeline
	timeout        time.Duration
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	documents core.ObjectStore,
	audio core.ObjectStore,
	pipeline Pipeline,
	timeout time.Duration,
	log *logger.Logger,
) *NatsWorker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		documents:      documents,
		audio:          audio,
		pipeline:       pipeline,
		timeout:        timeout,
		log:            log,
	}
}

// Run starts the worker and blocks until ctx is cancelled.
// Messages on one subscription are handled one at a time.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	event, err := parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error(logInvalidEvent, err)

		return
	}

	created, err := w.processPodcastJob(ctx, event)
	if err != nil {
		w.log.Error(logJobFailed, event.Header.WorkflowID, err)
		w.reply(msg, event.Header, &PodcastFailedEvent{Header: replyHeader(event.Header), Error: err.Error()})

		return
	}

	w.reply(msg, event.Header, created)
}

// processPodcastJob downloads the document, runs the pipeline and uploads the audio.
func (w *NatsWorker) processPodcastJob(ctx context.Context, event *PodcastRequestedEvent) (*PodcastCreatedEvent, error) {
	document, err := w.documents.Download(ctx, event.DocumentKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download document '%s': %w", event.DocumentKey, err)
	}

	scratch, err := os.MkdirTemp("", scratchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create job directory: %w", err)
	}
	defer w.remove(scratch, os.RemoveAll)

	name := documentName(event)
	path := filepath.Join(scratch, name)

	err = os.WriteFile(path, document, documentMode)
	if err != nil {
		return nil, fmt.Errorf("failed to stage document '%s': %w", name, err)
	}

	w.log.Info(logJobStarted, event.Header.WorkflowID, name, event.Language)

	outcome, err := w.pipeline.RunTo(ctx, path, filepath.Join(scratch, jobOutputDir), event.Language)
	if err != nil {
		return nil, err
	}

	audioData, err := os.ReadFile(outcome.Audio.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read podcast '%s': %w", outcome.Audio.Path, err)
	}

	audioKey := filepath.Base(outcome.Audio.Path)

	err = w.audio.Upload(ctx, audioKey, audioData)
	if err != nil {
		return nil, fmt.Errorf("failed to upload podcast for key '%s': %w", audioKey, err)
	}

	w.log.Info(logJobDone, event.Header.WorkflowID, audioKey, outcome.Audio.Duration.Seconds(), len(outcome.Audio.Dropped))

	return &PodcastCreatedEvent{
		Header:          replyHeader(event.Header),
		AudioKey:        audioKey,
		Title:           outcome.Script.Title,
		DurationSeconds: outcome.Audio.Duration.Seconds(),
		TurnsTotal:      outcome.Audio.TurnsTotal,
		TurnsDropped:    len(outcome.Audio.Dropped),
	}, nil
}

// reply marshals and responds with the given event when the request expects one.
func (w *NatsWorker) reply(msg *nats.Msg, header events.EventHeader, replyEvent any) {
	if msg.Reply == "" {
		w.log.Warn(logNoReplySubject, header.WorkflowID)

		return
	}

	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		w.log.Error(logReplyFailed, header.WorkflowID, err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error(logReplyFailed, header.WorkflowID, err)
	}
}

func (w *NatsWorker) remove(path string, removeFunc func(string) error) {
	err := removeFunc(path)
	if err != nil && !os.IsNotExist(err) {
		w.log.Warn(logCleanupFailed, path, err)
	}
}

func parseAndValidateEvent(msg *nats.Msg) (*PodcastRequestedEvent, error) {
	var event PodcastRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.Header.WorkflowID == "" {
		return nil, ErrMissingWorkflowID
	}

	if event.DocumentKey == "" {
		return nil, ErrMissingDocumentKey
	}

	if event.Language == "" {
		event.Language = core.DefaultLanguage
	}

	return &event, nil
}

// documentName picks a safe local file name, preferring the requested
// filename and falling back to the object key.
func documentName(event *PodcastRequestedEvent) string {
	for _, candidate := range []string{event.Filename, filepath.Base(event.DocumentKey)} {
		name := storage.SanitizeFilename(candidate)
		if storage.Stem(name) != "" {
			return name
		}
	}

	return fallbackDocName
}

// replyHeader keeps the workflow identity and stamps a new event id.
func replyHeader(request events.EventHeader) events.EventHeader {
	header := request
	header.EventID = uuid.NewString()
	header.Timestamp = time.Now()

	return header
}
