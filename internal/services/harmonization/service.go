package harmonization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/common"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
)

// DefaultErrorRefetchDelay is the pause before the error-variant schema is read
const DefaultErrorRefetchDelay = 10 * time.Second

// Operator-visible session messages
const (
	msgDispatched       = "Request sent to the harmonization workflow"
	msgPolling          = "Waiting for the workflow to finish"
	msgReady            = "KeyMap and Master Schema successfully generated!"
	msgReadyWithError   = "Workflow completed with errors, showing the error schema"
	msgExecutionFailed  = "Workflow execution failed"
	msgCancelled        = "Polling cancelled by the operator"
	msgEditsSaved       = "Edits saved"
	msgInputNotJSON     = "Uploaded file is not valid JSON, final workflow skipped"
	msgUnrecognizedData = "Returned file data is not a recognized JSON structure."
	msgServerStopped    = "Server stopped before the workflow finished"
)

// Options configures the service
type Options struct {
	// ErrorRefetchDelay is waited before reading the error schema. Zero reads immediately.
	ErrorRefetchDelay time.Duration
}

// Edits is the operator's edited keymap and schema tables
type Edits struct {
	Schema []map[string]interface{} `json:"schema"`
	KeyMap []models.KeyMapEntry     `json:"keymap"`
}

// SaveResult is the outcome of saving edits and running the final workflow
type SaveResult struct {
	ReconcileResult
	Final   *models.FinalResult  `json:"final,omitempty"`
	Preview *models.TablePreview `json:"preview,omitempty"`
	Warning string               `json:"warning,omitempty"`
}

// Service runs harmonization sessions: dispatch, completion wait, result
// loading, edit reconciliation and the final workflow.
type Service struct {
	store      interfaces.DocumentStore
	sessions   interfaces.SessionStorage
	dispatcher *Dispatcher
	strategy   CompletionStrategy
	reconciler *Reconciler
	events     interfaces.EventService
	logger     arbor.ILogger

	refetchDelay time.Duration

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex // serializes session read-modify-write
	cancel map[string]context.CancelFunc
}

// NewService creates the harmonization service. events may be nil.
func NewService(
	store interfaces.DocumentStore,
	sessions interfaces.SessionStorage,
	client interfaces.WorkflowClient,
	strategy CompletionStrategy,
	events interfaces.EventService,
	opts Options,
	logger arbor.ILogger,
) *Service {
	delay := opts.ErrorRefetchDelay
	if delay < 0 {
		delay = 0
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Service{
		store:        store,
		sessions:     sessions,
		dispatcher:   NewDispatcher(client, logger),
		strategy:     strategy,
		reconciler:   NewReconciler(store, client, logger),
		events:       events,
		logger:       logger,
		refetchDelay: delay,
		ctx:          ctx,
		stop:         stop,
		cancel:       make(map[string]context.CancelFunc),
	}
}

// Submit validates req, records a dispatched session and starts the
// background dispatch and completion wait. It returns without waiting.
func (s *Service) Submit(ctx context.Context, req *models.HarmonizationRequest) (*models.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	session := models.NewSession(req)
	session.Message = msgDispatched

	if json.Valid(req.File) {
		session.InputPayload = json.RawMessage(req.File)
	} else {
		s.logger.Warn().Str("session_id", session.ID).Str("file", req.FileName).Msg("Uploaded file is not valid JSON")
	}

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	runCtx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.cancel[session.ID] = cancel
	s.mu.Unlock()

	s.publish(interfaces.EventHarmonizationDispatched, session)

	s.wg.Add(1)
	common.SafeGo(s.logger, "harmonize-"+session.ID, func() {
		defer s.wg.Done()
		defer s.release(session.ID)
		s.run(runCtx, session.ID, req)
	})

	s.logger.Info().
		Str("session_id", session.ID).
		Str("provider", req.ProviderName).
		Str("target", req.TargetSchemaVersion).
		Str("strategy", s.strategy.Name()).
		Msg("Harmonization submitted")

	return session, nil
}

func (s *Service) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancel[id]; ok {
		cancel()
		delete(s.cancel, id)
	}
}

// run is the background task of one session
func (s *Service) run(ctx context.Context, id string, req *models.HarmonizationRequest) {
	logger := s.logger.WithCorrelationId(id)

	receipt, err := s.dispatcher.Dispatch(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.fail(id, err.Error())
		return
	}

	s.update(id, interfaces.EventHarmonizationPolling, func(session *models.Session) {
		session.ExecutionID = receipt.ExecutionID
		session.Transition(models.SessionPolling, msgPolling)
	})

	job := &Job{
		Request: req,
		Receipt: receipt,
		Logger:  logger,
		OnAttempt: func(attempt int) {
			s.update(id, "", func(session *models.Session) {
				session.Attempts = attempt
				session.UpdatedAt = time.Now()
			})
		},
	}

	result, err := s.strategy.Await(ctx, job)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.fail(id, err.Error())
		return
	}

	if result.Outcome == models.PollCompleted {
		s.loadCompleted(ctx, id, req, result)
		return
	}
	s.loadErrorVariant(ctx, id, req, result)
}

// loadKeyMap returns the provider's keymap or an operator message
func (s *Service) loadKeyMap(ctx context.Context, provider string) (*models.KeyMapDocument, string) {
	docs, err := s.store.FindKeyMapsByProvider(ctx, provider)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", provider).Msg("Keymap lookup failed")
		return nil, fmt.Sprintf("Failed to load keymap for %s: %v", provider, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Sprintf("No keymap data found for %s", provider)
	}
	return docs[0], ""
}

func (s *Service) loadCompleted(ctx context.Context, id string, req *models.HarmonizationRequest, result *models.PollResult) {
	keymap, keymapMsg := s.loadKeyMap(ctx, req.ProviderName)

	schema := result.LiveDocument(req.TargetSchemaVersion)
	if schema == nil {
		docs, err := s.store.FindSchemaByVersion(ctx, req.TargetSchemaVersion)
		if err != nil {
			s.fail(id, fmt.Sprintf("Failed to load schema %s: %v", req.TargetSchemaVersion, err))
			return
		}
		if len(docs) == 0 {
			s.fail(id, fmt.Sprintf("No data found for %s", req.TargetSchemaVersion))
			return
		}
		schema = docs[0]
	}

	s.update(id, interfaces.EventHarmonizationReady, func(session *models.Session) {
		session.Attempts = result.Attempts
		applyResults(session, schema, keymap, keymapMsg)
		session.Transition(models.SessionReady, msgReady)
	})
}

// loadErrorVariant waits for the engine to finish writing the error document
// and shows it as the editable schema when it exists.
func (s *Service) loadErrorVariant(ctx context.Context, id string, req *models.HarmonizationRequest, result *models.PollResult) {
	keymap, keymapMsg := s.loadKeyMap(ctx, req.ProviderName)

	if s.refetchDelay > 0 {
		timer := time.NewTimer(s.refetchDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	version := models.ErrorVersion(req.TargetSchemaVersion)
	docs, err := s.store.FindSchemaByVersion(ctx, version)
	if err != nil {
		s.fail(id, fmt.Sprintf("Failed to load schema %s: %v", version, err))
		return
	}
	if len(docs) == 0 {
		msg := fmt.Sprintf("No data found for %s", version)
		if result.Outcome == models.PollFailed {
			msg = msgExecutionFailed + ": " + msg
		}
		s.fail(id, msg)
		return
	}

	s.update(id, interfaces.EventHarmonizationReady, func(session *models.Session) {
		session.Attempts = result.Attempts
		applyResults(session, docs[0], keymap, keymapMsg)
		session.Transition(models.SessionReadyWithError, msgReadyWithError)
	})
}

func applyResults(session *models.Session, schema *models.SchemaDocument, keymap *models.KeyMapDocument, keymapMsg string) {
	info := schema.Info()
	session.DataID = schema.ID
	session.SchemaInfo = &info
	session.Schema = schema.Schema
	session.KeyMapMessage = keymapMsg
	if keymap != nil {
		session.KeyMapID = keymap.ID
		session.KeyMap = keymap.Entries
	}
}

func (s *Service) fail(id, message string) {
	s.update(id, interfaces.EventHarmonizationFailed, func(session *models.Session) {
		session.Transition(models.SessionFailed, message)
	})
}

// update applies fn to a non-terminal session, saves it and publishes event.
// Sessions that already reached a terminal state are left untouched.
func (s *Service) update(id string, event interfaces.EventType, fn func(*models.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", id).Msg("Session update skipped")
		return
	}
	if session.Status.IsTerminal() {
		return
	}

	fn(session)
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		s.logger.Error().Err(err).Str("session_id", id).Msg("Failed to save session")
		return
	}

	if event != "" {
		s.logger.Info().Str("session_id", id).Str("status", string(session.Status)).Msg(session.Message)
		s.publish(event, session)
	}
}

func (s *Service) publish(eventType interfaces.EventType, session *models.Session) {
	if s.events == nil {
		return
	}
	payload := map[string]interface{}{
		"session_id":            session.ID,
		"status":                string(session.Status),
		"message":               session.Message,
		"provider_name":         session.ProviderName,
		"target_schema_version": session.TargetSchemaVersion,
		"attempts":              session.Attempts,
	}
	if err := s.events.Publish(context.Background(), interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}

// Session returns the current state of a session
func (s *Service) Session(ctx context.Context, id string) (*models.Session, error) {
	return s.sessions.GetSession(ctx, id)
}

// Sessions returns the most recently updated sessions
func (s *Service) Sessions(ctx context.Context, limit int) ([]*models.Session, error) {
	return s.sessions.ListSessions(ctx, limit)
}

// Cancel stops the background task of a session that is still in flight.
// A session that already finished is returned unchanged.
func (s *Service) Cancel(ctx context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return session, nil
	}

	if cancel, ok := s.cancel[id]; ok {
		cancel()
		delete(s.cancel, id)
	}

	session.Transition(models.SessionCancelled, msgCancelled)
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info().Str("session_id", id).Msg("Harmonization cancelled")
	s.publish(interfaces.EventHarmonizationCancelled, session)
	return session, nil
}

// SchemaVersions lists the known schema versions for the version pickers
func (s *Service) SchemaVersions(ctx context.Context) ([]string, error) {
	return s.store.ListSchemaVersions(ctx)
}

// SaveEdits reconciles the operator's edits and, when anything was saved,
// runs the final workflow with the session's uploaded input.
func (s *Service) SaveEdits(ctx context.Context, id string, edits Edits) (*SaveResult, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.Status.IsEditable() {
		return nil, ErrNotEditable
	}

	entries := models.NormalizeEntries(edits.KeyMap)
	recon := s.reconciler.Reconcile(ctx, ReconcileInput{
		DataID:     session.DataID,
		KeyMapID:   session.KeyMapID,
		Provider:   session.ProviderName,
		SchemaRows: edits.Schema,
		KeyMap:     entries,
	})

	result := &SaveResult{ReconcileResult: recon}
	if !recon.Saved {
		return result, nil
	}

	session.Schema = recon.Fields
	session.KeyMap = entries
	session.Message = msgEditsSaved
	session.UpdatedAt = time.Now()
	s.publish(interfaces.EventEditsSaved, session)

	if len(session.InputPayload) == 0 {
		result.Warning = msgInputNotJSON
	} else {
		final := s.reconciler.RunFinal(ctx, session.DataID, session.ProviderName, session.InputPayload)
		session.Final = final
		result.Final = final

		if final.Success {
			preview, err := models.NewTablePreview(final.Data)
			if err != nil {
				result.Warning = msgUnrecognizedData
			} else {
				result.Preview = preview
			}
		} else {
			session.Message = msgExecutionFailed + ": " + final.Error
		}
		s.publish(interfaces.EventFinalWorkflowCompleted, session)
	}

	s.mu.Lock()
	err = s.sessions.SaveSession(ctx, session)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return result, nil
}

// Download returns the attachment name and pretty-printed harmonized output
func (s *Service) Download(ctx context.Context, id string) (string, []byte, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if session.Final == nil || !session.Final.Success {
		return "", nil, ErrNoOutput
	}

	body, err := session.Final.Download()
	if err != nil {
		return "", nil, err
	}
	return session.Final.FileName, body, nil
}

// Close cancels every in-flight session task, waits for them to return and
// marks their sessions failed so they do not read as polling after a restart.
func (s *Service) Close() error {
	s.mu.Lock()
	inFlight := make([]string, 0, len(s.cancel))
	for id := range s.cancel {
		inFlight = append(inFlight, id)
	}
	s.mu.Unlock()

	s.stop()
	s.wg.Wait()

	for _, id := range inFlight {
		s.fail(id, msgServerStopped)
	}
	return nil
}

// FailInterrupted marks stored sessions left dispatched or polling by an
// earlier process as failed. It runs before any new session is submitted.
func (s *Service) FailInterrupted(ctx context.Context) (int, error) {
	sessions, err := s.sessions.ListSessions(ctx, 0)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, session := range sessions {
		if session.Status.IsTerminal() {
			continue
		}
		s.fail(session.ID, msgServerStopped)
		count++
	}
	if count > 0 {
		s.logger.Warn().Int("sessions", count).Msg("Marked interrupted sessions as failed")
	}
	return count, nil
}
