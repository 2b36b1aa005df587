package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/examforge/examforge/internal/model"
)

// Evaluator judges a confirmed answer. It receives the question's original
// generator payload verbatim together with the chosen option text.
type Evaluator interface {
	VerifyAnswer(ctx context.Context, question json.RawMessage, chosen string) (model.Verdict, error)
}

// Substituter replaces a single question. It receives the entire current
// set keyed by position plus the key of the slot to replace, and returns
// the replacement payload for that slot.
type Substituter interface {
	SubstituteQuestion(ctx context.Context, set map[string]json.RawMessage, positionKey, topic string) (json.RawMessage, error)
}

// Summarizer produces the optional narrative feedback at session end. A
// failure never blocks completion; the summary degrades to a placeholder.
type Summarizer interface {
	FinalFeedback(ctx context.Context, summary model.Summary) (string, error)
}

// Collaborators bundles the external services the controller coordinates
// with. All three are network-bound and invoked outside the state lock.
type Collaborators struct {
	Evaluator   Evaluator
	Substituter Substituter
	Summarizer  Summarizer
}

const feedbackPlaceholder = "Final feedback is unavailable for this session."

// View is the snapshot of session state exposed to presentation code.
type View struct {
	ID        string              `json:"id"`
	Topic     string              `json:"topic"`
	Status    model.SessionStatus `json:"status"`
	Position  int                 `json:"position"`
	Total     int                 `json:"total_questions"`
	Question  *model.Question     `json:"question,omitempty"`
	Entry     model.LedgerEntry   `json:"entry"`
	Remaining int                 `json:"remaining_seconds"`
	Expired   bool                `json:"expired"`
}

// Controller is the state machine of one assessment session. It exclusively
// owns the question set, the ledger and the timer; presentation code only
// interacts through its methods. All state mutations happen under one lock,
// while collaborator calls run outside it with an in-flight guard so the
// timer keeps ticking and navigation stays possible.
type Controller struct {
	id   string
	cfg  model.SessionConfig
	coll Collaborators

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	status        model.SessionStatus
	set           *QuestionSet
	ledger        *Ledger
	timer         *Timer
	pos           int
	startedAt     time.Time
	inflight      bool
	pendingExpiry bool
	expired       bool
	finalized     bool
	closed        bool
	summary       *model.Summary

	done chan struct{}
}

// New creates a session over an already-generated question set. Malformed
// entries are filtered during ingestion; if nothing usable remains the
// session is terminal from the start (status empty). Otherwise the
// countdown starts immediately.
func New(id string, cfg model.SessionConfig, raw []json.RawMessage, coll Collaborators) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:     id,
		cfg:    cfg,
		coll:   coll,
		ctx:    ctx,
		cancel: cancel,
		status: model.StatusLoading,
		ledger: NewLedger(),
		done:   make(chan struct{}),
	}

	c.set = NewQuestionSet(raw)
	if c.set.Len() == 0 {
		c.status = model.StatusEmpty
		slog.Warn("session has no usable questions", "session_id", id, "topic", cfg.Topic)
		return c
	}

	c.status = model.StatusActive
	c.startedAt = time.Now()
	c.timer = NewTimer(cfg.TimeLimitSecs, c.onExpire)
	slog.Info("session started",
		"session_id", id,
		"topic", cfg.Topic,
		"questions", c.set.Len(),
		"time_limit", cfg.TimeLimitSecs)
	return c
}

// ID returns the session identity.
func (c *Controller) ID() string { return c.id }

// Config returns the immutable session parameters.
func (c *Controller) Config() model.SessionConfig { return c.cfg }

// Done is closed when the session reaches its completed summary.
func (c *Controller) Done() <-chan struct{} { return c.done }

// View returns a snapshot of the current session state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		ID:       c.id,
		Topic:    c.cfg.Topic,
		Status:   c.status,
		Position: c.pos,
		Total:    c.set.Len(),
		Expired:  c.expired,
	}
	if c.timer != nil {
		v.Remaining = c.timer.Remaining()
	}
	if q, ok := c.set.ByPosition(c.pos); ok {
		v.Question = displayQuestion(q)
		v.Entry = c.ledger.Entry(q.ID)
	}
	return v
}

// displayQuestion strips the answer key from a question before it goes out
// on the live view. The full record only leaves the engine in the
// post-completion review payload.
func displayQuestion(q model.Question) *model.Question {
	q.CorrectOption = ""
	q.Explanation = ""
	for i := range q.Options {
		q.Options[i].Correct = false
	}
	return &q
}

// Select records the chosen option for the current question. No network
// call; the choice may be changed freely before confirmation.
func (c *Controller) Select(option string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpenLocked(); err != nil {
		return err
	}
	if c.status != model.StatusActive {
		return ErrInvalidStatus
	}
	q, ok := c.set.ByPosition(c.pos)
	if !ok {
		return ErrInvalidStatus
	}
	c.ledger.Select(q.ID, option)
	return nil
}

// Confirm submits the currently selected option to the evaluator and
// records the verdict. Without a selection it fails with ErrNoSelection and
// the session stays active; the evaluator is never invoked in that case.
func (c *Controller) Confirm(ctx context.Context) (model.Verdict, error) {
	c.mu.Lock()
	if err := c.checkOpenLocked(); err != nil {
		c.mu.Unlock()
		return model.Verdict{}, err
	}
	if c.status != model.StatusActive {
		c.mu.Unlock()
		return model.Verdict{}, ErrInvalidStatus
	}
	if c.inflight {
		c.mu.Unlock()
		return model.Verdict{}, ErrBusy
	}
	q, ok := c.set.ByPosition(c.pos)
	if !ok {
		c.mu.Unlock()
		return model.Verdict{}, ErrInvalidStatus
	}
	if c.ledger.Verdict(q.ID) != nil {
		c.mu.Unlock()
		return model.Verdict{}, ErrAlreadyConfirmed
	}
	chosen, ok := c.ledger.Chosen(q.ID)
	if !ok || chosen == "" {
		c.mu.Unlock()
		return model.Verdict{}, ErrNoSelection
	}
	pos := c.pos
	c.inflight = true
	c.mu.Unlock()

	verdict, err := c.coll.Evaluator.VerifyAnswer(ctx, q.Raw, chosen)

	c.mu.Lock()
	c.inflight = false
	if c.closed {
		c.mu.Unlock()
		return model.Verdict{}, ErrClosed
	}
	if err != nil {
		// Transition aborted, state unchanged; retries are user-initiated.
		c.resolveDeferredExpiryLocked()
		return model.Verdict{}, fmt.Errorf("verify answer: %w", err)
	}

	verdict.ChosenOption = chosen
	verdict.ConfirmedAt = time.Now()
	c.ledger.Record(q.ID, verdict)
	// Only the position that was confirmed may enter the confirmed status;
	// the user may have navigated back while the evaluator was out.
	if c.status == model.StatusActive && !c.expired && c.pos == pos {
		c.status = model.StatusConfirmed
	}
	c.resolveDeferredExpiryLocked()
	return verdict, nil
}

// Advance moves to the next question after confirmation, or triggers
// submission when the current question is the last one.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkOpenLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.status != model.StatusConfirmed {
		c.mu.Unlock()
		return ErrInvalidStatus
	}
	if c.pos+1 < c.set.Len() {
		c.pos++
		c.status = model.StatusActive
		c.mu.Unlock()
		return nil
	}
	return c.finalize(ctx, false)
}

// Back returns to the previous question. The stored verdict for that
// question, if any, stays in the ledger and is surfaced in the view; the
// session re-enters active regardless.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpenLocked(); err != nil {
		return err
	}
	if c.status != model.StatusActive && c.status != model.StatusConfirmed {
		return ErrInvalidStatus
	}
	if c.pos > 0 {
		c.pos--
	}
	c.status = model.StatusActive
	return nil
}

// Regenerate replaces the current question with a freshly generated one,
// preserving its identity and clearing its ledger entry. On failure the
// prior state is restored unchanged. It is rejected while a confirm or
// another regenerate is in flight.
func (c *Controller) Regenerate(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkOpenLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.status != model.StatusActive && c.status != model.StatusConfirmed {
		c.mu.Unlock()
		return ErrInvalidStatus
	}
	if c.inflight {
		c.mu.Unlock()
		return ErrBusy
	}
	prior := c.status
	pos := c.pos
	rawSet := c.set.RawSet()
	c.status = model.StatusRegenerating
	c.inflight = true
	c.mu.Unlock()

	replacement, err := c.coll.Substituter.SubstituteQuestion(ctx, rawSet, strconv.Itoa(pos), c.cfg.Topic)

	c.mu.Lock()
	c.inflight = false
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err == nil {
		if q, ok := c.set.ByPosition(pos); ok {
			if replaceErr := c.set.Replace(pos, replacement); replaceErr != nil {
				err = fmt.Errorf("replacement payload: %w", replaceErr)
			} else {
				c.ledger.Delete(q.ID)
			}
		}
	}
	if err != nil {
		c.status = prior
		c.resolveDeferredExpiryLocked()
		return fmt.Errorf("substitute question: %w", err)
	}

	c.status = model.StatusActive
	if c.expired {
		c.resolveDeferredExpiryLocked()
		return nil
	}
	c.mu.Unlock()
	slog.Info("question regenerated", "session_id", c.id, "position", pos)
	return nil
}

// ForceSubmit ends the session voluntarily, scoring unconfirmed questions
// as wrong.
func (c *Controller) ForceSubmit(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkOpenLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.inflight {
		c.mu.Unlock()
		return ErrBusy
	}
	return c.finalize(ctx, false)
}

// Results returns the completed session's summary.
func (c *Controller) Results() (model.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == model.StatusEmpty {
		return model.Summary{}, ErrEmptySet
	}
	if c.summary == nil || c.status != model.StatusCompleted {
		return model.Summary{}, ErrNotCompleted
	}
	return *c.summary, nil
}

// Close abandons the session. In-flight collaborator results are discarded
// and the timer is released. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()
	c.cancel()
	slog.Info("session closed", "session_id", c.id)
}

// onExpire handles the timer's expiry signal. Duplicate delivery is a
// no-op, and expiry while a confirm or regenerate is outstanding defers
// finalization until that call resolves so the ledger is never torn.
func (c *Controller) onExpire() {
	c.mu.Lock()
	if c.closed || c.finalized || c.status.Terminal() || c.status == model.StatusFinalizing {
		c.mu.Unlock()
		return
	}
	c.expired = true
	if c.inflight {
		c.pendingExpiry = true
		c.mu.Unlock()
		slog.Info("time expired with call in flight, finalize deferred", "session_id", c.id)
		return
	}
	slog.Info("time expired, forcing submission", "session_id", c.id)
	_ = c.finalize(c.ctx, true)
}

// resolveDeferredExpiryLocked runs the deferred forced submission after an
// in-flight call resolved. The lock is released in every path.
func (c *Controller) resolveDeferredExpiryLocked() {
	if c.pendingExpiry && !c.finalized {
		c.pendingExpiry = false
		_ = c.finalize(c.ctx, true)
		return
	}
	c.mu.Unlock()
}

// finalize computes the score summary and invokes the summarizer exactly
// once. The caller must hold the lock; it is released before the
// summarizer call. Completion is reached whether or not the summarizer
// succeeds.
func (c *Controller) finalize(ctx context.Context, expired bool) error {
	if c.finalized {
		c.mu.Unlock()
		return ErrInvalidStatus
	}
	c.finalized = true
	if expired {
		c.expired = true
	}
	c.status = model.StatusFinalizing
	if c.timer != nil {
		c.timer.Stop()
	}
	summary := Project(c.id, c.cfg, c.set.Questions(), c.ledger)
	summary.Expired = c.expired
	c.mu.Unlock()

	feedback, err := c.coll.Summarizer.FinalFeedback(ctx, summary)
	if err != nil {
		slog.Warn("final feedback unavailable", "session_id", c.id, "error", err)
		feedback = feedbackPlaceholder
	}
	summary.Feedback = feedback

	c.mu.Lock()
	c.summary = &summary
	c.status = model.StatusCompleted
	c.mu.Unlock()
	close(c.done)

	slog.Info("session completed",
		"session_id", c.id,
		"score", summary.Score,
		"correct", summary.Correct,
		"wrong", summary.Wrong,
		"expired", summary.Expired)
	return nil
}

func (c *Controller) checkOpenLocked() error {
	if c.closed {
		return ErrClosed
	}
	switch c.status {
	case model.StatusEmpty:
		return ErrEmptySet
	case model.StatusCompleted:
		return ErrCompleted
	case model.StatusFinalizing:
		return ErrInvalidStatus
	}
	return nil
}
