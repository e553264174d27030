package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/observe"
	"github.com/spigell/interview-coach/internal/transcript"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// QuestionSource lists the interview questions in the order they are asked.
type QuestionSource interface {
	Questions(ctx context.Context) ([]transcript.Question, error)
}

// TranscriptStore persists a finished interview.
type TranscriptStore interface {
	Save(ctx context.Context, submission transcript.Submission) (*transcript.Transcript, error)
}

// Frame is one update of a dialogue line. System lines arrive as a series of
// growing prefixes, the last one with Done set. Respondent lines arrive whole.
type Frame struct {
	Index   int     `json:"index"`
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
	Done    bool    `json:"done"`
}

// Display receives dialogue frames. Show is called from the goroutine driving
// the session and must not block for long.
type Display interface {
	Show(Frame)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(Frame)

func (f DisplayFunc) Show(fr Frame) { f(fr) }

// Timeouts bound the collaborator calls. Zero disables the bound.
type Timeouts struct {
	Questions   time.Duration
	Evaluation  time.Duration
	Persistence time.Duration
}

var DefaultTimeouts = Timeouts{
	Questions:   10 * time.Second,
	Evaluation:  30 * time.Second,
	Persistence: 10 * time.Second,
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithRevealInterval(d time.Duration) Option {
	return func(c *Controller) { c.revealer = NewRevealer(d) }
}

func WithTimeouts(t Timeouts) Option {
	return func(c *Controller) { c.timeouts = t }
}

func WithUserID(id string) Option {
	return func(c *Controller) { c.session.UserID = id }
}

func WithSessionID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.session.ID = id
		}
	}
}

func WithDisplay(d Display) Option {
	return func(c *Controller) {
		if d != nil {
			c.display = d
		}
	}
}

// Controller drives a Session: it feeds events to Reduce and executes the
// returned commands against the collaborators. At most one operation runs at
// a time; concurrent submissions are refused with ErrBusy.
type Controller struct {
	questions QuestionSource
	evaluator ai.Evaluator
	store     TranscriptStore

	display  Display
	revealer *Revealer
	timeouts Timeouts
	logger   *zap.Logger
	metrics  *observe.Metrics

	id  string
	sem *semaphore.Weighted

	mu       sync.Mutex
	session  Session
	inflight context.CancelFunc

	opened    bool
	closeOnce sync.Once
}

func New(questions QuestionSource, evaluator ai.Evaluator, store TranscriptStore, opts ...Option) *Controller {
	c := &Controller{
		questions: questions,
		evaluator: evaluator,
		store:     store,
		display:   DisplayFunc(func(Frame) {}),
		revealer:  NewRevealer(DefaultRevealInterval),
		timeouts:  DefaultTimeouts,
		logger:    zap.NewNop(),
		sem:       semaphore.NewWeighted(1),
		session:   NewSession(uuid.NewString(), ""),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.id = c.session.ID
	c.logger = logger.WithSession(c.logger, c.id)
	return c
}

// Start opens the session: it loads the questions and shows the welcome
// message. It blocks until both are done.
func (c *Controller) Start(ctx context.Context) (Session, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return c.Snapshot(), err
	}
	defer c.sem.Release(1)

	s, err := c.dispatch(ctx, Opened{})
	if err == nil {
		c.mu.Lock()
		c.opened = true
		c.mu.Unlock()
		c.metrics.SessionOpened(ctx)
		c.logger.Info("interview session opened", zap.Int("questions", len(s.Questions)))
	}
	return s, err
}

// Submit hands respondent input to the session and blocks until every
// resulting command, including reveals, has run. Collaborator failures are
// reported in the dialogue, not as errors.
func (c *Controller) Submit(ctx context.Context, text string) (Session, error) {
	if !c.sem.TryAcquire(1) {
		return c.Snapshot(), ErrBusy
	}
	defer c.sem.Release(1)

	return c.dispatch(ctx, Submitted{Text: text})
}

// Cancel aborts the collaborator call in flight and finishes the running
// reveal at once. It is a no-op when nothing is running.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.inflight
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.revealer.Stop()
}

// Close cancels outstanding work. It is safe to call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.Cancel()

		c.mu.Lock()
		opened := c.opened
		s := c.session
		c.mu.Unlock()

		if opened {
			c.metrics.SessionClosed(context.Background())
			c.logger.Info("interview session closed",
				zap.Stringer("phase", s.Phase),
				zap.Int("answered", len(s.Transcript)),
			)
		}
	})
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) dispatch(ctx context.Context, first Event) (Session, error) {
	queue := []Event{first}

	for len(queue) > 0 {
		ev := queue[0]
		queue = queue[1:]

		c.mu.Lock()
		prev := c.session
		next, cmds, err := Reduce(prev, ev)
		if err != nil {
			s := prev.Clone()
			c.mu.Unlock()
			return s, err
		}
		c.session = next
		c.mu.Unlock()

		c.observe(ctx, ev, prev, next)

		for _, cmd := range cmds {
			if res := c.execute(ctx, cmd); res != nil {
				queue = append(queue, res)
			}
		}
	}

	return c.Snapshot(), nil
}

// observe reports transitions worth a log line or a metric.
func (c *Controller) observe(ctx context.Context, ev Event, prev, next Session) {
	if _, ok := ev.(Submitted); ok {
		idx := len(prev.Log)
		if idx < len(next.Log) {
			c.display.Show(Frame{Index: idx, Speaker: SpeakerRespondent, Text: next.Log[idx].Text, Done: true})
		}

		switch {
		case prev.Phase == PhaseCapturingIntro && next.Phase == PhaseCapturingIntro:
			c.metrics.RecordIntroRejected(ctx)
			c.logger.Debug("introduction rejected")
		case prev.Phase == PhaseCapturingIntro && next.Phase == PhaseQuestioning:
			c.logger.Info("respondent introduced", logger.StringFields(
				logger.StringField{Key: logger.FieldCompany, Value: next.RespondentCompany},
			)...)
		}
	}

	if prev.Phase != PhaseComplete && next.Phase == PhaseComplete {
		c.metrics.RecordCompleted(ctx, next.Saved)
		c.logger.Info("interview complete",
			zap.Bool("saved", next.Saved),
			zap.String("transcript_id", next.TranscriptID),
		)
	}
}

func (c *Controller) execute(ctx context.Context, cmd Command) Event {
	switch cmd := cmd.(type) {
	case FetchQuestions:
		return c.fetchQuestions(ctx)
	case Evaluate:
		return c.evaluate(ctx, cmd)
	case Persist:
		return c.persist(ctx, cmd)
	case Reveal:
		c.reveal(ctx, cmd)
		return RevealFinished{}
	default:
		c.logger.Error("unknown command", zap.String("command", fmt.Sprintf("%T", cmd)))
		return nil
	}
}

func (c *Controller) fetchQuestions(ctx context.Context) Event {
	callCtx, done := c.callContext(ctx, c.timeouts.Questions)
	questions, err := c.questions.Questions(callCtx)
	err = joinContextErr(callCtx, err)
	done()

	if err != nil {
		c.logger.Warn("failed to load questions, using default", zap.Error(err))
		return QuestionsFailed{Err: err}
	}

	texts := make([]string, 0, len(questions))
	for _, q := range questions {
		texts = append(texts, q.Text)
	}
	return QuestionsLoaded{Questions: texts}
}

func (c *Controller) evaluate(ctx context.Context, cmd Evaluate) Event {
	callCtx, done := c.callContext(ctx, c.timeouts.Evaluation)
	start := time.Now()
	evaluation, err := c.evaluator.Evaluate(callCtx, cmd.Question, cmd.Answer)
	err = joinContextErr(callCtx, err)
	done()

	c.metrics.RecordEvaluation(ctx, observe.CallStatus(err), time.Since(start))

	if err != nil {
		c.logger.Warn("failed to evaluate answer",
			zap.Int("question_index", cmd.Index),
			zap.Error(err),
		)
		return EvaluationFailed{Index: cmd.Index, Err: err}
	}

	var feedback string
	if evaluation != nil {
		feedback = evaluation.Feedback
	}
	return EvaluationSucceeded{Index: cmd.Index, Feedback: feedback}
}

func (c *Controller) persist(ctx context.Context, cmd Persist) Event {
	callCtx, done := c.callContext(ctx, c.timeouts.Persistence)
	saved, err := c.store.Save(callCtx, cmd.Submission)
	err = joinContextErr(callCtx, err)
	done()

	c.metrics.RecordPersistence(ctx, observe.CallStatus(err))

	if err != nil {
		c.logger.Warn("failed to save transcript", zap.Error(err))
		return PersistenceFailed{Err: err}
	}

	var id string
	if saved != nil {
		id = saved.ID
	}
	return PersistenceSucceeded{TranscriptID: id}
}

func (c *Controller) reveal(ctx context.Context, cmd Reveal) {
	<-c.revealer.Start(ctx, cmd.Text, func(partial string, done bool) {
		c.display.Show(Frame{Index: cmd.LogIndex, Speaker: SpeakerSystem, Text: partial, Done: done})
	})
}

// callContext derives the context of one collaborator call and registers its
// cancel func for Cancel. The returned func must be called once the call ends.
func (c *Controller) callContext(ctx context.Context, timeout time.Duration) (context.Context, func()) {
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	c.mu.Lock()
	c.inflight = cancel
	c.mu.Unlock()

	return ctx, func() {
		c.mu.Lock()
		c.inflight = nil
		c.mu.Unlock()
		cancel()
	}
}

// joinContextErr makes sure a failure caused by ctx carries its error, so
// callers can tell timeouts and cancellations apart from other failures.
func joinContextErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	ctxErr := ctx.Err()
	if ctxErr == nil || errors.Is(err, ctxErr) {
		return err
	}
	return fmt.Errorf("%w: %w", err, ctxErr)
}
