// Package conversation drives per-user, per-topic form-filling dialogues: a
// fixed sequence of prompts, each answer validated before the next one is
// asked, and a terminal action run once with the collected record.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wa-bot/internal/domain"
)

// CancelKeyword aborts a conversation at any step when sent verbatim.
const CancelKeyword = "cancel"

// Outcome says what an Advance call did to the conversation.
type Outcome int

const (
	OutcomePrompted Outcome = iota
	OutcomeRejected
	OutcomeCompleted
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomePrompted:
		return "prompted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Reply is the message to send back to the user.
type Reply struct {
	Text    string
	Outcome Outcome
}

// Validator checks raw input for a step and returns the value to store.
// It returns a *Rejection for unacceptable input; any other error is treated
// as a collaborator failure.
type Validator func(ctx context.Context, input string, rec domain.Record) (string, error)

// CompleteFunc receives the finished record and returns the confirmation text.
type CompleteFunc func(ctx context.Context, userID string, rec domain.Record) (string, error)

// Step is one question of a conversation. Prompts may reference record
// values as {field}.
type Step struct {
	Field    string
	Prompt   string
	Optional bool
	Validate Validator
}

// Spec declares a topic: its ordered steps and what happens at the end.
type Spec struct {
	Topic     domain.Topic
	Steps     []Step
	Cancelled string
	Complete  CompleteFunc
}

// Store holds live conversation states, one per (user, topic).
type Store interface {
	Get(ctx context.Context, userID string, topic domain.Topic) (domain.ConversationState, bool, error)
	Put(ctx context.Context, state domain.ConversationState) error
	Delete(ctx context.Context, userID string, topic domain.Topic) error
}

// Engine runs conversations for a fixed set of topic specs.
type Engine struct {
	store Store
	specs map[domain.Topic]Spec
}

// New validates the specs and returns an Engine backed by store.
func New(store Store, specs ...Spec) (*Engine, error) {
	if store == nil {
		return nil, errors.New("conversation: store must not be nil")
	}
	byTopic := make(map[domain.Topic]Spec, len(specs))
	for _, s := range specs {
		if err := s.validate(); err != nil {
			return nil, err
		}
		if _, dup := byTopic[s.Topic]; dup {
			return nil, fmt.Errorf("conversation: duplicate spec for topic %q", s.Topic)
		}
		byTopic[s.Topic] = s
	}
	return &Engine{store: store, specs: byTopic}, nil
}

func (s Spec) validate() error {
	if s.Topic == "" {
		return errors.New("conversation: spec topic must not be empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("conversation: topic %q has no steps", s.Topic)
	}
	if s.Complete == nil {
		return fmt.Errorf("conversation: topic %q has no terminal action", s.Topic)
	}
	seen := make(map[string]bool, len(s.Steps))
	for i, st := range s.Steps {
		if st.Field == "" {
			return fmt.Errorf("conversation: topic %q step %d has no field name", s.Topic, i)
		}
		if seen[st.Field] {
			return fmt.Errorf("conversation: topic %q repeats field %q", s.Topic, st.Field)
		}
		seen[st.Field] = true
		if !st.Optional && st.Validate == nil {
			return fmt.Errorf("conversation: topic %q step %q has no validator", s.Topic, st.Field)
		}
	}
	return nil
}

// HasActive reports whether userID has a conversation in progress on topic.
func (e *Engine) HasActive(ctx context.Context, topic domain.Topic, userID string) (bool, error) {
	if _, ok := e.specs[topic]; !ok {
		return false, newError(ErrorCallerMisuse, "unknown_topic", nil)
	}
	_, found, err := e.store.Get(ctx, userID, topic)
	if err != nil {
		return false, newError(ErrorCollaborator, "session_read_error", err)
	}
	return found, nil
}

// Start begins a fresh conversation, replacing any one already in progress
// for the same user and topic, and returns the first prompt. Seed fields are
// stored in the record up front and can be referenced by prompts and
// validators; they do not count as answered steps.
func (e *Engine) Start(ctx context.Context, topic domain.Topic, userID string, seed ...domain.Field) (string, error) {
	spec, ok := e.specs[topic]
	if !ok {
		return "", newError(ErrorCallerMisuse, "unknown_topic", nil)
	}
	state := domain.ConversationState{
		UserID: userID,
		Topic:  topic,
		Step:   0,
		Record: append(domain.Record(nil), seed...),
	}
	if err := e.store.Put(ctx, state); err != nil {
		return "", newError(ErrorCollaborator, "session_write_error", err)
	}
	return Render(spec.Steps[0].Prompt, state.Record), nil
}

// Advance feeds one message into the user's conversation on topic.
// The caller must check HasActive first.
func (e *Engine) Advance(ctx context.Context, topic domain.Topic, userID, text string) (Reply, error) {
	spec, ok := e.specs[topic]
	if !ok {
		return Reply{}, newError(ErrorCallerMisuse, "unknown_topic", nil)
	}
	state, found, err := e.store.Get(ctx, userID, topic)
	if err != nil {
		return Reply{}, newError(ErrorCollaborator, "session_read_error", err)
	}
	if !found {
		return Reply{}, newError(ErrorCallerMisuse, "no_active_conversation", nil)
	}

	if text == CancelKeyword {
		if err := e.store.Delete(ctx, userID, topic); err != nil {
			return Reply{}, newError(ErrorCollaborator, "session_delete_error", err)
		}
		return Reply{Text: spec.Cancelled, Outcome: OutcomeCancelled}, nil
	}

	if state.Step < 0 || state.Step >= len(spec.Steps) {
		return Reply{}, newError(ErrorCallerMisuse, "step_out_of_range", fmt.Errorf("step %d of %d", state.Step, len(spec.Steps)))
	}
	step := spec.Steps[state.Step]

	value := text
	if !step.Optional {
		value, err = step.Validate(ctx, text, state.Record)
		if err != nil {
			var rej *Rejection
			if errors.As(err, &rej) {
				return Reply{
					Text:    Render(rej.Message, state.Record) + "\n\n" + Render(step.Prompt, state.Record),
					Outcome: OutcomeRejected,
				}, nil
			}
			return Reply{}, newError(ErrorCollaborator, "validator_error", err)
		}
	}

	state.Record = state.Record.Set(step.Field, value)
	state.Step++

	if state.Step < len(spec.Steps) {
		if err := e.store.Put(ctx, state); err != nil {
			return Reply{}, newError(ErrorCollaborator, "session_write_error", err)
		}
		return Reply{Text: Render(spec.Steps[state.Step].Prompt, state.Record), Outcome: OutcomePrompted}, nil
	}

	// The state goes first so the terminal action can run at most once,
	// even when the sink fails.
	if err := e.store.Delete(ctx, userID, topic); err != nil {
		return Reply{}, newError(ErrorCollaborator, "session_delete_error", err)
	}
	msg, err := spec.Complete(ctx, userID, state.Record.Clone())
	if err != nil {
		return Reply{}, newError(ErrorCollaborator, "terminal_action_error", err)
	}
	return Reply{Text: msg, Outcome: OutcomeCompleted}, nil
}

// Render substitutes {field} placeholders with record values.
func Render(tmpl string, rec domain.Record) string {
	if len(rec) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := make([]string, 0, len(rec)*2)
	for _, f := range rec {
		pairs = append(pairs, "{"+f.Name+"}", f.Value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
