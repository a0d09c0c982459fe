package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"wa-bot/internal/domain"
)

const (
	topicGift domain.Topic = "gift"
	topicNote domain.Topic = "note"
)

type fakeChecker struct {
	taken map[string]bool
	err   error
	calls []string
}

func (f *fakeChecker) ExistsByName(_ context.Context, name string) (bool, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return false, f.err
	}
	return f.taken[name], nil
}

type fakeSink struct {
	records []domain.Record
	users   []string
	err     error
}

func (f *fakeSink) complete(_ context.Context, userID string, rec domain.Record) (string, error) {
	f.records = append(f.records, rec)
	f.users = append(f.users, userID)
	if f.err != nil {
		return "", f.err
	}
	return Render("✅ Added {name} for {price}", rec), nil
}

type failingStore struct {
	*MemoryStore
	getErr error
	putErr error
	delErr error
}

func (f *failingStore) Get(ctx context.Context, userID string, topic domain.Topic) (domain.ConversationState, bool, error) {
	if f.getErr != nil {
		return domain.ConversationState{}, false, f.getErr
	}
	return f.MemoryStore.Get(ctx, userID, topic)
}

func (f *failingStore) Put(ctx context.Context, st domain.ConversationState) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryStore.Put(ctx, st)
}

func (f *failingStore) Delete(ctx context.Context, userID string, topic domain.Topic) error {
	if f.delErr != nil {
		return f.delErr
	}
	return f.MemoryStore.Delete(ctx, userID, topic)
}

func giftSpec(checker ExistenceChecker, sink *fakeSink) Spec {
	return Spec{
		Topic:     topicGift,
		Cancelled: "❌ Gift cancelled.",
		Complete:  sink.complete,
		Steps: []Step{
			{Field: "name", Prompt: "Gift name?", Validate: Unique(checker, "❌ {value} already exists.", Text("❌ Name is required."))},
			{Field: "price", Prompt: "Price for {name}?", Validate: Amount("❌ Invalid price.")},
			{Field: "url", Prompt: "URL? (or skip)", Optional: true},
		},
	}
}

func noteSpec(sink *fakeSink) Spec {
	return Spec{
		Topic:     topicNote,
		Cancelled: "❌ Note cancelled.",
		Complete:  sink.complete,
		Steps: []Step{
			{Field: "category", Prompt: "Pick one of:\n{categories}", Validate: OneOf("categories", "❌ Unknown category.")},
		},
	}
}

type harness struct {
	engine  *Engine
	store   *MemoryStore
	checker *fakeChecker
	sink    *fakeSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   NewMemoryStore(),
		checker: &fakeChecker{taken: map[string]bool{}},
		sink:    &fakeSink{},
	}
	e, err := New(h.store, giftSpec(h.checker, h.sink), noteSpec(h.sink))
	require.NoError(t, err)
	h.engine = e
	return h
}

func (h *harness) advance(t *testing.T, topic domain.Topic, user, text string) Reply {
	t.Helper()
	r, err := h.engine.Advance(context.Background(), topic, user, text)
	require.NoError(t, err)
	return r
}

func (h *harness) state(t *testing.T, topic domain.Topic, user string) domain.ConversationState {
	t.Helper()
	st, ok, err := h.store.Get(context.Background(), user, topic)
	require.NoError(t, err)
	require.True(t, ok)
	return st
}

func expectEngineError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var engineErr *Error
	require.ErrorAs(t, err, &engineErr)
	require.Equal(t, code, engineErr.Code)
	require.Equal(t, reason, engineErr.Reason)
}

func TestNew_ValidatesSpecs(t *testing.T) {
	sink := &fakeSink{}
	_, err := New(nil, noteSpec(sink))
	require.Error(t, err)

	_, err = New(NewMemoryStore(), Spec{Topic: "x", Complete: sink.complete})
	require.ErrorContains(t, err, "no steps")

	_, err = New(NewMemoryStore(), Spec{Topic: "x", Steps: []Step{{Field: "a", Validate: Text("")}}})
	require.ErrorContains(t, err, "terminal action")

	_, err = New(NewMemoryStore(), Spec{Topic: "x", Complete: sink.complete, Steps: []Step{{Field: "a"}}})
	require.ErrorContains(t, err, "no validator")

	_, err = New(NewMemoryStore(), Spec{Topic: "x", Complete: sink.complete, Steps: []Step{
		{Field: "a", Optional: true}, {Field: "a", Optional: true},
	}})
	require.ErrorContains(t, err, "repeats field")

	_, err = New(NewMemoryStore(), noteSpec(sink), noteSpec(sink))
	require.ErrorContains(t, err, "duplicate")
}

func TestStart_ReturnsFirstPromptAndCreatesState(t *testing.T) {
	h := newHarness(t)
	prompt, err := h.engine.Start(context.Background(), topicGift, "u1")
	require.NoError(t, err)
	require.Equal(t, "Gift name?", prompt)

	active, err := h.engine.HasActive(context.Background(), topicGift, "u1")
	require.NoError(t, err)
	require.True(t, active)

	active, err = h.engine.HasActive(context.Background(), topicNote, "u1")
	require.NoError(t, err)
	require.False(t, active)
}

func TestStart_OverwritesExistingConversation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.Start(ctx, topicGift, "u1")
	require.NoError(t, err)
	h.advance(t, topicGift, "u1", "Lamp")
	require.Equal(t, 1, h.state(t, topicGift, "u1").Step)

	_, err = h.engine.Start(ctx, topicGift, "u1")
	require.NoError(t, err)
	st := h.state(t, topicGift, "u1")
	require.Equal(t, 0, st.Step)
	require.Empty(t, st.Record)
}

func TestStart_SeedFeedsPromptWithoutAdvancing(t *testing.T) {
	h := newHarness(t)
	prompt, err := h.engine.Start(context.Background(), topicNote, "u1",
		domain.Field{Name: "categories", Value: "Food\nTransport"})
	require.NoError(t, err)
	require.Equal(t, "Pick one of:\nFood\nTransport", prompt)
	require.Equal(t, 0, h.state(t, topicNote, "u1").Step)
}

func TestStart_UnknownTopic(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Start(context.Background(), "nope", "u1")
	expectEngineError(t, err, ErrorCallerMisuse, "unknown_topic")
}

func TestCancel_ImmediatelyAfterStart(t *testing.T) {
	for _, topic := range []domain.Topic{topicGift, topicNote} {
		h := newHarness(t)
		_, err := h.engine.Start(context.Background(), topic, "u1")
		require.NoError(t, err)

		r := h.advance(t, topic, "u1", CancelKeyword)
		require.Equal(t, OutcomeCancelled, r.Outcome)
		require.Contains(t, r.Text, "cancelled")
		require.Zero(t, h.store.Len(topic))
		require.Empty(t, h.sink.records)
	}
}

func TestCancel_MidConversation(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Start(context.Background(), topicGift, "u1")
	require.NoError(t, err)
	h.advance(t, topicGift, "u1", "Game Console")

	r := h.advance(t, topicGift, "u1", "cancel")
	require.Equal(t, "❌ Gift cancelled.", r.Text)
	require.Zero(t, h.store.Len(topicGift))
}

func TestCancel_IsCaseSensitiveLiteral(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Start(context.Background(), topicGift, "u1")
	require.NoError(t, err)

	r := h.advance(t, topicGift, "u1", "Cancel")
	require.Equal(t, OutcomePrompted, r.Outcome)
	require.Equal(t, "Cancel", h.state(t, topicGift, "u1").Record.Value("name"))
}

func TestAdvance_FullConversationCallsSinkOnce(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Start(context.Background(), topicGift, "u1")
	require.NoError(t, err)

	r := h.advance(t, topicGift, "u1", "Sony Headphones")
	require.Equal(t, OutcomePrompted, r.Outcome)
	require.Equal(t, "Price for Sony Headphones?", r.Text)

	r = h.advance(t, topicGift, "u1", "1500k")
	require.Equal(t, "URL? (or skip)", r.Text)

	r = h.advance(t, topicGift, "u1", "https://example.com/headphones")
	require.Equal(t, OutcomeCompleted, r.Outcome)
	require.Equal(t, "✅ Added Sony Headphones for 1500000", r.Text)

	require.Len(t, h.sink.records, 1)
	require.Equal(t, []string{"u1"}, h.sink.users)
	require.Equal(t, domain.Record{
		{Name: "name", Value: "Sony Headphones"},
		{Name: "price", Value: "1500000"},
		{Name: "url", Value: "https://example.com/headphones"},
	}, h.sink.records[0])
	require.Zero(t, h.store.Len(topicGift))
}

func TestAdvance_InvalidAmountIsIdempotentRejection(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Start(context.Background(), topicGift, "u1")
	require.NoError(t, err)
	h.advance(t, topicGift, "u1", "Watch")
	before := h.state(t, topicGift, "u1")

	var first Reply
	for i := 0; i < 3; i++ {
		r := h.advance(t, topicGift, "u1", "invalid_price")
		require.Equal(t, OutcomeRejected, r.Outcome)
		require.Equal(t, "❌ Invalid price.\n\nPrice for Watch?", r.Text)
		if i == 0 {
			first = r
		}
		require.Equal(t, first, r)
		require.Equal(t, before, h.state(t, topicGift, "u1"))
	}
}

func TestAdvance_DuplicateNameRejectedWithSingleCheck(t *testing.T) {
	h := newHarness(t)
	h.checker.taken["MacBook Pro"] = true
	_, err := h.engine.Start(context.Background(), topicGift, "u1")
	require.NoError(t, err)

	r := h.advance(t, topicGift, "u1", "MacBook Pro")
	require.Equal(t, OutcomeRejected, r.Outcome)
	require.Equal(t, "❌ MacBook Pro already exists.\n\nGift name?", r.Text)
	require.Equal(t, []string{"MacBook Pro"}, h.checker.calls)

	st := h.state(t, topicGift, "u1")
	require.Equal(t, 0, st.Step)
	_, ok := st.Record.Get("name")
	require.False(t, ok)

	r = h.advance(t, topicGift, "u1", "MacBook Air")
	require.Equal(t, OutcomePrompted, r.Outcome)
	require.Equal(t, []string{"MacBook Pro", "MacBook Air"}, h.checker.calls)
}

func TestAdvance_BlankNameDoesNotReachChecker(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Start(context.Background(), topicGift, "u1")
	require.NoError(t, err)

	r := h.advance(t, topicGift, "u1", "   ")
	require.Equal(t, OutcomeRejected, r.Outcome)
	require.Empty(t, h.checker.calls)
}

func TestAdvance_UniquenessCheckFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	h.checker.err = errors.New("notion down")
	_, err := h.engine.Start(context.Background(), topicGift, "u1")
	require.NoError(t, err)

	_, err = h.engine.Advance(context.Background(), topicGift, "u1", "Lamp")
	expectEngineError(t, err, ErrorCollaborator, "validator_error")
	require.ErrorContains(t, err, "notion down")
	require.Equal(t, 0, h.state(t, topicGift, "u1").Step)

	h.checker.err = nil
	r := h.advance(t, topicGift, "u1", "Lamp")
	require.Equal(t, OutcomePrompted, r.Outcome)
}

func TestAdvance_SkipStoredLiterally(t *testing.T) {
	for _, skip := range []string{"skip", "SKIP", "Skip"} {
		h := newHarness(t)
		_, err := h.engine.Start(context.Background(), topicGift, "u1")
		require.NoError(t, err)
		h.advance(t, topicGift, "u1", "Monitor")
		h.advance(t, topicGift, "u1", "3000k")

		r := h.advance(t, topicGift, "u1", skip)
		require.Equal(t, OutcomeCompleted, r.Outcome)
		url, ok := h.sink.records[0].Get("url")
		require.True(t, ok, "skip must be stored, not omitted")
		require.Equal(t, skip, url)
		require.True(t, domain.IsSkip(url))
	}
}

func TestAdvance_OptionalFieldIsNotCoerced(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Start(context.Background(), topicGift, "u1")
	require.NoError(t, err)
	h.advance(t, topicGift, "u1", "Monitor")
	h.advance(t, topicGift, "u1", "3000k")
	h.advance(t, topicGift, "u1", "500k")
	require.Equal(t, "500k", h.sink.records[0].Value("url"))
}

// A failing sink still tears the conversation down: the entered data is lost
// and the user has to start again.
func TestAdvance_SinkFailureDiscardsState(t *testing.T) {
	h := newHarness(t)
	h.sink.err = errors.New("notion 502")
	_, err := h.engine.Start(context.Background(), topicGift, "u1")
	require.NoError(t, err)
	h.advance(t, topicGift, "u1", "Desk")
	h.advance(t, topicGift, "u1", "2k")

	_, err = h.engine.Advance(context.Background(), topicGift, "u1", "skip")
	expectEngineError(t, err, ErrorCollaborator, "terminal_action_error")
	require.Len(t, h.sink.records, 1)
	require.Zero(t, h.store.Len(topicGift))

	active, err := h.engine.HasActive(context.Background(), topicGift, "u1")
	require.NoError(t, err)
	require.False(t, active)
}

func TestAdvance_WithoutConversationIsCallerMisuse(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Advance(context.Background(), topicGift, "ghost", "hello")
	expectEngineError(t, err, ErrorCallerMisuse, "no_active_conversation")

	_, err = h.engine.Advance(context.Background(), "nope", "ghost", "hello")
	expectEngineError(t, err, ErrorCallerMisuse, "unknown_topic")
}

func TestAdvance_OneOfCapitalizesAndRejectsUnknown(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Start(context.Background(), topicNote, "u1",
		domain.Field{Name: "categories", Value: "Food\nTransport"})
	require.NoError(t, err)

	r := h.advance(t, topicNote, "u1", "rent")
	require.Equal(t, OutcomeRejected, r.Outcome)
	require.Equal(t, "❌ Unknown category.\n\nPick one of:\nFood\nTransport", r.Text)

	r = h.advance(t, topicNote, "u1", "food ")
	require.Equal(t, OutcomeCompleted, r.Outcome)
	require.Equal(t, "Food", h.sink.records[0].Value("category"))
}

func TestAdvance_UsersAreIndependent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.Start(ctx, topicGift, "u1")
	require.NoError(t, err)
	h.advance(t, topicGift, "u1", "Item1")

	_, err = h.engine.Start(ctx, topicGift, "u2")
	require.NoError(t, err)
	h.advance(t, topicGift, "u2", "Item2")
	h.advance(t, topicGift, "u2", "10k")

	s1 := h.state(t, topicGift, "u1")
	s2 := h.state(t, topicGift, "u2")
	require.Equal(t, "Item1", s1.Record.Value("name"))
	require.Equal(t, 1, s1.Step)
	require.Equal(t, "Item2", s2.Record.Value("name"))
	require.Equal(t, 2, s2.Step)

	h.advance(t, topicGift, "u1", "cancel")
	require.Equal(t, s2, h.state(t, topicGift, "u2"))
}

func TestAdvance_StoreFailures(t *testing.T) {
	mem := NewMemoryStore()
	store := &failingStore{MemoryStore: mem}
	sink := &fakeSink{}
	e, err := New(store, giftSpec(&fakeChecker{}, sink))
	require.NoError(t, err)
	ctx := context.Background()

	store.putErr = errors.New("throttled")
	_, err = e.Start(ctx, topicGift, "u1")
	expectEngineError(t, err, ErrorCollaborator, "session_write_error")

	store.putErr = nil
	_, err = e.Start(ctx, topicGift, "u1")
	require.NoError(t, err)

	store.getErr = errors.New("timeout")
	_, err = e.Advance(ctx, topicGift, "u1", "Lamp")
	expectEngineError(t, err, ErrorCollaborator, "session_read_error")
	_, err = e.HasActive(ctx, topicGift, "u1")
	expectEngineError(t, err, ErrorCollaborator, "session_read_error")

	store.getErr = nil
	store.delErr = errors.New("conditional check failed")
	_, err = e.Advance(ctx, topicGift, "u1", "cancel")
	expectEngineError(t, err, ErrorCollaborator, "session_delete_error")
}

func TestCapitalize(t *testing.T) {
	require.Equal(t, "Food", Capitalize("food"))
	require.Equal(t, "Food court", Capitalize(" food court "))
	require.Equal(t, "ÉCole", Capitalize("éCole"))
	require.Equal(t, "", Capitalize(""))
}

func TestRender(t *testing.T) {
	rec := domain.Record{{Name: "name", Value: "Lamp"}, {Name: "price", Value: "2000"}}
	require.Equal(t, "Lamp costs 2000", Render("{name} costs {price}", rec))
	require.Equal(t, "no placeholders", Render("no placeholders", rec))
	require.Equal(t, "{missing}", Render("{missing}", rec))
}
