package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/internal/testutil"
	"github.com/hupe1980/colloquy/model"
	"github.com/hupe1980/colloquy/session"
)

func testConfig() Config {
	cfg := DefaultConfig
	cfg.IdleShutdown = false
	return cfg
}

func newEngine(r *testutil.Resolver, cfg Config) *Engine {
	return New(r, func(o *Options) { o.Config = cfg })
}

func drain(k *session.Sink) []core.Event {
	var out []core.Event
	for {
		select {
		case ev, ok := <-k.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func runSync(t *testing.T, e *Engine, req *core.Request) (*session.State, []core.Event, error) {
	t.Helper()
	st := session.New("sim", req)
	sink := st.Subscribe()
	err := e.Run(st)
	return st, drain(sink), err
}

func TestRun_TwoActorsOneTurn(t *testing.T) {
	r := testutil.NewResolver().Script("m", "Hello", " world")
	req := testutil.NewRequestBuilder("tea").Agent("Agent A", "m").Agent("Agent B", "m").Build()

	st, events, err := runSync(t, newEngine(r, testConfig()), req)
	require.NoError(t, err)

	msgs, ok := st.Transcript()
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, 1, msgs[0].AgentID)
	assert.Equal(t, "Agent A", msgs[0].Name)
	assert.Equal(t, 2, msgs[1].AgentID)
	assert.Equal(t, "Hello world", msgs[1].Content)
	assert.Equal(t, core.RoleAgent, msgs[1].Role)
	assert.Equal(t, "m", msgs[1].Model)

	assert.Equal(t, []core.Status{core.StatusStarted, core.StatusFinished}, testutil.Statuses(events))
	assert.Len(t, testutil.OfKind(events, core.KindToken), 4)
	assert.Len(t, testutil.Messages(events), 2)

	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
}

func TestRun_CollaborationWithSynthesizer(t *testing.T) {
	r := testutil.NewResolver().
		Script("actor", "idea").
		Script("synth", `{"terminate": false, "message": "summary"}`)
	req := testutil.NewRequestBuilder("launch plan").
		Mode(core.ModeCollaboration).
		Turns(2).
		Agent("Agent A", "actor").
		Agent("Agent B", "actor").
		Synthesizer("synth", 2).
		Build()

	st, events, err := runSync(t, newEngine(r, testConfig()), req)
	require.NoError(t, err)

	msgs, _ := st.Transcript()
	require.Len(t, msgs, 5)
	last := msgs[4]
	assert.Equal(t, core.RoleSynthesizer, last.Role)
	assert.Equal(t, core.SynthesizerID, last.AgentID)
	assert.Contains(t, last.Name, "Synthesizer")
	assert.Equal(t, "summary", last.Content)
	for i, m := range msgs {
		assert.Equal(t, i+1, m.Turn)
	}
	assert.Equal(t, core.StatusFinished, testutil.Statuses(events)[1])
}

func TestRun_ModeratorIgnoredOutsideDebate(t *testing.T) {
	r := testutil.NewResolver().Script("actor", "x").Script("mod", `{"terminate": false, "message": "m"}`)
	req := testutil.NewRequestBuilder("t").Mode(core.ModeCollaboration).Agent("A", "actor").Agent("B", "actor").Moderator("mod", 1).Build()

	st, _, err := runSync(t, newEngine(r, testConfig()), req)
	require.NoError(t, err)
	msgs, _ := st.Transcript()
	assert.Len(t, msgs, 2)
}

func TestRun_ModeratorCadence(t *testing.T) {
	r := testutil.NewResolver().Script("actor", "x").Script("mod", `{"terminate": false, "message": "m"}`)
	req := testutil.NewRequestBuilder("t").Turns(4).Agent("A", "actor").Agent("B", "actor").Moderator("mod", 2).Build()

	st, _, err := runSync(t, newEngine(r, testConfig()), req)
	require.NoError(t, err)

	msgs, _ := st.Transcript()
	var roles []core.Role
	for _, m := range msgs {
		roles = append(roles, m.Role)
	}
	a, m := core.RoleAgent, core.RoleModerator
	// Actor turns 4 (multiple of 2×2) and 8 (final call).
	assert.Equal(t, []core.Role{a, a, a, a, m, a, a, a, a, m}, roles)
}

func TestRun_FacilitatorTerminatesEarly(t *testing.T) {
	mod := model.NewMockModel("mod", "test", func(o *model.MockOptions) {
		o.Tokens = []string{"```json\n", `{"terminate": true, "message": "Moderator: done"}`, "\n```"}
	})
	r := testutil.NewResolver().Script("actor", "x").With("mod", mod)
	req := testutil.NewRequestBuilder("t").Turns(3).Agent("A", "actor").Agent("B", "actor").Moderator("mod", 1).Build()

	st, events, err := runSync(t, newEngine(r, testConfig()), req)
	require.NoError(t, err)

	msgs, _ := st.Transcript()
	require.Len(t, msgs, 3)
	assert.Equal(t, "done", msgs[2].Content)
	assert.Equal(t, core.ModeratorID, msgs[2].AgentID)
	assert.Equal(t, []core.Status{core.StatusStarted, core.StatusFinished}, testutil.Statuses(events))

	req0 := mod.Requests()[0]
	assert.Contains(t, req0.System(), "Output MUST be valid JSON")
	assert.Contains(t, req0.System(), "conclude early")
}

func TestRun_FinalCallContract(t *testing.T) {
	mod := model.NewMockModel("mod", "test", func(o *model.MockOptions) {
		o.Tokens = []string{`{"terminate": true, "message": "wrap"}`}
	})
	r := testutil.NewResolver().Script("actor", "x").With("mod", mod)
	req := testutil.NewRequestBuilder("t").Agent("A", "actor").Agent("B", "actor").Moderator("mod", 5).Build()

	_, _, err := runSync(t, newEngine(r, testConfig()), req)
	require.NoError(t, err)
	require.Len(t, mod.Requests(), 1)
	assert.Contains(t, mod.Requests()[0].System(), "You must provide the synthesis/summary now.")
}

func TestRun_BudgetAndContiguousTurns(t *testing.T) {
	r := testutil.NewResolver().Script("m", "x")
	req := testutil.NewRequestBuilder("t").Turns(3).Agent("A", "m").Agent("B", "m").Agent("C", "m").Build()

	st, _, err := runSync(t, newEngine(r, testConfig()), req)
	require.NoError(t, err)

	msgs, _ := st.Transcript()
	require.Len(t, msgs, 9)
	for i, m := range msgs {
		assert.Equal(t, i+1, m.Turn)
		assert.Equal(t, i%3+1, m.AgentID)
	}
}

func TestRun_ActorConfigError(t *testing.T) {
	r := testutil.NewResolver().Script("ok", "x").Fail("bad", core.NewConfigError("Anthropic API key is not configured on the server."))
	req := testutil.NewRequestBuilder("t").Agent("A", "ok").Agent("B", "bad").Build()

	st, events, err := runSync(t, newEngine(r, testConfig()), req)

	var te *TurnError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "B", te.Name)
	assert.True(t, core.IsConfigError(err))

	errs := testutil.OfKind(events, core.KindError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Anthropic API key is not configured on the server.", errs[0].Payload.(core.ErrorPayload).Message)
	assert.Equal(t, []core.Status{core.StatusStarted, core.StatusError}, testutil.Statuses(events))

	msgs, ok := st.Transcript()
	require.True(t, ok)
	assert.Len(t, msgs, 1)
}

func TestRun_ActorStreamFailure(t *testing.T) {
	broken := model.NewMockModel("broken", "test", func(o *model.MockOptions) {
		o.Tokens = []string{"par", "tial"}
		o.FailAfter = 1
		o.Err = errors.New("connection reset")
	})
	r := testutil.NewResolver().With("broken", broken)
	req := testutil.NewRequestBuilder("t").Agent("A", "broken").Agent("B", "broken").Build()

	st, events, err := runSync(t, newEngine(r, testConfig()), req)
	require.Error(t, err)
	assert.False(t, core.IsConfigError(err))

	errs := testutil.OfKind(events, core.KindError)
	require.Len(t, errs, 1)
	assert.Equal(t, "A model call failed. Check configuration and try again.", errs[0].Payload.(core.ErrorPayload).Message)

	msgs, _ := st.Transcript()
	assert.Empty(t, msgs)
}

func TestRun_FacilitatorFailure(t *testing.T) {
	r := testutil.NewResolver().Script("actor", "x").Fail("mod", errors.New("boom"))
	req := testutil.NewRequestBuilder("t").Agent("A", "actor").Agent("B", "actor").Moderator("mod", 1).Build()

	st, events, err := runSync(t, newEngine(r, testConfig()), req)
	require.Error(t, err)

	errs := testutil.OfKind(events, core.KindError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Moderator model call failed.", errs[0].Payload.(core.ErrorPayload).Message)
	assert.Equal(t, []core.Status{core.StatusStarted, core.StatusError}, testutil.Statuses(events))

	msgs, _ := st.Transcript()
	assert.Len(t, msgs, 2)
}

func TestRun_PreflightLimits(t *testing.T) {
	r := testutil.NewResolver()
	cfg := testConfig()
	cfg.MaxTurnLimit = 5
	cfg.MaxPromptChars = 10

	req := testutil.NewRequestBuilder("t").Turns(6).Agent("A", "m").Agent("B", "m").Build()
	st, events, err := runSync(t, newEngine(r, cfg), req)
	assert.True(t, core.IsConfigError(err))
	assert.Empty(t, events)
	msgs, ok := st.Transcript()
	assert.True(t, ok)
	assert.Empty(t, msgs)

	req = testutil.NewRequestBuilder("t").Actor(core.ActorConfig{Name: "A", Model: "m", SystemPrompt: "this prompt is too long"}).Agent("B", "m").Build()
	_, _, err = runSync(t, newEngine(r, cfg), req)
	assert.True(t, core.IsConfigError(err))
	assert.Empty(t, r.Calls())
}

func TestRun_CancelMidStream(t *testing.T) {
	slow := model.NewMockModel("slow", "test", func(o *model.MockOptions) {
		o.Tokens = []string{"a", "b", "c", "d", "e"}
		o.Delay = 40 * time.Millisecond
	})
	r := testutil.NewResolver().With("slow", slow)
	req := testutil.NewRequestBuilder("t").Turns(2).Agent("A", "slow").Agent("B", "slow").Build()

	st := session.New("sim", req)
	sink := st.Subscribe()
	done := make(chan error, 1)
	go func() { done <- newEngine(r, testConfig()).Run(st) }()

	got := testutil.Collect(sink, func(ev core.Event) bool { return ev.Kind() == core.KindToken }, 2*time.Second)
	require.NotEmpty(t, got)
	st.Cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}

	msgs, ok := st.Transcript()
	require.True(t, ok)
	assert.Empty(t, msgs)

	events := append(got, drain(sink)...)
	statuses := testutil.Statuses(events)
	assert.Equal(t, core.StatusStopped, statuses[len(statuses)-1])
	assert.Empty(t, testutil.Messages(events))
}

func TestRun_OrphanedBeforeStart(t *testing.T) {
	r := testutil.NewResolver().Script("m", "x")
	cfg := testConfig()
	cfg.IdleShutdown = true
	cfg.OrphanGrace = 60 * time.Millisecond
	cfg.PollInterval = 10 * time.Millisecond

	req := testutil.NewRequestBuilder("t").Agent("A", "m").Agent("B", "m").Build()
	st := session.New("sim", req)

	require.NoError(t, newEngine(r, cfg).Run(st))
	assert.True(t, st.IsCancelled())
	assert.Equal(t, uint64(0), st.Seq())
	assert.Empty(t, r.Calls())

	msgs, ok := st.Transcript()
	assert.True(t, ok)
	assert.Empty(t, msgs)
}

func TestRun_SubscriberArrivesDuringGrace(t *testing.T) {
	r := testutil.NewResolver().Script("m", "x")
	cfg := testConfig()
	cfg.IdleShutdown = true
	cfg.OrphanGrace = 2 * time.Second
	cfg.PollInterval = 10 * time.Millisecond

	req := testutil.NewRequestBuilder("t").Agent("A", "m").Agent("B", "m").Build()
	st := session.New("sim", req)
	done := make(chan error, 1)
	go func() { done <- newEngine(r, cfg).Run(st) }()

	time.Sleep(30 * time.Millisecond)
	sink := st.Subscribe()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not finish")
	}
	events := drain(sink)
	assert.Equal(t, []core.Status{core.StatusStarted, core.StatusFinished}, testutil.Statuses(events))
}

func TestRun_CancelDuringGrace(t *testing.T) {
	cfg := testConfig()
	cfg.IdleShutdown = true
	cfg.OrphanGrace = 2 * time.Second

	st := session.New("sim", testutil.NewRequestBuilder("t").Agent("A", "m").Agent("B", "m").Build())
	go func() {
		time.Sleep(20 * time.Millisecond)
		st.Cancel()
	}()

	err := newEngine(testutil.NewResolver(), cfg).Run(st)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), st.Seq())
}

func TestRun_IdleMidRun(t *testing.T) {
	slow := model.NewMockModel("slow", "test", func(o *model.MockOptions) {
		o.Tokens = []string{"a", "b"}
		o.Delay = 30 * time.Millisecond
	})
	r := testutil.NewResolver().With("slow", slow)

	cfg := testConfig()
	cfg.IdleShutdown = true
	cfg.OrphanGrace = time.Second
	e := New(r, func(o *Options) {
		o.Config = cfg
		o.Now = func() time.Time { return time.Now().Add(time.Hour) }
	})

	req := testutil.NewRequestBuilder("t").Turns(3).Agent("A", "slow").Agent("B", "slow").Build()
	st := session.New("sim", req)
	sink := st.Subscribe()
	done := make(chan error, 1)
	go func() { done <- e.Run(st) }()

	testutil.Collect(sink, testutil.IsStatus(core.StatusStarted), 2*time.Second)
	st.Unsubscribe(sink)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.True(t, st.IsCancelled())
	msgs, _ := st.Transcript()
	assert.Len(t, msgs, 2)
}
