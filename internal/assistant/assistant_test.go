package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/aura/internal/booking"
	"github.com/kalambet/aura/internal/engine"
)

type chatCall struct {
	model    string
	messages []engine.Message
	schema   *engine.Schema
}

type mockEngine struct {
	replies  []string
	chatErr  error
	imageURL string
	imageErr error
	calls    []chatCall
}

func (m *mockEngine) Chat(_ context.Context, model string, msgs []engine.Message, s *engine.Schema) (string, error) {
	m.calls = append(m.calls, chatCall{model: model, messages: msgs, schema: s})
	if m.chatErr != nil {
		return "", m.chatErr
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r, nil
}

func (m *mockEngine) GenerateImage(_ context.Context, _, _ string) (string, error) {
	return m.imageURL, m.imageErr
}
func (m *mockEngine) IsRunning(context.Context) bool { return true }
func (m *mockEngine) HasModel(context.Context, string) bool { return true }
func (m *mockEngine) PullModel(context.Context, string, func(engine.PullProgress)) error {
	return nil
}

func newTestAssistant(eng *mockEngine) *Assistant {
	return New(eng, NewFiles(), Config{
		Name:       "A.U.R.A",
		ChatModel:  "chat",
		FastModel:  "fast",
		ImageModel: "imagen",
	})
}

func TestComplete_SystemPromptAndHistory(t *testing.T) {
	eng := &mockEngine{replies: []string{"Hello!", "FLIGHT_BOOKING_REQUEST"}}
	a := newTestAssistant(eng)

	got, err := a.Complete(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", got)

	_, err = a.Complete(context.Background(), "book a flight")
	require.NoError(t, err)

	require.Len(t, eng.calls, 2)
	first := eng.calls[0]
	assert.Equal(t, "chat", first.model)
	assert.Nil(t, first.schema)
	require.Len(t, first.messages, 2)
	assert.Equal(t, "system", first.messages[0].Role)
	assert.Contains(t, first.messages[0].Content, "You are A.U.R.A")
	assert.Contains(t, first.messages[0].Content, "IMAGE_GENERATION:")
	assert.Contains(t, first.messages[0].Content, `"RIDE_BOOKING_REQUEST"`)

	second := eng.calls[1].messages
	require.Len(t, second, 4)
	assert.Equal(t, engine.Message{Role: "user", Content: "Hi"}, second[1])
	assert.Equal(t, engine.Message{Role: "assistant", Content: "Hello!"}, second[2])
	assert.Equal(t, engine.Message{Role: "user", Content: "book a flight"}, second[3])
}

func TestComplete_HistoryIsBounded(t *testing.T) {
	eng := &mockEngine{}
	a := newTestAssistant(eng)
	for i := 0; i < 30; i++ {
		_, err := a.Complete(context.Background(), fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}
	last := eng.calls[len(eng.calls)-1].messages
	assert.Len(t, last, 1+historyLimit+1)
}

func TestComplete_MarkerRepliesLeftToCaller(t *testing.T) {
	eng := &mockEngine{replies: []string{"RIDE_BOOKING_REQUEST", "IMAGE_GENERATION: a cat", "You're welcome."}}
	a := newTestAssistant(eng)

	_, err := a.Complete(context.Background(), "ride home")
	require.NoError(t, err)
	_, err = a.Complete(context.Background(), "draw a cat")
	require.NoError(t, err)
	assert.Empty(t, a.history, "markers are not remembered")

	a.Remember("ride home", "Your ride is on its way.")
	_, err = a.Complete(context.Background(), "thanks")
	require.NoError(t, err)

	last := eng.calls[len(eng.calls)-1].messages
	require.Len(t, last, 4)
	assert.Equal(t, engine.Message{Role: "user", Content: "ride home"}, last[1])
	assert.Equal(t, engine.Message{Role: "assistant", Content: "Your ride is on its way."}, last[2])
	assert.Equal(t, engine.Message{Role: "user", Content: "thanks"}, last[3])
}

func TestComplete_FileContext(t *testing.T) {
	eng := &mockEngine{replies: []string{"ok"}}
	a := newTestAssistant(eng)
	a.Files().Add("old.txt", "first upload", 12)
	a.Files().Add("new.txt", "second upload", 13)

	_, err := a.Complete(context.Background(), "summarize")
	require.NoError(t, err)

	sys := eng.calls[0].messages[0].Content
	newIdx := strings.Index(sys, "second upload")
	oldIdx := strings.Index(sys, "first upload")
	require.True(t, newIdx > 0 && oldIdx > 0, "file text missing from system prompt")
	assert.Less(t, newIdx, oldIdx, "newest file first")
}

func TestComplete_Error(t *testing.T) {
	boom := errors.New("dial tcp: refused")
	a := newTestAssistant(&mockEngine{chatErr: boom})

	_, err := a.Complete(context.Background(), "Hi")
	var ae *AdapterError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "complete", ae.Op)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, a.history, "failed turns are not remembered")
}

func TestAgenticAction(t *testing.T) {
	eng := &mockEngine{replies: []string{
		`{"domain":"restaurant","parameters":{"restaurant":"Bella Napoli","party_size":4,"time":"","note":null}}`,
	}}
	a := newTestAssistant(eng)

	action, err := a.AgenticAction(context.Background(), "table for 4 at Bella Napoli")
	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Equal(t, booking.DomainRestaurant, action.Domain)
	assert.Equal(t, map[string]string{"restaurant": "Bella Napoli", "party_size": "4"}, action.Params)

	call := eng.calls[0]
	assert.Equal(t, "fast", call.model)
	require.NotNil(t, call.schema)
	assert.Contains(t, call.schema.Properties["domain"].Enum, "ride")
	assert.Contains(t, call.schema.Properties["domain"].Enum, "none")
	assert.Contains(t, call.schema.Properties["parameters"].Properties, booking.ParamDestination)
}

func TestAgenticAction_NoBooking(t *testing.T) {
	for _, reply := range []string{
		`{"domain":"none","parameters":{}}`,
		`{"domain":"","parameters":{}}`,
		`{"domain":"spa","parameters":{}}`,
	} {
		a := newTestAssistant(&mockEngine{replies: []string{reply}})
		action, err := a.AgenticAction(context.Background(), "x")
		assert.NoError(t, err, reply)
		assert.Nil(t, action, reply)
	}
}

func TestAgenticAction_FencedJSON(t *testing.T) {
	a := newTestAssistant(&mockEngine{replies: []string{"```json\n{\"domain\":\"RIDE\",\"parameters\":{\"destination\":\"home\"}}\n```"}})
	action, err := a.AgenticAction(context.Background(), "ride home")
	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Equal(t, booking.DomainRide, action.Domain)
}

func TestAgenticAction_Malformed(t *testing.T) {
	a := newTestAssistant(&mockEngine{replies: []string{"I think you want a flight"}})
	_, err := a.AgenticAction(context.Background(), "flight")
	var ae *AdapterError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "agentic action", ae.Op)
}

func TestSuggestTasks(t *testing.T) {
	eng := &mockEngine{replies: []string{`{"tasks":["Book dentist"," ","Buy gift","Call mom","Extra"]}`}}
	a := newTestAssistant(eng)

	got, err := a.SuggestTasks(context.Background(), "remind me")
	require.NoError(t, err)
	assert.Equal(t, []string{"Book dentist", "Buy gift", "Call mom"}, got)
	assert.Equal(t, "array", eng.calls[0].schema.Properties["tasks"].Type)
}

func TestSuggestTasks_Errors(t *testing.T) {
	a := newTestAssistant(&mockEngine{chatErr: errors.New("timeout")})
	_, err := a.SuggestTasks(context.Background(), "x")
	var ae *AdapterError
	assert.ErrorAs(t, err, &ae)

	a = newTestAssistant(&mockEngine{replies: []string{"not json"}})
	_, err = a.SuggestTasks(context.Background(), "x")
	assert.ErrorAs(t, err, &ae)
}

func TestGenerateImage(t *testing.T) {
	a := newTestAssistant(&mockEngine{imageURL: "data:image/png;base64,AA=="})
	url, err := a.GenerateImage(context.Background(), "a cat")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AA==", url)
}

func TestGenerateImage_Errors(t *testing.T) {
	a := newTestAssistant(&mockEngine{imageErr: engine.ErrImageUnsupported})
	_, err := a.GenerateImage(context.Background(), "a cat")
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "a cat", ge.Prompt)
	assert.ErrorIs(t, err, engine.ErrImageUnsupported)

	_, err = a.GenerateImage(context.Background(), "  ")
	assert.ErrorAs(t, err, &ge)
}

func TestFiles(t *testing.T) {
	f := NewFiles()
	f.Add("a.txt", "one", 3)
	f.Add("b.pdf", "two", 300)
	f.Add("a.txt", "one v2", 6)

	list := f.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b.pdf", list[0].Name)
	assert.Equal(t, "a.txt", list[1].Name)
	assert.Equal(t, "one v2", list[1].Text)
	assert.Equal(t, "application/pdf", list[0].MIMEType)

	docs := f.documents()
	assert.Equal(t, "a.txt", docs[0].Name, "documents are newest first")

	assert.True(t, f.Remove("b.pdf"))
	assert.False(t, f.Remove("b.pdf"))
	assert.Len(t, f.List(), 1)
}
