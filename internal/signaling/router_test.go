package signaling

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
)

type recordingHandler struct {
	calls []string
}

func (h *recordingHandler) HandlePresence(count int, participants []string) {
	h.calls = append(h.calls, fmt.Sprintf("presence %d %v", count, participants))
}

func (h *recordingHandler) HandleWelcome(id string) {
	h.calls = append(h.calls, "welcome "+id)
}

func (h *recordingHandler) HandleDescription(from string, sdp json.RawMessage) {
	h.calls = append(h.calls, "description "+from+" "+string(sdp))
}

func (h *recordingHandler) HandleCandidate(from string, candidate json.RawMessage) {
	h.calls = append(h.calls, "candidate "+from+" "+string(candidate))
}

func (h *recordingHandler) HandleChat(nickname, body string) {
	h.calls = append(h.calls, "chat "+nickname+" "+body)
}

func decode(t *testing.T, raw string) *Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return &env
}

func TestClassify(t *testing.T) {
	tests := []struct {
		raw  string
		want Kind
	}{
		{`{"type":"user_count","user_count":1}`, KindPresence},
		{`{"type":"user_count","user_count":2,"from":"b","sdp":{"type":"offer","sdp":"x"}}`, KindPresence},
		{`{"type":"welcome","id":"me"}`, KindWelcome},
		{`{"type":"welcome"}`, KindUnknown},
		{`{"from":"b","sdp":{"type":"offer","sdp":"x"}}`, KindDescription},
		{`{"from":"b","sdp":{"type":"answer","sdp":"x"},"candidate":{"candidate":"c"}}`, KindDescription},
		{`{"from":"b","sdp":null,"candidate":{"candidate":"c"}}`, KindCandidate},
		{`{"sdp":{"type":"offer","sdp":"x"}}`, KindUnknown},
		{`{"type":"chat","message":"hi","nickname":"bob"}`, KindChat},
		{`{"type":"chat","from":"b","candidate":{"candidate":"c"}}`, KindCandidate},
		{`{"type":"mystery"}`, KindUnknown},
		{`{}`, KindUnknown},
	}
	for _, tt := range tests {
		if got := Classify(decode(t, tt.raw)); got != tt.want {
			t.Errorf("Classify(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	if Classify(nil) != KindUnknown {
		t.Errorf("Classify(nil) should be unknown")
	}
}

func TestRouterDispatch(t *testing.T) {
	h := &recordingHandler{}
	r := NewRouter(h)

	for _, raw := range []string{
		`{"type":"user_count","user_count":3,"participants":["a","b","c"]}`,
		`{"type":"welcome","id":"a"}`,
		`{"from":"b","sdp":{"type":"offer","sdp":"v=0"}}`,
		`{"from":"b","candidate":{"candidate":"candidate:1"}}`,
		`{"type":"chat","message":"hello","nickname":"bob"}`,
		`{"type":"nope"}`,
	} {
		r.Dispatch(decode(t, raw))
	}

	want := []string{
		"presence 3 [a b c]",
		"welcome a",
		`description b {"type":"offer","sdp":"v=0"}`,
		`candidate b {"candidate":"candidate:1"}`,
		"chat bob hello",
	}
	if !reflect.DeepEqual(h.calls, want) {
		t.Fatalf("calls = %#v\nwant %#v", h.calls, want)
	}
}

func TestOutboundEnvelopesMatchWireShape(t *testing.T) {
	env, err := NewDescription("me", "b", map[string]string{"type": "answer", "sdp": "v=0"})
	if err != nil {
		t.Fatalf("NewDescription: %v", err)
	}
	b, _ := json.Marshal(env)
	if got, want := string(b), `{"from":"me","to":"b","sdp":{"sdp":"v=0","type":"answer"}}`; got != want {
		t.Fatalf("description envelope = %s, want %s", got, want)
	}

	b, _ = json.Marshal(NewChat("alice", "hello"))
	if got, want := string(b), `{"type":"chat","message":"hello","nickname":"alice"}`; got != want {
		t.Fatalf("chat envelope = %s, want %s", got, want)
	}
}
