package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voice-agent/internal/conversation"
)

func TestTwiMLSynthesizerSays(t *testing.T) {
	doc, err := NewTwiMLSynthesizer("Polly.Joanna").Render(context.Background(), conversation.CallRequest{Prompt: "  Your order shipped  ", Locale: "en-US"})
	require.NoError(t, err)
	assert.Contains(t, doc, "<Response>")
	assert.Contains(t, doc, `voice="Polly.Joanna"`)
	assert.Contains(t, doc, `language="en-US"`)
	assert.Contains(t, doc, ">Your order shipped</Say>")
}

type fakePublisher struct {
	key         string
	data        []byte
	contentType string
}

func (p *fakePublisher) PublishAudio(_ context.Context, key string, data []byte, contentType string) (string, error) {
	p.key, p.data, p.contentType = key, data, contentType
	return "https://bucket.s3.amazonaws.com/" + key + "?X-Amz-Signature=abc", nil
}

func TestElevenLabsSynthesizerPlaysPublishedAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/voice-1", r.URL.Path)
		assert.Equal(t, "el-key", r.Header.Get("xi-api-key"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Hello", body["text"])
		assert.Equal(t, "eleven_multilingual_v2", body["model_id"])
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	pub := &fakePublisher{}
	synth, err := NewElevenLabsSynthesizer(ElevenLabsConfig{
		APIKey:    "el-key",
		VoiceID:   "voice-1",
		ModelID:   "eleven_multilingual_v2",
		BaseURL:   srv.URL,
		Publisher: pub,
	})
	require.NoError(t, err)

	doc, err := synth.Render(context.Background(), conversation.CallRequest{ConversationID: 7, Prompt: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3audio"), pub.data)
	assert.Equal(t, "audio/mpeg", pub.contentType)
	assert.Contains(t, pub.key, "prompts/7/")
	assert.Contains(t, doc, "<Play>")
	assert.Contains(t, doc, "X-Amz-Signature=abc")
}

func TestElevenLabsSynthesizerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	synth, err := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "k", VoiceID: "v", BaseURL: srv.URL, Publisher: &fakePublisher{}})
	require.NoError(t, err)
	_, err = synth.Synthesize(context.Background(), "hi")
	assert.ErrorContains(t, err, "429")
}

func TestNewElevenLabsSynthesizerValidation(t *testing.T) {
	_, err := NewElevenLabsSynthesizer(ElevenLabsConfig{Publisher: &fakePublisher{}})
	assert.Error(t, err)
	_, err = NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "k"})
	assert.Error(t, err)
}
