package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shellm/internal/conversation"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{Host: srv.URL, Model: "test-model"}, nil)
}

func TestChat_SendsFullHistoryAndReturnsReply(t *testing.T) {
	var gotReq chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: &chatMessage{Role: "assistant", Content: "4"},
			Done:    true,
		})
	})

	reply, err := client.Chat(context.Background(), []conversation.Turn{
		conversation.User("What is 2+2?"),
	})
	require.NoError(t, err)
	assert.Equal(t, "4", reply)

	assert.Equal(t, "test-model", gotReq.Model)
	assert.False(t, gotReq.Stream)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, chatMessage{Role: "user", Content: "What is 2+2?"}, gotReq.Messages[0])
}

func TestChat_ServerErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	_, err := client.Chat(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestChat_MalformedResponseIsDistinctError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"done": true}`)
	})

	_, err := client.Chat(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestChatStream_FragmentsArriveInOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		enc := json.NewEncoder(w)
		for _, fragment := range []string{"Hel", "lo ", "world"} {
			_ = enc.Encode(chatResponse{Message: &chatMessage{Content: fragment}})
		}
		_ = enc.Encode(chatResponse{Message: &chatMessage{}, Done: true})
	})

	stream, err := client.ChatStream(context.Background(), []conversation.Turn{
		conversation.User("hi"),
	})
	require.NoError(t, err)
	defer stream.Close()

	var got []string
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, fragment)
	}
	assert.Equal(t, []string{"Hel", "lo ", "world"}, got)

	// The stream is not restartable.
	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestChatStream_FinalChunkMayCarryContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		_ = enc.Encode(chatResponse{Message: &chatMessage{Content: "almost"}})
		_ = enc.Encode(chatResponse{Message: &chatMessage{Content: " done"}, Done: true})
	})

	stream, err := client.ChatStream(context.Background(), nil)
	require.NoError(t, err)
	defer stream.Close()

	var got string
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got += fragment
	}
	assert.Equal(t, "almost done", got)
}

func TestChatStream_ErrorChunkPropagates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		_ = enc.Encode(chatResponse{Message: &chatMessage{Content: "par"}})
		_ = enc.Encode(chatResponse{Error: "backend exploded"})
	})

	stream, err := client.ChatStream(context.Background(), nil)
	require.NoError(t, err)
	defer stream.Close()

	fragment, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "par", fragment)

	_, err = stream.Recv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend exploded")
}

func TestChatStream_MalformedChunk(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"done": false}`)
	})

	stream, err := client.ChatStream(context.Background(), nil)
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestNew_Defaults(t *testing.T) {
	client := New(Config{}, nil)
	assert.Equal(t, DefaultModel, client.Model())
	assert.Equal(t, DefaultHost, client.host)
}
