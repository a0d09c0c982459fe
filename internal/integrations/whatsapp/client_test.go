package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	val   string
	err   error
	calls int
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.val, f.err
}

const testCreds = `{"token":"tok","phone_number_id":"123"}`

func newTestClient(t *testing.T, srv *httptest.Server) (*Client, *fakeGetter) {
	t.Helper()
	g := &fakeGetter{val: testCreds}
	c, err := NewClient(g, "/wa-bot", WithBaseURL(srv.URL), WithHTTPClient(&http.Client{Timeout: 2 * time.Second}))
	require.NoError(t, err)
	return c, g
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, "/wa-bot")
	require.ErrorContains(t, err, "nil")
	_, err = NewClient(&fakeGetter{}, "")
	require.ErrorContains(t, err, "prefix")
}

func TestSendText(t *testing.T) {
	var got outgoingMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/123/messages", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	c, g := newTestClient(t, srv)
	require.NoError(t, c.SendText(context.Background(), "628123", "hello"))
	require.NoError(t, c.SendText(context.Background(), "628123", "again"))
	require.Equal(t, 1, g.calls)

	require.Equal(t, "whatsapp", got.MessagingProduct)
	require.Equal(t, "text", got.Type)
	require.Equal(t, "628123", got.To)
	require.Equal(t, "again", got.Text.Body)
	require.Nil(t, got.Context)
}

func TestReply_QuotesMessage(t *testing.T) {
	var got outgoingMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	require.NoError(t, c.Reply(context.Background(), "628123", "wamid.in", "ok"))
	require.Equal(t, "wamid.in", got.Context.MessageID)
}

func TestReact(t *testing.T) {
	var got outgoingMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	require.NoError(t, c.React(context.Background(), "628123", "wamid.in", "👀"))
	require.Equal(t, "reaction", got.Type)
	require.Equal(t, "👀", got.Reaction.Emoji)
	require.Equal(t, "wamid.in", got.Reaction.MessageID)

	require.Error(t, c.React(context.Background(), "628123", "", "👀"))
}

func TestSend_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad"}}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	err := c.SendText(context.Background(), "628123", "x")
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.HTTPStatusCode())
}

func TestSend_CredentialErrors(t *testing.T) {
	c, err := NewClient(&fakeGetter{err: errors.New("ssm down")}, "/wa-bot")
	require.NoError(t, err)
	require.ErrorContains(t, c.SendText(context.Background(), "628123", "x"), "ssm down")

	c, err = NewClient(&fakeGetter{val: `{"token":"tok"}`}, "/wa-bot")
	require.NoError(t, err)
	require.ErrorContains(t, c.SendText(context.Background(), "628123", "x"), "incomplete")

	require.ErrorContains(t, c.SendText(context.Background(), " ", "x"), "recipient")
}

func TestDownloadMedia(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/media-1":
			_, _ = w.Write([]byte(`{"url":"` + srv.URL + `/blob/abc","mime_type":"image/jpeg"}`))
		case "/blob/abc":
			_, _ = w.Write([]byte("jpeg-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	data, mime, err := c.DownloadMedia(context.Background(), "media-1")
	require.NoError(t, err)
	require.Equal(t, "jpeg-bytes", string(data))
	require.Equal(t, "image/jpeg", mime)

	_, _, err = c.DownloadMedia(context.Background(), "missing")
	require.ErrorContains(t, err, "resolve media")

	_, _, err = c.DownloadMedia(context.Background(), "")
	require.ErrorContains(t, err, "media id is required")
}
