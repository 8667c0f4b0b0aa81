package capabilities

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trinitybot/trinity/pkg/models"
)

func TestRunRequestSuccessReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ack"))
	}))
	defer srv.Close()

	cap := NewSyncRequestCapability("mastodon")
	resp, runErr := cap.RunRequest(models.SyncRequest{Verb: models.VerbPost, URL: srv.URL})
	require.Nil(t, runErr)
	require.NotNil(t, resp)
	assert.Equal(t, models.StatusSuccess, resp.Status)
	require.NotNil(t, resp.Body)
	assert.Equal(t, "ack", *resp.Body)
}

func TestRunRequestNonTwoXXIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cap := NewSyncRequestCapability("mastodon")
	resp, runErr := cap.RunRequest(models.SyncRequest{Verb: models.VerbGet, URL: srv.URL})
	require.Nil(t, runErr)
	require.NotNil(t, resp)
	assert.Equal(t, models.StatusError, resp.Status)
}

func TestRunRequestMissingVerbIsBuilderError(t *testing.T) {
	cap := NewSyncRequestCapability("mastodon")
	resp, runErr := cap.RunRequest(models.SyncRequest{URL: "http://example.org"})
	assert.Nil(t, resp)
	require.NotNil(t, runErr)
	assert.Equal(t, models.RunErrorBuilder, runErr.Kind)
}

func TestRunRequestUnreachableHostIsExecuteError(t *testing.T) {
	cap := NewSyncRequestCapability("mastodon")
	resp, runErr := cap.RunRequest(models.SyncRequest{
		Verb: models.VerbGet,
		URL:  "http://127.0.0.1:1", // nothing listens here
	})
	assert.Nil(t, resp)
	require.NotNil(t, runErr)
	assert.Equal(t, models.RunErrorExecute, runErr.Kind)
}

func TestRunRequestSendsHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token123", r.Header.Get("Authorization"))
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		assert.Equal(t, "hello", string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	body := "hello"
	cap := NewSyncRequestCapability("mastodon")
	_, runErr := cap.RunRequest(models.SyncRequest{
		Verb:    models.VerbPut,
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "token123"},
		Body:    &body,
	})
	require.Nil(t, runErr)
}
