package push

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
)

func TestClient_SendTo(t *testing.T) {
	var gotPath string
	var gotBody []byte

	status := http.StatusNoContent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	// Trailing slash on the endpoint must not double up in the url.
	c := NewClient(srv.URL + "/internal/connections/")

	require.NoError(t, c.SendTo(context.Background(), "conn-9", []byte(`{"command":"img_save"}`)))
	assert.Equal(t, "/internal/connections/conn-9", gotPath)
	assert.JSONEq(t, `{"command":"img_save"}`, string(gotBody))

	status = http.StatusGone
	assert.ErrorIs(t, c.SendTo(context.Background(), "conn-9", nil), domain.ErrGone)

	status = http.StatusBadGateway
	assert.ErrorIs(t, c.SendTo(context.Background(), "conn-9", nil), domain.ErrTransient)
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL)
	assert.ErrorIs(t, c.SendTo(context.Background(), "conn-9", nil), domain.ErrTransient)
}

// The client and the gateway's callback handler speak the same contract;
// run the client against the real handler end to end.
func TestClient_AgainstCallbackHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(discardLogger())
	id, peer := dial(t, hub)

	r := gin.New()
	r.POST("/internal/connections/:id", CallbackHandler(hub, discardLogger()))
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := NewClient(srv.URL + "/internal/connections")

	require.NoError(t, c.SendTo(context.Background(), id, []byte(`{"command":"predict"}`)))
	_, data, err := peer.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"predict"}`, string(data))

	hub.Unregister(id)
	assert.ErrorIs(t, c.SendTo(context.Background(), id, []byte("x")), domain.ErrGone)
}
