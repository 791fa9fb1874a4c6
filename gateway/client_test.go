package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/faceproof/faceproof/gateway"
	"github.com/faceproof/faceproof/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSend(t *testing.T) {
	var gotBody string
	var gotContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"tok-1","region":"eu-1"}`))
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL, nil)

	raw, err := client.Send(context.Background(), "eyJhbGciOiJSUzI1NiJ9.payload.sig")
	require.NoError(t, err)

	assert.Equal(t, "eyJhbGciOiJSUzI1NiJ9.payload.sig", gotBody)
	assert.Equal(t, "text/plain", gotContentType)

	var grant proto.TokenGrant
	require.NoError(t, json.Unmarshal(raw, &grant))
	assert.Equal(t, "tok-1", grant.Token)
	assert.Equal(t, "eu-1", grant.Region)
}

func TestClientSendGatewayRejection(t *testing.T) {
	t.Run("json string body passed through verbatim", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`"Access to this resource has been blocked"`))
		}))
		defer srv.Close()

		client := gateway.NewClient(srv.URL, nil)

		_, err := client.Send(context.Background(), "assertion")
		require.Error(t, err)
		assert.True(t, errors.Is(err, proto.ErrGatewayError))

		var rpcErr proto.Error
		require.True(t, errors.As(err, &rpcErr))
		assert.Equal(t, "Access to this resource has been blocked", rpcErr.Message)
	})

	t.Run("plain text body passed through verbatim", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("invalid token\n"))
		}))
		defer srv.Close()

		client := gateway.NewClient(srv.URL, nil)

		_, err := client.Send(context.Background(), "assertion")
		require.Error(t, err)

		var rpcErr proto.Error
		require.True(t, errors.As(err, &rpcErr))
		assert.Equal(t, "invalid token", rpcErr.Message)
	})

	t.Run("structured body wrapped generically", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"oops"}`))
		}))
		defer srv.Close()

		client := gateway.NewClient(srv.URL, nil)

		_, err := client.Send(context.Background(), "assertion")
		require.Error(t, err)
		assert.True(t, errors.Is(err, proto.ErrGatewayError))
		assert.Contains(t, err.Error(), "gateway responded 500")
	})
}

func TestClientSendTransportError(t *testing.T) {
	// A server that is already closed refuses the connection.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := gateway.NewClient(srv.URL, nil)

	_, err := client.Send(context.Background(), "assertion")
	require.Error(t, err)
	assert.True(t, errors.Is(err, proto.ErrGatewayError))
}
