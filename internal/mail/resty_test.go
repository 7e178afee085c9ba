package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPSender_SendOTP(t *testing.T) {
	var got apiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "Bearer key1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(apiResponse{Status: 0})
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "key1", "no-reply@portal.test", zap.NewNop())
	err := s.SendOTP(context.Background(), "j@x.com", "123456", time.Now().Add(10*time.Minute))
	require.NoError(t, err)
	require.Equal(t, "j@x.com", got.To)
	require.Equal(t, "no-reply@portal.test", got.From)
	require.Contains(t, got.Text, "123456")
}

func TestHTTPSender_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiResponse{Status: 12, Message: "quota exceeded"})
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "key1", "no-reply@portal.test", zap.NewNop())
	err := s.SendOTP(context.Background(), "j@x.com", "123456", time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "quota exceeded")
}
