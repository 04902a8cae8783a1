package push

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// HTTPSenderがSenderインターフェースを満たすことを検証
func TestHTTPSender_ImplementsInterface(t *testing.T) {
	var _ Sender = (*HTTPSender)(nil)
}

// 200レスポンスで成功することを検証
func TestHTTPSender_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewHTTPSender(server.Client(), server.URL, testLogger())
	err := s.Send(context.Background(), Notification{EndpointID: "tok-1", Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
}

// 410レスポンスがErrInvalidEndpointに分類されることを検証
func TestHTTPSender_Send_GoneClassifiedInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	s := NewHTTPSender(server.Client(), server.URL, testLogger())
	err := s.Send(context.Background(), Notification{EndpointID: "tok-1"})
	if !errors.Is(err, ErrInvalidEndpoint) {
		t.Fatalf("expected ErrInvalidEndpoint, got %v", err)
	}
}

// ボディのcode=unregisteredがErrInvalidEndpointに分類されることを検証
func TestHTTPSender_Send_UnregisteredBodyClassifiedInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"unregistered"}`))
	}))
	defer server.Close()

	s := NewHTTPSender(server.Client(), server.URL, testLogger())
	err := s.Send(context.Background(), Notification{EndpointID: "tok-1"})
	if !errors.Is(err, ErrInvalidEndpoint) {
		t.Fatalf("expected ErrInvalidEndpoint, got %v", err)
	}
}

// 一時的な5xx失敗がErrInvalidEndpointに分類されないことを検証
func TestHTTPSender_Send_TransientFailureNotInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := NewHTTPSender(server.Client(), server.URL, testLogger())
	err := s.Send(context.Background(), Notification{EndpointID: "tok-1"})
	if err == nil {
		t.Fatal("expected error for 503 response, got nil")
	}
	if errors.Is(err, ErrInvalidEndpoint) {
		t.Fatal("transient failure must not be classified as ErrInvalidEndpoint")
	}
}

// エンドポイント未設定のSenderがno-opであることを検証
func TestHTTPSender_Send_DisabledIsNoop(t *testing.T) {
	s := NewHTTPSender(http.DefaultClient, "", testLogger())
	if err := s.Send(context.Background(), Notification{EndpointID: "tok-1"}); err != nil {
		t.Fatalf("disabled Send must be a silent no-op, got error: %v", err)
	}
}
