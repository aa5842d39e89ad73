package billingclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tg-content-assistant/internal/domain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	balances := map[int64]int64{7: 1}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /billing/api/v1/balances/7", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(balanceResponse{OwnerID: 7, Amount: balances[7]})
	})
	mux.HandleFunc("POST /billing/api/v1/balances/debit", func(w http.ResponseWriter, r *http.Request) {
		var req debitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("некорректное тело запроса: %v", err)
		}
		if balances[req.OwnerID] < req.Amount {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(apiError{Error: "not enough", Code: "insufficient_funds"})
			return
		}
		balances[req.OwnerID] -= req.Amount
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBalanceAndDebit(t *testing.T) {
	srv := newTestServer(t)
	client, err := New(srv.URL+"/billing/", WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("создание клиента: %v", err)
	}
	ctx := context.Background()

	amount, err := client.Balance(ctx, 7)
	if err != nil || amount != 1 {
		t.Fatalf("ожидали баланс 1, получили %d, %v", amount, err)
	}
	if err := client.Debit(ctx, 7, 1); err != nil {
		t.Fatalf("списание: %v", err)
	}
	if err := client.Debit(ctx, 7, 1); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("ожидали ErrInsufficientBalance, получили %v", err)
	}
}

func TestUnknownErrorKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("создание клиента: %v", err)
	}
	_, err = client.Balance(context.Background(), 1)
	if err == nil || errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("ожидали общую ошибку, получили %v", err)
	}
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("ожидали ошибку без адреса")
	}
}
