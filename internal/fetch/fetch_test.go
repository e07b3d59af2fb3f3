package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

// redirectServer redirects /hop/N to /hop/N-1 until /hop/0, which serves
// the payload.
func redirectServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/hop/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if n == 0 {
			_, _ = w.Write([]byte("payload"))
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", n-1), http.StatusFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept-Encoding"); got != "identity" {
			t.Errorf("Accept-Encoding = %q, want identity", got)
		}
		if got := r.Header.Get("User-Agent"); got != "pienkuu" {
			t.Errorf("User-Agent = %q, want pienkuu", got)
		}
		_, _ = w.Write([]byte{0x00, 0x01, 0xff})
	}))
	defer srv.Close()

	body, err := NewClient(Config{}).Get(context.Background(), srv.URL+"/file.bin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "\x00\x01\xff" {
		t.Errorf("body = %v, want raw bytes", body)
	}
}

func TestGet_FollowsRedirectsUpToCap(t *testing.T) {
	srv := redirectServer(t)
	c := NewClient(Config{})

	body, err := c.Get(context.Background(), srv.URL+"/hop/3")
	if err != nil {
		t.Fatalf("Get with 3 redirects: %v", err)
	}
	if string(body) != "payload" {
		t.Errorf("body = %q, want %q", body, "payload")
	}

	_, err = c.Get(context.Background(), srv.URL+"/hop/4")
	if !errors.Is(err, ErrTooManyRedirects) {
		t.Fatalf("Get with 4 redirects: got %v, want ErrTooManyRedirects", err)
	}
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Errorf("error %v is not a *NetworkError", err)
	}
}

func TestGet_CustomRedirectCap(t *testing.T) {
	srv := redirectServer(t)

	if _, err := NewClient(Config{MaxRedirects: 5}).Get(context.Background(), srv.URL+"/hop/5"); err != nil {
		t.Errorf("Get with cap 5: %v", err)
	}
}

func TestGet_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(Config{}).Get(context.Background(), srv.URL+"/missing")
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("Get: got %v, want *NetworkError", err)
	}
	if ne.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", ne.StatusCode)
	}
}

func TestGet_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(Config{}).Get(context.Background(), url)
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("Get: got %v, want *NetworkError", err)
	}
	if ne.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for transport failure", ne.StatusCode)
	}
}
