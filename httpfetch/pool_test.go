package httpfetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/curdling/curdling"
)

func urlWithUserinfo(raw, user, pass string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.User = url.UserPassword(user, pass)
	return u.String(), nil
}

func TestGetFollowsRedirect(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer final.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/dist", http.StatusFound)
	}))
	defer redirector.Close()

	p := NewPool(redirector.Client())
	res, err := p.Get(context.Background(), redirector.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Response.Body.Close()
	if res.FinalURL != final.URL+"/dist" {
		t.Errorf("FinalURL = %q, want %q", res.FinalURL, final.URL+"/dist")
	}
	body, _ := io.ReadAll(res.Response.Body)
	if string(body) != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}
}

func TestGetResolvesRelativeLocation(t *testing.T) {
	var mux http.ServeMux
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/end")
		w.WriteHeader(http.StatusMovedPermanently)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "done")
	})
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	p := NewPool(srv.Client())
	res, err := p.Get(context.Background(), srv.URL+"/start", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Response.Body.Close()
	if res.FinalURL != srv.URL+"/end" {
		t.Errorf("FinalURL = %q, want %q", res.FinalURL, srv.URL+"/end")
	}
}

func TestGetTooManyRedirects(t *testing.T) {
	var requests int64
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		http.Redirect(w, r, srv.URL, http.StatusFound)
	}))
	defer srv.Close()

	p := NewPool(srv.Client())
	_, err := p.Get(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, curdling.ErrTooManyRedirects) {
		t.Errorf("expected ErrTooManyRedirects, got %v", err)
	}
	if got := atomic.LoadInt64(&requests); got != MaxRedirects {
		t.Errorf("issued %d requests, want %d", got, MaxRedirects)
	}
}

func TestGetDoesNotInspectStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewPool(srv.Client())
	res, err := p.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Response.Body.Close()
	if res.Response.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", res.Response.StatusCode, http.StatusNotFound)
	}
}

func TestGetSynthesizesBasicAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	u, err := urlWithUserinfo(srv.URL, "alice", "secret")
	if err != nil {
		t.Fatal(err)
	}
	p := NewPool(srv.Client())
	res, err := p.Get(context.Background(), u, nil)
	if err != nil {
		t.Fatal(err)
	}
	res.Response.Body.Close()
	if gotAuth == "" {
		t.Error("expected an Authorization header to be set")
	}
}
