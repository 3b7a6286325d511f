package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(r *Router, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func text(body string) HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	}
}

func TestExactRoutesWinOverWildcards(t *testing.T) {
	r := New()
	r.GET("/api/v1/companies/search", text("search"))
	r.GET("/api/v1/companies/*", text("detail"))

	if got := serve(r, http.MethodGet, "/api/v1/companies/search").Body.String(); got != "search" {
		t.Fatalf("exact route should win, got %q", got)
	}
	if got := serve(r, http.MethodGet, "/api/v1/companies/42").Body.String(); got != "detail" {
		t.Fatalf("wildcard route should match, got %q", got)
	}
}

func TestWildcardsMatchInRegistrationOrder(t *testing.T) {
	r := New()
	r.GET("/files/reports/*", text("reports"))
	r.GET("/files/*", text("files"))

	for i := 0; i < 20; i++ {
		if got := serve(r, http.MethodGet, "/files/reports/2026/q1").Body.String(); got != "reports" {
			t.Fatalf("first registered wildcard should win, got %q", got)
		}
	}
	if got := serve(r, http.MethodGet, "/files/other").Body.String(); got != "files" {
		t.Fatalf("got %q", got)
	}
}

func TestMethodNotAllowedAndNotFound(t *testing.T) {
	r := New()
	r.POST("/api/v1/login", text("ok"))

	if code := serve(r, http.MethodGet, "/api/v1/login").Code; code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", code)
	}
	if code := serve(r, http.MethodGet, "/nowhere").Code; code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if len(r.Routes()) != 1 || !r.Paths()["/api/v1/login"] {
		t.Fatalf("route tables not populated")
	}
}

func TestMiddlewareOrder(t *testing.T) {
	r := New()
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				next(w, req)
			}
		}
	}
	r.Use(mark("outer"), mark("inner"))
	r.GET("/ping", func(w http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
	})

	serve(r, http.MethodGet, "/ping")
	if len(order) != 3 || order[0] != "outer" || order[1] != "inner" || order[2] != "handler" {
		t.Fatalf("unexpected order %v", order)
	}

	order = nil
	serve(r, http.MethodGet, "/missing")
	if len(order) != 0 {
		t.Fatalf("middleware must not run for unknown paths")
	}
}

func TestHandleMountsHandler(t *testing.T) {
	r := New()
	r.Handle("/static/*", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(req.URL.Path))
	}))
	if got := serve(r, http.MethodGet, "/static/app.js").Body.String(); got != "/static/app.js" {
		t.Fatalf("got %q", got)
	}
}

func TestMatchWildcardRoute(t *testing.T) {
	cases := []struct {
		path, pattern string
		want          bool
	}{
		{"/a/b/c", "/a/*", true},
		{"/a", "/a/*", true},
		{"/b/c", "/a/*", false},
		{"/a/x/c", "/a/*/c", true},
		{"/a/x/d", "/a/*/c", false},
	}
	for _, tc := range cases {
		if got := matchWildcardRoute(tc.path, tc.pattern); got != tc.want {
			t.Fatalf("matchWildcardRoute(%q, %q) = %v", tc.path, tc.pattern, got)
		}
	}
}
