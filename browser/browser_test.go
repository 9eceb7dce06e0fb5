package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/use-agent/pagequery/config"
	"github.com/use-agent/pagequery/query"
)

// newTestBrowser launches a real headless Chrome. These tests need a local
// Chrome/Chromium install, so they only run when PAGEQUERY_BROWSER_TESTS
// is set.
func newTestBrowser(t *testing.T) *Browser {
	t.Helper()
	if os.Getenv("PAGEQUERY_BROWSER_TESTS") == "" {
		t.Skip("set PAGEQUERY_BROWSER_TESTS=1 to run browser-backed tests")
	}
	cfg := config.Load()
	cfg.Browser.MaxPages = 2
	b, err := New(cfg.Browser, cfg.Runner)
	if err != nil {
		t.Fatalf("launch browser: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestBrowser_GroupedExtraction(t *testing.T) {
	b := newTestBrowser(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div><p>Test</p></div><div><p>Foo</p></div></body></html>`)
	}))
	defer srv.Close()

	drv, release, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	q, _ := query.Get(srv.URL)
	q.WaitFor("body > div", 0).GroupBy("body > div").Select(query.Text("title", "p"))

	results, err := q.Run(context.Background(), drv)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0]["title"] != "Test" || results[1]["title"] != "Foo" {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestBrowser_PostNavigation(t *testing.T) {
	b := newTestBrowser(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "want POST", http.StatusMethodNotAllowed)
			return
		}
		r.ParseForm()
		fmt.Fprintf(w, `<html><body><div id="echo">%s</div></body></html>`, r.PostFormValue("name"))
	}))
	defer srv.Close()

	drv, release, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	q, _ := query.Post(srv.URL, "name=pagequery")
	q.Select(query.Text("echo", "#echo"))

	results, err := q.Run(context.Background(), drv)
	if err != nil {
		t.Fatal(err)
	}
	if results[0]["echo"] != "pagequery" {
		t.Fatalf("post body not delivered: %v", results)
	}
}

func TestBrowser_EvalMutationVisibleToSelect(t *testing.T) {
	b := newTestBrowser(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div><p>Before</p></div></body></html>`)
	}))
	defer srv.Close()

	drv, release, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	q, _ := query.Get(srv.URL)
	q.Eval(func(ctx context.Context, page query.Driver, results []query.Record) ([]query.Record, error) {
		_, err := page.Evaluate(ctx, `() => { document.querySelector("p").textContent = "After" }`)
		return results, err
	}).Select(query.Text("title", "p"))

	results, err := q.Run(context.Background(), drv)
	if err != nil {
		t.Fatal(err)
	}
	if results[0]["title"] != "After" {
		t.Fatalf("eval mutation not visible: %v", results)
	}
}
