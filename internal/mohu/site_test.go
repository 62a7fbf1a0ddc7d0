package mohu

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const sessionCookie = "october_session"

// fakeSite mimics the calendar page: a landing page with the district select
// and three October CMS handlers that require the session cookie.
type fakeSite struct {
	t *testing.T

	mu       sync.Mutex
	sessions int
	calls    []string // handler names in arrival order
	forms    map[string]map[string]string

	// Overridable responses.
	landing string
	streets string
	houses  string
	results string
	status  map[string]int // handler → forced HTTP status
}

func newFakeSite(t *testing.T) (*fakeSite, *httptest.Server) {
	t.Helper()
	fs := &fakeSite{
		t:     t,
		forms: make(map[string]map[string]string),
		landing: `<html><body><form>
<select name="district">
  <option value="">Kerület</option>
  <option value="1011">1011 - I. kerület</option>
  <option value="1062">1062 - VI. kerület</option>
</select></form></body></html>`,
		streets: `<select name="publicPlace"><option value="">Válasszon</option>` +
			`<option value="st-1">Andrássy út</option><option value="st-2">Bajza utca</option></select>`,
		houses: `<select name="houseNumber"><option value="h-55">55</option><option value="h-57">57</option></select>`,
		results: `<table><tbody>` +
			`<tr><td>vasárnap</td><td>2025.02.09.</td><td><span class="selective"></span></td></tr>` +
			`<tr><td>vasárnap</td><td>2025.01.12.</td><td><span class="selective"></span></td></tr>` +
			`<tr><td>kedd</td><td>2025.01.14.</td><td><span class="communal"></span></td></tr>` +
			`</tbody></table>`,
		status: make(map[string]int),
	}
	srv := httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeSite) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		fs.mu.Lock()
		fs.sessions++
		id := fs.sessions
		fs.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: string(rune('a' + id)), Path: "/"})
		_, _ = w.Write([]byte(fs.landing))
		return
	}

	handler := r.Header.Get("X-OCTOBER-REQUEST-HANDLER")
	partial := r.Header.Get("X-OCTOBER-REQUEST-PARTIALS")
	if _, err := r.Cookie(sessionCookie); err != nil {
		http.Error(w, "no session", http.StatusForbidden)
		return
	}
	if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
		http.Error(w, "not ajax", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fs.mu.Lock()
	fs.calls = append(fs.calls, handler)
	form := make(map[string]string)
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	fs.forms[handler] = form
	status := fs.status[handler]
	fs.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}

	var html string
	switch handler {
	case handlerDistrict:
		html = fs.streets
	case handlerStreet:
		html = fs.houses
	case handlerSearch:
		html = fs.results
	default:
		http.Error(w, "unknown handler", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{partial: html})
}

func (fs *fakeSite) handlerCalls() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.calls...)
}

func (fs *fakeSite) form(handler string) map[string]string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.forms[handler]
}
