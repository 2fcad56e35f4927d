package testsupport

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"arkimedes/internal/anvl"
)

// Reply is a scripted registry response. A Pass reply lets the request fall
// through to the default behaviour.
type Reply struct {
	Pass       bool
	Status     int
	Body       string
	RetryAfter string
}

// Registry is an in-memory EZID-compatible server for tests. Minted
// identifiers are the shoulder followed by a zero-padded counter.
type Registry struct {
	*httptest.Server

	mu       sync.Mutex
	records  map[string]anvl.Record
	minted   int
	calls    map[string]int
	scripted map[string][]Reply
	Username string
	Password string
}

// NewRegistry starts a fake registry and registers cleanup on t.
func NewRegistry(t testing.TB) *Registry {
	t.Helper()

	reg := &Registry{
		records:  make(map[string]anvl.Record),
		calls:    make(map[string]int),
		scripted: make(map[string][]Reply),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", reg.handleLogin)
	mux.HandleFunc("POST /shoulder/{shoulder...}", reg.handleMint)
	mux.HandleFunc("POST /id/{id...}", reg.handleUpdate)
	mux.HandleFunc("GET /id/{id...}", reg.handleQuery)
	reg.Server = httptest.NewServer(mux)
	t.Cleanup(reg.Close)
	return reg
}

// Put stores a record under id as if it had been minted earlier.
func (r *Registry) Put(id string, rec anvl.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id] = rec.Without(anvl.KeyIdentifier)
}

// Record returns the stored metadata for id.
func (r *Registry) Record(id string) (anvl.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}

// Script queues replies for requests whose key is "<METHOD> <path>", for
// example "POST /id/ark:/99999/fk40001". Queued replies are served before the
// default behaviour resumes.
func (r *Registry) Script(key string, replies ...Reply) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripted[key] = append(r.scripted[key], replies...)
}

// Calls reports how many requests arrived for key.
func (r *Registry) Calls(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key]
}

// TotalCalls reports how many requests the registry served.
func (r *Registry) TotalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.calls {
		total += n
	}
	return total
}

func (r *Registry) intercept(w http.ResponseWriter, req *http.Request) bool {
	key := req.Method + " " + req.URL.Path
	r.mu.Lock()
	r.calls[key]++
	queue := r.scripted[key]
	var reply *Reply
	if len(queue) > 0 {
		reply = &queue[0]
		r.scripted[key] = queue[1:]
	}
	r.mu.Unlock()

	if r.Username != "" {
		user, pass, ok := req.BasicAuth()
		if !ok || user != r.Username || pass != r.Password {
			writeANVL(w, http.StatusUnauthorized, "error: unauthorized")
			return true
		}
	}
	if reply == nil || reply.Pass {
		return false
	}
	if reply.RetryAfter != "" {
		w.Header().Set("Retry-After", reply.RetryAfter)
	}
	writeANVL(w, reply.Status, reply.Body)
	return true
}

func (r *Registry) handleLogin(w http.ResponseWriter, req *http.Request) {
	if r.intercept(w, req) {
		return
	}
	writeANVL(w, http.StatusOK, "success: session cookie returned")
}

func (r *Registry) handleMint(w http.ResponseWriter, req *http.Request) {
	if r.intercept(w, req) {
		return
	}
	rec, ok := readBody(w, req)
	if !ok {
		return
	}
	shoulder := req.PathValue("shoulder")
	r.mu.Lock()
	r.minted++
	id := fmt.Sprintf("%s%04d", shoulder, r.minted)
	r.records[id] = rec
	r.mu.Unlock()
	writeANVL(w, http.StatusCreated, "success: "+id)
}

func (r *Registry) handleUpdate(w http.ResponseWriter, req *http.Request) {
	if r.intercept(w, req) {
		return
	}
	rec, ok := readBody(w, req)
	if !ok {
		return
	}
	id := req.PathValue("id")
	r.mu.Lock()
	current, exists := r.records[id]
	if exists {
		r.records[id] = current.Merge(rec)
	}
	r.mu.Unlock()
	if !exists {
		writeANVL(w, http.StatusBadRequest, "error: bad request - no such identifier")
		return
	}
	writeANVL(w, http.StatusOK, "success: "+id)
}

func (r *Registry) handleQuery(w http.ResponseWriter, req *http.Request) {
	if r.intercept(w, req) {
		return
	}
	id := req.PathValue("id")
	r.mu.Lock()
	rec, exists := r.records[id]
	r.mu.Unlock()
	if !exists {
		writeANVL(w, http.StatusBadRequest, "error: bad request - no such identifier")
		return
	}
	body := "success: " + id
	if !rec.IsEmpty() {
		body += "\n" + anvl.Encode(rec)
	}
	writeANVL(w, http.StatusOK, body)
}

func readBody(w http.ResponseWriter, req *http.Request) (anvl.Record, bool) {
	payload, err := io.ReadAll(req.Body)
	if err != nil {
		writeANVL(w, http.StatusBadRequest, "error: bad request - unreadable body")
		return anvl.Record{}, false
	}
	if !strings.HasPrefix(req.Header.Get("Content-Type"), "text/plain") {
		writeANVL(w, http.StatusBadRequest, "error: bad request - unsupported content type")
		return anvl.Record{}, false
	}
	rec, err := anvl.Decode(string(payload))
	if err != nil {
		writeANVL(w, http.StatusBadRequest, "error: bad request - "+anvl.EscapeValue(err.Error()))
		return anvl.Record{}, false
	}
	return rec, true
}

func writeANVL(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body+"\n")
}
