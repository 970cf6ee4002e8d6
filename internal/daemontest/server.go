// Package daemontest provides an in-process fake XPipe daemon for tests.
package daemontest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default credentials accepted by a new Server.
const (
	DefaultAPIKey          = "test-api-key"
	DefaultAuthFileContent = "test-auth-file-content"
	DefaultVersion         = "14.0"
)

// Request is a recorded request.
type Request struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	Body          []byte
}

// JSON decodes the recorded body into a generic map.
func (r Request) JSON() map[string]any {
	var m map[string]any
	_ = json.Unmarshal(r.Body, &m)
	return m
}

// Connection is a connection stored in the fake daemon.
type Connection struct {
	ID       uuid.UUID
	Name     []string
	Category []string
	Type     string
	Data     any
	Enabled  bool
}

type failure struct {
	status int
	body   string
}

// ExecFunc computes the result of shell/exec.
type ExecFunc func(connection uuid.UUID, command string) (exitCode int, stdout, stderr string)

// Server is a fake daemon.
type Server struct {
	*httptest.Server

	mu              sync.Mutex
	apiKey          string
	authFileContent string
	version         string
	exec            ExecFunc
	delay       time.Duration
	sessions    map[string]bool
	handshakes  int
	connections map[uuid.UUID]*Connection
	order       []uuid.UUID
	shells      map[uuid.UUID]bool
	blobs       map[uuid.UUID][]byte
	files       map[string][]byte
	failures    map[string][]failure
	requests    []Request
}

// New starts a fake daemon. Call Close when done.
func New() *Server {
	s := &Server{
		apiKey:          DefaultAPIKey,
		authFileContent: DefaultAuthFileContent,
		version:         DefaultVersion,
		sessions:        make(map[string]bool),
		connections:     make(map[uuid.UUID]*Connection),
		shells:          make(map[uuid.UUID]bool),
		blobs:           make(map[uuid.UUID][]byte),
		files:           make(map[string][]byte),
		failures:        make(map[string][]failure),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /handshake", s.handleHandshake)
	mux.HandleFunc("GET /daemon/version", s.authed(s.handleVersion))
	mux.HandleFunc("POST /connection/query", s.authed(s.handleQuery))
	mux.HandleFunc("POST /connection/info", s.authed(s.handleInfo))
	mux.HandleFunc("POST /connection/add", s.authed(s.handleAdd))
	mux.HandleFunc("POST /connection/remove", s.authed(s.handleRemove))
	mux.HandleFunc("POST /connection/browse", s.authed(s.handleConnectionNoop))
	mux.HandleFunc("POST /connection/terminal", s.authed(s.handleConnectionNoop))
	mux.HandleFunc("POST /connection/refresh", s.authed(s.handleConnectionNoop))
	mux.HandleFunc("POST /connection/toggle", s.authed(s.handleToggle))
	mux.HandleFunc("POST /shell/start", s.authed(s.handleShellStart))
	mux.HandleFunc("POST /shell/stop", s.authed(s.handleShellStop))
	mux.HandleFunc("POST /shell/exec", s.authed(s.handleShellExec))
	mux.HandleFunc("POST /fs/blob", s.authed(s.handleBlob))
	mux.HandleFunc("POST /fs/write", s.authed(s.handleWrite))
	mux.HandleFunc("POST /fs/script", s.authed(s.handleScript))
	mux.HandleFunc("POST /fs/read", s.authed(s.handleRead))

	s.Server = httptest.NewServer(s.record(mux))
	return s
}

// SetAPIKey changes the accepted API key.
func (s *Server) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
}

// SetAuthFileContent changes the accepted local auth file content.
func (s *Server) SetAuthFileContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authFileContent = content
}

// SetVersion changes the reported daemon version.
func (s *Server) SetVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

// SetExec overrides shell/exec. By default the command is echoed back on
// stdout with exit code 0.
func (s *Server) SetExec(fn ExecFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exec = fn
}

// AddConnection stores a connection and returns its ID.
func (s *Server) AddConnection(name, category, typ string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(&Connection{
		ID:       uuid.New(),
		Name:     []string{name},
		Category: []string{category},
		Type:     typ,
	})
}

func (s *Server) addLocked(c *Connection) uuid.UUID {
	s.connections[c.ID] = c
	s.order = append(s.order, c.ID)
	return c.ID
}

// Connection returns a stored connection.
func (s *Server) Connection(id uuid.UUID) (Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[id]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}

// PutFile places a file on a connection.
func (s *Server) PutFile(connection uuid.UUID, path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[fileKey(connection, path)] = append([]byte(nil), data...)
}

// File returns a file previously written to a connection.
func (s *Server) File(connection uuid.UUID, path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[fileKey(connection, path)]
	return data, ok
}

// ShellOpen reports whether a shell session is active for connection.
func (s *Server) ShellOpen(connection uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shells[connection]
}

// FailNext makes the next request to path answer with status and body.
func (s *Server) FailNext(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], failure{status: status, body: body})
}

// RevokeSessions invalidates every issued session token.
func (s *Server) RevokeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]bool)
}

// SetDelay delays every response by d.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Handshakes returns how many successful handshakes were performed.
func (s *Server) Handshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakes
}

// Requests returns every recorded request in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the recorded requests for path.
func (s *Server) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          body,
		})
		delay := s.delay
		var fail *failure
		if queued := s.failures[r.URL.Path]; len(queued) > 0 {
			fail = &queued[0]
			s.failures[r.URL.Path] = queued[1:]
		}
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if fail != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(fail.status)
			_, _ = io.WriteString(w, fail.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		valid := ok && s.sessions[token]
		s.mu.Unlock()
		if !valid {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid session"})
			return
		}
		h(w, r)
	}
}

func (s *Server) handleHandshake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Auth struct {
			Type            string `json:"type"`
			Key             string `json:"key"`
			AuthFileContent string `json:"authFileContent"`
		} `json:"auth"`
		Client struct {
			Type string `json:"type"`
			Name string `json:"name"`
		} `json:"client"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}

	s.mu.Lock()
	var valid bool
	switch req.Auth.Type {
	case "ApiKey":
		valid = req.Auth.Key != "" && req.Auth.Key == s.apiKey
	case "Local":
		valid = req.Auth.AuthFileContent != "" && req.Auth.AuthFileContent == s.authFileContent
	}
	s.mu.Unlock()
	if !valid || req.Client.Type != "Api" {
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "Authentication failed"})
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = true
	s.handshakes++
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"sessionToken": token})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"version":          version,
		"canonicalVersion": version,
		"buildVersion":     version + "+test",
		"jvmVersion":       "21.0.2",
		"pro":              false,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryFilter   string `json:"categoryFilter"`
		ConnectionFilter string `json:"connectionFilter"`
		TypeFilter       string `json:"typeFilter"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	found := []uuid.UUID{}
	for _, id := range s.order {
		c := s.connections[id]
		if globMatch(req.CategoryFilter, strings.Join(c.Category, "/")) &&
			globMatch(req.ConnectionFilter, strings.Join(c.Name, "/")) &&
			globMatch(req.TypeFilter, c.Type) {
			found = append(found, id)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": found})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Connections []uuid.UUID `json:"connections"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]map[string]any, 0, len(req.Connections))
	for _, id := range req.Connections {
		c, ok := s.connections[id]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Unknown connection: " + id.String()})
			return
		}
		infos = append(infos, map[string]any{
			"connection":    c.ID,
			"category":      c.Category,
			"name":          c.Name,
			"type":          c.Type,
			"rawData":       c.Data,
			"usageCategory": "shell",
			"lastModified":  "2024-01-01T00:00:00Z",
			"lastUsed":      "2024-01-01T00:00:00Z",
			"state":         map[string]any{"enabled": c.Enabled},
			"cache":         map[string]any{},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"infos": infos})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string         `json:"name"`
		Data     map[string]any `json:"data"`
		Validate bool           `json:"validate"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Missing name"})
		return
	}

	typ, _ := req.Data["type"].(string)
	s.mu.Lock()
	id := s.addLocked(&Connection{
		ID:       uuid.New(),
		Name:     []string{req.Name},
		Category: []string{"default"},
		Type:     typ,
		Data:     req.Data,
	})
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"connection": id})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Connections []uuid.UUID `json:"connections"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range req.Connections {
		if _, ok := s.connections[id]; !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Unknown connection: " + id.String()})
			return
		}
	}
	for _, id := range req.Connections {
		delete(s.connections, id)
		for i, o := range s.order {
			if o == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleConnectionNoop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Connection uuid.UUID `json:"connection"`
	}
	if !decode(w, r, &req) || !s.requireConnection(w, req.Connection) {
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Connection uuid.UUID `json:"connection"`
		State      bool      `json:"state"`
	}
	if !decode(w, r, &req) || !s.requireConnection(w, req.Connection) {
		return
	}
	s.mu.Lock()
	s.connections[req.Connection].Enabled = req.State
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleShellStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Connection uuid.UUID `json:"connection"`
	}
	if !decode(w, r, &req) || !s.requireConnection(w, req.Connection) {
		return
	}
	s.mu.Lock()
	s.shells[req.Connection] = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"shellDialect": 1,
		"osType":       "Linux",
		"osName":       "Ubuntu 24.04",
		"ttyState":     "NONE",
		"temp":         "/tmp",
	})
}

func (s *Server) handleShellStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Connection uuid.UUID `json:"connection"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	delete(s.shells, req.Connection)
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleShellExec(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Connection uuid.UUID `json:"connection"`
		Command    string    `json:"command"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	open := s.shells[req.Connection]
	exec := s.exec
	s.mu.Unlock()
	if !open {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "No shell session active for " + req.Connection.String()})
		return
	}

	code, stdout, stderr := 0, req.Command, ""
	if exec != nil {
		code, stdout, stderr = exec(req.Connection, req.Command)
	}
	writeJSON(w, http.StatusOK, map[string]any{"exitCode": code, "stdout": stdout, "stderr": stderr})
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}
	id := uuid.New()
	s.mu.Lock()
	s.blobs[id] = data
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"blob": id})
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Connection uuid.UUID `json:"connection"`
		Blob       uuid.UUID `json:"blob"`
		Path       string    `json:"path"`
	}
	if !decode(w, r, &req) || !s.requireConnection(w, req.Connection) {
		return
	}
	s.mu.Lock()
	data, ok := s.blobs[req.Blob]
	if ok {
		s.files[fileKey(req.Connection, req.Path)] = data
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Unknown blob: " + req.Blob.String()})
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Connection uuid.UUID `json:"connection"`
		Blob       uuid.UUID `json:"blob"`
	}
	if !decode(w, r, &req) || !s.requireConnection(w, req.Connection) {
		return
	}
	path := fmt.Sprintf("/tmp/xpipe-script-%s.sh", req.Blob)
	s.mu.Lock()
	data, ok := s.blobs[req.Blob]
	if ok {
		s.files[fileKey(req.Connection, path)] = data
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Unknown blob: " + req.Blob.String()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Connection uuid.UUID `json:"connection"`
		Path       string    `json:"path"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	data, ok := s.files[fileKey(req.Connection, req.Path)]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"message": "No such file: " + req.Path},
		})
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (s *Server) requireConnection(w http.ResponseWriter, id uuid.UUID) bool {
	s.mu.Lock()
	_, ok := s.connections[id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Unknown connection: " + id.String()})
	}
	return ok
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fileKey(connection uuid.UUID, path string) string {
	return connection.String() + ":" + path
}

// globMatch matches s against a pattern where * matches any run of characters.
func globMatch(pattern, s string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	re := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$"
	ok, err := regexp.MatchString(re, s)
	return err == nil && ok
}
