package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/ironsheep/openrouter-mcp/internal/catalog"
	"github.com/ironsheep/openrouter-mcp/internal/content"
	"github.com/ironsheep/openrouter-mcp/internal/imaging"
	"github.com/ironsheep/openrouter-mcp/internal/openrouter"
)

const testModels = `{"data":[
	{"id":"openai/gpt-4o","name":"GPT-4o","description":"Omni model","context_length":128000,
	 "pricing":{"prompt":"0.0000025","completion":"0.00001"},
	 "architecture":{"input_modalities":["text","image"]},"supported_parameters":["tools","response_format"]},
	{"id":"acme/tiny","name":"Tiny","description":"Small context","context_length":10,
	 "pricing":{"prompt":"0.000001","completion":"0.000002"}},
	{"id":"x/y:free","name":"Free","description":"Free vision model","context_length":32000,
	 "pricing":{"prompt":"0","completion":"0"},
	 "architecture":{"input_modalities":["text","image"]}}
]}`

// fakeOpenRouter serves /models and /chat/completions, recording every
// chat request body.
type fakeOpenRouter struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	models     string
	modelsCode int
	chatCode   int
	chatBody   string
	requests   [][]byte
}

func newFakeOpenRouter(t *testing.T) *fakeOpenRouter {
	t.Helper()
	f := &fakeOpenRouter{
		t:          t,
		models:     testModels,
		modelsCode: http.StatusOK,
		chatCode:   http.StatusOK,
		chatBody:   `{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`,
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOpenRouter) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/models":
		w.WriteHeader(f.modelsCode)
		fmt.Fprint(w, f.models)
	case "/chat/completions":
		body, err := io.ReadAll(r.Body)
		assert.NoError(f.t, err)
		f.requests = append(f.requests, body)
		w.WriteHeader(f.chatCode)
		fmt.Fprint(w, f.chatBody)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeOpenRouter) reply(code int, body string) {
	f.mu.Lock()
	f.chatCode, f.chatBody = code, body
	f.mu.Unlock()
}

func (f *fakeOpenRouter) chatRequests() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.requests...)
}

// lastRequest returns the most recent chat request body.
func (f *fakeOpenRouter) lastRequest(t *testing.T) gjson.Result {
	t.Helper()
	reqs := f.chatRequests()
	require.NotEmpty(t, reqs, "no chat request was sent")
	return gjson.ParseBytes(reqs[len(reqs)-1])
}

func (f *fakeOpenRouter) client() *openrouter.Client {
	return openrouter.NewClient(openrouter.Config{APIKey: "test-key", BaseURL: f.srv.URL, Timeout: 5 * time.Second})
}

type routerOption func(*Deps)

func withDefaultModel(m string) routerOption { return func(d *Deps) { d.DefaultModel = m } }

func newTestRouter(t *testing.T, f *fakeOpenRouter, opts ...routerOption) *Router {
	t.Helper()
	client := f.client()
	d := Deps{
		Client:     client,
		Catalog:    catalog.NewCache(client, time.Hour, nil),
		Images:     imaging.NewLoader(f.srv.Client(), nil),
		ImageModel: "google/gemini-2.5-flash-image-preview",
	}
	for _, o := range opts {
		o(&d)
	}
	r, err := NewRouter(d)
	require.NoError(t, err)
	return r
}

// call dispatches a tool with args marshalled from v.
func call(t *testing.T, r *Router, name string, v any) content.Result {
	t.Helper()
	args, err := json.Marshal(v)
	require.NoError(t, err)
	res, err := r.Dispatch(context.Background(), name, args)
	require.NoError(t, err)
	require.NotEmpty(t, res.Parts, "results always carry at least one part")
	return res
}
