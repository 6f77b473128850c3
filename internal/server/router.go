package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ironsheep/openrouter-mcp/internal/catalog"
	"github.com/ironsheep/openrouter-mcp/internal/content"
	"github.com/ironsheep/openrouter-mcp/internal/imaging"
	"github.com/ironsheep/openrouter-mcp/internal/logging"
	"github.com/ironsheep/openrouter-mcp/internal/openrouter"
)

// ErrMethodNotFound is returned by Dispatch for tool names it does not know.
var ErrMethodNotFound = errors.New("method not found")

// maxErrorText bounds upstream error messages shown to the client.
const maxErrorText = 500

// Completer sends chat-completion requests. *openrouter.Client satisfies it.
type Completer interface {
	ChatCompletion(ctx context.Context, req openrouter.ChatRequest) ([]byte, error)
	GenerateImage(ctx context.Context, req openrouter.ChatRequest) ([]byte, error)
}

// Deps are the collaborators shared by every tool handler.
type Deps struct {
	Client  Completer
	Catalog *catalog.Cache
	Images  *imaging.Loader

	// DefaultModel is used by chat tools when the caller names none. When
	// empty, a free model is picked from the catalog.
	DefaultModel string

	// ImageModel is the default for generate_image.
	ImageModel string

	Log *logging.Logger
}

type handlerFunc func(r *Router, ctx context.Context, args json.RawMessage) (content.Result, error)

type registeredTool struct {
	def     *mcp.Tool
	schema  *jsonschema.Resolved
	handler handlerFunc
}

// Router validates tool calls and dispatches them to their handlers.
type Router struct {
	Deps
	log    *logging.Logger
	tools  []*registeredTool
	byName map[string]*registeredTool
}

// validationError marks a handler error caused by the caller's arguments.
type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func invalidf(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// NewRouter registers every tool against d.
func NewRouter(d Deps) (*Router, error) {
	if d.Client == nil || d.Catalog == nil || d.Images == nil {
		return nil, fmt.Errorf("router requires a client, a catalog and an image loader")
	}
	if d.Log == nil {
		d.Log = logging.NewNopLogger()
	}

	handlers := map[string]handlerFunc{
		ToolChatCompletion:     (*Router).handleChatCompletion,
		ToolAnalyzeImage:       (*Router).handleAnalyzeImage,
		ToolMultiImageAnalysis: (*Router).handleMultiImageAnalysis,
		ToolSearchModels:       (*Router).handleSearchModels,
		ToolGetModelInfo:       (*Router).handleGetModelInfo,
		ToolValidateModel:      (*Router).handleValidateModel,
		ToolGenerateImage:      (*Router).handleGenerateImage,
	}

	r := &Router{
		Deps:   d,
		log:    d.Log.Named("router"),
		byName: make(map[string]*registeredTool),
	}
	for _, def := range toolDefinitions() {
		schema, ok := def.InputSchema.(*jsonschema.Schema)
		if !ok {
			return nil, fmt.Errorf("tool %s: input schema has type %T", def.Name, def.InputSchema)
		}
		resolved, err := schema.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("tool %s: invalid input schema: %w", def.Name, err)
		}
		h, ok := handlers[def.Name]
		if !ok {
			return nil, fmt.Errorf("tool %s has no handler", def.Name)
		}
		t := &registeredTool{def: def, schema: resolved, handler: h}
		r.tools = append(r.tools, t)
		r.byName[def.Name] = t
	}
	return r, nil
}

// Tools returns the tool definitions in listing order.
func (r *Router) Tools() []*mcp.Tool {
	out := make([]*mcp.Tool, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.def
	}
	return out
}

// Dispatch runs the named tool.
//
// The only error it returns wraps ErrMethodNotFound. Bad arguments and
// handler failures come back as results with IsError set, so the client
// sees them as tool output.
func (r *Router) Dispatch(ctx context.Context, name string, args json.RawMessage) (content.Result, error) {
	t, ok := r.byName[name]
	if !ok {
		return content.Result{}, fmt.Errorf("%w: %s", ErrMethodNotFound, name)
	}

	args = bytes.TrimSpace(args)
	if len(args) == 0 || bytes.Equal(args, []byte("null")) {
		args = json.RawMessage("{}")
	}
	var instance any
	if err := json.Unmarshal(args, &instance); err != nil {
		return content.Errorf("Invalid arguments for %s: %v", name, err), nil
	}
	if err := t.schema.Validate(instance); err != nil {
		return content.Errorf("Invalid arguments for %s: %v", name, err), nil
	}

	log := r.log.With(logging.String("tool", name))
	started := time.Now()
	res, err := t.handler(r, ctx, args)
	if err != nil {
		var verr *validationError
		if errors.As(err, &verr) {
			log.Debug("tool rejected arguments", logging.Error(err))
			return content.Errorf("%s", verr.msg), nil
		}
		log.Warn("tool failed", logging.Error(err), logging.Duration("took", time.Since(started)))
		return content.Errorf("%s", openrouter.Truncate(err.Error(), maxErrorText)), nil
	}

	log.Debug("tool completed",
		logging.Int("parts", len(res.Parts)),
		logging.Bool("is_error", res.IsError),
		logging.Duration("took", time.Since(started)),
	)
	return res, nil
}

// decodeArgs unmarshals already-validated arguments into dst.
func decodeArgs(args json.RawMessage, dst any) error {
	if err := json.Unmarshal(args, dst); err != nil {
		return invalidf("invalid arguments: %v", err)
	}
	return nil
}

// resolveModel picks the model for a chat call: the caller's choice, then
// the configured default, then the best free model in the catalog.
func (r *Router) resolveModel(ctx context.Context, requested string) string {
	if requested != "" {
		return requested
	}
	if r.DefaultModel != "" {
		return r.DefaultModel
	}
	model := catalog.SelectFreeModel(ctx, r.Catalog)
	r.log.Debug("selected free model", logging.String("model", model))
	return model
}
