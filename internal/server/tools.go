package server

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names.
const (
	ToolChatCompletion     = "chat_completion"
	ToolAnalyzeImage       = "analyze_image"
	ToolMultiImageAnalysis = "multi_image_analysis"
	ToolSearchModels       = "search_models"
	ToolGetModelInfo       = "get_model_info"
	ToolValidateModel      = "validate_model"
	ToolGenerateImage      = "generate_image"
)

func ptr[T any](v T) *T { return &v }

func object(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func stringProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func boolProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: desc}
}

func intProp(desc string, min, max float64) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: "integer", Description: desc, Minimum: ptr(min)}
	if max > 0 {
		s.Maximum = ptr(max)
	}
	return s
}

func numberProp(desc string, min float64, max *float64) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Description: desc, Minimum: ptr(min), Maximum: max}
}

func modelProp() *jsonschema.Schema {
	return stringProp("OpenRouter model id, e.g. \"anthropic/claude-3.5-sonnet\". Defaults to the configured model, then to a free model.")
}

// toolDefinitions returns the advertised tools in listing order.
func toolDefinitions() []*mcp.Tool {
	return []*mcp.Tool{
		{
			Name:        ToolChatCompletion,
			Description: "Send a conversation to an OpenRouter model and return its reply. Older messages are dropped when the conversation exceeds the model's context window.",
			InputSchema: object([]string{"messages"}, map[string]*jsonschema.Schema{
				"messages": {
					Type:        "array",
					Description: "Conversation so far, oldest first.",
					MinItems:    ptr(1),
					Items: object([]string{"role", "content"}, map[string]*jsonschema.Schema{
						"role": {Type: "string", Enum: []any{"system", "user", "assistant"}},
						"content": {
							Types:       []string{"string", "array"},
							Description: "Plain text, or a list of {type:\"text\",text} and {type:\"image_url\",image_url:{url}} parts. Image urls may be http(s), data URIs or local file paths.",
						},
					}),
				},
				"model":       modelProp(),
				"temperature": numberProp("Sampling temperature between 0 and 2.", 0, ptr(2.0)),
				"max_tokens":  intProp("Maximum number of tokens to generate.", 1, 0),
			}),
		},
		{
			Name:        ToolAnalyzeImage,
			Description: "Ask a vision model a question about one image. The image is resized to fit 800x800 before it is sent.",
			InputSchema: object([]string{"image_path"}, map[string]*jsonschema.Schema{
				"image_path": {Type: "string", Description: "Local file path, http(s) URL or data URI of the image.", MinLength: ptr(1)},
				"question":   stringProp("What to ask about the image. Defaults to a general description request."),
				"model":      modelProp(),
			}),
		},
		{
			Name:        ToolMultiImageAnalysis,
			Description: "Ask a vision model about several images at once. Images are fetched concurrently and sent in the given order.",
			InputSchema: object([]string{"images", "prompt"}, map[string]*jsonschema.Schema{
				"images": {
					Type:        "array",
					Description: "Images to analyze.",
					MinItems:    ptr(1),
					Items: object([]string{"url"}, map[string]*jsonschema.Schema{
						"url": {Type: "string", Description: "Local file path, http(s) URL or data URI.", MinLength: ptr(1)},
						"alt": stringProp("Optional description sent alongside the image."),
					}),
				},
				"prompt":            stringProp("Instruction or question covering all images."),
				"markdown_response": boolProp("Return markdown (default true). When false, markdown formatting is stripped from the reply."),
				"model":             modelProp(),
			}),
		},
		{
			Name:        ToolSearchModels,
			Description: "Search the OpenRouter model catalog. Returns matching models as JSON.",
			InputSchema: object(nil, map[string]*jsonschema.Schema{
				"query":              stringProp("Case-insensitive text matched against model id, description and provider."),
				"provider":           stringProp("Exact provider namespace, e.g. \"openai\"."),
				"minContextLength":   intProp("Minimum context length in tokens.", 0, 0),
				"maxContextLength":   intProp("Maximum context length in tokens.", 0, 0),
				"maxPromptPrice":     numberProp("Maximum price per prompt token in USD.", 0, nil),
				"maxCompletionPrice": numberProp("Maximum price per completion token in USD.", 0, nil),
				"capabilities": object(nil, map[string]*jsonschema.Schema{
					"functions": boolProp("Require function calling."),
					"tools":     boolProp("Require tool use."),
					"vision":    boolProp("Require image input."),
					"json_mode": boolProp("Require JSON output mode."),
				}),
				"limit": intProp("Maximum number of results (default 10, larger values are clamped to 50).", 1, 0),
			}),
		},
		{
			Name:        ToolGetModelInfo,
			Description: "Return the catalog entry for one model as JSON.",
			InputSchema: object([]string{"model"}, map[string]*jsonschema.Schema{
				"model": {Type: "string", Description: "Exact model id.", MinLength: ptr(1)},
			}),
		},
		{
			Name:        ToolValidateModel,
			Description: "Check whether a model id exists in the OpenRouter catalog.",
			InputSchema: object([]string{"model"}, map[string]*jsonschema.Schema{
				"model": {Type: "string", Description: "Exact model id.", MinLength: ptr(1)},
			}),
		},
		{
			Name:        ToolGenerateImage,
			Description: "Generate an image from a text prompt with an image-capable model. Optionally saves the result to disk.",
			InputSchema: object([]string{"prompt"}, map[string]*jsonschema.Schema{
				"prompt":    stringProp("Description of the image to generate."),
				"model":     stringProp("Image-capable model id. Defaults to the configured image model."),
				"save_path": stringProp("Absolute file or directory path to save generated images to. A trailing separator means directory."),
			}),
		},
	}
}
