// Package server implements the MCP (Model Context Protocol) server that
// fronts the OpenRouter API.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// Notifications (requests without an id) are accepted and never answered.
// Any other method gets error -32601.
//
// # Available Tools
//
// Chat and vision:
//   - chat_completion: Send a conversation, truncated to the model's context window
//   - analyze_image: Ask about one image
//   - multi_image_analysis: Ask about several images in one request
//
// Model catalog:
//   - search_models: Filter the catalog by text, provider, context, price and capabilities
//   - get_model_info: Catalog entry for one model
//   - validate_model: Whether a model id exists
//
// Image generation:
//   - generate_image: Generate images, optionally saving them to disk
//
// # Results
//
// Every tool answers with ordered text and image content. Provider responses
// are normalized by package normalize whatever shape the model used.
//
// # Error Handling
//
// Invalid arguments and upstream failures are tool results with isError set
// and a human-readable explanation; upstream messages are cut to 500
// characters. Only an unknown tool name is a JSON-RPC error (-32601).
//
// # Usage
//
//	router, err := server.NewRouter(server.Deps{Client: client, Catalog: cache, Images: loader})
//	if err != nil {
//	    return err
//	}
//	return server.New(router, version, log).Run(ctx, os.Stdin, os.Stdout)
package server
