package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/samestrin/dirindex/internal/mcp"
	"github.com/samestrin/dirindex/internal/semantic"
)

const defaultToolLimit = 10

// Deps is everything the tool handlers need.
type Deps struct {
	Pipeline *semantic.Pipeline
	Engine   *semantic.Engine
	Meta     *semantic.MetadataStore
	Vectors  semantic.VectorStore
	Embedder semantic.Embedder

	ServerName string
	Version    string
	Collection string
	Logger     *slog.Logger
}

// NewServer builds the tool server over the given stream pair with all five
// tools registered in their published order.
func NewServer(reader io.Reader, writer io.Writer, deps Deps) *mcp.Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	srv := mcp.NewServer(reader, writer, deps.Logger)
	srv.SetServerInfo(deps.ServerName, deps.Version)

	h := &handlers{deps: deps}
	srv.RegisterTool(toolIndex, h.index)
	srv.RegisterTool(toolSearch, h.search)
	srv.RegisterTool(toolSimilarFiles, h.similarFiles)
	srv.RegisterTool(toolGetContent, h.getContent)
	srv.RegisterTool(toolServerInfo, h.serverInfo)
	return srv
}

type handlers struct {
	deps Deps
}

// stringArg extracts a required string argument.
func stringArg(args map[string]interface{}, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", mcp.ErrInvalidArguments("missing required argument: " + name)
	}
	s, ok := v.(string)
	if !ok {
		return "", mcp.ErrInvalidArguments("argument " + name + " must be a string")
	}
	return s, nil
}

// optionalStringArg extracts an optional string argument.
func optionalStringArg(args map[string]interface{}, name string) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", mcp.ErrInvalidArguments("argument " + name + " must be a string")
	}
	return s, nil
}

// optionalIntArg extracts an optional integer argument. JSON numbers decode
// as float64, so a fractional value is rejected rather than truncated.
func optionalIntArg(args map[string]interface{}, name string, def int) (int, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, mcp.ErrInvalidArguments("argument " + name + " must be an integer")
	}
	return int(f), nil
}

func (h *handlers) index(ctx context.Context, args map[string]interface{}) (string, error) {
	raw, err := stringArg(args, "directory_path")
	if err != nil {
		return "", err
	}

	var roots []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			roots = append(roots, p)
		}
	}
	if len(roots) == 0 {
		return "", mcp.ErrInvalidArguments("directory_path must name at least one directory")
	}

	stats, err := h.deps.Pipeline.IndexRoots(ctx, roots)
	if err != nil {
		return "", err
	}
	return encodeResult(stats)
}

func (h *handlers) search(ctx context.Context, args map[string]interface{}) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}
	dir, err := optionalStringArg(args, "directory_path")
	if err != nil {
		return "", err
	}
	limit, err := optionalIntArg(args, "limit", defaultToolLimit)
	if err != nil {
		return "", err
	}

	results, err := h.deps.Engine.Search(ctx, query, semantic.SearchOptions{
		DirectoryFilter: dir,
		Limit:           limit,
	})
	if err != nil {
		return "", err
	}
	h.deps.Engine.HydratePreviews(ctx, results)
	return encodeResult(map[string]interface{}{
		"query":   query,
		"results": results,
	})
}

func (h *handlers) similarFiles(ctx context.Context, args map[string]interface{}) (string, error) {
	path, err := stringArg(args, "file_path")
	if err != nil {
		return "", err
	}
	limit, err := optionalIntArg(args, "limit", defaultToolLimit)
	if err != nil {
		return "", err
	}

	results, err := h.deps.Engine.FindSimilarFiles(ctx, path, limit)
	if err != nil {
		return "", err
	}
	return encodeResult(map[string]interface{}{
		"file_path": path,
		"results":   results,
	})
}

func (h *handlers) getContent(ctx context.Context, args map[string]interface{}) (string, error) {
	path, err := stringArg(args, "file_path")
	if err != nil {
		return "", err
	}
	chunks, err := optionalStringArg(args, "chunks")
	if err != nil {
		return "", err
	}

	var rng *semantic.ChunkRange
	if chunks != "" {
		parsed, err := semantic.ParseChunkRange(chunks)
		if err != nil {
			return "", mcp.ErrInvalidArguments(err.Error())
		}
		rng = &parsed
	}

	return h.deps.Engine.GetFileContent(ctx, path, rng)
}

func (h *handlers) serverInfo(ctx context.Context, args map[string]interface{}) (string, error) {
	info := map[string]interface{}{
		"name":       h.deps.ServerName,
		"version":    h.deps.Version,
		"model":      h.deps.Embedder.ModelName(),
		"dimensions": h.deps.Embedder.Dimensions(),
		"collection": h.deps.Collection,
	}

	if dirs, err := h.deps.Meta.CountDirectories(ctx); err == nil {
		info["directories"] = dirs
	}
	if files, err := h.deps.Meta.CountFiles(ctx); err == nil {
		info["files"] = files
	}
	if chunks, err := h.deps.Meta.CountChunks(ctx); err == nil {
		info["chunks"] = chunks
	}
	if ci, err := h.deps.Vectors.Info(ctx); err == nil {
		info["vector_points"] = ci.PointsCount
		info["indexed_vectors"] = ci.IndexedVectorsCount
	}

	return encodeResult(info)
}

func encodeResult(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(data), nil
}
