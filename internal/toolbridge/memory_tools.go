package toolbridge

import (
	"context"

	"github.com/soyeahso/parley/internal/logging"
	"github.com/soyeahso/parley/internal/memory"
)

// RegisterMemoryTools adds the long-term memory tools to the registry.
func RegisterMemoryTools(reg *Registry, backend memory.Bridge, log *logging.Logger) {
	reg.Register(&searchTool{backend: backend, log: log})
	reg.Register(&addTool{backend: backend, log: log})
}

// searchTool looks up stored facts before the assistant answers
// personal questions.
type searchTool struct {
	backend memory.Bridge
	log     *logging.Logger
}

func (t *searchTool) Name() string { return "search_memory" }

func (t *searchTool) Description() string {
	return "Search user's long-term memory for relevant context. " +
		"Call this BEFORE answering personal questions like " +
		"'what's my favorite...' or 'do you remember...'"
}

func (t *searchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What to search for in memories",
			},
			"user_id": map[string]any{
				"type":        "string",
				"description": "User identifier",
			},
		},
		"required": []string{"query", "user_id"},
	}
}

// Execute searches memory. Backend failures degrade to an empty result
// set; a search miss must never block the conversation.
func (t *searchTool) Execute(ctx context.Context, args map[string]any) Result {
	if falsy(args["query"]) || falsy(args["user_id"]) {
		return Result{
			"success": false,
			"error":   "Missing required arguments: query and user_id",
		}
	}
	query, qok := args["query"].(string)
	userID, uok := args["user_id"].(string)
	if !qok || !uok {
		return Result{
			"success": false,
			"error":   "Arguments query and user_id must be strings",
		}
	}

	t.log.Debug().Str("userId", userID).Str("query", query).Msg("searching memory")
	records, err := t.backend.Search(ctx, query, userID)
	if err != nil {
		t.log.Warn().Err(err).Msg("memory search failed, returning empty results")
		records = nil
	}
	if records == nil {
		records = []memory.Record{}
	}

	return Result{
		"success":  true,
		"memories": records,
		"count":    len(records),
	}
}

// addTool stores a new fact about the user.
type addTool struct {
	backend memory.Bridge
	log     *logging.Logger
}

func (t *addTool) Name() string { return "add_memory" }

func (t *addTool) Description() string {
	return "Store a new fact about the user. " +
		"Call this when user shares personal information, preferences, " +
		"or important details worth remembering."
}

func (t *addTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "The fact to remember about the user",
			},
			"user_id": map[string]any{
				"type":        "string",
				"description": "User identifier",
			},
		},
		"required": []string{"text", "user_id"},
	}
}

// Execute stores a fact. A failed write surfaces as success=false so
// the model never assumes the fact was persisted; a deduplicated fact
// is success with a null memory.
func (t *addTool) Execute(ctx context.Context, args map[string]any) Result {
	if falsy(args["text"]) || falsy(args["user_id"]) {
		return Result{
			"success": false,
			"error":   "Missing required arguments: text and user_id",
		}
	}
	text, tok := args["text"].(string)
	userID, uok := args["user_id"].(string)
	if !tok || !uok {
		return Result{
			"success": false,
			"error":   "Arguments text and user_id must be strings",
		}
	}

	t.log.Debug().Str("userId", userID).Msg("adding memory")
	record, err := t.backend.Add(ctx, text, userID)
	if err != nil {
		t.log.Warn().Err(err).Msg("memory add failed")
		return Result{
			"success": false,
			"error":   "Failed to add memory",
		}
	}
	if record == nil {
		return Result{"success": true, "memory": nil}
	}
	return Result{"success": true, "memory": record}
}

// falsy reports whether a decoded JSON argument counts as absent:
// null, empty string, zero, false, or an empty array/object.
func falsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
