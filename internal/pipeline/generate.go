package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/recaplab/recap/internal/assistant"
)

const (
	// promptLengthThreshold and itemCountThreshold gate direct mode:
	// below both, inputs are embedded in the prompt; at or above
	// either, inputs go through the transient-file side channel.
	promptLengthThreshold = 256000
	itemCountThreshold    = 2000

	attachmentNote = "The input items are attached as a JSON file."
)

// Generator produces one structured summary object per invocation by
// driving a forced-function conversation against the AI service.
type Generator struct {
	svc ConversationService
}

// NewGenerator creates a Generator over the given service boundary.
func NewGenerator(svc ConversationService) *Generator {
	if svc == nil {
		panic("pipeline: conversation service must not be nil")
	}
	return &Generator{svc: svc}
}

// GenerationInput is one unit of work for the Generator: a bounded
// input set (records or prior summaries), the instruction text, the
// forced output function, and the service profile to run under.
type GenerationInput struct {
	Instructions string
	Items        interface{}
	ItemCount    int
	Function     assistant.ForcedFunction
	ProfileID    string
}

// Generate runs one summarization call. The conversation thread and
// any uploaded file are released on every exit path.
func (g *Generator) Generate(ctx context.Context, in GenerationInput) (map[string]interface{}, error) {
	serialized, err := json.Marshal(in.Items)
	if err != nil {
		return nil, fmt.Errorf("serialize inputs: %w", err)
	}
	prompt := in.Instructions + "\n\n" + string(serialized)

	conversationID, err := g.svc.CreateConversation(ctx)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	defer func() {
		if err := g.svc.DeleteConversation(ctx, conversationID); err != nil {
			slog.Warn("[Generator] Conversation cleanup failed",
				"conversation_id", conversationID, "error", err)
		}
	}()

	if len(prompt) < promptLengthThreshold && in.ItemCount < itemCountThreshold {
		if err := g.svc.PostMessage(ctx, conversationID, prompt, ""); err != nil {
			return nil, fmt.Errorf("post message: %w", err)
		}
	} else {
		fileID, err := g.svc.UploadTransientFile(ctx, "inputs.json", serialized)
		if err != nil {
			return nil, fmt.Errorf("upload inputs: %w", err)
		}
		defer func() {
			if err := g.svc.DeleteTransientFile(ctx, fileID); err != nil {
				slog.Warn("[Generator] File cleanup failed", "file_id", fileID, "error", err)
			}
		}()

		minimal := in.Instructions + "\n\n" + attachmentNote
		if err := g.svc.PostMessage(ctx, conversationID, minimal, fileID); err != nil {
			return nil, fmt.Errorf("post message: %w", err)
		}
	}

	args, err := g.svc.RunToCompletion(ctx, conversationID, in.ProfileID, in.Function)
	if err != nil {
		return nil, err
	}

	var output map[string]interface{}
	if err := json.Unmarshal(args, &output); err != nil {
		return nil, fmt.Errorf("structured call returned invalid JSON: %w", err)
	}
	return output, nil
}
