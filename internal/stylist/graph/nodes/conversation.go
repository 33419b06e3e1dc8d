package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph/conversations"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph/parsers"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph/prompts"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/guardrails"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/stream"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

// RecommendRunner runs the retrieval workflow for one turn. The
// conversation graph depends on this narrow interface so tests can stub
// retrieval out entirely.
type RecommendRunner interface {
	Recommend(ctx context.Context, in model.RecommendInput) (*model.RecommendResult, error)
}

// NewInputGuardPreHandler seeds the turn state before any node runs.
func NewInputGuardPreHandler() func(context.Context, model.TurnInput, *model.ConversationState) (model.TurnInput, error) {
	return func(ctx context.Context, in model.TurnInput, s *model.ConversationState) (model.TurnInput, error) {
		s.SessionID = in.SessionID
		s.UserID = in.UserID
		s.Message = in.Message
		s.Metadata = map[string]any{}
		stream.Emit(ctx, stream.NodeStart(NodeInputGuard))
		return in, nil
	}
}

// NewInputGuardNode screens the raw user message before any collaborator
// is called.
func NewInputGuardNode(guard *guardrails.SafetyGuardrails) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) (model.GuardedInput, error) {
		verdict := guard.CheckInput(ctx, in.Message)
		if !verdict.IsSafe {
			logx.Warn().
				Str("session_id", in.SessionID).
				Float64("risk", verdict.RiskScore).
				Strs("warnings", verdict.Warnings).
				Msg("input rejected by guardrails")
		}
		return model.GuardedInput{Input: in, Verdict: verdict}, nil
	})
}

// NewInputGuardPostHandler records the verdict in state.
func NewInputGuardPostHandler() func(context.Context, model.GuardedInput, *model.ConversationState) (model.GuardedInput, error) {
	return func(ctx context.Context, out model.GuardedInput, s *model.ConversationState) (model.GuardedInput, error) {
		s.InputSafe = out.Verdict.IsSafe
		s.SanitizedMessage = out.Verdict.SanitizedContent
		s.Warnings = append(s.Warnings, out.Verdict.Warnings...)
		s.Metadata["input_safe"] = out.Verdict.IsSafe
		stream.Emit(ctx, stream.NodeEnd(NodeInputGuard))
		return out, nil
	}
}

// NewBlockedRouteCondition routes unsafe input to the short-circuit refusal.
func NewBlockedRouteCondition() func(context.Context, model.GuardedInput) (string, error) {
	return func(ctx context.Context, in model.GuardedInput) (string, error) {
		if !in.Verdict.IsSafe {
			logx.Debug().Str("session_id", in.Input.SessionID).Msg("routing to blocked responder")
			return NodeBlockedResponder, nil
		}
		return NodeClassifier, nil
	}
}

// NewBlockedResponderNode ends a rejected turn with the fixed refusal. The
// rejected message is not persisted and no model or search call happens.
func NewBlockedResponderNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.GuardedInput) (*model.TurnResult, error) {
		result := &model.TurnResult{
			SessionID: in.Input.SessionID,
			Response:  model.UnsafeInputMessage,
			Blocked:   true,
		}
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			s.FinalResponse = model.UnsafeInputMessage
			s.Metadata["blocked"] = true
			result.Metadata = s.Metadata
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		stream.Emit(ctx, stream.Chunk(model.UnsafeInputMessage))
		return result, nil
	})
}

// NewClassifierNode classifies the sanitized message in its conversation
// context. Any collaborator or parser failure falls back to the retrieval
// route: a shopper must never be turned away by a broken classifier.
func NewClassifierNode(mm *conversations.MessagesManager, models *ChatModels, timeout time.Duration) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.GuardedInput) (model.IntentResult, error) {
		sanitized := in.Verdict.SanitizedContent

		turnCtx, err := mm.ProcessTurnMessage(ctx, in.Input.SessionID, sanitized)
		if err != nil {
			// History trouble should not end the turn; classify on the
			// message alone.
			logx.Error().Err(err).Str("session_id", in.Input.SessionID).Msg("conversation context unavailable")
			turnCtx = "<current_message_to_analyze>\nUserMessage(" + sanitized + ")\n</current_message_to_analyze>"
		}

		systemPrompt, err := prompts.RenderIntentSystem(ctx)
		if err != nil {
			logx.Error().Err(err).Msg("render intent prompt failed, using fallback route")
			return model.FallbackIntent("intent prompt unavailable"), nil
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		resp, err := models.Analysis.Generate(callCtx, []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(turnCtx),
		})
		if err != nil {
			logx.Error().Err(err).Str("session_id", in.Input.SessionID).Msg("intent model failed, using fallback route")
			return model.FallbackIntent("classifier unavailable"), nil
		}
		recordTurnUsage(ctx, models.AnalysisModelName, resp)

		parsed, err := parsers.ParseIntentResult(resp.Content)
		if err != nil {
			logx.Warn().Err(err).Msg("intent reply unparsable, using fallback route")
			return model.FallbackIntent("classifier reply unparsable"), nil
		}
		return *parsed, nil
	})
}

// NewClassifierPostHandler records the verdict and reports it on the stream.
func NewClassifierPostHandler() func(context.Context, model.IntentResult, *model.ConversationState) (model.IntentResult, error) {
	return func(ctx context.Context, out model.IntentResult, s *model.ConversationState) (model.IntentResult, error) {
		s.Intent = out
		s.Metadata["intent"] = string(out.Intent)
		s.Metadata["task_type"] = string(out.TaskType)
		if out.Fallback {
			s.Metadata["intent_fallback"] = true
		}
		logx.Debug().
			Str("session_id", s.SessionID).
			Str("intent", string(out.Intent)).
			Str("task_type", string(out.TaskType)).
			Float64("confidence", out.Confidence).
			Bool("fallback", out.Fallback).
			Msg("intent classified")
		stream.Emit(ctx, stream.Intent(string(out.Intent), string(out.TaskType), out.Confidence))
		stream.Emit(ctx, stream.NodeEnd(NodeClassifier))
		return out, nil
	}
}

// NewIntentRouteCondition dispatches on the classified intent. The switch
// is exhaustive over the closed intent set; anything else takes the
// retrieval route.
func NewIntentRouteCondition() func(context.Context, model.IntentResult) (string, error) {
	return func(ctx context.Context, in model.IntentResult) (string, error) {
		switch in.Intent {
		case model.IntentGeneral:
			return NodeStylistAssembler, nil
		case model.IntentClothing:
			return NodeRecommendBridge, nil
		case model.IntentOutfitAnalysis:
			return NodeOutfitAnalyzer, nil
		default:
			logx.Warn().Str("intent", string(in.Intent)).Msg("unroutable intent, taking retrieval route")
			return NodeRecommendBridge, nil
		}
	}
}

// NewStylistAssemblerNode builds the chat-model context for a general turn.
func NewStylistAssemblerNode(mm *conversations.MessagesManager, promptConfig *model.StylistPromptConfig) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.IntentResult) ([]*schema.Message, error) {
		var sessionID, message string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			sessionID = s.SessionID
			message = s.SanitizedMessage
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		systemPrompt, err := prompts.RenderStylistSystem(ctx, *promptConfig)
		if err != nil {
			return nil, fmt.Errorf("render stylist prompt: %w", err)
		}

		messages, err := mm.BuildReplyContext(ctx, sessionID, systemPrompt, message)
		if err != nil {
			return nil, fmt.Errorf("build reply context: %w", err)
		}
		return messages, nil
	})
}

// NewStylistChatModelPostHandler accounts usage for the general-chat model call.
func NewStylistChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.ConversationState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, s *model.ConversationState) (*schema.Message, error) {
		if out != nil && out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			s.Usage.Add(modelName, out.ResponseMeta.Usage)
			logx.Debug().
				Str("session_id", s.SessionID).
				Str("node", NodeStylistChatModel).
				Str("model", modelName).
				Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
				Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
				Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
				Float64("cost_usd", s.Usage.CostUSD).
				Msg("LLM usage")
		}
		stream.Emit(ctx, stream.NodeEnd(NodeStylistChatModel))
		return out, nil
	}
}

// NewRecommendBridgeNode hands the turn to the retrieval workflow and turns
// its outcome into a draft reply. The recommender reports its own progress
// through the same context-bound stream.
func NewRecommendBridgeNode(runner RecommendRunner, mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.IntentResult) (*schema.Message, error) {
		var sessionID, userID, message string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			sessionID = s.SessionID
			userID = s.UserID
			message = s.SanitizedMessage
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		rec, err := runner.Recommend(ctx, model.RecommendInput{
			Query:     message,
			UserID:    userID,
			SessionID: sessionID,
		})
		if err != nil {
			return nil, fmt.Errorf("recommendation workflow: %w", err)
		}

		err = compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			s.Recommendation = rec
			s.RetrievedItems = rec.ItemIDs
			s.Metadata["iterations"] = rec.Iterations
			if rec.Fallback {
				s.Metadata["fallback"] = true
			}
			if rec.Err != "" {
				s.Metadata["error"] = rec.Err
			}
			if u, ok := rec.Metadata["usage"].(model.Usage); ok {
				s.Usage.Merge(u)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if len(rec.ItemIDs) > 0 {
			if err := mm.AttachItems(ctx, sessionID, rec.ItemIDs); err != nil {
				logx.Warn().Err(err).Str("session_id", sessionID).Msg("could not attach items to session")
			}
		}

		return schema.AssistantMessage(rec.Message, nil), nil
	})
}

// NewOutfitAnalyzerNode reasons over the items already surfaced in the
// session. With nothing on the table it explains what it needs instead of
// guessing.
func NewOutfitAnalyzerNode(
	mm *conversations.MessagesManager,
	catalog model.CatalogRepository,
	models *ChatModels,
	promptConfig *model.StylistPromptConfig,
	timeout time.Duration,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.IntentResult) (*schema.Message, error) {
		var sessionID, message string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			sessionID = s.SessionID
			message = s.SanitizedMessage
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		ids, err := mm.AttachedItems(ctx, sessionID)
		if err != nil {
			logx.Warn().Err(err).Str("session_id", sessionID).Msg("attached items unavailable")
		}
		if len(ids) == 0 {
			return schema.AssistantMessage(model.NoItemsToCompareMessage, nil), nil
		}

		items, err := catalog.FindByIDs(ctx, ids)
		if err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Msg("could not load items for outfit analysis")
			return schema.AssistantMessage(model.OutfitUnavailableMessage, nil), nil
		}
		if len(items) == 0 {
			return schema.AssistantMessage(model.NoItemsToCompareMessage, nil), nil
		}

		systemPrompt, err := prompts.RenderOutfitSystem(ctx, *promptConfig, items)
		if err != nil {
			return nil, fmt.Errorf("render outfit prompt: %w", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		resp, err := models.Response.Generate(callCtx, []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(message),
		})
		if err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Msg("outfit analysis model failed")
			return schema.AssistantMessage(model.OutfitUnavailableMessage, nil), nil
		}
		recordTurnUsage(ctx, models.ResponseModelName, resp)

		stream.Emit(ctx, stream.Analysis(resp.Content))
		return resp, nil
	})
}

// NewOutputGuardNode screens the drafted reply before release.
func NewOutputGuardNode(guard *guardrails.SafetyGuardrails) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, draft *schema.Message) (model.DraftVerdict, error) {
		if draft == nil {
			return model.DraftVerdict{}, fmt.Errorf("nil draft message")
		}

		var prompt string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			prompt = s.SanitizedMessage
			return nil
		})
		if err != nil {
			return model.DraftVerdict{}, fmt.Errorf("failed to access state: %w", err)
		}

		verdict := guard.CheckOutput(ctx, prompt, draft.Content)
		if !verdict.IsSafe {
			logx.Warn().
				Float64("risk", verdict.RiskScore).
				Strs("warnings", verdict.Warnings).
				Msg("draft rejected by guardrails")
		}
		return model.DraftVerdict{
			Draft:    verdict.SanitizedContent,
			Safe:     verdict.IsSafe,
			Warnings: verdict.Warnings,
		}, nil
	})
}

// NewOutputGuardPostHandler records the output verdict in state.
func NewOutputGuardPostHandler() func(context.Context, model.DraftVerdict, *model.ConversationState) (model.DraftVerdict, error) {
	return func(ctx context.Context, out model.DraftVerdict, s *model.ConversationState) (model.DraftVerdict, error) {
		s.OutputSafe = out.Safe
		s.Warnings = append(s.Warnings, out.Warnings...)
		s.Metadata["output_safe"] = out.Safe
		stream.Emit(ctx, stream.NodeEnd(NodeOutputGuard))
		return out, nil
	}
}

// NewResponderNode releases the final text: the sanitized draft when it
// passed, the fixed regeneration notice when it did not. Only released text
// is ever persisted to the session history.
func NewResponderNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, v model.DraftVerdict) (*model.TurnResult, error) {
		final := v.Draft
		if !v.Safe {
			final = model.UnsafeOutputMessage
		}

		result := &model.TurnResult{Response: final}
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			s.FinalResponse = final
			s.Metadata["usage"] = s.Usage
			result.SessionID = s.SessionID
			result.Intent = s.Intent.Intent
			result.TaskType = s.Intent.TaskType
			result.ItemIDs = s.RetrievedItems
			result.Metadata = s.Metadata
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if err := mm.SaveResponse(ctx, result.SessionID, final); err != nil {
			logx.Error().Err(err).Str("session_id", result.SessionID).Msg("could not persist assistant reply")
		}

		stream.Emit(ctx, stream.Chunk(final))
		return result, nil
	})
}
