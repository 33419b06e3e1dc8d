package nodes

import (
	"context"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/stream"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

const DefaultMaxIterations = 3

// normalizeMaxIterations returns a sane default when the provided value is invalid.
func normalizeMaxIterations(n int) int {
	if n <= 0 {
		return DefaultMaxIterations
	}
	return n
}

// ===== Node boundary events =====
// State handlers own node_start/node_end: pre-handlers mark entry, post-
// handlers mark completion. Nodes whose handlers do real state work emit
// these themselves; the rest use the generic pair below.

// NodeStartPre returns a pre-handler that only marks node entry on the stream.
func NodeStartPre[I any, S any](node string) func(context.Context, I, *S) (I, error) {
	return func(ctx context.Context, in I, _ *S) (I, error) {
		stream.Emit(ctx, stream.NodeStart(node))
		return in, nil
	}
}

// NodeEndPost returns a post-handler that only marks node completion on the stream.
func NodeEndPost[O any, S any](node string) func(context.Context, O, *S) (O, error) {
	return func(ctx context.Context, out O, _ *S) (O, error) {
		stream.Emit(ctx, stream.NodeEnd(node))
		return out, nil
	}
}

// ===== Usage accounting =====

// recordTurnUsage folds one model response's token usage into the
// conversation turn state.
func recordTurnUsage(ctx context.Context, modelName string, resp *schema.Message) {
	if resp == nil || resp.ResponseMeta == nil || resp.ResponseMeta.Usage == nil {
		return
	}
	err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
		s.Usage.Add(modelName, resp.ResponseMeta.Usage)
		return nil
	})
	if err != nil {
		logx.Debug().Err(err).Msg("usage not recorded: no conversation state in context")
	}
}

// recordAttemptUsage folds one model response's token usage into the
// recommender attempt state.
func recordAttemptUsage(ctx context.Context, modelName string, resp *schema.Message) {
	if resp == nil || resp.ResponseMeta == nil || resp.ResponseMeta.Usage == nil {
		return
	}
	err := compose.ProcessState(ctx, func(_ context.Context, s *model.RecommenderState) error {
		s.Usage.Add(modelName, resp.ResponseMeta.Usage)
		return nil
	})
	if err != nil {
		logx.Debug().Err(err).Msg("usage not recorded: no recommender state in context")
	}
}

// relaxFilters drops structural constraints stepwise as attempts fail: the
// first retry loses the narrowest fields (subCategory, colorHex), the
// second loses everything and searches on the query alone.
func relaxFilters(f model.SearchFilters, iteration int) model.SearchFilters {
	switch {
	case iteration <= 0:
		return f
	case iteration == 1:
		f.SubCategory = ""
		f.ColorHex = ""
		return f
	default:
		return model.SearchFilters{}
	}
}
