package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph/parsers"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph/prompts"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/search"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/stream"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

// NewAnalyzePreHandler seeds attempt state on first entry and carries the
// loop's refinement suggestions back in on later passes.
func NewAnalyzePreHandler() func(context.Context, model.RecommendInput, *model.RecommenderState) (model.RecommendInput, error) {
	return func(ctx context.Context, in model.RecommendInput, s *model.RecommenderState) (model.RecommendInput, error) {
		if s.UserQuery == "" {
			s.UserQuery = in.Query
			s.UserID = in.UserID
			s.SessionID = in.SessionID
		}
		s.Suggestions = in.Suggestions
		stream.Emit(ctx, stream.NodeStart(NodeAnalyzeQuery))
		stream.Emit(ctx, stream.Status("analyzing the request"))
		return in, nil
	}
}

// NewAnalyzeNode turns the request into a semantic query plus structural
// filters. A broken analysis never ends the attempt: the raw request text
// runs unfiltered instead.
func NewAnalyzeNode(models *ChatModels, timeout time.Duration) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.RecommendInput) (model.QueryAnalysis, error) {
		systemPrompt, err := prompts.RenderAnalysisSystem(ctx)
		if err != nil {
			logx.Error().Err(err).Msg("render analysis prompt failed, searching raw query")
			return fallbackAnalysis(in.Query), nil
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		resp, err := models.Analysis.Generate(callCtx, []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(analysisUserContent(in)),
		})
		if err != nil {
			logx.Error().Err(err).Msg("analysis model failed, searching raw query")
			return fallbackAnalysis(in.Query), nil
		}
		recordAttemptUsage(ctx, models.AnalysisModelName, resp)

		parsed, err := parsers.ParseQueryAnalysis(resp.Content)
		if err != nil {
			logx.Warn().Err(err).Msg("analysis reply unparsable, searching raw query")
			return fallbackAnalysis(in.Query), nil
		}
		return *parsed, nil
	})
}

func fallbackAnalysis(query string) model.QueryAnalysis {
	return model.QueryAnalysis{SemanticQuery: query, Fallback: true}
}

func analysisUserContent(in model.RecommendInput) string {
	var b strings.Builder
	b.WriteString("Request: ")
	b.WriteString(in.Query)
	if len(in.Suggestions) > 0 {
		b.WriteString("\n\nRefinement guidance from the previous attempt, follow it exactly:\n")
		for _, sg := range in.Suggestions {
			b.WriteString("- " + sg + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewAnalyzePostHandler records the analysis and enforces the relaxation
// ladder on loop passes: whatever the model returned, filters the previous
// round decided to drop stay dropped.
func NewAnalyzePostHandler() func(context.Context, model.QueryAnalysis, *model.RecommenderState) (model.QueryAnalysis, error) {
	return func(ctx context.Context, out model.QueryAnalysis, s *model.RecommenderState) (model.QueryAnalysis, error) {
		out.Filters = relaxFilters(out.Filters, s.Iteration)
		s.Analysis = out
		logx.Debug().
			Str("session_id", s.SessionID).
			Int("iteration", s.Iteration).
			Str("semantic_query", out.SemanticQuery).
			Bool("needs_profile", out.NeedsProfile).
			Bool("fallback", out.Fallback).
			Msg("query analyzed")
		stream.Emit(ctx, stream.Filters(out.Filters.Map(), out.SemanticQuery))
		stream.Emit(ctx, stream.NodeEnd(NodeAnalyzeQuery))
		return out, nil
	}
}

// NewProfileRouteCondition fetches the profile only when the analysis asked
// for it, the caller is identified, and it is not already loaded from an
// earlier pass.
func NewProfileRouteCondition() func(context.Context, model.QueryAnalysis) (string, error) {
	return func(ctx context.Context, in model.QueryAnalysis) (string, error) {
		need := false
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.RecommenderState) error {
			need = in.NeedsProfile && s.Profile == nil && s.UserID != ""
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}
		if need {
			return NodeFetchProfile, nil
		}
		return NodeSearchCatalog, nil
	}
}

// NewFetchProfilePreHandler marks profile loading on the stream.
func NewFetchProfilePreHandler() func(context.Context, model.QueryAnalysis, *model.RecommenderState) (model.QueryAnalysis, error) {
	return func(ctx context.Context, in model.QueryAnalysis, _ *model.RecommenderState) (model.QueryAnalysis, error) {
		stream.Emit(ctx, stream.NodeStart(NodeFetchProfile))
		stream.Emit(ctx, stream.Status("loading your style profile"))
		return in, nil
	}
}

// NewFetchProfileNode loads the user's style profile. Profile trouble only
// costs personalization, never the attempt.
func NewFetchProfileNode(profiles model.ProfileRepository, timeout time.Duration) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryAnalysis) (model.QueryAnalysis, error) {
		var userID string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.RecommenderState) error {
			userID = s.UserID
			return nil
		})
		if err != nil {
			return in, fmt.Errorf("failed to access state: %w", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		profile, err := profiles.GetProfile(callCtx, userID)
		if err != nil {
			logx.Warn().Err(err).Str("user_id", userID).Msg("profile unavailable, continuing without personalization")
			return in, nil
		}
		if profile == nil {
			logx.Debug().Str("user_id", userID).Msg("no stored profile for user")
			return in, nil
		}

		err = compose.ProcessState(ctx, func(_ context.Context, s *model.RecommenderState) error {
			s.Profile = profile
			return nil
		})
		if err != nil {
			return in, fmt.Errorf("failed to access state: %w", err)
		}
		return in, nil
	})
}

// NewSearchPreHandler marks retrieval on the stream.
func NewSearchPreHandler() func(context.Context, model.QueryAnalysis, *model.RecommenderState) (model.QueryAnalysis, error) {
	return func(ctx context.Context, in model.QueryAnalysis, _ *model.RecommenderState) (model.QueryAnalysis, error) {
		stream.Emit(ctx, stream.NodeStart(NodeSearchCatalog))
		stream.Emit(ctx, stream.Status("searching the catalog"))
		return in, nil
	}
}

// NewSearchNode runs catalog retrieval for the current analysis. Collaborator
// failures become a sanitized outcome, never a graph error: the terminal
// stage owns how failures read to the user.
func NewSearchNode(client *search.Client, recConfig *model.RecommenderConfig) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryAnalysis) (model.SearchOutcome, error) {
		var profile *model.UserProfile
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.RecommenderState) error {
			profile = s.Profile
			return nil
		})
		if err != nil {
			return model.SearchOutcome{}, fmt.Errorf("failed to access state: %w", err)
		}

		stream.Emit(ctx, stream.ToolCall("catalog_search", map[string]any{
			"semantic_query": in.SemanticQuery,
			"filters":        in.Filters.Map(),
			"limit":          recConfig.SearchLimit,
		}))

		results, err := client.Search(ctx, search.Query{
			SemanticQuery: in.SemanticQuery,
			Filters:       in.Filters,
			Profile:       profile,
			Limit:         recConfig.SearchLimit,
		})
		if err != nil {
			msg, kind := userFacingSearchFailure(err)
			logx.Error().Err(err).Str("kind", kind).Msg("catalog search failed")
			return model.SearchOutcome{Err: msg, ErrKind: kind}, nil
		}
		return model.SearchOutcome{Results: results}, nil
	})
}

// userFacingSearchFailure extracts the sanitized message and kind from a
// search failure. Raw collaborator text never leaves this function.
func userFacingSearchFailure(err error) (msg, kind string) {
	var serr *search.SearchError
	if errors.As(err, &serr) {
		return serr.UserMessage, serr.Kind
	}
	return search.MsgUnexpected, search.KindUnknown
}

// NewVerifyNode keeps only results that honor the active filters and judges
// whether the attempt produced enough of them.
func NewVerifyNode(recConfig *model.RecommenderConfig) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.SearchOutcome) (model.VerifyOutcome, error) {
		if in.Err != "" {
			return model.VerifyOutcome{Err: in.Err, ErrKind: in.ErrKind}, nil
		}

		var filters model.SearchFilters
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.RecommenderState) error {
			filters = s.Analysis.Filters
			return nil
		})
		if err != nil {
			return model.VerifyOutcome{}, fmt.Errorf("failed to access state: %w", err)
		}

		valid := make([]model.ScoredItem, 0, len(in.Results))
		ids := make([]string, 0, len(in.Results))
		for _, r := range in.Results {
			if r.Item.MatchesFilters(filters) {
				valid = append(valid, r)
				ids = append(ids, r.Item.ID)
			}
		}

		return model.VerifyOutcome{
			Valid:      valid,
			ValidIDs:   ids,
			Sufficient: len(valid) >= recConfig.MinResults,
		}, nil
	})
}

// NewVerifyPostHandler closes out one pass: bumps the iteration counter,
// records stage metadata, and reports the verified ids.
func NewVerifyPostHandler() func(context.Context, model.VerifyOutcome, *model.RecommenderState) (model.VerifyOutcome, error) {
	return func(ctx context.Context, out model.VerifyOutcome, s *model.RecommenderState) (model.VerifyOutcome, error) {
		s.Iteration++
		s.Err = out.Err
		s.ErrKind = out.ErrKind
		s.StageMeta = append(s.StageMeta, map[string]any{
			"iteration":      s.Iteration,
			"semantic_query": s.Analysis.SemanticQuery,
			"filters":        s.Analysis.Filters.Map(),
			"valid_results":  len(out.ValidIDs),
			"sufficient":     out.Sufficient,
		})
		logx.Debug().
			Str("session_id", s.SessionID).
			Int("iteration", s.Iteration).
			Int("valid_results", len(out.ValidIDs)).
			Bool("sufficient", out.Sufficient).
			Msg("results verified")
		if out.Err == "" {
			stream.Emit(ctx, stream.ItemsFound(out.ValidIDs, s.Iteration))
		}
		stream.Emit(ctx, stream.NodeEnd(NodeVerifyResults))
		return out, nil
	}
}

// NewRefineRouteCondition decides between another pass and finalization.
// Infrastructure failures are terminal: retrying a broken dependency inside
// one request only burns the attempt budget.
func NewRefineRouteCondition(maxIterations int) func(context.Context, model.VerifyOutcome) (string, error) {
	return func(ctx context.Context, in model.VerifyOutcome) (string, error) {
		var iteration int
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.RecommenderState) error {
			iteration = s.Iteration
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}

		switch {
		case in.Err != "":
			return NodeComposeReply, nil
		case in.Sufficient:
			return NodeComposeReply, nil
		case iteration >= normalizeMaxIterations(maxIterations):
			logx.Debug().Int("iteration", iteration).Msg("attempt budget exhausted, finalizing with what we have")
			return NodeComposeReply, nil
		default:
			logx.Debug().Int("iteration", iteration).Msg("too few verified results, refining")
			return NodeRefineQuery, nil
		}
	}
}

// NewRefineNode prepares the next pass. Relaxation is ladder-shaped and
// code-enforced; the suggestions only explain the change to the analysis
// model so its rewritten query stays coherent with the loosened filters.
func NewRefineNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.VerifyOutcome) (model.RecommendInput, error) {
		var (
			query     string
			userID    string
			sessionID string
			iteration int
			filters   model.SearchFilters
		)
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.RecommenderState) error {
			query = s.UserQuery
			userID = s.UserID
			sessionID = s.SessionID
			iteration = s.Iteration
			filters = s.Analysis.Filters
			return nil
		})
		if err != nil {
			return model.RecommendInput{}, fmt.Errorf("failed to access state: %w", err)
		}

		stream.Emit(ctx, stream.Status("refining the search"))
		return model.RecommendInput{
			Query:       query,
			UserID:      userID,
			SessionID:   sessionID,
			Suggestions: refineSuggestions(filters, iteration, len(in.ValidIDs)),
		}, nil
	})
}

// refineSuggestions names the constraints the ladder drops on the next pass.
func refineSuggestions(f model.SearchFilters, iteration, found int) []string {
	out := []string{fmt.Sprintf("the previous pass verified only %d matching items, we need more", found)}
	next := relaxFilters(f, iteration)
	if f.SubCategory != "" && next.SubCategory == "" {
		out = append(out, "drop the subCategory filter")
	}
	if f.ColorHex != "" && next.ColorHex == "" {
		out = append(out, "drop the colorHex filter; mention the color in the semantic query instead")
	}
	if f.Category != "" && next.Category == "" {
		out = append(out, "drop the category filter")
	}
	if f.Brand != "" && next.Brand == "" {
		out = append(out, "drop the brand filter; mention the brand in the semantic query instead")
	}
	return append(out, "broaden the semantic query with related styles and looser wording")
}

// NewComposeReplyNode ends the attempt with exactly one of three outcomes:
// a styled reply over enough verified items, the fallback when the budget
// ran out short, or the sanitized failure message.
func NewComposeReplyNode(models *ChatModels, promptConfig *model.StylistPromptConfig, timeout time.Duration) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.VerifyOutcome) (*model.RecommendResult, error) {
		var userQuery string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.RecommenderState) error {
			userQuery = s.UserQuery
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		result := &model.RecommendResult{}
		switch {
		case in.Err != "":
			result.Err = in.Err
			result.Message = in.Err
		case in.Sufficient:
			result.Success = true
			result.ItemIDs = in.ValidIDs
			result.Message = recommendReply(ctx, models, promptConfig, timeout, userQuery, in.Valid)
		default:
			result.Fallback = true
			result.ItemIDs = in.ValidIDs
			result.Message = model.NoResultsFallbackMessage
		}

		// snapshot after the reply call so its usage is included
		err = compose.ProcessState(ctx, func(_ context.Context, s *model.RecommenderState) error {
			result.Iterations = s.Iteration
			meta := map[string]any{
				"stages": s.StageMeta,
				"usage":  s.Usage,
			}
			if s.Analysis.Fallback {
				meta["analysis_fallback"] = true
			}
			if in.ErrKind != "" {
				meta["error_kind"] = in.ErrKind
			}
			result.Metadata = meta
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return result, nil
	})
}

// NewComposeReplyPostHandler logs the outcome shape for the attempt.
func NewComposeReplyPostHandler() func(context.Context, *model.RecommendResult, *model.RecommenderState) (*model.RecommendResult, error) {
	return func(ctx context.Context, out *model.RecommendResult, s *model.RecommenderState) (*model.RecommendResult, error) {
		logx.Info().
			Str("session_id", s.SessionID).
			Int("iterations", out.Iterations).
			Int("items", len(out.ItemIDs)).
			Bool("success", out.Success).
			Bool("fallback", out.Fallback).
			Msg("recommendation attempt finished")
		stream.Emit(ctx, stream.NodeEnd(NodeComposeReply))
		return out, nil
	}
}

// recommendReply writes the stylist's presentation of the picks. Reply
// trouble downgrades to a plain deterministic presentation; the selection
// itself is already final.
func recommendReply(
	ctx context.Context,
	models *ChatModels,
	promptConfig *model.StylistPromptConfig,
	timeout time.Duration,
	query string,
	picks []model.ScoredItem,
) string {
	items := make([]model.CatalogItem, len(picks))
	for i, p := range picks {
		items[i] = p.Item
	}

	systemPrompt, err := prompts.RenderRecommendReply(ctx, *promptConfig, items)
	if err != nil {
		logx.Warn().Err(err).Msg("render reply prompt failed, using plain presentation")
		return plainPresentation(items)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := models.Response.Generate(callCtx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(query),
	})
	if err != nil {
		logx.Warn().Err(err).Msg("reply model failed, using plain presentation")
		return plainPresentation(items)
	}
	recordAttemptUsage(ctx, models.ResponseModelName, resp)
	if strings.TrimSpace(resp.Content) == "" {
		return plainPresentation(items)
	}
	return resp.Content
}

// plainPresentation lists the picks without model involvement.
func plainPresentation(items []model.CatalogItem) string {
	var b strings.Builder
	b.WriteString("Here's what I found for you:\n")
	for _, it := range items {
		b.WriteString("- " + it.Name)
		if it.Brand != "" {
			b.WriteString(" by " + it.Brand)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
