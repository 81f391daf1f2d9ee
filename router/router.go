// Package router implements the two-tier intent router: route
// classification plus parallel language detection, followed by deterministic
// per-route parameter extraction.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/gruzilkin/urmom-bot-sub000/domain"
	"github.com/gruzilkin/urmom-bot-sub000/internal/metrics"
	"github.com/gruzilkin/urmom-bot-sub000/llm"
	"github.com/gruzilkin/urmom-bot-sub000/types"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("urmombot/router")

// RouteDescriptor is implemented by each route's generator, supplying the
// text Tier 1 concatenates into the route-selection prompt and the
// schema/prompt Tier 2 uses for that route's parameter extraction. Declared
// here (rather than imported from the generator package) so router depends
// only on the shape it needs.
type RouteDescriptor interface {
	RouteDescription() string
	ParameterSchema() *types.JSONSchema
	ParameterExtractionPrompt() string
}

// Router runs Tier 1 (route selection + language detection) and Tier 2
// (parameter extraction). Route selection and parameter extraction share one
// client, so one lightweight model serves both tiers; language detection runs
// on its own client.
type Router struct {
	client   llm.GenerativeClient // composite-wrapped; IsBadResponse = route==NOTSURE
	detector *LanguageDetector

	famous  RouteDescriptor
	general RouteDescriptor
	fact    RouteDescriptor

	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewRouter wires a Router over the composite-wrapped Tier 1/2 client, a
// dedicated language-detection client, and the three dispatchable routes'
// descriptors.
func NewRouter(
	client llm.GenerativeClient,
	languageClient llm.GenerativeClient,
	famous, general, fact RouteDescriptor,
	metricsCollector *metrics.Collector,
	logger *zap.Logger,
) *Router {
	return &Router{
		client:   client,
		detector: NewLanguageDetector(languageClient, logger),
		famous:   famous,
		general:  general,
		fact:     fact,
		metrics:  metricsCollector,
		logger:   logger.With(zap.String("component", "router")),
	}
}

// Select runs the full two-tier pipeline over a single trigger message and
// returns the chosen route alongside its extracted parameters (nil for
// NONE/NOTSURE).
func (r *Router) Select(ctx context.Context, message string) (domain.RouteResult, domain.RouteParams, error) {
	ctx, span := tracer.Start(ctx, "router.select")
	defer span.End()
	start := time.Now()

	var selection routeSelectionResult
	var languageCode string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		req := llm.Request{
			Message:      message,
			SystemPrompt: r.buildRouteSelectionPrompt(),
			Temperature:  0,
		}
		result, err := llm.GenerateStructured[routeSelectionResult](gctx, r.client, req, routeSelectionSchema())
		if err != nil {
			return err
		}
		selection = result
		return nil
	})
	g.Go(func() error {
		languageCode = r.detector.Detect(gctx, message)
		return nil
	})
	if err := g.Wait(); err != nil {
		r.metrics.RecordRouteSelection("unknown", "error", languageCode, time.Since(start))
		return domain.RouteResult{}, nil, fmt.Errorf("tier 1 route selection: %w", err)
	}

	languageName := r.detector.Name(ctx, languageCode)
	route := domain.Route(selection.Route)

	r.logger.Info("route selected",
		zap.String("route", string(route)),
		zap.String("reason", selection.Reason),
		zap.String("language_code", languageCode))

	params, err := r.extractParameters(ctx, route, message, languageCode, languageName)
	if err != nil {
		r.metrics.RecordRouteSelection(string(route), "error", languageCode, time.Since(start))
		return domain.RouteResult{}, nil, fmt.Errorf("tier 2 parameter extraction: %w", err)
	}

	r.metrics.RecordRouteSelection(string(route), "success", languageCode, time.Since(start))

	result := domain.RouteResult{
		Route:        route,
		Reason:       selection.Reason,
		LanguageCode: languageCode,
		LanguageName: languageName,
	}
	return result, params, nil
}

func (r *Router) buildRouteSelectionPrompt() string {
	return fmt.Sprintf(routeSelectionPromptTemplate,
		r.famous.RouteDescription(),
		r.general.RouteDescription(),
		r.fact.RouteDescription())
}

func (r *Router) extractParameters(ctx context.Context, route domain.Route, message, languageCode, languageName string) (domain.RouteParams, error) {
	switch route {
	case domain.RouteFamous:
		result, err := llm.GenerateStructured[famousParamsResult](ctx, r.client, llm.Request{
			Message:      message,
			SystemPrompt: r.famous.ParameterExtractionPrompt(),
			Temperature:  0,
		}, r.famous.ParameterSchema())
		if err != nil {
			return nil, err
		}
		return domain.FamousParams{
			FamousPerson: result.FamousPerson,
			LanguageCode: languageCode,
			LanguageName: languageName,
		}, nil

	case domain.RouteGeneral:
		result, err := llm.GenerateStructured[generalParamsResult](ctx, r.client, llm.Request{
			Message:      message,
			SystemPrompt: r.general.ParameterExtractionPrompt(),
			Temperature:  0,
		}, r.general.ParameterSchema())
		if err != nil {
			return nil, err
		}
		return domain.GeneralParams{
			AIBackend:    result.AIBackend,
			Temperature:  result.Temperature,
			CleanedQuery: result.CleanedQuery,
			LanguageCode: languageCode,
			LanguageName: languageName,
		}, nil

	case domain.RouteFact:
		result, err := llm.GenerateStructured[factParamsResult](ctx, r.client, llm.Request{
			Message:      message,
			SystemPrompt: r.fact.ParameterExtractionPrompt(),
			Temperature:  0,
		}, r.fact.ParameterSchema())
		if err != nil {
			return nil, err
		}
		return domain.FactParams{
			Operation:    result.Operation,
			UserMention:  result.UserMention,
			FactContent:  result.FactContent,
			LanguageCode: languageCode,
			LanguageName: languageName,
		}, nil

	case domain.RouteNone, domain.RouteNotSure:
		return nil, nil

	default:
		r.logger.Warn("unrecognized route, dropping request", zap.String("route", string(route)))
		return nil, nil
	}
}

const routeSelectionPromptTemplate = `<system_instructions>
Analyze the user message and decide how to route it. Choose exactly one route.

**CRITICAL: ACCURACY IS THE TOP PRIORITY. DO NOT GUESS.**

**IMPORTANT: The user message can be in ANY language (English, Russian, French, Japanese, etc.).
Route based on the SEMANTIC MEANING and INTENT of the message, not specific keywords or language.**

**CONFIDENCE REQUIREMENTS:**
- Only choose a specific route when you are ABSOLUTELY CERTAIN about the user's intent
- If there is ANY doubt, ambiguity, or uncertainty - choose NOTSURE immediately
- DO NOT make routing decisions based on keyword presence alone
- ACCURACY over speed - being uncertain is better than being wrong
- When in doubt, choose NOTSURE - this is strongly preferred over incorrect routing

Instructions:
1. Check if the message contains references to child sexual abuse. If yes, choose NONE immediately.
2. Read the user message carefully, understanding its semantic meaning regardless of language.
3. Assess your confidence: Are you ABSOLUTELY CERTAIN about the intent?
4. If not absolutely certain, choose NOTSURE immediately - this is the preferred choice.
5. Consider that all route types can be expressed in any language.
6. ALWAYS provide a brief (1-2 sentence) reason for your decision.
7. Focus ONLY on route selection - parameter extraction happens later.
</system_instructions>

<route_definitions>
<route route="FAMOUS">
%s
</route>

<route route="GENERAL">
%s
</route>

<route route="FACT">
%s
</route>

<route route="NONE">
NONE: For everything else
- Simple reactions, acknowledgments, or invalid queries
- Conversations about the bot without a direct request to it
- Any message containing references to child sexual abuse
</route>

<route route="NOTSURE">
NOTSURE: When uncertain about routing decision
- Message is ambiguous or could fit multiple categories
- User intent is unclear or lacks sufficient context
- You're unsure about the semantic meaning
- May trigger fallback to a more capable model for re-evaluation
</route>
</route_definitions>`
