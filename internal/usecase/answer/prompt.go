package answer

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/vntravel/internal/domain"
)

// SystemPrompt frames the generator as a Vietnam travel expert.
const SystemPrompt = `You are an expert Vietnam travel assistant with deep knowledge of Vietnamese culture, destinations, and travel planning.

Your task is to provide comprehensive, accurate, and personalized travel recommendations based on:
1. Semantic search results from a vector database (most relevant destinations)
2. Knowledge graph connections (related places, activities, accommodations)

Guidelines:
- Use BOTH the semantic search results AND the knowledge graph context
- Create detailed, day-by-day itineraries when requested
- Include practical details: activities, accommodations, restaurants, transportation
- Consider connections between places (nearby attractions, related activities)
- Mention best times to visit when available
- Be specific and actionable
- Use a warm, enthusiastic tone
- If creating multi-day itineraries, ensure logical flow and realistic pacing`

// NoContextNote replaces the context block when retrieval produced nothing.
const NoContextNote = "No retrieval context was available for this query. " +
	"Answer from general knowledge of Vietnam travel and say that the answer is not backed by the travel database."

const (
	semanticHeader = "=== SEMANTIC SEARCH RESULTS ==="
	graphHeader    = "=== KNOWLEDGE GRAPH CONTEXT ==="
	maxConnections = 5
)

// BuildPrompt assembles the system instructions, fused context and query.
func BuildPrompt(query string, fc domain.FusedContext) domain.Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "User Query: %s\n\n", strings.TrimSpace(query))

	if fc.IsEmpty() {
		b.WriteString(NoContextNote)
		b.WriteString("\n")
		return domain.Prompt{System: SystemPrompt, User: b.String()}
	}

	b.WriteString("Available Context:\n")
	b.WriteString(RenderContext(fc))
	b.WriteString("\nBased on the above context, please provide a comprehensive answer to the user's query.\n")
	b.WriteString("Use specific information from both the semantic search results and the knowledge graph connections.\n")
	return domain.Prompt{System: SystemPrompt, User: b.String()}
}

// RenderContext writes semantic (and merged) items, then graph-only items.
func RenderContext(fc domain.FusedContext) string {
	var sem, graph []domain.ContextItem
	for _, it := range fc.Items {
		if it.HasSemantic() {
			sem = append(sem, it)
		} else {
			graph = append(graph, it)
		}
	}

	var b strings.Builder
	if len(sem) > 0 {
		b.WriteString(semanticHeader + "\n\n")
		for i, it := range sem {
			fmt.Fprintf(&b, "%d. %s (Relevance: %.3f)\n", i+1, it.Name, it.Score)
			fmt.Fprintf(&b, "   Type: %s\n", orNA(it.Type))
			if city := it.Attributes.Get(domain.MetaCity); city != "" {
				fmt.Fprintf(&b, "   City: %s\n", city)
			} else if it.Location != "" {
				fmt.Fprintf(&b, "   Location: %s\n", it.Location)
			}
			if region := it.Attributes.Get(domain.MetaRegion); region != "" {
				fmt.Fprintf(&b, "   Region: %s\n", region)
			}
			fmt.Fprintf(&b, "   Description: %s\n", orNA(it.Description))
			if tags := formatTags(it.Attributes[domain.MetaTags]); tags != "" {
				fmt.Fprintf(&b, "   Tags: %s\n", tags)
			}
			writeConnections(&b, it.Related)
			b.WriteString("\n")
		}
	}

	if len(graph) > 0 {
		b.WriteString(graphHeader + "\n\n")
		for i, it := range graph {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, it.Name, orNA(it.Type))
			fmt.Fprintf(&b, "   Location: %s\n", orNA(it.Location))
			fmt.Fprintf(&b, "   Description: %s\n", orNA(it.Description))
			writeConnections(&b, it.Related)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeConnections(b *strings.Builder, rels []domain.Relation) {
	parts := make([]string, 0, maxConnections)
	for _, r := range rels {
		if len(parts) == maxConnections {
			break
		}
		if r.Name == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", r.Name, orNA(r.Type)))
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, "   Connected to: %s\n", strings.Join(parts, ", "))
	}
}

func formatTags(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, x := range t {
			parts = append(parts, fmt.Sprint(x))
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
