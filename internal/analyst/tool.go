// Package analyst implements the SQL Analyst Tool (C6): it turns a natural
// language question plus a semantic model into SQL, validates it, executes
// it through a SqlConnector, and returns a normalized result.
//
// Grounded on
// _examples/original_source/langbridge/packages/orchestrator/
// langbridge_orchestrator/tools/sql_analyst/tool.py.
package analyst

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	pgquery "github.com/pganalyze/pg_query_go/v6"

	"github.com/basegraph/analystcore/internal/apperr"
	"github.com/basegraph/analystcore/internal/connectors"
	"github.com/basegraph/analystcore/internal/semantic"
	"github.com/basegraph/analystcore/internal/semantic/translator"
)

var sqlFenceRe = regexp.MustCompile("(?is)```(?:sql)?\\s*(.*?)```")

const vectorSimilarityThreshold = 0.83

// Completer generates free-form text completions; satisfied structurally by
// common/llm.AgentClient via the adapter in completer.go.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// QueryRequest is the natural-language request handed to the tool.
type QueryRequest struct {
	Question                   string
	ConversationContext        string
	Filters                    map[string]string
	Limit                      int
	SemanticSearchResultPrompts []string
}

// QueryResponse is the tool's structured response, mirroring
// AnalystQueryResponse in the grounding source.
type QueryResponse struct {
	SQLCanonical    string
	SQLExecutable   string
	Dialect         string
	ModelName       string
	Result          *connectors.QueryResult
	Error           string
	ExecutionTimeMs int64
}

type vectorizedValue struct {
	value     string
	embedding []float64
}

type vectorizedColumn struct {
	table  string
	column string
	values []vectorizedValue
}

type vectorMatch struct {
	table      string
	column     string
	value      string
	similarity float64
	sourceText string
}

// Tool generates SQL against model using completer, optionally augments the
// question with entity matches resolved via embedder, validates the
// generated SQL, and executes it through connector.
type Tool struct {
	completer     Completer
	embedder      connectors.Embedder
	connector     connectors.SqlConnector
	model         *semantic.Model
	dialect       translator.Dialect
	temperature   float64
	vectorColumns []vectorizedColumn
}

// New builds a Tool for model, generating SQL targeted at dialect and
// executed through connector. embedder may be nil to disable vector-based
// entity resolution.
func New(completer Completer, embedder connectors.Embedder, connector connectors.SqlConnector, model *semantic.Model, dialect translator.Dialect) *Tool {
	return &Tool{
		completer:     completer,
		embedder:      embedder,
		connector:     connector,
		model:         model,
		dialect:       dialect,
		vectorColumns: extractVectorColumns(model),
	}
}

func (t *Tool) Name() string {
	if t.model.Name != "" {
		return t.model.Name
	}
	return "semantic_model"
}

// Run executes the full natural-language -> SQL -> execution pipeline.
func (t *Tool) Run(ctx context.Context, req QueryRequest) QueryResponse {
	start := time.Now()
	activeReq := req

	if t.embedder != nil && len(t.vectorColumns) > 0 {
		augmented, err := t.augmentWithVectorMatches(ctx, req)
		if err != nil {
			slog.WarnContext(ctx, "vector search failed; continuing without augmentation", "error", err)
		} else {
			activeReq = augmented
		}
	}

	canonical, err := t.completer.Complete(ctx, t.buildPrompt(activeReq), t.temperature)
	if err != nil {
		return QueryResponse{Dialect: string(t.dialect), ModelName: t.Name(), Error: fmt.Sprintf("SQL generation failed: %v", err)}
	}
	canonical = extractSQL(strings.TrimSpace(canonical))

	if t.dialect == translator.Postgres {
		if _, parseErr := pgquery.Parse(canonical); parseErr != nil {
			return QueryResponse{
				SQLCanonical:    canonical,
				Dialect:         string(t.dialect),
				ModelName:       t.Name(),
				Error:           fmt.Sprintf("generated SQL failed to parse: %v", parseErr),
				ExecutionTimeMs: time.Since(start).Milliseconds(),
			}
		}
	} else if err := sanityCheckSingleSelect(canonical); err != nil {
		return QueryResponse{
			SQLCanonical:    canonical,
			Dialect:         string(t.dialect),
			ModelName:       t.Name(),
			Error:           err.Error(),
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}
	}

	result, execErr := t.connector.Execute(ctx, canonical, req.Limit)
	resp := QueryResponse{
		SQLCanonical:    canonical,
		SQLExecutable:   canonical,
		Dialect:         string(t.dialect),
		ModelName:       t.Name(),
		Result:          result,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}
	if execErr != nil {
		resp.Error = fmt.Sprintf("execution failed: %v", apperr.New(apperr.KindExecutionError, execErr))
	}
	return resp
}

// sanityCheckSingleSelect is the non-postgres validation fallback: pg_query_go
// only understands Postgres syntax, so dialects it cannot parse get a
// lightweight single-statement, SELECT-only guard instead. Generalizes the
// grounding source's single sqlglot.parse_one("...", read="postgres") call,
// which assumed every generated statement was canonical Postgres regardless
// of the execution target.
func sanityCheckSingleSelect(sql string) error {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if strings.Contains(trimmed, ";") {
		return apperr.New(apperr.KindTranspileError, fmt.Errorf("generated SQL must be a single statement"))
	}
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") && !strings.HasPrefix(strings.ToUpper(trimmed), "WITH") {
		return apperr.New(apperr.KindTranspileError, fmt.Errorf("generated SQL must be a SELECT statement"))
	}
	return nil
}

func extractSQL(raw string) string {
	if m := sqlFenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return raw
}

func (t *Tool) buildPrompt(req QueryRequest) string {
	var b strings.Builder
	b.WriteString("You are an expert analytics engineer generating SQL.\n")
	b.WriteString(t.renderModel())
	b.WriteString("\nRules:\n")
	b.WriteString("- Return a single SELECT statement.\n")
	fmt.Fprintf(&b, "- The SQL must target the %s dialect.\n", t.dialect)
	b.WriteString("- Do not include comments, explanations, or additional text.\n")
	b.WriteString("- Use only tables, relationships, measures, dimensions, and metrics defined above.\n")
	b.WriteString("- Fully qualify columns as table.column. No SELECT *.\n")
	b.WriteString("- Use the physical table names shown in the model (schema.table); model keys are labels only.\n")
	b.WriteString("- Use only relationships defined in the model; INNER JOIN by default.\n")
	b.WriteString("- Expand metrics using their expression verbatim.\n")
	b.WriteString("- Apply table filters when the request mentions their name or synonyms.\n")
	b.WriteString("- Group only by non-aggregated selected dimensions.\n")
	b.WriteString("- Do NOT invent columns or joins; omit anything not defined in the model.\n")
	b.WriteString("- Use semantic search results to resolve ambiguous entity references as explicit filters.\n")

	if req.Limit > 0 {
		fmt.Fprintf(&b, "Prefer applying LIMIT %d if appropriate.\n", req.Limit)
	}
	if len(req.Filters) > 0 {
		keys := make([]string, 0, len(req.Filters))
		for k := range req.Filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s = %q", k, req.Filters[k])
		}
		fmt.Fprintf(&b, "Filters to apply: %s\n", strings.Join(pairs, ", "))
	}
	if req.ConversationContext != "" {
		fmt.Fprintf(&b, "Conversation context:\n%s\n", req.ConversationContext)
	}
	if len(req.SemanticSearchResultPrompts) > 0 {
		fmt.Fprintf(&b, "Semantic search results:\n%s\n", strings.Join(req.SemanticSearchResultPrompts, "\n"))
	} else {
		b.WriteString("Semantic search results:\nNone\n")
	}
	fmt.Fprintf(&b, "Question: %s\n", req.Question)
	fmt.Fprintf(&b, "Return SQL in the %s dialect only. No comments or explanation.\n", t.dialect)
	return b.String()
}

func (t *Tool) renderModel() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Semantic model: %s\n", t.Name())
	if t.model.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", t.model.Description)
	}

	tableRefs := map[string]string{}
	for key, tbl := range t.model.Tables {
		tableRefs[key] = tableRef(tbl)
	}

	if len(t.model.Tables) > 0 {
		b.WriteString("Tables:\n")
		keys := sortedKeys(t.model.Tables)
		for _, key := range keys {
			tbl := t.model.Tables[key]
			ref := tableRefs[key]
			fmt.Fprintf(&b, "  - %s (%s)\n", key, ref)
			if tbl.Description != "" {
				fmt.Fprintf(&b, "      description: %s\n", tbl.Description)
			}
			if len(tbl.Dimensions) > 0 {
				b.WriteString("      dimensions:\n")
				for _, d := range tbl.Dimensions {
					label := fmt.Sprintf("%s.%s (%s)", ref, d.Name, d.Type)
					if d.PrimaryKey {
						label += " [pk]"
					}
					fmt.Fprintf(&b, "        * %s\n", label)
				}
			}
			if len(tbl.Measures) > 0 {
				b.WriteString("      measures:\n")
				for _, m := range tbl.Measures {
					label := fmt.Sprintf("%s.%s (%s)", ref, m.Name, m.Type)
					if m.Aggregation != "" {
						label += fmt.Sprintf(" agg=%s", m.Aggregation)
					}
					fmt.Fprintf(&b, "        * %s\n", label)
				}
			}
			if len(tbl.Filters) > 0 {
				b.WriteString("      filters:\n")
				for name, cond := range tbl.Filters {
					fmt.Fprintf(&b, "        * %s: %s\n", name, cond)
				}
			}
		}
	}

	if len(t.model.Relationships) > 0 {
		b.WriteString("Relationships:\n")
		for _, rel := range t.model.Relationships {
			left := tableRefOr(tableRefs, rel.From)
			right := tableRefOr(tableRefs, rel.To)
			condition := replaceTableRefs(rel.JoinOn, tableRefs)
			fmt.Fprintf(&b, "  - %s join %s -> %s on %s\n", semantic.JoinType(rel.Type), left, right, condition)
		}
	}

	if len(t.model.Metrics) > 0 {
		b.WriteString("Metrics:\n")
		names := make([]string, 0, len(t.model.Metrics))
		for name := range t.model.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			expr := replaceTableRefs(t.model.Metrics[name], tableRefs)
			fmt.Fprintf(&b, "  - %s: %s\n", name, expr)
		}
	}

	if len(t.model.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(t.model.Tags, ", "))
	}
	return b.String()
}

func tableRef(t *semantic.Table) string {
	if t.Schema != "" {
		return t.Schema + "." + t.Name
	}
	return t.Name
}

func tableRefOr(refs map[string]string, key string) string {
	if ref, ok := refs[key]; ok {
		return ref
	}
	return key
}

func replaceTableRefs(expr string, tableRefs map[string]string) string {
	out := expr
	for tableKey, ref := range tableRefs {
		out = strings.ReplaceAll(out, tableKey+".", ref+".")
	}
	return out
}

func sortedKeys(tables map[string]*semantic.Table) []string {
	keys := make([]string, 0, len(tables))
	for k := range tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func extractVectorColumns(model *semantic.Model) []vectorizedColumn {
	var out []vectorizedColumn
	for tableKey, tbl := range model.Tables {
		for _, d := range tbl.Dimensions {
			if !d.Vectorized || len(d.VectorValues) == 0 {
				continue
			}
			values := make([]vectorizedValue, 0, len(d.VectorValues))
			for _, v := range d.VectorValues {
				values = append(values, vectorizedValue{value: v.Value, embedding: v.Embedding})
			}
			if len(values) > 0 {
				out = append(out, vectorizedColumn{table: tableKey, column: d.Name, values: values})
			}
		}
	}
	return out
}

func (t *Tool) augmentWithVectorMatches(ctx context.Context, req QueryRequest) (QueryRequest, error) {
	phrases := extractCandidatePhrases(req.Question)
	if len(phrases) == 0 {
		return req, nil
	}
	embeddings, err := t.embedder.Embed(ctx, phrases)
	if err != nil {
		return req, err
	}
	if len(embeddings) == 0 {
		return req, nil
	}

	var matches []vectorMatch
	for _, col := range t.vectorColumns {
		var best *vectorMatch
		for i, phrase := range phrases {
			if i >= len(embeddings) {
				break
			}
			for _, candidate := range col.values {
				sim, ok := cosineSimilarity(embeddings[i], candidate.embedding)
				if !ok {
					continue
				}
				if best == nil || sim > best.similarity {
					best = &vectorMatch{table: col.table, column: col.column, value: candidate.value, similarity: sim, sourceText: phrase}
				}
			}
		}
		if best != nil && best.similarity >= vectorSimilarityThreshold {
			matches = append(matches, *best)
		}
	}
	if len(matches) == 0 {
		return req, nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].similarity > matches[j].similarity })
	if len(matches) > 3 {
		matches = matches[:3]
	}

	out := req
	out.Question = augmentQuestion(req.Question, matches)
	out.Filters = map[string]string{}
	for k, v := range req.Filters {
		out.Filters[k] = v
	}
	for _, m := range matches {
		out.Filters[fmt.Sprintf("%s.%s", m.table, m.column)] = m.value
	}
	return out, nil
}

func augmentQuestion(question string, matches []vectorMatch) string {
	hints := make([]string, len(matches))
	for i, m := range matches {
		hints[i] = fmt.Sprintf("- Use %s.%s = '%s' (matched phrase '%s', similarity %.2f)", m.table, m.column, m.value, m.sourceText, m.similarity)
	}
	prefix := strings.TrimSpace(question)
	return fmt.Sprintf("%s\n\nResolved entities from semantic vector search:\n%s\nApply these as explicit filters in the SQL.", prefix, strings.Join(hints, "\n"))
}

var (
	quotedDoubleRe = regexp.MustCompile(`"([^"]+)"`)
	quotedSingleRe = regexp.MustCompile(`'([^']+)'`)
	keywordPhraseRe = regexp.MustCompile(`(?i)\b(?:in|at|for|from|by|with)\s+([A-Za-z0-9][^,.;:]+)`)
	capitalizedRe   = regexp.MustCompile(`\b([A-Z][\w-]*(?:\s+[A-Z][\w-]*)+)\b`)
)

func extractCandidatePhrases(question string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		cleaned := strings.TrimSpace(s)
		if cleaned == "" {
			return
		}
		lower := strings.ToLower(cleaned)
		if seen[lower] {
			return
		}
		seen[lower] = true
		out = append(out, cleaned)
	}

	base := strings.TrimSpace(question)
	if base != "" {
		add(base)
	}
	for _, m := range quotedDoubleRe.FindAllStringSubmatch(question, -1) {
		add(m[1])
	}
	for _, m := range quotedSingleRe.FindAllStringSubmatch(question, -1) {
		add(m[1])
	}
	for _, m := range keywordPhraseRe.FindAllStringSubmatch(question, -1) {
		add(strings.SplitN(m[1], ".", 2)[0])
	}
	for _, m := range capitalizedRe.FindAllStringSubmatch(question, -1) {
		add(m[1])
	}

	if len(out) > 8 {
		out = out[:8]
	}
	return out
}

func cosineSimilarity(a, b []float64) (float64, bool) {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
