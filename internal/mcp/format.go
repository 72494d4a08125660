package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/offsearch/internal/engine"
)

// maxFieldChars bounds how much of one field value is shown in markdown.
const maxFieldChars = 200

// ToSearchOutput converts engine results into the tool output schema.
func ToSearchOutput(res *engine.SearchResults) SearchOutput {
	out := SearchOutput{
		Index:   res.Index,
		Query:   res.Query,
		Total:   res.Total,
		TookMs:  res.Took.Milliseconds(),
		Backend: string(res.Backend),
		Hits:    make([]HitOutput, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		out.Hits = append(out.Hits, HitOutput{
			ID:           h.ID,
			Score:        h.Score,
			Fields:       h.Fields,
			MatchedTerms: h.MatchedTerms,
		})
	}
	return out
}

// FormatSearchResults formats search output as markdown.
func FormatSearchResults(out SearchOutput) string {
	if len(out.Hits) == 0 {
		if out.Query == "" {
			return fmt.Sprintf("Index %q has no records", out.Index)
		}
		return fmt.Sprintf("No results found for \"%s\" in %q", out.Query, out.Index)
	}

	var sb strings.Builder
	if out.Query == "" {
		fmt.Fprintf(&sb, "## Records in %q\n\n", out.Index)
	} else {
		fmt.Fprintf(&sb, "## Search Results for \"%s\" in %q\n\n", out.Query, out.Index)
	}
	fmt.Fprintf(&sb, "Showing %d of %d result", len(out.Hits), out.Total)
	if out.Total != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " (%dms, %s)\n\n", out.TookMs, out.Backend)

	for i, h := range out.Hits {
		formatHit(&sb, i+1, h)
	}
	return sb.String()
}

func formatHit(sb *strings.Builder, num int, h HitOutput) {
	fmt.Fprintf(sb, "### %d. %s (score: %.2f)\n", num, h.ID, h.Score)
	if len(h.MatchedTerms) > 0 {
		terms := make([]string, len(h.MatchedTerms))
		for i, t := range h.MatchedTerms {
			terms[i] = fmt.Sprintf("`%s`", t)
		}
		fmt.Fprintf(sb, "Matched: %s\n", strings.Join(terms, ", "))
	}

	keys := make([]string, 0, len(h.Fields))
	for k := range h.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(sb, "- **%s**: %s\n", k, truncate(fmt.Sprint(h.Fields[k]), maxFieldChars))
	}
	sb.WriteString("\n")
}

// FormatIndexStatus formats a status report as markdown.
func FormatIndexStatus(out IndexStatusOutput) string {
	var sb strings.Builder
	sb.WriteString("## Offline Search Status\n\n")
	state := "disabled"
	if out.OfflineEnabled {
		state = "enabled"
	}
	fmt.Fprintf(&sb, "**Offline mode:** %s\n", state)
	fmt.Fprintf(&sb, "**Backend:** %s\n", out.Backend)
	fmt.Fprintf(&sb, "**Data:** %s\n\n", out.RootDir)

	if len(out.Indices) == 0 {
		sb.WriteString("No indices loaded.\n")
	} else {
		sb.WriteString("| Index | Kind | Mirrored | Bootstrap | Offline |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, idx := range out.Indices {
			bootstrap := idx.Bootstrap
			if bootstrap == "" {
				bootstrap = "-"
			}
			fmt.Fprintf(&sb, "| %s | %s | %t | %s | %t |\n", idx.Name, idx.Kind, idx.Mirrored, bootstrap, idx.Offline)
		}
	}

	for _, l := range out.Lanes {
		fmt.Fprintf(&sb, "\n**%s lane:** %d queued, %d completed, %d failed", l.Kind, l.Queued, l.Completed, l.Failed)
		if l.Running != "" {
			fmt.Fprintf(&sb, ", running %s", l.Running)
		}
	}
	if len(out.Lanes) > 0 {
		sb.WriteString("\n")
	}
	return sb.String()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
