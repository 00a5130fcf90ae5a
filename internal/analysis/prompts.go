package analysis

import "fmt"

// PromptSet holds the fixed system instructions for one job kind: one applied
// to every batch, one applied to the final reduction over batch summaries.
type PromptSet struct {
    Batch  string
    Reduce string
}

var promptSets = map[Kind]PromptSet{
    KindSummary: {
        Batch:  "Summarize this excerpt of a focus group or interview transcript. Keep speaker intent and concrete details.",
        Reduce: "The following are summaries of consecutive excerpts from one transcript. Synthesize an overall narrative-analysis summary covering themes, sentiment and notable statements.",
    },
    KindTopics: {
        Batch:  "List the discussion topics raised in this excerpt, each with a one-sentence summary of what was said about it.",
        Reduce: "The following are per-excerpt topic lists from one transcript. Merge them into a deduplicated set of topics, each with a synthesis of what the participants said about it.",
    },
    KindComparison: {
        Batch:  "Summarize this excerpt, noting which participant group is speaking and their stance wherever it is identifiable.",
        Reduce: "The following are summaries of excerpts involving multiple participant groups. Produce a comparison of the groups: where they agree, where they diverge, and how their emphasis differs.",
    },
}

// Prompts returns the prompt set for a kind. Unknown kinds fall back to the
// plain summary prompts, matching ParseKind.
func Prompts(kind Kind) PromptSet {
    if ps, ok := promptSets[kind]; ok {
        return ps
    }
    return promptSets[KindSummary]
}

// WithGuide appends optional moderator-guide text to a system instruction so
// the model can anchor its output to the discussion guide.
func WithGuide(instruction, guide string) string {
    if guide == "" {
        return instruction
    }
    return fmt.Sprintf("%s\n\nDiscussion guide for reference:\n%s", instruction, guide)
}
