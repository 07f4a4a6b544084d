package context

import (
	"fmt"
	"strings"
	"unicode"
)

// Per-source renderers. Each turns a typed search result into the opaque
// display text carried on a ContextItem. The budget machinery never looks
// inside this text again except to estimate and truncate it.

// FormatMemory renders a memory hit.
func FormatMemory(m MemoryResult) string {
	return fmt.Sprintf("**Memory**: %s\n*Category: %s, Importance: %.2f*",
		m.Content, m.Category, m.Importance)
}

// FormatCode renders a semantic code unit with its fenced snippet.
func FormatCode(c CodeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%s` in `%s:%d`\n", capitalize(c.UnitType), c.QualifiedName, c.FilePath, c.StartLine)
	fmt.Fprintf(&b, "```%s\n%s\n", c.Language, c.Code)
	if c.Docstring != "" {
		fmt.Fprintf(&b, `"""%s"""`+"\n", c.Docstring)
	}
	b.WriteString("```")
	return b.String()
}

// FormatExperience renders a GHAP record.
func FormatExperience(e ExperienceResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Experience**: %s | %s\n", e.Domain, e.Strategy)
	fmt.Fprintf(&b, "- **Goal**: %s\n", e.Goal)
	fmt.Fprintf(&b, "- **Hypothesis**: %s\n", e.Hypothesis)
	fmt.Fprintf(&b, "- **Action**: %s\n", e.Action)
	fmt.Fprintf(&b, "- **Prediction**: %s\n", e.Prediction)
	fmt.Fprintf(&b, "- **Outcome**: %s - %s\n", e.OutcomeStatus, e.OutcomeResult)

	if e.Surprise != "" {
		fmt.Fprintf(&b, "- **Surprise**: %s\n", e.Surprise)
	}
	if e.Lesson != nil && e.Lesson.WhatWorked != "" {
		fmt.Fprintf(&b, "- **Lesson**: %s\n", e.Lesson.WhatWorked)
	}
	return b.String()
}

// FormatValue renders a distilled value statement.
func FormatValue(v ValueResult) string {
	return fmt.Sprintf("**Value** (%s, cluster size: %d):\n%s", v.Axis, v.MemberCount, v.Text)
}

// FormatCommit renders an indexed commit, listing at most three changed
// files.
func FormatCommit(c CommitResult) string {
	sha := c.SHA
	if len(sha) > 7 {
		sha = sha[:7]
	}
	timestamp := "unknown"
	if !c.CommittedAt.IsZero() {
		timestamp = c.CommittedAt.Format("2006-01-02 15:04:05")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Commit** `%s` by %s on %s\n", sha, c.Author, timestamp)
	fmt.Fprintf(&b, "%s\n", c.Message)

	if len(c.FilesChanged) > 0 {
		shown := c.FilesChanged
		if len(shown) > 3 {
			shown = shown[:3]
		}
		fileList := strings.Join(shown, ", ")
		if len(c.FilesChanged) > 3 {
			fileList += fmt.Sprintf(", ... (%d more)", len(c.FilesChanged)-3)
		}
		fmt.Fprintf(&b, "*Files: %s*", fileList)
	}
	return b.String()
}

var sourceTitles = map[string]string{
	TypeMemories:    "Memories",
	TypeCode:        "Code",
	TypeExperiences: "Experiences",
	TypeValues:      "Values",
	TypeCommits:     "Commits",
}

// assembleMarkdown renders the standard context document: one heading per
// source with its selected items in relevance order, then an item/source
// count footer.
func assembleMarkdown(itemsBySource map[string][]ContextItem) string {
	sections := []string{"# Context\n"}

	totalItems := 0
	sourcesCount := 0

	for _, source := range sourceOrder {
		items := itemsBySource[source]
		if len(items) == 0 {
			continue
		}

		sections = append(sections, fmt.Sprintf("\n## %s\n", sourceTitles[source]))
		for _, item := range items {
			sections = append(sections, fmt.Sprintf("\n%s\n", item.Content))
			totalItems++
		}
		sourcesCount++
	}

	sections = append(sections, fmt.Sprintf("\n---\n*%d items from %d sources*", totalItems, sourcesCount))
	return strings.Join(sections, "\n")
}

// premortemAxisOrder fixes section order in the premortem layout.
var premortemAxisOrder = []struct {
	axis  string
	title string
}{
	{"full", "Common Failures"},
	{"strategy", "Strategy Performance"},
	{"surprise", "Unexpected Outcomes"},
	{"root_cause", "Root Causes to Watch"},
}

// assemblePremortemMarkdown renders the premortem digest: experience items
// grouped by originating axis, then value statements, then an experience
// count footer.
func assemblePremortemMarkdown(expItems, valueItems []ContextItem, domain, strategy string) string {
	header := "# Premortem: " + domain
	if strategy != "" {
		header += " with " + strategy
	}

	sections := []string{header + "\n"}
	experienceCount := 0

	for _, section := range premortemAxisOrder {
		var axisItems []ContextItem
		for _, item := range expItems {
			if metaString(item.Metadata, "axis") == section.axis {
				axisItems = append(axisItems, item)
			}
		}
		if len(axisItems) == 0 {
			continue
		}

		sections = append(sections, fmt.Sprintf("\n## %s\n", section.title))
		for _, item := range axisItems {
			sections = append(sections, fmt.Sprintf("\n%s\n", item.Content))
			experienceCount++
		}
	}

	if len(valueItems) > 0 {
		sections = append(sections, "\n## Relevant Principles\n")
		for _, item := range valueItems {
			sections = append(sections, fmt.Sprintf("\n%s\n", item.Content))
		}
	}

	sections = append(sections, fmt.Sprintf("\n---\n*Based on %d past experiences*", experienceCount))
	return strings.Join(sections, "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
