package mcpserver

// NoteFormatContract describes the Markdown study-note format that LLM
// consumers should follow when importing notes.
const NoteFormatContract = `# Study Note Format

Every note imported by studytrack becomes one study record.

## Structure

` + "```" + `markdown
---
title: Go channels               # OPTIONAL – defaults to the first "# " heading
learning_type: Go                # OPTIONAL – category name, created when missing
learning_type_id: 3              # OPTIONAL – wins over learning_type
link: https://go.dev/doc/faq     # OPTIONAL – defaults to the first link in the body
review_status: new               # OPTIONAL
tags: [concurrency, runtime]     # OPTIONAL – merged with inline #tags
---

# Go channels

Body text in standard Markdown. It becomes the record description.
` + "```" + `

## Rules

1. **A title is mandatory.** It comes from frontmatter ` + "`" + `title` + "`" + `, else the first
   ` + "`" + `# ` + "`" + ` heading, else the first non-empty line. A note without one is rejected.
2. **The heading used as title is removed** from the description.
3. **Learning types** are matched by name, case-insensitively.
4. **File names** end with ` + "`" + `.md` + "`" + ` and contain no path separators.
5. **Encoding** is UTF-8. Frontmatter keys are English; values and body may use any language.
`
