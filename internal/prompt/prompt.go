// Package prompt turns a question into the fixed completion prompt.
package prompt

import "fmt"

// StopSequence halts generation at the closing code fence opened by Build.
const StopSequence = "\n```"

const template = "how %s\nA:\n```bash\n"

// Build templates the question. The text is not escaped.
func Build(question string) string {
	return fmt.Sprintf(template, question)
}
