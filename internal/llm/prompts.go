package llm

import (
	"fmt"
	"strings"
)

func plannerPrompt(userQuery string, priorIssues []string) string {
	var b strings.Builder
	b.WriteString("You are the Planner AI. Improve your response based on the researcher's feedback.\n\n")
	fmt.Fprintf(&b, "User Query: %q\n\n", userQuery)

	if len(priorIssues) > 0 {
		b.WriteString("Previous Issues to Address:\n")
		for i, issue := range priorIssues {
			fmt.Fprintf(&b, "%d. %s\n", i+1, issue)
		}
	} else {
		b.WriteString("No previous issues. Provide your best initial response.\n")
	}

	b.WriteString("\nProvide a comprehensive, accurate, and helpful response to the user query.")
	return b.String()
}

func researcherPrompt(userQuery, plannerText string) string {
	return fmt.Sprintf(`You are the Researcher AI. Evaluate the Planner's response.

User Query: %q

Planner's Response: %q

Evaluate for: correctness, clarity, completeness, safety, and relevance.
Return ONLY JSON with this exact format:
{
  "planner_response_summary": "short summary",
  "issues": ["issue1", "issue2"],
  "is_satisfied": false
}

If no issues, return empty issues array and is_satisfied: true.`, userQuery, plannerText)
}

func ragPrompt(userQuery, contextText string) string {
	return fmt.Sprintf(`You are a helpful AI assistant for an e-commerce dashboard.
Use the following context to answer the user's question.
If the answer is not in the context, say you don't know, but try to be helpful based on the data provided.

Context:
%s

User Question: %s

Answer:`, contextText, userQuery)
}
