package prompt

import (
	"fmt"
	"strings"

	"crewquest/internal/domain"
)

// Focus lines injected per category. Trivia questions and situational
// scenarios get slightly different emphasis for the same bucket.
var triviaFocus = map[domain.Category]string{
	domain.CategoryCustomerService: "Unique passenger interactions, creative solutions",
	domain.CategoryOperations:      "Airport procedures, flight planning, scheduling",
	domain.CategoryCulture:         "Airline traditions, company values, celebrations",
	domain.CategoryHistory:         "Airline milestones, industry developments",
	domain.CategoryTechnical:       "Aircraft systems, aviation technology",
	domain.CategoryFunMoments:      "Memorable flights, special events",
	domain.CategoryProblemSolving:  "Creative solutions, quick thinking",
	domain.CategoryTeamwork:        "Crew coordination, ground cooperation",
	domain.CategoryLeadership:      "Captain decisions, crew management",
	domain.CategoryInnovation:      "New procedures, industry firsts",
}

var scenarioFocus = map[domain.Category]string{
	domain.CategoryCustomerService: "Unique passenger situations, special requests",
	domain.CategoryOperations:      "Unusual flight situations, ground operations",
	domain.CategoryCulture:         "Team building, company values in action",
	domain.CategoryHistory:         "Using experience in current situations",
	domain.CategoryTechnical:       "Handling equipment, system operations",
	domain.CategoryFunMoments:      "Creating special memories, celebrations",
	domain.CategoryProblemSolving:  "Unexpected challenges, creative solutions",
	domain.CategoryTeamwork:        "Crew cooperation, department coordination",
	domain.CategoryLeadership:      "Guiding others, making decisions",
	domain.CategoryInnovation:      "Trying new approaches, improvements",
}

// Build constructs the generation prompt for one round. It is a pure
// function of (role, category, kind); the model is asked for a single JSON
// object matching domain.Scenario.
func Build(role domain.Role, category domain.Category, kind domain.ScenarioKind) string {
	var b strings.Builder

	if kind == domain.KindTrivia {
		fmt.Fprintf(&b, "Generate an interesting aviation trivia question for category: %s\n", category)
	} else {
		fmt.Fprintf(&b, "Generate a unique airline crew scenario for category: %s\n", category)
	}

	if role != "" && role != domain.RoleAny {
		fmt.Fprintf(&b, `
Focus on situations and questions specifically relevant to a %s.
Make sure they are realistic and appropriate for this role.
Include role-specific terminology and procedures when applicable.
`, role)
	}

	focus := scenarioFocus[category]
	if kind == domain.KindTrivia {
		focus = triviaFocus[category]
	}
	fmt.Fprintf(&b, "\nFocus areas for this category: %s\n", focus)

	if kind == domain.KindTrivia {
		b.WriteString(`
Requirements:
1. Make it engaging, unique, and educational
2. Provide three distinct answer options with exactly one correct
3. Include surprising facts in the explanation
4. Add three fascinating aviation fun facts
`)
	} else {
		b.WriteString(`
Requirements:
1. Create an engaging scenario not previously used
2. Make it realistic but interesting
3. Provide three distinct response options with exactly one correct
4. Include practical learning in the explanation
5. Add three fascinating aviation fun facts
`)
	}

	fmt.Fprintf(&b, `
Return only JSON, no prose, in this shape:
{
  "scenario": "the question or situation",
  "context": "category context",
  "category": "%s",
  "difficulty": "Easy/Medium/Hard",
  "points": 5-15,
  "options": [
    {"text": "option 1", "is_correct": true},
    {"text": "option 2", "is_correct": false},
    {"text": "option 3", "is_correct": false}
  ],
  "explanation": "detailed explanation",
  "fun_facts": ["fact 1", "fact 2", "fact 3"]
}
`, category)

	return b.String()
}
