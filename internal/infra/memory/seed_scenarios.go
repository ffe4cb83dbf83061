package memory

import "crewquest/internal/domain"

// SeedScenarios returns the built-in fallback set. These keep a game playable
// when both the generative API and the durable archive are unreachable.
func SeedScenarios() map[domain.Category][]domain.Scenario {
	return map[domain.Category][]domain.Scenario{
		domain.CategoryCustomerService: {
			{
				Text:       "During boarding, a passenger is struggling with an oversized bag while others wait behind them.",
				Context:    "Boarding",
				Category:   domain.CategoryCustomerService,
				Difficulty: "Easy",
				Points:     5,
				Options: []domain.Option{
					{Text: "Offer to gate-check the bag for free", Correct: true},
					{Text: "Let them keep trying while the line builds up", Correct: false},
					{Text: "Tell them they have to check it at the counter", Correct: false},
				},
				Explanation: "Offering free gate-check keeps boarding moving and maintains good customer service.",
				FunFacts: []string{
					"The average flight attendant walks about 5 miles during each flight",
					"Overhead bins on modern narrow-bodies hold roughly 180 roller bags",
					"Gate-checked bags are usually the first to reach the carousel",
				},
			},
			{
				Text:       "A passenger requests a unique accommodation during the flight.",
				Context:    "Customer Service",
				Category:   domain.CategoryCustomerService,
				Difficulty: "Medium",
				Points:     10,
				Options: []domain.Option{
					{Text: "Address their needs with a creative solution", Correct: true},
					{Text: "Refer them to another department", Correct: false},
					{Text: "Explain why it's not possible", Correct: false},
				},
				Explanation: "The best approach is to be proactive and solution-oriented while keeping the cabin running smoothly.",
				FunFacts: []string{
					"Cabin crews handle hundreds of individual passenger requests per flight",
					"Most airlines empower crews to resolve service issues on the spot",
					"Passenger satisfaction correlates strongly with first-contact resolution",
				},
			},
		},
		domain.CategoryOperations: {
			{
				Text:       "An unexpected weather change requires quick thinking from the operations team.",
				Context:    "Operations",
				Category:   domain.CategoryOperations,
				Difficulty: "Medium",
				Points:     10,
				Options: []domain.Option{
					{Text: "Implement an efficient backup plan", Correct: true},
					{Text: "Continue with the original plan", Correct: false},
					{Text: "Wait for further instructions", Correct: false},
				},
				Explanation: "Operations teams keep contingency plans ready so schedule disruptions stay as small as possible.",
				FunFacts: []string{
					"Dispatchers share legal responsibility for every flight they release",
					"A single diverted flight can ripple through dozens of downstream departures",
					"Turnaround times under 30 minutes were pioneered in the early 1970s",
				},
			},
		},
		domain.CategoryCulture: {
			{
				Text:       "An opportunity arises to demonstrate the company's spirit during a delayed flight.",
				Context:    "Culture",
				Category:   domain.CategoryCulture,
				Difficulty: "Easy",
				Points:     5,
				Options: []domain.Option{
					{Text: "Create a memorable moment for the passengers", Correct: true},
					{Text: "Focus strictly on routine tasks", Correct: false},
					{Text: "Let someone else handle it", Correct: false},
				},
				Explanation: "Small gestures during irregular operations are where an airline's culture shows most clearly.",
				FunFacts: []string{
					"Southwest Airlines was the first U.S. airline to offer profit-sharing, in 1973",
					"Southwest's first flight took off from Dallas Love Field in 1971",
					"Crew singalongs and trivia games began as ways to ease delay frustration",
				},
			},
		},
	}
}
