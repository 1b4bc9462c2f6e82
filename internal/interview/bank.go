package interview

// Fallback question banks. Hard literals so the interview can always start
// with zero connectivity to the completion service.
var fallbackBank = map[Mode][]string{
	ModeTechnical: {
		"Tell me about a challenging technical problem you solved recently and how you approached it.",
		"How do you debug a complex issue that only appears in production?",
		"Explain the difference between concurrency and parallelism, with an example from your own work.",
		"How do you ensure the quality of your code before it ships?",
		"Walk me through how you would design a URL shortening service.",
	},
	ModeBehavioral: {
		"Tell me about yourself and your professional background.",
		"Describe a time you disagreed with a teammate. How did you resolve it?",
		"Tell me about a project you are particularly proud of and your role in it.",
		"How do you handle tight deadlines and competing priorities?",
		"Describe a time you received difficult feedback. What did you do with it?",
	},
}

// FallbackQuestions returns the static question list for the mode. Unknown
// modes get the behavioral set, which assumes nothing about the candidate.
func FallbackQuestions(mode Mode) []string {
	bank, ok := fallbackBank[mode]
	if !ok {
		bank = fallbackBank[ModeBehavioral]
	}
	return append([]string(nil), bank...)
}
