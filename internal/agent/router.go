package agent

// Routes returned by the grader's conditional edge.
const (
	RouteGenerateAnswer = "generate_answer"
	RouteFallback       = "fallback"
)

// NoRelevantDocs decides where the graph goes after grading: on to answer
// generation only when the grader retained at least one document.
func NoRelevantDocs(s *State) string {
	if s != nil && s.ProceedToGenerate && len(s.Documents) > 0 {
		return RouteGenerateAnswer
	}
	return RouteFallback
}
