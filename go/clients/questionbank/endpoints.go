package questionbank

const (
	// Default base URL for a locally hosted question bank.
	DefaultBaseURL = "http://localhost:9090"

	// API Endpoints
	CategoriesEndpoint = "/v1/categories"
	QuestionsEndpoint  = "/v1/questions"

	// Headers
	APIKeyHeader = "X-API-Key"
)
