package entity

// EndpointDescriptor is the slice of an OpenAPI operation used to enrich prompts.
type EndpointDescriptor struct {
	Method         string `json:"method"`
	Path           string `json:"path"`
	Summary        string `json:"summary"`
	ParameterCount int    `json:"parameters"`
	HasRequestBody bool   `json:"has_request_body"`
}
