package entities

// EndpointMeta is the optional schema metadata an endpoint registers for the
// discovery manifest and challenge extensions.
type EndpointMeta struct {
	InputSchema  map[string]any `json:"inputSchema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty"`
	Example      map[string]any `json:"example,omitempty"`
}

// EndpointSpec is the handler-free description of a registered endpoint, the
// input to discovery and pricing surfaces. Path uses "{name}" placeholders.
type EndpointSpec struct {
	Method   string        `json:"method"`
	Path     string        `json:"path"`
	Tier     Tier          `json:"tier"`
	Category string        `json:"category"`
	Summary  string        `json:"summary,omitempty"`
	Meta     *EndpointMeta `json:"meta,omitempty"`
}

// Priced reports whether requests to the endpoint go through settlement.
func (e EndpointSpec) Priced() bool {
	return e.Tier != TierFree
}

// DiscoveryResource is one priced endpoint in the x402 discovery manifest.
type DiscoveryResource struct {
	Resource    string                `json:"resource"`
	Type        string                `json:"type"`
	X402Version int                   `json:"x402Version"`
	Accepts     []PaymentRequirements `json:"accepts"`
	LastUpdated int64                 `json:"lastUpdated"`
	Metadata    map[string]any        `json:"metadata,omitempty"`
	Extensions  map[string]any        `json:"extensions,omitempty"`
}

// DiscoveryManifest is the versioned machine-readable catalog of priced
// resources.
type DiscoveryManifest struct {
	X402Version int                 `json:"x402Version"`
	Items       []DiscoveryResource `json:"items"`
}
