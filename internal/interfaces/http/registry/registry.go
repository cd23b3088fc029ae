// Package registry holds the declarative endpoint table: every routed
// operation is registered once with its price, category and schema metadata,
// and the same table drives routing, payment gating and discovery.
package registry

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
)

// Endpoint is one row of the table.
type Endpoint struct {
	Method   string
	Path     string // "{name}" placeholder syntax
	Price    entities.PriceSpec
	Category string
	Summary  string
	Meta     *entities.EndpointMeta
	Handler  gin.HandlerFunc
}

func (e Endpoint) spec() entities.EndpointSpec {
	return entities.EndpointSpec{
		Method:   e.Method,
		Path:     e.Path,
		Tier:     e.Price.Tier,
		Category: e.Category,
		Summary:  e.Summary,
		Meta:     e.Meta,
	}
}

// GateFunc builds the payment middleware for one priced endpoint.
type GateFunc func(spec entities.EndpointSpec, estimator string) gin.HandlerFunc

// ObserveFunc builds the request-observation middleware for one endpoint.
type ObserveFunc func(spec entities.EndpointSpec) gin.HandlerFunc

// Registry collects endpoints and mounts them onto a router.
type Registry struct {
	endpoints []Endpoint
	seen      map[string]struct{}
}

func New() *Registry {
	return &Registry{seen: make(map[string]struct{})}
}

var allowedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodHead:    {},
	http.MethodOptions: {},
}

// Register validates and adds one endpoint. Registration happens at startup;
// errors here are configuration bugs.
func (r *Registry) Register(ep Endpoint) error {
	if _, ok := allowedMethods[ep.Method]; !ok {
		return fmt.Errorf("endpoint %q %q: unknown method", ep.Method, ep.Path)
	}
	if !strings.HasPrefix(ep.Path, "/") {
		return fmt.Errorf("endpoint %s %q: path must start with /", ep.Method, ep.Path)
	}
	if ep.Handler == nil {
		return fmt.Errorf("endpoint %s %s: handler is nil", ep.Method, ep.Path)
	}
	if !ep.Price.Tier.Valid() {
		return fmt.Errorf("endpoint %s %s: unknown tier %q", ep.Method, ep.Path, ep.Price.Tier)
	}
	if ep.Price.Tier == entities.TierDynamic && ep.Price.Estimator == "" {
		return fmt.Errorf("endpoint %s %s: dynamic tier needs an estimator", ep.Method, ep.Path)
	}
	if ep.Price.Tier != entities.TierDynamic && ep.Price.Estimator != "" {
		return fmt.Errorf("endpoint %s %s: estimator %q on a fixed tier", ep.Method, ep.Path, ep.Price.Estimator)
	}
	if ep.Category == "" {
		return fmt.Errorf("endpoint %s %s: category is required", ep.Method, ep.Path)
	}
	key := ep.Method + " " + ep.Path
	if _, dup := r.seen[key]; dup {
		return fmt.Errorf("endpoint %s is already registered", key)
	}
	if err := validateMeta(ep.Meta); err != nil {
		return fmt.Errorf("endpoint %s: %w", key, err)
	}

	r.seen[key] = struct{}{}
	r.endpoints = append(r.endpoints, ep)
	return nil
}

// MustRegister is Register for the static table in main; invalid rows are
// programming errors and panic at startup.
func (r *Registry) MustRegister(ep Endpoint) {
	if err := r.Register(ep); err != nil {
		panic(err)
	}
}

// validateMeta compiles the advertised schemas and checks the example against
// the input schema, so discovery never publishes metadata clients cannot use.
func validateMeta(meta *entities.EndpointMeta) error {
	if meta == nil {
		return nil
	}
	if meta.InputSchema != nil {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(meta.InputSchema))
		if err != nil {
			return fmt.Errorf("input schema does not compile: %w", err)
		}
		if meta.Example != nil {
			result, err := schema.Validate(gojsonschema.NewGoLoader(meta.Example))
			if err != nil {
				return fmt.Errorf("example could not be validated: %w", err)
			}
			if !result.Valid() {
				return fmt.Errorf("example does not satisfy the input schema: %v", result.Errors())
			}
		}
	}
	if meta.OutputSchema != nil {
		if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(meta.OutputSchema)); err != nil {
			return fmt.Errorf("output schema does not compile: %w", err)
		}
	}
	return nil
}

// Specs returns the handler-free view of the table, in registration order.
func (r *Registry) Specs() []entities.EndpointSpec {
	specs := make([]entities.EndpointSpec, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		specs = append(specs, ep.spec())
	}
	return specs
}

// Mount registers every endpoint on the router: observation first, then the
// payment gate for priced tiers, then the handler. Free endpoints skip the
// gate entirely.
func (r *Registry) Mount(router gin.IRouter, gate GateFunc, observe ObserveFunc) {
	for _, ep := range r.endpoints {
		spec := ep.spec()
		chain := make([]gin.HandlerFunc, 0, 3)
		if observe != nil {
			chain = append(chain, observe(spec))
		}
		if gate != nil && spec.Priced() {
			chain = append(chain, gate(spec, ep.Price.Estimator))
		}
		chain = append(chain, ep.Handler)
		router.Handle(ep.Method, ginPath(ep.Path), chain...)
	}
}

// ginPath rewrites "{name}" placeholders to gin's ":name" syntax.
func ginPath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if len(seg) > 2 && strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			segments[i] = ":" + seg[1:len(seg)-1]
		}
	}
	return strings.Join(segments, "/")
}
