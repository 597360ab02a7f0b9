package tchannel2

import "fmt"

// endpointRegistry maps an endpoint name (the CallRequest's arg1) to its
// handler (§3 "Endpoint registry"). Registration is idempotency-rejected:
// registering a name already present is an error (§4.5).
type endpointRegistry struct {
	m *syncomap[string, Handler]
}

func newEndpointRegistry() *endpointRegistry {
	return &endpointRegistry{m: newSyncomap[string, Handler]()}
}

func (r *endpointRegistry) register(name string, h Handler) error {
	if _, exists := r.m.get2(name); exists {
		return &protocolError{kind: errEndpointAlreadyDefined, msg: fmt.Sprintf("endpoint %q already registered", name)}
	}
	r.m.set(name, h)
	return nil
}

func (r *endpointRegistry) lookup(name []byte) (Handler, bool) {
	return r.m.get2(string(name))
}
