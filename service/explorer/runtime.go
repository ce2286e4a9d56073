package explorer

// RuntimeSpec identifies the runtime an item was produced under, with the
// metadata needed to render its addresses.
type RuntimeSpec struct {
	SpecVersion string          `json:"specVersion"`
	Metadata    RuntimeMetadata `json:"metadata"`
}

// RuntimeMetadata is the part of the chain metadata the explorer renders with.
type RuntimeMetadata struct {
	SS58Prefix uint16 `json:"ss58Prefix"`
	Currency   string `json:"currency"`
}

const latestSpecVersion = "latest"

// runtimeSpec resolves a spec version for a network.
// Only the network's current metadata is known, so every version maps to it.
func (s *Service) runtimeSpec(network, version string) (RuntimeSpec, error) {
	n, err := s.registry.Get(network)
	if err != nil {
		return RuntimeSpec{}, err
	}
	return RuntimeSpec{
		SpecVersion: version,
		Metadata: RuntimeMetadata{
			SS58Prefix: n.SS58Prefix,
			Currency:   n.Currency,
		},
	}, nil
}

// addRuntimeSpecs attaches a runtime spec to every item using the version picked by versionOf.
func addRuntimeSpecs[T any](s *Service, network string, items *ItemsResponse[T], versionOf func(T) string, set func(*T, RuntimeSpec)) error {
	specs := make(map[string]RuntimeSpec)
	for i := range items.Data {
		version := versionOf(items.Data[i])
		spec, ok := specs[version]
		if !ok {
			var err error
			spec, err = s.runtimeSpec(network, version)
			if err != nil {
				return err
			}
			specs[version] = spec
		}
		set(&items.Data[i], spec)
	}
	return nil
}
