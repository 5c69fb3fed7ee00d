package cache

// EffectKeyOpts identifies one effect application for cache keys.
type EffectKeyOpts struct {
	Kind string `json:"kind"`
	X    int    `json:"x,omitempty"`
	Y    int    `json:"y,omitempty"`
	W    int    `json:"w,omitempty"`
	H    int    `json:"h,omitempty"`
}

// Keyer builds cache keys.
type Keyer interface {
	// EffectKey returns the key for applying opts to the state with the given content hash.
	EffectKey(stateHash string, opts EffectKeyOpts) string
}

// DefaultKeyer produces unscoped keys of the form "effect:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// EffectKey hashes the state hash together with the effect parameters.
func (DefaultKeyer) EffectKey(stateHash string, opts EffectKeyOpts) string {
	return hashKey("effect", stateHash, opts)
}
