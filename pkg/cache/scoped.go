package cache

// ScopedKeyer prefixes every key of an inner Keyer. Deployments sharing
// one Redis use distinct prefixes, e.g. "retouch:prod:".
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the default keyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return ScopedKeyer{inner: inner, prefix: prefix}
}

func (k ScopedKeyer) EffectKey(stateHash string, opts EffectKeyOpts) string {
	return k.prefix + k.inner.EffectKey(stateHash, opts)
}
