package readpath

import "sync"

// Installer builds the worker's Provider exactly once. Worker startup can
// be re-entered under worker reuse, so installation must be idempotent:
// repeated Install calls return the provider (or error) from the first.
type Installer struct {
	once     sync.Once
	provider Provider
	err      error
}

// Install runs build on the first call and memoizes its result.
func (i *Installer) Install(build func() (Provider, error)) (Provider, error) {
	i.once.Do(func() {
		i.provider, i.err = build()
	})
	return i.provider, i.err
}

// Installed returns the installed provider, or nil before Install succeeds.
func (i *Installer) Installed() Provider {
	if i.err != nil {
		return nil
	}
	return i.provider
}
