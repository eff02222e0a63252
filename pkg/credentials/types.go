package credentials

// Credentials is the on-disk shape of credentials.toml.
type Credentials struct {
	Version   int                           `toml:"version"`
	Providers map[string]ProviderCredential `toml:"providers"`
}

// ProviderCredential holds the upstream token for a single provider.
type ProviderCredential struct {
	APIKey string `toml:"api_key"`
}

// Key returns the stored token for provider, or "".
func (c *Credentials) Key(provider string) string {
	return c.Providers[canonicalProvider(provider)].APIKey
}

// Set stores key for provider.
func (c *Credentials) Set(provider, key string) {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderCredential)
	}
	c.Providers[canonicalProvider(provider)] = ProviderCredential{APIKey: key}
}

// canonicalProvider folds the relay's "auto" provider onto openai, the
// request encoding auto uses.
func canonicalProvider(provider string) string {
	if provider == "" || provider == "auto" {
		return "openai"
	}
	return provider
}
