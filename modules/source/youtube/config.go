package youtube

// Config holds the configuration for the YouTube source module.
//
// api_key alone is enough for reading video metadata and comment threads.
// Posting replies goes through OAuth: client_id, client_secret and
// refresh_token must all be set.
type Config struct {
	APIKey       string `yaml:"api_key"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	BaseURL      string `yaml:"base_url"`
	TokenURL     string `yaml:"token_url"`
}

// defaults fills zero-valued fields with the production endpoints.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.googleapis.com/youtube/v3"
	}
	if c.TokenURL == "" {
		c.TokenURL = "https://oauth2.googleapis.com/token"
	}
}

func (c *Config) hasOAuth() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

func (c *Config) partialOAuth() bool {
	any := c.ClientID != "" || c.ClientSecret != "" || c.RefreshToken != ""
	return any && !c.hasOAuth()
}
