package templates

// HomePageData contains the values rendered on the chat landing page.
type HomePageData struct {
	Title        string
	Tagline      string
	ChatEndpoint string
	Suggestions  []string
}
