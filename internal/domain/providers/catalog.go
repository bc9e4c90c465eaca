package providers

// Provider is one known subscription-issuing service: its mailbox search
// query, the sender domains it bills from, and a priority boost used when
// ranking candidate messages. The catalog is reference data loaded at
// process start and never mutated.
type Provider struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Query    string   `json:"-"`
	Domains  []string `json:"domains"`
	Priority int      `json:"-"`
}

var catalog = []Provider{
	{Name: "Netflix", Category: "entertainment", Query: `from:netflix.com (subject:payment OR subject:receipt OR subject:membership)`, Domains: []string{"netflix.com"}, Priority: 10},
	{Name: "Spotify", Category: "entertainment", Query: `from:spotify.com (subject:receipt OR subject:payment OR subject:premium)`, Domains: []string{"spotify.com"}, Priority: 10},
	{Name: "Disney+", Category: "entertainment", Query: `from:disneyplus.com (subject:payment OR subject:receipt)`, Domains: []string{"disneyplus.com", "disney.com"}, Priority: 8},
	{Name: "YouTube Premium", Category: "entertainment", Query: `from:youtube.com subject:(membership OR payment)`, Domains: []string{"youtube.com", "google.com"}},
	{Name: "Amazon Prime", Category: "shopping", Query: `from:amazon.com subject:(prime AND (payment OR renewal OR membership))`, Domains: []string{"amazon.com"}, Priority: 8},
	{Name: "Apple", Category: "utility", Query: `from:apple.com subject:(receipt OR invoice OR subscription)`, Domains: []string{"apple.com", "itunes.com"}, Priority: 10},
	{Name: "Google One", Category: "utility", Query: `from:google.com subject:("Google One" AND (payment OR receipt))`, Domains: []string{"google.com"}},
	{Name: "Dropbox", Category: "productivity", Query: `from:dropbox.com subject:(receipt OR renewal OR invoice)`, Domains: []string{"dropbox.com", "dropboxmail.com"}},
	{Name: "Adobe", Category: "productivity", Query: `from:adobe.com subject:(invoice OR payment OR subscription)`, Domains: []string{"adobe.com", "mail.adobe.com"}},
	{Name: "Microsoft 365", Category: "productivity", Query: `from:microsoft.com subject:(invoice OR renewal OR subscription)`, Domains: []string{"microsoft.com"}},
	{Name: "Notion", Category: "productivity", Query: `from:notion.so subject:(receipt OR invoice)`, Domains: []string{"notion.so", "mail.notion.so"}},
	{Name: "Slack", Category: "productivity", Query: `from:slack.com subject:(receipt OR invoice)`, Domains: []string{"slack.com", "slackhq.com"}},
	{Name: "GitHub", Category: "productivity", Query: `from:github.com subject:(receipt OR payment)`, Domains: []string{"github.com"}},
	{Name: "Hulu", Category: "entertainment", Query: `from:hulu.com subject:(payment OR billing)`, Domains: []string{"hulu.com", "hulumail.com"}},
	{Name: "HBO Max", Category: "entertainment", Query: `from:hbomax.com subject:(payment OR receipt)`, Domains: []string{"hbomax.com", "max.com"}},
	{Name: "Audible", Category: "entertainment", Query: `from:audible.com subject:(membership OR payment)`, Domains: []string{"audible.com"}},
	{Name: "The New York Times", Category: "news", Query: `from:nytimes.com subject:(payment OR receipt OR subscription)`, Domains: []string{"nytimes.com"}},
	{Name: "Strava", Category: "health", Query: `from:strava.com subject:(receipt OR subscription)`, Domains: []string{"strava.com"}},
	{Name: "iCloud", Category: "utility", Query: `from:apple.com subject:(iCloud AND (receipt OR storage))`, Domains: []string{"apple.com", "icloud.com"}},
	{Name: "Patreon", Category: "entertainment", Query: `from:patreon.com subject:(receipt OR payment)`, Domains: []string{"patreon.com"}},
}

// All returns the provider catalog. Callers must not mutate the result.
func All() []Provider {
	return catalog
}

// ByName looks up a provider by its display name, case-sensitive.
func ByName(name string) (Provider, bool) {
	for _, p := range catalog {
		if p.Name == name {
			return p, true
		}
	}
	return Provider{}, false
}
