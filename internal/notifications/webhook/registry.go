package webhook

import (
	"net/url"
	"strings"
)

// PlatformRegistry picks a formatter for a destination URL.
type PlatformRegistry struct {
	formatters map[Platform]PlatformFormatter
}

func NewPlatformRegistry() *PlatformRegistry {
	return &PlatformRegistry{formatters: map[Platform]PlatformFormatter{
		PlatformGeneric: &GenericFormatter{},
		PlatformSlack:   &SlackFormatter{},
		PlatformDiscord: &DiscordFormatter{},
		PlatformTeams:   &TeamsFormatter{},
	}}
}

// Detect classifies a URL by its host. Slack and Discord are matched on
// their webhook endpoints; Teams covers both legacy connectors
// (*.webhook.office.com) and Power Automate workflows (*.logic.azure.com).
// Unparseable URLs are generic and fail later at delivery.
func (r *PlatformRegistry) Detect(raw string) Platform {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return PlatformGeneric
	}
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)

	switch {
	case host == "hooks.slack.com":
		return PlatformSlack
	case (host == "discord.com" || host == "discordapp.com") && strings.HasPrefix(path, "/api/webhooks/"):
		return PlatformDiscord
	case strings.HasSuffix(host, ".webhook.office.com"), strings.HasSuffix(host, ".logic.azure.com"):
		return PlatformTeams
	}
	return PlatformGeneric
}

// Get falls back to the generic formatter for unregistered platforms.
func (r *PlatformRegistry) Get(p Platform) PlatformFormatter {
	if f, ok := r.formatters[p]; ok {
		return f
	}
	return r.formatters[PlatformGeneric]
}

func (r *PlatformRegistry) For(url string) PlatformFormatter {
	return r.Get(r.Detect(url))
}
