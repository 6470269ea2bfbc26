package idle

import "time"

// Mode is the kind of re-engagement content to show an idle user.
type Mode string

const (
	ModeFact       Mode = "fact"
	ModeBackground Mode = "background"
	ModeShowcase   Mode = "showcase"
	ModeGame       Mode = "game"
)

// ShowcaseRoutes are the routes where the feature showcase is shown.
var ShowcaseRoutes = []string{"/music-tools", "/discover", "/library"}

// ModeFor picks content for a user who has been idle for idleFor on route.
func ModeFor(idleFor time.Duration, route string, online bool) Mode {
	switch {
	case idleFor < 2*time.Minute:
		if !online {
			return ModeBackground
		}
		return ModeFact
	case idleFor < 5*time.Minute:
		for _, r := range ShowcaseRoutes {
			if r == route {
				return ModeShowcase
			}
		}
		return ModeFact
	default:
		return ModeGame
	}
}
