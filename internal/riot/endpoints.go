package riot

import (
	"strings"
)

// Default host templates. {region} is a platform id such as euw1; {routing} is a
// regional cluster such as europe.
const (
	DefaultPlatformBase = "https://{region}.api.riotgames.com"
	DefaultRoutingBase  = "https://{routing}.api.riotgames.com"
	DefaultVersionsURL  = "https://ddragon.leagueoflegends.com/api/versions.json"
	defaultRouting      = "europe"
)

// Regions lists every platform the crawler knows how to route.
var Regions = []string{
	"tr1", "euw1", "eun1", "na1", "kr", "jp1", "br1", "la1",
	"la2", "oc1", "ru", "ph2", "sg2", "th2", "tw2", "vn2",
}

// DefaultRouting maps platform ids to the regional cluster serving match-v5.
func DefaultRouting() map[string]string {
	return map[string]string{
		"na1":  "americas",
		"br1":  "americas",
		"la1":  "americas",
		"la2":  "americas",
		"euw1": "europe",
		"eun1": "europe",
		"tr1":  "europe",
		"ru":   "europe",
		"kr":   "asia",
		"jp1":  "asia",
		"oc1":  "sea",
		"ph2":  "sea",
		"sg2":  "sea",
		"th2":  "sea",
		"tw2":  "sea",
		"vn2":  "sea",
	}
}

// Endpoints builds URLs for platform and regional hosts.
type Endpoints struct {
	PlatformBase string
	RoutingBase  string
	Routing      map[string]string
}

// NewEndpoints fills unset fields with the public Riot hosts.
func NewEndpoints(platformBase, routingBase string, routing map[string]string) Endpoints {
	if platformBase == "" {
		platformBase = DefaultPlatformBase
	}
	if routingBase == "" {
		routingBase = DefaultRoutingBase
	}
	merged := DefaultRouting()
	for k, v := range routing {
		merged[strings.ToLower(k)] = v
	}
	return Endpoints{PlatformBase: platformBase, RoutingBase: routingBase, Routing: merged}
}

// RoutingFor returns the regional cluster for a platform, defaulting to europe.
func (e Endpoints) RoutingFor(region string) string {
	if r, ok := e.Routing[strings.ToLower(region)]; ok {
		return r
	}
	return defaultRouting
}

// Platform returns the URL of path on the platform host for region.
func (e Endpoints) Platform(region, path string) string {
	return strings.ReplaceAll(e.PlatformBase, "{region}", strings.ToLower(region)) + path
}

// Regional returns the URL of path on the regional cluster serving region.
func (e Endpoints) Regional(region, path string) string {
	return strings.ReplaceAll(e.RoutingBase, "{routing}", e.RoutingFor(region)) + path
}
