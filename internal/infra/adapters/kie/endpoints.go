package kie

// Family selects one of the provider's sub-APIs.
type Family string

const (
	FamilyMarket      Family = "market"
	FamilyVeo3        Family = "veo3"
	Family4oImage     Family = "4o-image"
	FamilyRunway      Family = "runway"
	FamilyLuma        Family = "luma"
	FamilyFluxKontext Family = "flux-kontext"
	FamilySuno        Family = "suno"
)

// Endpoints is the fixed path set of a family. DownloadPath and CallbackPath
// are empty when the family has none.
type Endpoints struct {
	CreatePath   string
	StatusPath   string
	DownloadPath string
	CallbackPath string
}

var endpointTable = map[Family]Endpoints{
	FamilyMarket: {
		CreatePath: "/api/v1/jobs/createTask",
		StatusPath: "/api/v1/jobs/recordInfo",
	},
	FamilyVeo3: {
		CreatePath:   "/api/v1/veo/generate",
		StatusPath:   "/api/v1/veo/record-info",
		CallbackPath: "/api/v1/veo/callbacks",
	},
	Family4oImage: {
		CreatePath:   "/api/v1/gpt4o-image/generate",
		StatusPath:   "/api/v1/gpt4o-image/record-info",
		DownloadPath: "/api/v1/gpt4o-image/download-url",
		CallbackPath: "/api/v1/gpt4o-image/callbacks",
	},
	FamilyRunway: {
		CreatePath:   "/api/v1/runway/generate",
		StatusPath:   "/api/v1/runway/record-info",
		CallbackPath: "/api/v1/runway/callbacks",
	},
	FamilyLuma: {
		CreatePath:   "/api/v1/modify/generate",
		StatusPath:   "/api/v1/modify/record-info",
		CallbackPath: "/api/v1/modify/callbacks",
	},
	FamilyFluxKontext: {
		CreatePath:   "/api/v1/flux/kontext/generate",
		StatusPath:   "/api/v1/flux/kontext/getImageDetails",
		CallbackPath: "/api/v1/flux/kontext/callbacks",
	},
	FamilySuno: {
		CreatePath:   "/api/v1/generate",
		StatusPath:   "/api/v1/generate/record-info",
		CallbackPath: "/api/v1/generate/callbacks",
	},
}

// ParseFamily maps a capabilities tag onto a known family. Tags match exactly;
// unknown, empty or differently cased tags resolve to the market family.
func ParseFamily(s string) Family {
	f := Family(s)
	if _, ok := endpointTable[f]; ok {
		return f
	}
	return FamilyMarket
}

// EndpointsFor never fails: anything it does not know is served by the market API.
func EndpointsFor(family string) Endpoints {
	return endpointTable[ParseFamily(family)]
}

// Families lists every known family.
func Families() []Family {
	return []Family{FamilyMarket, FamilyVeo3, Family4oImage, FamilyRunway, FamilyLuma, FamilyFluxKontext, FamilySuno}
}
