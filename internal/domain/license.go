package domain

import (
	"strings"
	"time"
)

const (
	TemplateTypeStandard  = "standard"
	TemplateTypeExtended  = "extended"
	TemplateTypeExclusive = "exclusive"
	TemplateTypeCustom    = "custom"
)

// LicenseTemplate is immutable catalog data; tokens snapshot its permission
// and restriction sets at mint time. A nil DurationDays means perpetual and
// a nil MaxUses means unlimited.
type LicenseTemplate struct {
	TemplateID      string   `json:"template_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Type            string   `json:"type"`
	Permissions     []string `json:"permissions"`
	Restrictions    []string `json:"restrictions"`
	DurationDays    *int     `json:"duration_days,omitempty"`
	MaxUses         *int     `json:"max_uses,omitempty"`
	Transferable    bool     `json:"transferable"`
	Resellable      bool     `json:"resellable"`
	PriceMultiplier float64  `json:"price_multiplier"`
}

type LicenseToken struct {
	TokenID      string            `json:"token_id"`
	ContractRef  string            `json:"contract_ref"`
	AssetID      string            `json:"asset_id"`
	TemplateID   string            `json:"template_id"`
	OwnerID      string            `json:"owner_id"`
	IssuerID     string            `json:"issuer_id"`
	MintedAt     time.Time         `json:"minted_at"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	MaxUses      *int              `json:"max_uses,omitempty"`
	UsedCount    int               `json:"used_count"`
	Permissions  []string          `json:"permissions"`
	Restrictions []string          `json:"restrictions"`
	Transferable bool              `json:"transferable"`
	Resellable   bool              `json:"resellable"`
	MetadataURI  string            `json:"metadata_uri,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	BurnedAt     *time.Time        `json:"burned_at,omitempty"`
}

func (t LicenseToken) Burned() bool { return t.BurnedAt != nil }

func (t LicenseToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

func (t LicenseToken) Exhausted() bool {
	return t.MaxUses != nil && t.UsedCount >= *t.MaxUses
}

// Remaining returns max uses minus used count, or nil for unlimited tokens.
func (t LicenseToken) Remaining() *int {
	if t.MaxUses == nil {
		return nil
	}
	n := *t.MaxUses - t.UsedCount
	if n < 0 {
		n = 0
	}
	return &n
}

type LicenseVerification struct {
	IsValid       bool       `json:"is_valid"`
	TokenID       string     `json:"token_id"`
	OwnerID       string     `json:"owner_id,omitempty"`
	AssetID       string     `json:"asset_id,omitempty"`
	LicenseType   string     `json:"license_type,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	RemainingUses *int       `json:"remaining_uses,omitempty"`
	Permissions   []string   `json:"permissions,omitempty"`
}

type UseResult struct {
	Success       bool   `json:"success"`
	RemainingUses *int   `json:"remaining_uses,omitempty"`
	Message       string `json:"message"`
}

// Distinct use-failure messages; callers branch on these rather than errors.
const (
	UseMessageInvalid   = "invalid license"
	UseMessageExpired   = "license expired"
	UseMessageExhausted = "no remaining uses"
	UseMessageOK        = "license used successfully"
)

type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type LicenseMetadataDoc struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image,omitempty"`
	Attributes  []MetadataAttribute `json:"attributes"`
}

// DefaultTemplates is the static catalog, ordered by ascending price
// multiplier. The bundles mirror the marketplace's published terms.
func DefaultTemplates() []LicenseTemplate {
	oneUse := 1
	fiveUses := 5
	yearDays := 365
	return []LicenseTemplate{
		{
			TemplateID:      "standard",
			Name:            "Standard License",
			Description:     "Personal use, single project, non-commercial",
			Type:            TemplateTypeStandard,
			Permissions:     []string{"view", "download", "personal-use"},
			Restrictions:    []string{"no-commercial", "no-resale", "no-distribution"},
			MaxUses:         &oneUse,
			PriceMultiplier: 1.0,
		},
		{
			TemplateID:      "extended",
			Name:            "Extended License",
			Description:     "Commercial use, multiple projects, up to 5 uses",
			Type:            TemplateTypeExtended,
			Permissions:     []string{"view", "download", "commercial-use", "multiple-projects"},
			Restrictions:    []string{"no-resale", "no-distribution"},
			DurationDays:    &yearDays,
			MaxUses:         &fiveUses,
			Transferable:    true,
			PriceMultiplier: 2.0,
		},
		{
			TemplateID:      "exclusive",
			Name:            "Exclusive License",
			Description:     "Full ownership, unlimited use, commercial rights",
			Type:            TemplateTypeExclusive,
			Permissions:     []string{"view", "download", "commercial-use", "unlimited-projects", "resale", "distribution", "modification"},
			Restrictions:    []string{},
			Transferable:    true,
			Resellable:      true,
			PriceMultiplier: 5.0,
		},
	}
}

func ValidateMintInput(assetID, templateID, purchaserID string) error {
	if strings.TrimSpace(assetID) == "" || strings.TrimSpace(templateID) == "" || strings.TrimSpace(purchaserID) == "" {
		return ErrInvalidInput
	}
	return nil
}
