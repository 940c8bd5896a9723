package domain

import (
	"testing"
	"time"
)

func TestTokenLifecyclePredicates(t *testing.T) {
	now := time.Now().UTC()
	maxUses := 2
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	token := LicenseToken{TokenID: "tok_1", MaxUses: &maxUses, ExpiresAt: &future}
	if token.Burned() || token.Expired(now) || token.Exhausted() { t.Fatalf("fresh token should be usable: %+v", token) }

	token.UsedCount = 2
	if !token.Exhausted() { t.Fatal("expected exhausted at used == max") }
	if r := token.Remaining(); r == nil || *r != 0 { t.Fatalf("expected 0 remaining, got %v", r) }

	token.UsedCount = 5
	if r := token.Remaining(); r == nil || *r != 0 { t.Fatalf("remaining must clamp at zero, got %v", r) }

	token.ExpiresAt = &past
	if !token.Expired(now) { t.Fatal("expected expired") }

	token.BurnedAt = &now
	if !token.Burned() { t.Fatal("expected burned") }
}

func TestUnlimitedTokenNeverExhausts(t *testing.T) {
	token := LicenseToken{TokenID: "tok_2", UsedCount: 1_000_000}
	if token.Exhausted() { t.Fatal("nil max uses must mean unlimited") }
	if token.Remaining() != nil { t.Fatal("unlimited token has no remaining count") }
	if token.Expired(time.Now()) { t.Fatal("nil expiry must mean perpetual") }
}

func TestDefaultTemplatesCatalog(t *testing.T) {
	templates := DefaultTemplates()
	if len(templates) != 3 { t.Fatalf("expected 3 templates, got %d", len(templates)) }
	byID := map[string]LicenseTemplate{}
	for _, template := range templates {
		byID[template.TemplateID] = template
	}
	standard := byID["standard"]
	if standard.PriceMultiplier != 1.0 || standard.MaxUses == nil || *standard.MaxUses != 1 || standard.Transferable {
		t.Fatalf("unexpected standard terms: %+v", standard)
	}
	extended := byID["extended"]
	if extended.PriceMultiplier != 2.0 || extended.DurationDays == nil || *extended.DurationDays != 365 || !extended.Transferable || extended.Resellable {
		t.Fatalf("unexpected extended terms: %+v", extended)
	}
	exclusive := byID["exclusive"]
	if exclusive.PriceMultiplier != 5.0 || exclusive.DurationDays != nil || exclusive.MaxUses != nil || !exclusive.Resellable {
		t.Fatalf("unexpected exclusive terms: %+v", exclusive)
	}
}
