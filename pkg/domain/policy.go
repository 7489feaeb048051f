package domain

// Text selection: every translation pair renders as a primary line and a
// secondary line, and which half goes where depends on who is looking.
//
// Listing descriptions use a static role mapping. Chat messages are
// language-aware: each party sees their own tongue first no matter who
// authored the message, as long as the pair's language tag is correct.

// ListingPrimary returns the description text a viewer reads first.
// Buyers read the translated half, vendors the original.
func ListingPrimary(tr TranslationPair, viewer Role) string {
	if viewer == RoleBuyer {
		return tr.Translated
	}
	return tr.Original
}

// ListingSecondary returns the description text shown beneath the primary.
func ListingSecondary(tr TranslationPair, viewer Role) string {
	if viewer == RoleBuyer {
		return tr.Original
	}
	return tr.Translated
}

// MessagePrimary returns the message text in the viewer's own tongue.
// Total over all (role, language) combinations: any role other than buyer
// is treated as vendor, any language other than English as Hindi.
func MessagePrimary(tr TranslationPair, viewer Role) string {
	if viewer == RoleBuyer {
		if tr.Language == LanguageEnglish {
			return tr.Original
		}
		return tr.Translated
	}
	if tr.Language != LanguageEnglish {
		return tr.Original
	}
	return tr.Translated
}

// MessageSecondary returns the opposite half of MessagePrimary's pick.
func MessageSecondary(tr TranslationPair, viewer Role) string {
	if viewer == RoleBuyer {
		if tr.Language == LanguageEnglish {
			return tr.Translated
		}
		return tr.Original
	}
	if tr.Language != LanguageEnglish {
		return tr.Translated
	}
	return tr.Original
}
