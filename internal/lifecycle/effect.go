package lifecycle

// ItemEffect is the registry operation a transition requires on its item.
type ItemEffect int

const (
	// EffectNone leaves the item untouched.
	EffectNone ItemEffect = iota
	// EffectClaimHeld moves the item AVAILABLE -> HELD.
	EffectClaimHeld
	// EffectClaimCustody moves the item AVAILABLE -> IN_CUSTODY.
	EffectClaimCustody
	// EffectTransfer moves the item HELD -> IN_CUSTODY.
	EffectTransfer
	// EffectRelease moves the item back to AVAILABLE.
	EffectRelease
)

func (e ItemEffect) String() string {
	switch e {
	case EffectClaimHeld:
		return "claim-held"
	case EffectClaimCustody:
		return "claim-custody"
	case EffectTransfer:
		return "transfer"
	case EffectRelease:
		return "release"
	}
	return "none"
}

// appendNote adds line to a free-form note, one entry per line.
func appendNote(note, line string) string {
	if line == "" {
		return note
	}
	if note == "" {
		return line
	}
	return note + "\n" + line
}
