package engine

// UserID is the platform account identifier. The engine treats it as an
// opaque handle; uniqueness is the caller's responsibility.
type UserID int64

// Gender values a user can declare for themselves.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Preference values for the desired partner's gender.
const (
	PrefMale   = "male"
	PrefFemale = "female"
	PrefAny    = "any"
)

// Profile holds a user's declared gender and desired partner gender.
// It is overwritten on every new search and never explicitly deleted;
// stale entries are only read during matching attempts.
type Profile struct {
	Gender string
	Pref   string
}

// ValidGender reports whether g is a declarable gender.
func ValidGender(g string) bool {
	return g == GenderMale || g == GenderFemale
}

// ValidPref reports whether p is a declarable partner preference.
func ValidPref(p string) bool {
	return p == PrefMale || p == PrefFemale || p == PrefAny
}

// canMatch reports mutual eligibility of two profiles: each side's
// preference must be "any" or equal the other side's gender. Symmetric by
// construction. A zero-value (unregistered) profile never matches.
func canMatch(p1, p2 Profile) bool {
	if p1.Gender == "" || p2.Gender == "" {
		return false
	}
	ok1 := p1.Pref == PrefAny || p2.Gender == p1.Pref
	ok2 := p2.Pref == PrefAny || p1.Gender == p2.Pref
	return ok1 && ok2
}
