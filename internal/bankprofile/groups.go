package bankprofile

// RegistrationGroupResolver maps a profile variant and requested scope to the
// registration group within one bank group. Implementations must be pure:
// the same inputs always yield the same group.
type RegistrationGroupResolver interface {
	GroupFor(variant Variant, scope RegistrationScope) string
}

// barclaysResolver: all production variants share one registration, only the
// sandbox is separate.
type barclaysResolver struct{}

func (barclaysResolver) GroupFor(variant Variant, _ RegistrationScope) string {
	if variant == "sandbox" {
		return "sandbox"
	}
	return "production"
}

// hsbcResolver: every variant is its own registration group.
type hsbcResolver struct{}

func (hsbcResolver) GroupFor(variant Variant, _ RegistrationScope) string {
	return string(variant)
}

// lloydsResolver: sandbox apart, production variants share one registration.
type lloydsResolver struct{}

func (lloydsResolver) GroupFor(variant Variant, _ RegistrationScope) string {
	if variant == "sandbox" {
		return "sandbox"
	}
	return "production"
}

// monzoResolver: every variant is its own registration group.
type monzoResolver struct{}

func (monzoResolver) GroupFor(variant Variant, _ RegistrationScope) string {
	return string(variant)
}
