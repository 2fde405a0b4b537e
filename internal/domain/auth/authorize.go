package auth

// AccessDeniedPath is where the guard sends sessions lacking a required role.
const AccessDeniedPath = "/access-denied"

// HasRole reports whether s is initialized, authenticated and holds r.
// It is total: uninitialized or anonymous sessions hold no roles.
func HasRole(s Session, r Role) bool {
	return s.Initialized && s.Authenticated && s.Roles.Has(r)
}

// Decision is the outcome of a route guard evaluation.
type Decision int

const (
	// DecisionPending renders a neutral placeholder; no redirect is issued.
	DecisionPending Decision = iota
	// DecisionAllow renders the protected content.
	DecisionAllow
	// DecisionDenyRedirect sends the client to AccessDeniedPath.
	DecisionDenyRedirect
)

func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionAllow:
		return "allow"
	case DecisionDenyRedirect:
		return "deny"
	default:
		return "unknown"
	}
}

// Decide evaluates a guarded route. An empty required role only demands an
// authenticated session. Rules apply in order: uninitialized and anonymous
// sessions are pending, a missing role is denied, everything else is allowed.
func Decide(s Session, required Role) Decision {
	if !s.Initialized {
		return DecisionPending
	}
	if !s.Authenticated {
		return DecisionPending
	}
	if required != "" && !HasRole(s, required) {
		return DecisionDenyRedirect
	}
	return DecisionAllow
}
