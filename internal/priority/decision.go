package priority

// Verdict is the outcome class of one evaluation.
type Verdict string

const (
	VerdictAllow        Verdict = "ALLOW"
	VerdictDenyBurst    Verdict = "DENY_BURST"
	VerdictDenyThrottle Verdict = "DENY_THROTTLE"
)

// Reason tokens. Order within a Decision is insertion order and is
// stable: tests and diagnostics rely on it.
const (
	ReasonDisabled       = "DISABLED"
	ReasonPriorityType   = "PRIORITY_TYPE"
	ReasonAllowed        = "ALLOWED"
	ReasonBurst          = "BURST"
	ReasonThrottled      = "THROTTLED"
	ReasonQuietHours     = "QUIET_HOURS"
	ReasonPresetBias     = "PRESET_BIAS"
	ReasonProfileStrict  = "PROFILE_STRICT_APPLIED"
	ReasonProfileLenient = "PROFILE_LENIENT_APPLIED"
)

// Decision is the result of Evaluate. Reasons explain the verdict; the
// first token names the decisive gate, later tokens annotate context.
type Decision struct {
	Verdict Verdict
	Reasons []string
}

func (d Decision) Allowed() bool { return d.Verdict == VerdictAllow }

func allow(reasons ...string) Decision {
	return Decision{Verdict: VerdictAllow, Reasons: reasons}
}

func denyBurst(reasons ...string) Decision {
	return Decision{Verdict: VerdictDenyBurst, Reasons: reasons}
}

func denyThrottle(reasons ...string) Decision {
	return Decision{Verdict: VerdictDenyThrottle, Reasons: reasons}
}
