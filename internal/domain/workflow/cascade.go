package workflow

// CascadeTarget is the unique downstream destination of a rejection at a
// given tier.
type CascadeTarget struct {
	// TargetTier is the tier the rejection cascades to; nil when the
	// request returns to the requestor.
	TargetTier *int
	// ReturnedToRequestor is true when the rejection leaves the approval
	// chain entirely.
	ReturnedToRequestor bool
	// CanCascadeFurther is true when the target tier can itself reject
	// one more hop down.
	CanCascadeFurther bool
}

// ResolveCascadeTarget maps "rejected at tier" to its downstream target:
// tier 1 returns to the requestor, any higher tier cascades to the tier
// below it. The function is total and deterministic over tiers 1..5;
// callers must validate the tier range before calling.
func ResolveCascadeTarget(tier int) CascadeTarget {
	if tier == 1 {
		return CascadeTarget{
			TargetTier:          nil,
			ReturnedToRequestor: true,
			CanCascadeFurther:   false,
		}
	}

	target := tier - 1
	return CascadeTarget{
		TargetTier:          &target,
		ReturnedToRequestor: false,
		CanCascadeFurther:   target > 1,
	}
}
