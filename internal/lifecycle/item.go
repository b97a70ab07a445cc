package lifecycle

import "github.com/erazemk/izposoja/internal/model"

// ClaimSources lists the item states a claim may start from.
var ClaimSources = []model.ItemState{model.ItemAvailable}

// ReleaseSources lists the item states a release moves back to AVAILABLE.
var ReleaseSources = []model.ItemState{model.ItemHeld, model.ItemInCustody}

// Claim decides whether item can move to the claimed state to, which must
// be HELD or IN_CUSTODY.
func Claim(item model.Item, to model.ItemState) (model.ItemState, error) {
	if to != model.ItemHeld && to != model.ItemInCustody {
		return item.State, Errorf(CodeInvalidStateTransition, "cannot claim item as %s", to)
	}
	if !item.Active {
		return item.State, Errorf(CodeItemUnavailable, "item %d is not active", item.ID)
	}
	if item.State != model.ItemAvailable {
		return item.State, Errorf(CodeItemUnavailable, "item %d is %s", item.ID, item.State)
	}
	return to, nil
}

// Release decides the state after releasing a hold or custody. Releasing an
// AVAILABLE item is a no-op success: it may race with a cancel or expiry
// that already released it.
func Release(item model.Item) (model.ItemState, error) {
	switch item.State {
	case model.ItemHeld, model.ItemInCustody, model.ItemAvailable:
		return model.ItemAvailable, nil
	}
	return item.State, Errorf(CodeInvalidStateTransition, "cannot release item %d from %s", item.ID, item.State)
}

// Transfer decides a direct move between claimed states, used when a
// reservation converts into a rental without an AVAILABLE window.
func Transfer(item model.Item, from, to model.ItemState) (model.ItemState, error) {
	if item.State != from {
		return item.State, Errorf(CodeInvalidStateTransition, "item %d is %s, not %s", item.ID, item.State, from)
	}
	if from == to {
		return item.State, Errorf(CodeInvalidStateTransition, "item %d already %s", item.ID, to)
	}
	return to, nil
}

// Withdraw decides an administrative withdrawal. Held or lent items cannot
// be withdrawn; withdrawing a withdrawn item is a no-op.
func Withdraw(item model.Item) (model.ItemState, error) {
	switch item.State {
	case model.ItemAvailable, model.ItemWithdrawn:
		return model.ItemWithdrawn, nil
	}
	return item.State, Errorf(CodeInvalidStateTransition, "item %d is %s", item.ID, item.State)
}

// Restore reverses Withdraw.
func Restore(item model.Item) (model.ItemState, error) {
	switch item.State {
	case model.ItemWithdrawn, model.ItemAvailable:
		return model.ItemAvailable, nil
	}
	return item.State, Errorf(CodeInvalidStateTransition, "item %d is %s", item.ID, item.State)
}

// Recover returns an item left IN_CUSTODY by a LOST rental to the pool.
// openRental reports whether any ACTIVE or OVERDUE rental still references it.
func Recover(item model.Item, openRental bool) (model.ItemState, error) {
	if item.State != model.ItemInCustody {
		return item.State, Errorf(CodeInvalidStateTransition, "item %d is %s", item.ID, item.State)
	}
	if openRental {
		return item.State, Errorf(CodeInvalidStateTransition, "item %d is still on an open rental", item.ID)
	}
	return model.ItemAvailable, nil
}

// Deactivate decides whether item may be taken out of the claimable pool.
// Only an item nobody holds can be deactivated.
func Deactivate(item model.Item) error {
	switch item.State {
	case model.ItemAvailable, model.ItemWithdrawn:
		return nil
	}
	return Errorf(CodeInvalidStateTransition, "item %d is %s", item.ID, item.State)
}
