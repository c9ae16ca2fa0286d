// Package actions implements the demo order lifecycle's registered
// side-effects (validate, charge, ship, notify) and the static registry the
// engine dispatches them through.
package actions

import (
	"context"
	"fmt"

	"stepforge/domain"
	"stepforge/store"
)

// Registry is a static name -> store.ActionFunc table. It is read-only
// after construction, so a single Registry is safe to share across every
// RunWorker.
type Registry struct {
	funcs map[string]store.ActionFunc
}

// NewRegistry builds the registry of demo actions named in the order
// lifecycle: validate_order, charge_payment, ship_order, send_notification.
func NewRegistry() *Registry {
	return &Registry{
		funcs: map[string]store.ActionFunc{
			"validate_order":    validateOrder,
			"charge_payment":    chargePayment,
			"ship_order":        shipOrder,
			"send_notification": sendNotification,
		},
	}
}

// Lookup returns the named action and whether it is registered. An unknown
// name is not an error here -- the engine treats it as a no-op per the
// dispatch rule.
func (r *Registry) Lookup(name string) (store.ActionFunc, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

func validateOrder(ctx context.Context, tx store.BusinessObjectTx) error {
	obj, err := tx.Get(ctx)
	if err != nil {
		return err
	}
	if obj.Amount <= 0 {
		return fmt.Errorf("validate_order: amount %v is not positive", obj.Amount)
	}
	obj.Status = domain.BusinessObjectValidated
	return tx.Update(ctx, obj)
}

func chargePayment(ctx context.Context, tx store.BusinessObjectTx) error {
	obj, err := tx.Get(ctx)
	if err != nil {
		return err
	}
	if obj.Status != domain.BusinessObjectValidated {
		return fmt.Errorf("charge_payment: business object %s is %s, want VALIDATED", obj.ID, obj.Status)
	}
	obj.Status = domain.BusinessObjectCharged
	return tx.Update(ctx, obj)
}

func shipOrder(ctx context.Context, tx store.BusinessObjectTx) error {
	obj, err := tx.Get(ctx)
	if err != nil {
		return err
	}
	if obj.Status != domain.BusinessObjectCharged {
		return fmt.Errorf("ship_order: business object %s is %s, want CHARGED", obj.ID, obj.Status)
	}
	obj.Status = domain.BusinessObjectShipped
	return tx.Update(ctx, obj)
}

// sendNotification has no state transition; it only requires the object to
// exist, matching the no-transition row of the action table.
func sendNotification(ctx context.Context, tx store.BusinessObjectTx) error {
	_, err := tx.Get(ctx)
	return err
}
