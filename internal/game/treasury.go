package game

import (
	"context"
	"fmt"
)

// TransferReason explains why value left the game account.
type TransferReason string

const (
	ReasonChange TransferReason = "change"
	ReasonPrize  TransferReason = "prize"
	ReasonRefund TransferReason = "refund"
	ReasonShare  TransferReason = "share"
)

// Transfer is one outbound payment.
type Transfer struct {
	To     Address        `json:"to"`
	Amount Amount         `json:"amount"`
	Reason TransferReason `json:"reason"`
}

// Settlement is the value movement of one action: what the caller attached
// and what the game pays out. It is applied atomically.
type Settlement struct {
	From     Address
	Received Amount
	Payouts  []Transfer
}

// Total returns the sum of all payouts.
func (s Settlement) Total() (Amount, error) {
	var total Amount
	for _, t := range s.Payouts {
		var err error
		if total, err = addAmount(total, t.Amount); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Treasury holds the game's funds. Settle must either apply the whole
// settlement or nothing.
type Treasury interface {
	// Available returns the value currently held by the game account,
	// excluding anything attached to the action being handled.
	Available(ctx context.Context) (Amount, error)
	Settle(ctx context.Context, s Settlement) error
}

// pay queues an outbound transfer from the funds this action can see.
func (tx *txn) pay(to Address, amount Amount, reason TransferReason) error {
	if amount == 0 {
		return nil
	}
	if amount > tx.available {
		return fmt.Errorf("%w: paying %d to %s with %d available", ErrInternal, amount, to, tx.available)
	}
	tx.available -= amount
	tx.transfers = append(tx.transfers, Transfer{To: to, Amount: amount, Reason: reason})
	return nil
}

// returnChange sends back whatever the caller attached and the action did
// not consume.
func (tx *txn) returnChange() error {
	change := tx.unspent
	tx.unspent = 0
	return tx.pay(tx.msg.Caller, change, ReasonChange)
}
