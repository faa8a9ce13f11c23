package escrow

import "math/bits"

// splitFee computes the platform fee and agent payout for a deposit.
//
// fee uses integer floor division; the payout is always the subtraction
// remainder, never computed independently, so fee+payout == amount exactly.
// The arithmetic is checked the way the original checked u64 math was: with
// bounded amounts and a 1000 bps rate overflow is unreachable, but it is
// guarded rather than assumed.
func splitFee(amount, feeBps uint64) (fee, payout uint64, err error) {
	hi, lo := bits.Mul64(amount, feeBps)
	if hi != 0 {
		return 0, 0, ErrArithmeticOverflow
	}
	fee = lo / 10_000
	payout, borrow := bits.Sub64(amount, fee, 0)
	if borrow != 0 {
		return 0, 0, ErrArithmeticOverflow
	}
	return fee, payout, nil
}
