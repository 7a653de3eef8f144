// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package magic

// Keys of governance params.
var (
	KeyExecutorAddress        = BytesToBytes32([]byte("executor"))
	KeyUnbondingPeriod        = BytesToBytes32([]byte("unbonding-period"))
	KeyNumActiveEnablers      = BytesToBytes32([]byte("num-active-enablers"))
	KeyMaxEarningsClaimRounds = BytesToBytes32([]byte("max-earnings-claim-rounds"))
)

const (
	// InitialUnbondingPeriod rounds an unbonding lock stays immature.
	InitialUnbondingPeriod = uint64(7)

	// InitialNumEnablers default capacity of the candidate pool.
	InitialNumEnablers = uint64(20)

	// InitialNumActiveEnablers default size of the per-round active set.
	InitialNumActiveEnablers = uint64(10)

	// InitialMaxEarningsClaimRounds bound on per-call earnings accrual steps.
	InitialMaxEarningsClaimRounds = uint64(20)

	// InitialRoundLength blocks per round.
	InitialRoundLength = uint64(50)

	// InitialRoundLockAmount portion of a round that is rate-locked, as
	// a fraction of perc.Divisor.
	InitialRoundLockAmount = uint64(100000)
)
