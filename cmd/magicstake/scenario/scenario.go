// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package scenario replays scripted ledger operations against a fresh
// state, for protocol experiments and regression checks.
package scenario

import (
	"fmt"
	"io"
	"math/big"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/magic-network/magic-protocol/builtin"
	"github.com/magic-network/magic-protocol/builtin/staking"
	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

// Mint seeds an account with the staked asset before the first step.
type Mint struct {
	Account string `yaml:"account"`
	Amount  int64  `yaml:"amount"`
}

// Step is one scripted ledger operation. Op selects the operation; the
// remaining fields are read as that operation needs them.
type Step struct {
	Op           string `yaml:"op"`
	Caller       string `yaml:"caller"`
	To           string `yaml:"to"`
	Amount       int64  `yaml:"amount"`
	RewardCut    int64  `yaml:"rewardCut"`
	FeeShare     int64  `yaml:"feeShare"`
	Price        int64  `yaml:"price"`
	LockID       uint64 `yaml:"lockID"`
	EndRound     uint64 `yaml:"endRound"`
	Round        uint64 `yaml:"round"`
	Rounds       uint64 `yaml:"rounds"`
	Finder       string `yaml:"finder"`
	SlashPct     int64  `yaml:"slashPct"`
	FinderFeePct int64  `yaml:"finderFeePct"`
}

// Scenario is a complete replay script.
type Scenario struct {
	Executor  string `yaml:"executor"`
	Reporter  string `yaml:"reporter"`
	Inflation int64  `yaml:"inflation"`
	Mint      []Mint `yaml:"mint"`
	Steps     []Step `yaml:"steps"`
}

// Load parses a yaml scenario. Unknown fields are rejected.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, errors.Wrap(err, "failed to parse scenario")
	}
	return &sc, nil
}

// resolve turns a scripted account name into an address. Hex strings
// pass through, anything else is used as a symbolic identity.
func resolve(name string) (magic.Address, error) {
	if name == "" {
		return magic.Address{}, nil
	}
	if strings.HasPrefix(name, "0x") {
		addr, err := magic.ParseAddress(name)
		if err != nil {
			return magic.Address{}, err
		}
		return *addr, nil
	}
	return magic.BytesToAddress([]byte(name)), nil
}

// EnablerReport is a pool entry in the final snapshot, in pool order.
type EnablerReport struct {
	Account   string `yaml:"account"`
	Stake     string `yaml:"stake"`
	RewardCut string `yaml:"rewardCut"`
	FeeShare  string `yaml:"feeShare"`
	Price     string `yaml:"price"`
	Active    bool   `yaml:"active"`
}

// AccountReport is one scripted account's final ledger view.
type AccountReport struct {
	Account  string `yaml:"account"`
	Balance  string `yaml:"balance"`
	Bonded   string `yaml:"bonded"`
	Delegate string `yaml:"delegate,omitempty"`
	Fees     string `yaml:"fees"`
	Status   string `yaml:"status"`
}

// Report is the ledger snapshot after the last step.
type Report struct {
	Round       uint64          `yaml:"round"`
	TotalSupply string          `yaml:"totalSupply"`
	TotalBonded string          `yaml:"totalBonded"`
	Enablers    []EnablerReport `yaml:"enablers"`
	Accounts    []AccountReport `yaml:"accounts"`
	Events      []string        `yaml:"events"`
}

// Write renders the report as yaml.
func (r *Report) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(r)
}

type runner struct {
	sys      *builtin.System
	reporter magic.Address
	accounts map[magic.Address]string
	events   []string
}

func (r *runner) account(name string) (magic.Address, error) {
	addr, err := resolve(name)
	if err != nil {
		return magic.Address{}, err
	}
	if name != "" && !addr.IsZero() {
		r.accounts[addr] = name
	}
	return addr, nil
}

func (r *runner) name(addr magic.Address) string {
	if name, ok := r.accounts[addr]; ok {
		return name
	}
	return addr.String()
}

// Run replays sc on a fresh in-memory state and returns the final
// snapshot. It fails on the first rejected step.
func Run(sc *Scenario) (*Report, error) {
	executor := sc.Executor
	if executor == "" {
		executor = "executor"
	}
	reporter := sc.Reporter
	if reporter == "" {
		reporter = "reporter"
	}

	r := &runner{accounts: make(map[magic.Address]string)}
	reporterAddr, err := r.account(reporter)
	if err != nil {
		return nil, err
	}
	executorAddr, err := r.account(executor)
	if err != nil {
		return nil, err
	}

	r.reporter = reporterAddr
	r.sys = builtin.NewSystem(state.NewMem(), reporterAddr)
	if err := r.sys.Initialize(executorAddr); err != nil {
		return nil, err
	}
	for _, m := range sc.Mint {
		addr, err := r.account(m.Account)
		if err != nil {
			return nil, err
		}
		if err := r.sys.Token.Mint(addr, big.NewInt(m.Amount)); err != nil {
			return nil, err
		}
	}
	if sc.Inflation > 0 {
		if err := r.sys.Minter.SetInflation(big.NewInt(sc.Inflation)); err != nil {
			return nil, err
		}
	}

	events := make(chan staking.Event, 256)
	sub := r.sys.Staking.SubscribeEvents(events)
	defer sub.Unsubscribe()
	drain := func() {
		for {
			select {
			case ev := <-events:
				r.events = append(r.events, fmt.Sprintf("%s %+v", ev.Name, ev.Data))
			default:
				return
			}
		}
	}

	if _, err := r.sys.Rounds.InitializeRound(); err != nil {
		return nil, err
	}
	for i, step := range sc.Steps {
		if err := r.apply(step); err != nil {
			return nil, errors.Wrapf(err, "step %d (%s)", i+1, step.Op)
		}
		drain()
	}
	return r.report()
}

func (r *runner) apply(step Step) error {
	caller, err := r.account(step.Caller)
	if err != nil {
		return err
	}
	switch step.Op {
	case "advance":
		n := step.Rounds
		if n == 0 {
			n = 1
		}
		for ; n > 0; n-- {
			round, err := r.sys.Rounds.CurrentRound()
			if err != nil {
				return err
			}
			if err := r.sys.Rounds.EnterBlock((round + 1) * magic.InitialRoundLength); err != nil {
				return err
			}
			if _, err := r.sys.Rounds.InitializeRound(); err != nil {
				return err
			}
		}
		return nil
	case "bond":
		to, err := r.account(step.To)
		if err != nil {
			return err
		}
		return r.sys.Staking.Bond(caller, big.NewInt(step.Amount), to)
	case "register":
		return r.sys.Staking.Register(caller, big.NewInt(step.RewardCut), big.NewInt(step.FeeShare), big.NewInt(step.Price))
	case "unbond":
		return r.sys.Staking.Unbond(caller, big.NewInt(step.Amount))
	case "rebond":
		return r.sys.Staking.Rebond(caller, step.LockID)
	case "rebondFromUnbonded":
		to, err := r.account(step.To)
		if err != nil {
			return err
		}
		return r.sys.Staking.RebondFromUnbonded(caller, to, step.LockID)
	case "withdrawStake":
		return r.sys.Staking.WithdrawStake(caller, step.LockID)
	case "withdrawFees":
		return r.sys.Staking.WithdrawFees(caller)
	case "claim":
		endRound := step.EndRound
		if endRound == 0 {
			round, err := r.sys.Rounds.CurrentRound()
			if err != nil {
				return err
			}
			endRound = round
		}
		return r.sys.Staking.ClaimEarnings(caller, endRound)
	case "reward":
		return r.sys.Staking.Reward(caller)
	case "fees":
		to, err := r.account(step.To)
		if err != nil {
			return err
		}
		round := step.Round
		if round == 0 {
			if round, err = r.sys.Rounds.CurrentRound(); err != nil {
				return err
			}
		}
		if err := r.sys.Minter.DepositFees(big.NewInt(step.Amount)); err != nil {
			return err
		}
		return r.sys.Staking.UpdateEnablerWithFees(r.reporter, to, big.NewInt(step.Amount), round)
	case "slash":
		to, err := r.account(step.To)
		if err != nil {
			return err
		}
		finder, err := r.account(step.Finder)
		if err != nil {
			return err
		}
		return r.sys.Staking.SlashEnabler(r.reporter, to, finder, big.NewInt(step.SlashPct), big.NewInt(step.FinderFeePct))
	default:
		return errors.Errorf("unknown op %q", step.Op)
	}
}

func (r *runner) report() (*Report, error) {
	round, err := r.sys.Rounds.CurrentRound()
	if err != nil {
		return nil, err
	}
	supply, err := r.sys.Token.TotalSupply()
	if err != nil {
		return nil, err
	}
	bonded, err := r.sys.Staking.TotalBonded()
	if err != nil {
		return nil, err
	}
	rep := &Report{
		Round:       round,
		TotalSupply: supply.String(),
		TotalBonded: bonded.String(),
		Events:      r.events,
	}

	id, err := r.sys.Staking.PoolFirst()
	if err != nil {
		return nil, err
	}
	for !id.IsZero() {
		stake, err := r.sys.Staking.PoolStake(id)
		if err != nil {
			return nil, err
		}
		e, err := r.sys.Staking.GetEnabler(id)
		if err != nil {
			return nil, err
		}
		active, err := r.sys.Staking.IsActive(id, round)
		if err != nil {
			return nil, err
		}
		rep.Enablers = append(rep.Enablers, EnablerReport{
			Account:   r.name(id),
			Stake:     stake.String(),
			RewardCut: e.PendingRewardCut.String(),
			FeeShare:  e.PendingFeeShare.String(),
			Price:     e.PendingPricePerSegment.String(),
			Active:    active,
		})
		if id, err = r.sys.Staking.PoolNext(id); err != nil {
			return nil, err
		}
	}

	addrs := make([]magic.Address, 0, len(r.accounts))
	for addr := range r.accounts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return r.accounts[addrs[i]] < r.accounts[addrs[j]] })
	for _, addr := range addrs {
		balance, err := r.sys.Token.BalanceOf(addr)
		if err != nil {
			return nil, err
		}
		d, err := r.sys.Staking.GetDelegator(addr)
		if err != nil {
			return nil, err
		}
		acct := AccountReport{
			Account: r.accounts[addr],
			Balance: balance.String(),
			Bonded:  d.BondedAmount.String(),
			Fees:    d.Fees.String(),
			Status:  d.StatusAt(round).String(),
		}
		if !d.DelegateAddress.IsZero() {
			acct.Delegate = r.name(d.DelegateAddress)
		}
		rep.Accounts = append(rep.Accounts, acct)
	}
	return rep, nil
}
