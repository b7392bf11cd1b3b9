// Package evm is the keeper's backend for the round contract on EVM chains.
package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const roundContractABI = `[
	{"name":"currentRoundId","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"rounds","type":"function","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[
		{"name":"roundId","type":"uint256"},
		{"name":"lockedPrice","type":"int256"},
		{"name":"finalPrice","type":"int256"},
		{"name":"startTime","type":"uint256"},
		{"name":"endTime","type":"uint256"},
		{"name":"resolved","type":"bool"},
		{"name":"outcome","type":"uint8"},
		{"name":"upPool","type":"uint256"},
		{"name":"downPool","type":"uint256"},
		{"name":"totalFees","type":"uint256"},
		{"name":"feesCollected","type":"bool"}
	]},
	{"name":"paused","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"name":"owner","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"name":"treasury","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"name":"startRoundManual","type":"function","stateMutability":"nonpayable","inputs":[{"name":"price","type":"int256"},{"name":"duration","type":"uint256"}],"outputs":[]},
	{"name":"resolveRoundManual","type":"function","stateMutability":"nonpayable","inputs":[{"name":"price","type":"int256"}],"outputs":[]},
	{"name":"collectFees","type":"function","stateMutability":"nonpayable","inputs":[{"name":"roundId","type":"uint256"}],"outputs":[]},
	{"name":"emergencyWithdraw","type":"function","stateMutability":"nonpayable","inputs":[{"name":"roundId","type":"uint256"}],"outputs":[]},
	{"name":"updateTreasury","type":"function","stateMutability":"nonpayable","inputs":[{"name":"newTreasury","type":"address"}],"outputs":[]}
]`

var contractABI abi.ABI

func init() {
	var err error
	contractABI, err = abi.JSON(strings.NewReader(roundContractABI))
	if err != nil {
		panic("evm: round contract abi parse: " + err.Error())
	}
}
