package gauges

import "math/big"

// BZZDecimals is the BZZ token precision: 16 places, not 18 like ETH.
const BZZDecimals = 16

var bzzUnit = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(BZZDecimals), nil))

// ScaleBZZ converts a raw on-chain amount into whole BZZ.
func ScaleBZZ(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	scaled, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), bzzUnit).Float64()
	return scaled
}

// bzzDenominated lists the view functions whose raw value is a BZZ amount
// and should be published in whole tokens.
var bzzDenominated = map[string]map[string]bool{
	"BzzToken": {
		"totalSupply": true,
	},
	"PostageStamp": {
		"currentTotalOutPayment":        true,
		"pot":                           true,
		"minimumInitialBalancePerChunk": true,
		"lastExpiryBalance":             true,
	},
	"Staking": {
		"withdrawableStake": true,
	},
}

// IsBZZDenominated reports whether a contract function's value is a raw
// BZZ amount.
func IsBZZDenominated(contractName, funcName string) bool {
	return bzzDenominated[contractName][funcName]
}
