package chronicle

import "encoding/hex"

var (
	liquidityTotalPrefix  = []byte("chronicle/liquidity/total/")
	liquidityEntryPrefix  = []byte("chronicle/liquidity/account/")
	liquidityLeavesPrefix = []byte("chronicle/liquidity/leaves/")
	dataEntryPrefix       = []byte("chronicle/data/key/")
	dataLeavesPrefix      = []byte("chronicle/data/leaves/")
	factoryDeployedPrefix = []byte("chronicle/factory/deployed/")
)

func scopedKey(prefix []byte, scope [20]byte, suffix []byte) []byte {
	encoded := hex.EncodeToString(scope[:])
	buf := make([]byte, 0, len(prefix)+len(encoded)+1+len(suffix)*2)
	buf = append(buf, prefix...)
	buf = append(buf, encoded...)
	if len(suffix) > 0 {
		buf = append(buf, '/')
		buf = append(buf, hex.EncodeToString(suffix)...)
	}
	return buf
}

func totalLiquidityKey(chronicleAddr [20]byte) []byte {
	return scopedKey(liquidityTotalPrefix, chronicleAddr, nil)
}

func accountLiquidityKey(chronicleAddr [20]byte, leaf [32]byte) []byte {
	return scopedKey(liquidityEntryPrefix, chronicleAddr, leaf[:])
}

func liquidityLeavesKey(chronicleAddr [20]byte) []byte {
	return scopedKey(liquidityLeavesPrefix, chronicleAddr, nil)
}

func dataHashKey(chronicleAddr [20]byte, leaf [32]byte) []byte {
	return scopedKey(dataEntryPrefix, chronicleAddr, leaf[:])
}

func dataLeavesKey(chronicleAddr [20]byte) []byte {
	return scopedKey(dataLeavesPrefix, chronicleAddr, nil)
}

func factoryDeployedKey(chronicleAddr [20]byte) []byte {
	return scopedKey(factoryDeployedPrefix, chronicleAddr, nil)
}
