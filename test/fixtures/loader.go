package fixtures

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Well-known anvil dev accounts 0-3, one per role.
const (
	OperatorKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	OwnerKey    = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	AliceKey    = "5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a"
	BobKey      = "7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6"
)

// TokenAddress is where anvil puts the first contract deployed by account 0.
var TokenAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// Address derives the address of a hex key.
func Address(hexKey string) common.Address {
	k, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		panic(err)
	}
	return crypto.PubkeyToAddress(k.PublicKey)
}

// Env returns environment variables pointing w3probe at rpcURL with all four
// keys set.
func Env(rpcURL string) map[string]string {
	return map[string]string{
		"RPC_URL":           rpcURL,
		"CONTRACT_ADDRESS":  TokenAddress.Hex(),
		"PRIVATE_KEY":       OperatorKey,
		"TOKEN_PRIVATE_KEY": OwnerKey,
		"ALICE_PRIVATE_KEY": AliceKey,
		"BOB_PRIVATE_KEY":   BobKey,
	}
}
