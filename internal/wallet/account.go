package wallet

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Roles.
const (
	RoleOperator = "operator"
	RoleOwner    = "owner"
	RoleAlice    = "alice"
	RoleBob      = "bob"
)

// Account is a named, key-backed address. It is immutable once created.
type Account struct {
	Role    string
	Address common.Address
	key     *ecdsa.PrivateKey
}

// NewAccount derives an account from a hex private key (0x prefix optional).
func NewAccount(role, hexKey string) (Account, error) {
	priv, err := crypto.HexToECDSA(normaliseHexKey(hexKey))
	if err != nil {
		return Account{}, fmt.Errorf("%s: parsing private key: %w", role, err)
	}
	return Account{
		Role:    role,
		Address: crypto.PubkeyToAddress(priv.PublicKey),
		key:     priv,
	}, nil
}

// Signer returns a transaction signer for this account.
func (a Account) Signer() *Signer {
	return &Signer{key: a.key, address: a.Address}
}

func (a Account) String() string {
	return fmt.Sprintf("%s(%s)", a.Role, a.Address.Hex())
}
