package contract

// Standard ERC-20 interface (EIP-20) plus the OpenZeppelin v5 custom errors,
// so reverts from modern tokens decode to a readable reason.
//
// Function selectors:
//
//	decimals()          → 0x313ce567
//	balanceOf(address)  → 0x70a08231
//	allowance(a,a)      → 0xdd62ed3e
//	transfer(a,u256)    → 0xa9059cbb
//	approve(a,u256)     → 0x095ea7b3
//	transferFrom(a,a,u) → 0x23b872dd
var erc20Fragments = []string{
	"function name() view returns (string)",
	"function symbol() view returns (string)",
	"function decimals() view returns (uint8)",
	"function totalSupply() view returns (uint256)",
	"function balanceOf(address account) view returns (uint256)",
	"function allowance(address owner, address spender) view returns (uint256)",

	"function transfer(address to, uint256 value) returns (bool)",
	"function approve(address spender, uint256 value) returns (bool)",
	"function transferFrom(address from, address to, uint256 value) returns (bool)",

	"event Transfer(address indexed from, address indexed to, uint256 value)",
	"event Approval(address indexed owner, address indexed spender, uint256 value)",

	"error ERC20InsufficientBalance(address sender, uint256 balance, uint256 needed)",
	"error ERC20InsufficientAllowance(address spender, uint256 allowance, uint256 needed)",
	"error ERC20InvalidSender(address sender)",
	"error ERC20InvalidReceiver(address receiver)",
	"error ERC20InvalidApprover(address approver)",
	"error ERC20InvalidSpender(address spender)",
}

// BuiltinERC20 is the ID of the plain ERC-20 built-in.
const BuiltinERC20 = "erc20"

func init() {
	RegisterBuiltin(BuiltinKind{
		ID:          BuiltinERC20,
		Name:        "ERC-20 Standard Token",
		Description: "Standard ERC-20 interface. Impersonation needs impersonation=node.",
		ABI:         MustParseFragments(erc20Fragments...),
	})
}
