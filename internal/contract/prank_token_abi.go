package contract

// A test token that carries its own impersonation entry points: while a
// prank is active, msg.sender is replaced by the pranked address for the
// next call (prank) or until stopPrank (startPrank). mint is owner-only.
var prankTokenFragments = []string{
	"function mint(address to, uint256 amount)",
	"function prank(address who)",
	"function startPrank(address who)",
	"function stopPrank()",
	"function owner() view returns (address)",
}

// BuiltinPrankToken is the ID of the ERC-20 + impersonation built-in.
const BuiltinPrankToken = "prank-token"

func init() {
	RegisterBuiltin(BuiltinKind{
		ID:          BuiltinPrankToken,
		Name:        "Prankable ERC-20",
		Description: "ERC-20 with owner mint and prank/startPrank/stopPrank entry points.",
		ABI:         MustParseFragments(append(append([]string{}, erc20Fragments...), prankTokenFragments...)...),
	})
}
