package decode

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event signatures for the known log shapes. Anything else is skipped
// with a warning rather than decoded speculatively.
var (
	// WinningTicketRedeemed(address indexed sender, address indexed recipient, uint256 amount)
	WinningTicketRedeemedSig = crypto.Keccak256Hash([]byte("WinningTicketRedeemed(address,address,uint256)"))

	// Transfer(address indexed from, address indexed to, uint256 value)
	TransferSig = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

// ZeroAddress is the ERC-20 burn sink.
var ZeroAddress = common.Address{}

// TopicAddress right-aligns an address into a 32-byte topic value.
func TopicAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// AddressFromTopic extracts the address from a right-aligned topic.
func AddressFromTopic(topic common.Hash) common.Address {
	return common.BytesToAddress(topic.Bytes())
}
