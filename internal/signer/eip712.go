package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Constants for EIP-712 domain separation. A payload signed for one
// deployment (name/version/chain/contract tuple) can never verify in another.
const (
	EIP712DomainName    = "VaultPilot Rebalancer"
	EIP712DomainVersion = "1"
)

var (
	// EIP712DomainTypeHash is the keccak256 hash of the EIP712Domain type definition
	EIP712DomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	// PayloadTypeHash is the keccak256 hash of the RebalancePayload type definition.
	// The action data is bound by hash, not by value.
	PayloadTypeHash = crypto.Keccak256Hash([]byte("RebalancePayload(uint256 vaultId,uint256 nonce,bytes32 actionHash,uint256 issuedAt,uint256 expiry)"))
)

// RebalancePayload is the signed, nonce-bound, time-bound instruction
// authorizing one specific rebalance. It exists only off-chain and as
// calldata; the ledger never stores it.
type RebalancePayload struct {
	VaultID    uint64        `json:"vault_id"`
	Nonce      uint64        `json:"nonce"`
	ActionData hexutil.Bytes `json:"action_data"`
	IssuedAt   int64         `json:"issued_at"`
	Expiry     int64         `json:"expiry"`
}

// Domain carries a pre-computed EIP-712 domain separator.
type Domain struct {
	chainID   *big.Int
	contract  common.Address
	separator common.Hash
}

func NewDomain(chainID int64, verifyingContract common.Address) Domain {
	nameHash := crypto.Keccak256Hash([]byte(EIP712DomainName))
	versionHash := crypto.Keccak256Hash([]byte(EIP712DomainVersion))

	// Manual ABI encode: all five fields are 32 bytes
	data := make([]byte, 32*5)
	copy(data[0:32], EIP712DomainTypeHash.Bytes())
	copy(data[32:64], nameHash.Bytes())
	copy(data[64:96], versionHash.Bytes())
	copy(data[96:128], math.U256Bytes(big.NewInt(chainID)))
	copy(data[128+12:160], verifyingContract.Bytes()) // address, left-padded

	return Domain{
		chainID:   big.NewInt(chainID),
		contract:  verifyingContract,
		separator: crypto.Keccak256Hash(data),
	}
}

func (d Domain) Separator() common.Hash {
	return d.separator
}

// HashPayload computes the EIP-191 digest that gets signed:
// keccak256("\x19\x01" || domainSeparator || hashStruct(payload))
func (d Domain) HashPayload(p *RebalancePayload) common.Hash {
	// typeHash + 5 fields = 6 items * 32 bytes
	data := make([]byte, 32*6)
	copy(data[0:32], PayloadTypeHash.Bytes())
	copy(data[32:64], math.U256Bytes(new(big.Int).SetUint64(p.VaultID)))
	copy(data[64:96], math.U256Bytes(new(big.Int).SetUint64(p.Nonce)))
	copy(data[96:128], crypto.Keccak256(p.ActionData))
	copy(data[128:160], math.U256Bytes(big.NewInt(p.IssuedAt)))
	copy(data[160:192], math.U256Bytes(big.NewInt(p.Expiry)))

	structHash := crypto.Keccak256(data)
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, d.separator.Bytes(), structHash)
}
