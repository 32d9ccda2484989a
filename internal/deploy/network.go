package deploy

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Network is the subset of an Ethereum JSON-RPC client the deployer uses.
type Network interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// DialNetwork connects to an Ethereum RPC endpoint.
func DialNetwork(ctx context.Context, rpcURL string) (Network, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", redactURL(rpcURL), err)
	}
	return client, nil
}

// redactURL drops the path of provider URLs, which carries the project key.
func redactURL(rpcURL string) string {
	if i := strings.Index(rpcURL, "://"); i >= 0 {
		if j := strings.Index(rpcURL[i+3:], "/"); j >= 0 {
			return rpcURL[:i+3+j] + "/..."
		}
	}
	return rpcURL
}

// TransactionSigner signs transactions on behalf of the deployer account.
type TransactionSigner interface {
	Address() common.Address
	ChainID() *big.Int
	SignTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)
}

// devAccounts are the accounts of the public "test test ... junk" mnemonic
// prefunded by anvil and hardhat nodes.
var devAccounts = map[common.Address]bool{
	common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"): true,
	common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"): true,
	common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"): true,
	common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906"): true,
	common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65"): true,
	common.HexToAddress("0x9965507D1a55bcC2695C58ba16FB37d819B0A4dc"): true,
	common.HexToAddress("0x976EA74026E726554dB657fA54763abd0C3a0aa9"): true,
	common.HexToAddress("0x14dC79964da2C08b23698B3D3cc7Ca32193d9955"): true,
	common.HexToAddress("0x23618e81E3f5cdF7f54C3d65f7FBc0aBf5B21E8f"): true,
	common.HexToAddress("0xa0Ee7A142d267C1f36714E4a8F75612F20a79720"): true,
}

var productionChainIDs = map[int64]string{
	1:     "Ethereum Mainnet",
	10:    "Optimism",
	137:   "Polygon",
	8453:  "Base",
	42161: "Arbitrum One",
}

// LocalSigner signs with an in-memory private key.
type LocalSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

// NewLocalSigner creates a LocalSigner from a hex-encoded private key, with
// or without a 0x prefix. Development keys are refused on production chains.
func NewLocalSigner(hexKey string, chainID int64) (*LocalSigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		// the error text never includes the key
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to get public key")
	}

	address := crypto.PubkeyToAddress(*publicKey)

	if chainName, ok := productionChainIDs[chainID]; ok && devAccounts[address] {
		return nil, fmt.Errorf("refusing development account %s on %s (chain_id=%d): key is publicly known",
			address.Hex(), chainName, chainID)
	}

	return &LocalSigner{
		privateKey: privateKey,
		address:    address,
		chainID:    big.NewInt(chainID),
	}, nil
}

// Address returns the signer's Ethereum address.
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// ChainID returns the chain ID transactions are signed for.
func (s *LocalSigner) ChainID() *big.Int {
	return s.chainID
}

// SignTransaction signs a transaction using the local private key.
func (s *LocalSigner) SignTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

var _ TransactionSigner = (*LocalSigner)(nil)
