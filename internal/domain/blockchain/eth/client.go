package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/scanpay-lab/backend/contract/erc20"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"golang.org/x/exp/slices"
)

const (
	// dialTimeout bounds the height check of a node while refreshing the pool.
	dialTimeout = 5 * time.Second

	// maxHeightLag is how far a node may be from the median height of the pool
	// before it is dropped.
	maxHeightLag = 5
)

// EthClient is the subset of the chain API used by the backend. It can be
// mocked in domain tests.
type EthClient interface {
	Start(ctx context.Context)

	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	BalanceAt(ctx context.Context, from common.Address, block *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, block *big.Int) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error)
	GetSignedTransferTokenTx(ctx context.Context, token common.Address, senderKey *ecdsa.PrivateKey, recipient common.Address, amount *big.Int) (*ethtypes.Transaction, error)
	ERC20BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error)
}

type ChainInfo struct {
	Name           string
	ID             int64
	Rpcs           []string
	UseExternalRPC bool
}

type rpcNode struct {
	client *ethclient.Client
	url    string
	height uint64
}

// poolClient keeps a pool of rpc nodes close to the chain head. Public rpcs
// are often flaky, so every call starts at a random node and moves on to the
// next one when the node fails.
type poolClient struct {
	chain       string
	chainID     *big.Int
	configured  []string
	useExternal bool

	mutex sync.RWMutex
	nodes []*rpcNode
}

func NewEthClient(info ChainInfo) EthClient {
	return &poolClient{
		chain:       info.Name,
		chainID:     big.NewInt(info.ID),
		configured:  info.Rpcs,
		useExternal: info.UseExternalRPC,
	}
}

func (c *poolClient) Start(ctx context.Context) {
	go c.refreshLoop(ctx)
}

func (c *poolClient) refreshLoop(ctx context.Context) {
	frequency := xcontext.Configs(ctx).Chain.RefreshConnectionFrequency
	if frequency <= 0 {
		frequency = time.Minute
	}

	ticker := time.NewTicker(frequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refresh(ctx)
		}
	}
}

func (c *poolClient) refresh(ctx context.Context) {
	urls := append([]string{}, c.configured...)
	if c.useExternal {
		externals, err := fetchChainlistRpcs(ctx, c.chainID)
		if err != nil {
			xcontext.Logger(ctx).Warnf("Cannot get chainlist rpcs of %s: %v", c.chain, err)
		} else {
			urls = append(urls, externals...)
		}
	}

	nodes := make([]*rpcNode, 0, len(urls))
	for _, url := range urls {
		if node := dialNode(ctx, url); node != nil {
			nodes = append(nodes, node)
		}
	}

	nodes, dropped := selectNodes(nodes)
	for _, node := range dropped {
		node.client.Close()
	}

	if len(nodes) == 0 {
		xcontext.Logger(ctx).Errorf("No rpc of chain %s is reachable", c.chain)
	} else {
		picked := make([]string, 0, len(nodes))
		for _, node := range nodes {
			picked = append(picked, node.url)
		}
		xcontext.Logger(ctx).Infof("Rpcs of chain %s: %v", c.chain, picked)
	}

	c.mutex.Lock()
	old := c.nodes
	c.nodes = nodes
	c.mutex.Unlock()

	for _, node := range old {
		node.client.Close()
	}
}

func dialNode(ctx context.Context, url string) *rpcNode {
	client, err := ethclient.Dial(url)
	if err != nil {
		return nil
	}

	heightCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	height, err := client.BlockNumber(heightCtx)
	cancel()
	if err != nil {
		client.Close()
		return nil
	}

	return &rpcNode{client: client, url: url, height: height}
}

// selectNodes keeps the nodes within maxHeightLag blocks of the median height
// and returns the rest separately so the caller can close them.
func selectNodes(nodes []*rpcNode) (kept, dropped []*rpcNode) {
	if len(nodes) == 0 {
		return nil, nil
	}

	heights := make([]uint64, len(nodes))
	for i, node := range nodes {
		heights[i] = node.height
	}
	median := medianOf(heights)

	for _, node := range nodes {
		lag := node.height - median
		if node.height < median {
			lag = median - node.height
		}

		if lag < maxHeightLag {
			kept = append(kept, node)
		} else {
			dropped = append(dropped, node)
		}
	}

	return kept, dropped
}

func medianOf(values []uint64) uint64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return sorted[len(sorted)/2]
}

func (c *poolClient) snapshot(ctx context.Context) []*rpcNode {
	c.mutex.RLock()
	nodes := c.nodes
	c.mutex.RUnlock()

	if nodes == nil {
		c.refresh(ctx)

		c.mutex.RLock()
		nodes = c.nodes
		c.mutex.RUnlock()
	}

	return nodes
}

// execute runs f on the nodes of the pool starting at a random one. It stops
// at the first success, on ethereum.NotFound or when ctx is done.
func execute[T any](ctx context.Context, c *poolClient, f func(client *ethclient.Client) (T, error)) (T, error) {
	var zero T

	nodes := c.snapshot(ctx)
	if len(nodes) == 0 {
		return zero, fmt.Errorf("no healthy rpc for chain %s", c.chain)
	}

	var lastErr error
	start := rand.Intn(len(nodes))
	for i := range nodes {
		node := nodes[(start+i)%len(nodes)]

		result, err := f(node.client)
		if err == nil {
			return result, nil
		}

		if errors.Is(err, ethereum.NotFound) || ctx.Err() != nil {
			return zero, err
		}

		xcontext.Logger(ctx).Debugf("Rpc %s of chain %s failed: %v", node.url, c.chain, err)
		lastErr = err
	}

	return zero, lastErr
}

func (c *poolClient) BlockNumber(ctx context.Context) (uint64, error) {
	return execute(ctx, c, func(client *ethclient.Client) (uint64, error) {
		return client.BlockNumber(ctx)
	})
}

func (c *poolClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	return execute(ctx, c, func(client *ethclient.Client) (*ethtypes.Receipt, error) {
		return client.TransactionReceipt(ctx, txHash)
	})
}

// SendTransaction broadcasts tx through a single node. Retrying on another node
// would only report "already known" or a nonce error.
func (c *poolClient) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	nodes := c.snapshot(ctx)
	if len(nodes) == 0 {
		return fmt.Errorf("no healthy rpc for chain %s", c.chain)
	}

	return nodes[rand.Intn(len(nodes))].client.SendTransaction(ctx, tx)
}

func (c *poolClient) BalanceAt(ctx context.Context, from common.Address, block *big.Int) (*big.Int, error) {
	return execute(ctx, c, func(client *ethclient.Client) (*big.Int, error) {
		return client.BalanceAt(ctx, from, block)
	})
}

func (c *poolClient) NonceAt(ctx context.Context, account common.Address, block *big.Int) (uint64, error) {
	return execute(ctx, c, func(client *ethclient.Client) (uint64, error) {
		return client.NonceAt(ctx, account, block)
	})
}

func (c *poolClient) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	return execute(ctx, c, func(client *ethclient.Client) (*ethtypes.Header, error) {
		return client.HeaderByNumber(ctx, number)
	})
}

func (c *poolClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error) {
	return execute(ctx, c, func(client *ethclient.Client) ([]ethtypes.Log, error) {
		return client.FilterLogs(ctx, query)
	})
}

func (c *poolClient) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return execute(ctx, c, func(client *ethclient.Client) ([]byte, error) {
		return client.CallContract(ctx, msg, block)
	})
}

// GetSignedTransferTokenTx builds and signs an erc20 transfer without sending
// it. Nonce and gas are filled in by the node.
func (c *poolClient) GetSignedTransferTokenTx(
	ctx context.Context,
	token common.Address,
	senderKey *ecdsa.PrivateKey,
	recipient common.Address,
	amount *big.Int,
) (*ethtypes.Transaction, error) {
	opts := c.signerOpts(ctx, senderKey)
	return execute(ctx, c, func(client *ethclient.Client) (*ethtypes.Transaction, error) {
		instance, err := erc20.NewErc20(token, client)
		if err != nil {
			return nil, err
		}

		return instance.Transfer(opts, recipient, amount)
	})
}

func (c *poolClient) signerOpts(ctx context.Context, key *ecdsa.PrivateKey) *bind.TransactOpts {
	signer := ethtypes.LatestSignerForChainID(c.chainID)
	return &bind.TransactOpts{
		From: crypto.PubkeyToAddress(key.PublicKey),
		Signer: func(_ common.Address, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
			return ethtypes.SignTx(tx, signer, key)
		},
		Value:   common.Big0,
		Context: ctx,
		NoSend:  true,
	}
}

func (c *poolClient) ERC20BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	return execute(ctx, c, func(client *ethclient.Client) (*big.Int, error) {
		instance, err := erc20.NewErc20(token, client)
		if err != nil {
			return nil, err
		}

		return instance.BalanceOf(&bind.CallOpts{Context: ctx}, account)
	})
}
