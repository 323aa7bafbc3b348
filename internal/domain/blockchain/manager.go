package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/scanpay-lab/backend/internal/common"
	"github.com/scanpay-lab/backend/internal/domain/blockchain/eth"
	"github.com/scanpay-lab/backend/internal/domain/blockchain/types"
	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/internal/repository"
	"github.com/scanpay-lab/backend/pkg/enum"
	"github.com/scanpay-lab/backend/pkg/ethutil"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"gorm.io/gorm"
)

// MaxPayoutAttempts is the number of reverted transactions after which a
// payout is left in the failure status for an operator to look at.
const MaxPayoutAttempts = 3

// dropConfirmations is how deep a nonce must be used before a transfer
// without receipt is considered dropped.
const dropConfirmations = 12

// PayoutManager moves tokens out of the custody wallet for every payout
// created by the reward engine.
type PayoutManager struct {
	payoutRepo repository.RewardPayoutRepository
	client     eth.EthClient
	dispatcher Dispatcher
	watcher    Watcher

	chain      string
	token      ethcommon.Address
	custodyKey *ecdsa.PrivateKey
	custody    ethcommon.Address

	now func() time.Time
}

func NewPayoutManager(
	ctx context.Context,
	payoutRepo repository.RewardPayoutRepository,
	client eth.EthClient,
) (*PayoutManager, error) {
	cfg := xcontext.Configs(ctx).Chain
	key, err := CustodyKey(ctx)
	if err != nil {
		return nil, err
	}

	return &PayoutManager{
		payoutRepo: payoutRepo,
		client:     client,
		dispatcher: eth.NewEthDispatcher(client),
		watcher:    eth.NewEthWatcher(client),
		chain:      cfg.Name,
		token:      ethcommon.HexToAddress(cfg.USDCAddress),
		custodyKey: key,
		custody:    crypto.PubkeyToAddress(key.PublicKey),
		now:        time.Now,
	}, nil
}

// CustodyKey derives the custody wallet key from the configured secret.
func CustodyKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	secret := xcontext.Configs(ctx).Chain.CustodySecret
	if secret == "" {
		return nil, errors.New("custody secret is not configured")
	}

	return ethutil.GeneratePrivateKey([]byte(secret), nil)
}

// CustodyAddress is the wallet receiving deposits and paying prizes.
func CustodyAddress(ctx context.Context) (ethcommon.Address, error) {
	key, err := CustodyKey(ctx)
	if err != nil {
		return ethcommon.Address{}, err
	}

	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func (m *PayoutManager) Run(ctx context.Context) {
	interval := xcontext.Configs(ctx).Payout.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	xcontext.Logger(ctx).Infof("Start payout manager for chain %s, custody = %s", m.chain, m.custody)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.Process(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Process runs one round: confirms the dispatched payouts then dispatches the
// pending ones.
func (m *PayoutManager) Process(ctx context.Context) {
	m.checkDispatchedPayouts(ctx)
	m.dispatchPendingPayouts(ctx)
}

func (m *PayoutManager) batchSize(ctx context.Context) int {
	size := xcontext.Configs(ctx).Payout.BatchSize
	if size <= 0 {
		return 20
	}

	return size
}

func (m *PayoutManager) dispatchPendingPayouts(ctx context.Context) {
	counter := common.PromCounters[common.PayoutFailure]

	payouts, err := m.payoutRepo.GetListByStatus(ctx, entity.RewardPayoutStatusPending, m.batchSize(ctx))
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get pending payouts: %v", err)
		return
	}

	if len(payouts) == 0 {
		return
	}

	balance, err := m.client.ERC20BalanceOf(ctx, m.token, m.custody)
	if err != nil {
		counter.WithLabelValues("Cannot get token balance").Inc()
		xcontext.Logger(ctx).Errorf("Cannot get token balance of custody: %v", err)
		return
	}

	for _, payout := range payouts {
		amount := new(big.Int).SetUint64(payout.Amount)
		if balance.Cmp(amount) < 0 {
			counter.WithLabelValues("Not enough token balance").Inc()
			xcontext.Logger(ctx).Errorf("Not enough token balance to pay %s (balance = %s, amount = %s)",
				payout.ID, balance, amount)
			return
		}

		request, err := m.getDispatchedTransferTokenTxRequest(ctx, &payout)
		if err != nil {
			counter.WithLabelValues("Cannot get dispatched tx request").Inc()
			xcontext.Logger(ctx).Errorf("Cannot get dispatched tx request of payout %s: %v", payout.ID, err)
			// The next payouts would use the same nonce, stop this round.
			return
		}

		xcontext.Logger(ctx).Infof("Process payout %s with hash %s", payout.ID, request.Tx.Hash().Hex())
		if !m.dispatch(ctx, &payout, request) {
			return
		}

		balance = new(big.Int).Sub(balance, amount)
	}
}

// dispatch stores the signed transfer before sending it, so a payout whose
// transfer may be on the network is never signed a second time.
func (m *PayoutManager) dispatch(
	ctx context.Context, payout *entity.RewardPayout, request *types.DispatchedTxRequest,
) bool {
	counter := common.PromCounters[common.PayoutFailure]

	raw, err := request.Tx.MarshalBinary()
	if err != nil {
		counter.WithLabelValues("Cannot encode tx").Inc()
		xcontext.Logger(ctx).Errorf("Cannot encode tx of payout %s: %v", payout.ID, err)
		return false
	}

	txHash := request.Tx.Hash().Hex()
	err = m.payoutRepo.MarkDispatched(ctx, payout.ID, repository.DispatchedTx{
		Hash:  txHash,
		Nonce: request.Tx.Nonce(),
		Raw:   hexutil.Encode(raw),
		At:    m.now(),
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			xcontext.Logger(ctx).Warnf("Payout %s was taken by another worker", payout.ID)
			return true
		}

		counter.WithLabelValues("Cannot update payout status").Inc()
		xcontext.Logger(ctx).Errorf("Cannot mark payout %s as dispatched: %v", payout.ID, err)
		return false
	}

	result := m.dispatcher.Dispatch(ctx, request)
	switch result.Err {
	case types.ErrNil:
		return true

	case types.ErrSubmitTx:
		// The node may still have taken the tx. It is looked at again once
		// the dispatch timeout is over.
		counter.WithLabelValues(result.Err.String()).Inc()
		xcontext.Logger(ctx).Errorf("Unable to submit payout %s (tx %s)", payout.ID, txHash)
		return false

	default:
		// Nothing was sent.
		counter.WithLabelValues(result.Err.String()).Inc()
		xcontext.Logger(ctx).Errorf("Unable to dispatch payout %s: %s", payout.ID, result.Err)
		if err := m.payoutRepo.Release(ctx, payout.ID, txHash); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot release payout %s: %v", payout.ID, err)
		}
		return false
	}
}

func (m *PayoutManager) checkDispatchedPayouts(ctx context.Context) {
	failureCounter := common.PromCounters[common.PayoutFailure]
	successCounter := common.PromCounters[common.PayoutSuccess]

	payouts, err := m.payoutRepo.GetListByStatus(ctx, entity.RewardPayoutStatusDispatched, m.batchSize(ctx))
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get dispatched payouts: %v", err)
		return
	}

	for _, payout := range payouts {
		status, err := m.watcher.Status(ctx, payout.TxHash)
		if err != nil {
			xcontext.Logger(ctx).Warnf("Cannot get status of tx %s: %v", payout.TxHash, err)
			continue
		}

		switch status {
		case types.TxStatusPending:
			if m.isTimedOut(ctx, &payout) {
				m.checkTimedOutPayout(ctx, &payout)
			}
			continue

		case types.TxStatusSuccess:
			err = m.payoutRepo.UpdateStatus(ctx, payout.ID,
				entity.RewardPayoutStatusDispatched, entity.RewardPayoutStatusSuccess)
			if err == nil {
				successCounter.WithLabelValues(enum.ToString(payout.Kind)).Inc()
				xcontext.Logger(ctx).Infof("Payout %s succeeded with tx %s", payout.ID, payout.TxHash)
			}

		case types.TxStatusFailure:
			failureCounter.WithLabelValues("Transaction reverted").Inc()
			xcontext.Logger(ctx).Errorf("Payout %s reverted with tx %s (attempt %d)",
				payout.ID, payout.TxHash, payout.Attempts)
			err = m.retryOrFail(ctx, &payout)
		}

		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot update status of payout %s: %v", payout.ID, err)
		}
	}
}

func (m *PayoutManager) retryOrFail(ctx context.Context, payout *entity.RewardPayout) error {
	next := entity.RewardPayoutStatusPending
	if payout.Attempts >= MaxPayoutAttempts {
		next = entity.RewardPayoutStatusFailure
	}

	return m.payoutRepo.UpdateStatus(ctx, payout.ID, entity.RewardPayoutStatusDispatched, next)
}

func (m *PayoutManager) isTimedOut(ctx context.Context, payout *entity.RewardPayout) bool {
	timeout := xcontext.Configs(ctx).Payout.DispatchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return payout.DispatchedAt != nil && m.now().Sub(*payout.DispatchedAt) >= timeout
}

// checkTimedOutPayout handles a transfer without receipt after the dispatch
// timeout. The custody nonce is read dropConfirmations blocks behind the
// head, so every node of the pool has the receipt of a tx mined there.
//   - Nonce not used yet: the tx was lost by the nodes, it is sent again.
//   - Nonce used by another tx: the transfer can never be mined, the payout
//     is retried with a new transfer or failed.
func (m *PayoutManager) checkTimedOutPayout(ctx context.Context, payout *entity.RewardPayout) {
	counter := common.PromCounters[common.PayoutFailure]

	head, err := m.client.BlockNumber(ctx)
	if err != nil {
		xcontext.Logger(ctx).Warnf("Cannot get block number: %v", err)
		return
	}

	block := new(big.Int)
	if head > dropConfirmations {
		block.SetUint64(head - dropConfirmations)
	}

	nonce, err := m.client.NonceAt(ctx, m.custody, block)
	if err != nil {
		xcontext.Logger(ctx).Warnf("Cannot get custody nonce: %v", err)
		return
	}

	if nonce <= payout.Nonce {
		counter.WithLabelValues("Transaction stuck").Inc()
		m.rebroadcast(ctx, payout)
		return
	}

	// Mined between the two reads, the next round sees its receipt.
	status, err := m.watcher.Status(ctx, payout.TxHash)
	if err != nil || status != types.TxStatusPending {
		return
	}

	counter.WithLabelValues("Transaction dropped").Inc()
	xcontext.Logger(ctx).Errorf("Tx %s of payout %s was dropped, nonce %d is used by another tx",
		payout.TxHash, payout.ID, payout.Nonce)
	if err := m.retryOrFail(ctx, payout); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot update status of payout %s: %v", payout.ID, err)
	}
}

// rebroadcast sends the stored transfer again. It has the same hash, so it
// cannot pay twice.
func (m *PayoutManager) rebroadcast(ctx context.Context, payout *entity.RewardPayout) {
	raw, err := hexutil.Decode(payout.RawTx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Invalid stored tx of payout %s: %v", payout.ID, err)
		return
	}

	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		xcontext.Logger(ctx).Errorf("Invalid stored tx of payout %s: %v", payout.ID, err)
		return
	}

	xcontext.Logger(ctx).Warnf("Broadcast again tx %s of payout %s", payout.TxHash, payout.ID)
	result := m.dispatcher.Dispatch(ctx, &types.DispatchedTxRequest{Chain: m.chain, From: m.custody, Tx: tx})
	if result.Err != types.ErrNil {
		xcontext.Logger(ctx).Errorf("Cannot broadcast again payout %s: %s", payout.ID, result.Err)
		return
	}

	if err := m.payoutRepo.UpdateDispatchedAt(ctx, payout.ID, payout.TxHash, m.now()); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot update payout %s: %v", payout.ID, err)
	}
}

func (m *PayoutManager) getDispatchedTransferTokenTxRequest(
	ctx context.Context, payout *entity.RewardPayout,
) (*types.DispatchedTxRequest, error) {
	amount := new(big.Int).SetUint64(payout.Amount)
	recipient := ethcommon.HexToAddress(payout.Recipient)

	tx, err := m.client.GetSignedTransferTokenTx(ctx, m.token, m.custodyKey, recipient, amount)
	if err != nil {
		return nil, err
	}

	return &types.DispatchedTxRequest{Chain: m.chain, From: m.custody, Tx: tx}, nil
}
