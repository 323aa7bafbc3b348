package domain

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fatih/structs"
	"github.com/google/uuid"
	"github.com/scanpay-lab/backend/contract/erc20"
	"github.com/scanpay-lab/backend/internal/common"
	"github.com/scanpay-lab/backend/internal/domain/blockchain"
	"github.com/scanpay-lab/backend/internal/domain/blockchain/eth"
	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/internal/model"
	"github.com/scanpay-lab/backend/internal/repository"
	"github.com/scanpay-lab/backend/pkg/crypto"
	"github.com/scanpay-lab/backend/pkg/errorx"
	"github.com/scanpay-lab/backend/pkg/ethutil"
	"github.com/scanpay-lab/backend/pkg/idutil"
	"github.com/scanpay-lab/backend/pkg/numberutil"
	"github.com/scanpay-lab/backend/pkg/pubsub"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"gorm.io/gorm"
)

// The table used until an operator stores one.
var (
	defaultPrizeAmounts = []string{"0.01", "0.02", "0.05", "0.5", "1"}
	defaultPrizeWeights = []int{40, 70, 90, 98, 100}
)

const maxWeight = 100

type RewardDomain interface {
	Grant(context.Context, *model.GrantBoxRequest) (*model.GrantBoxResponse, error)
	GrantBatch(context.Context, *model.GrantBoxBatchRequest) (*model.GrantBoxBatchResponse, error)
	Claim(context.Context, *model.ClaimBoxRequest) (*model.ClaimBoxResponse, error)
	GetUserStats(context.Context, *model.GetUserStatsRequest) (*model.GetUserStatsResponse, error)
	DepositFunds(context.Context, *model.DepositFundsRequest) (*model.DepositFundsResponse, error)
	WithdrawFunds(context.Context, *model.WithdrawFundsRequest) (*model.WithdrawFundsResponse, error)
	UpdatePrizeTiers(context.Context, *model.UpdatePrizeTiersRequest) (*model.UpdatePrizeTiersResponse, error)
	GetPrizeTiers(context.Context, *model.GetPrizeTiersRequest) (*model.GetPrizeTiersResponse, error)
	GetGlobalStats(context.Context, *model.GetGlobalStatsRequest) (*model.GetGlobalStatsResponse, error)
	GetEvents(context.Context, *model.GetRewardEventsRequest) (*model.GetRewardEventsResponse, error)
}

type boxGrantedData struct {
	Amount uint64 `structs:"boxes"`
}

type boxOpenedData struct {
	Prize     uint64 `structs:"amount"`
	TierIndex int    `structs:"tier_index"`
	PayoutID  string `structs:"payout_id"`
}

type fundsData struct {
	Amount   uint64 `structs:"amount"`
	TxHash   string `structs:"tx_hash,omitempty"`
	PayoutID string `structs:"payout_id,omitempty"`
}

type prizeTiersData struct {
	Amounts []uint64 `structs:"amounts"`
	Weights []int    `structs:"weights"`
}

type rewardDomain struct {
	rewardRepo repository.RewardRepository
	payoutRepo repository.RewardPayoutRepository
	eventRepo  repository.RewardEventRepository
	ethClient  eth.EthClient
	publisher  pubsub.Publisher

	// roll returns a uniform value in [0, n).
	roll func(n int) int
}

func NewRewardDomain(
	rewardRepo repository.RewardRepository,
	payoutRepo repository.RewardPayoutRepository,
	eventRepo repository.RewardEventRepository,
	ethClient eth.EthClient,
	publisher pubsub.Publisher,
) *rewardDomain {
	return &rewardDomain{
		rewardRepo: rewardRepo,
		payoutRepo: payoutRepo,
		eventRepo:  eventRepo,
		ethClient:  ethClient,
		publisher:  publisher,
		roll:       crypto.RandIntn,
	}
}

func (d *rewardDomain) Grant(
	ctx context.Context, req *model.GrantBoxRequest,
) (*model.GrantBoxResponse, error) {
	if _, err := verifyOperator(ctx); err != nil {
		return nil, err
	}

	address, err := normalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}

	if ethutil.IsZeroAddress(address) {
		return nil, errorx.New(errorx.BadRequest, "Cannot grant a box to the zero address")
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	event, err := d.grant(ctx, address)
	if err != nil {
		return nil, err
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot commit transaction: %v", err)
		return nil, errorx.Unknown
	}

	publishRewardEvents(ctx, d.publisher, event)
	return &model.GrantBoxResponse{}, nil
}

func (d *rewardDomain) GrantBatch(
	ctx context.Context, req *model.GrantBoxBatchRequest,
) (*model.GrantBoxBatchResponse, error) {
	if _, err := verifyOperator(ctx); err != nil {
		return nil, err
	}

	if len(req.Addresses) == 0 {
		return nil, errorx.New(errorx.BadRequest, "Empty address list")
	}

	addresses := []string{}
	skipped := 0
	for _, a := range req.Addresses {
		address, err := normalizeAddress(a)
		if err != nil {
			return nil, err
		}

		if ethutil.IsZeroAddress(address) {
			skipped++
			continue
		}

		addresses = append(addresses, address)
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	events := []*entity.RewardEvent{}
	for _, address := range addresses {
		event, err := d.grant(ctx, address)
		if err != nil {
			return nil, err
		}

		events = append(events, event)
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot commit transaction: %v", err)
		return nil, errorx.Unknown
	}

	publishRewardEvents(ctx, d.publisher, events...)
	return &model.GrantBoxBatchResponse{Granted: len(addresses), Skipped: skipped}, nil
}

func (d *rewardDomain) grant(ctx context.Context, address string) (*entity.RewardEvent, error) {
	if err := d.rewardRepo.IncreaseUnclaimedBoxes(ctx, address, 1); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot increase unclaimed boxes of %s: %v", address, err)
		return nil, errorx.Unknown
	}

	return d.createEvent(ctx, entity.RewardEventTypeBoxGranted, address, boxGrantedData{Amount: 1})
}

func (d *rewardDomain) Claim(
	ctx context.Context, req *model.ClaimBoxRequest,
) (*model.ClaimBoxResponse, error) {
	address, err := requestAddress(ctx)
	if err != nil {
		return nil, err
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	if err := d.rewardRepo.UseUnclaimedBox(ctx, address); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NoUnclaimedBox, "No unclaimed boxes")
		}

		xcontext.Logger(ctx).Errorf("Cannot use unclaimed box: %v", err)
		return nil, errorx.Unknown
	}

	tiers, err := d.prizeTiers(ctx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get prize tiers: %v", err)
		return nil, errorx.Unknown
	}

	tierIndex := drawTier(tiers, d.roll(maxWeight))
	prize := tiers[tierIndex].Amount

	account, err := d.rewardRepo.GetAccount(ctx, address)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get reward account: %v", err)
		return nil, errorx.Unknown
	}

	if err := d.rewardRepo.DecreaseVaultBalance(ctx, prize); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.InsufficientBalance, "Insufficient contract balance")
		}

		xcontext.Logger(ctx).Errorf("Cannot decrease vault balance: %v", err)
		return nil, errorx.Unknown
	}

	if err := d.rewardRepo.RecordWin(ctx, address, prize); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot record win: %v", err)
		return nil, errorx.Unknown
	}

	if err := d.rewardRepo.RecordVaultWin(ctx, prize); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot record vault win: %v", err)
		return nil, errorx.Unknown
	}

	payout, err := d.createPayout(ctx, address, prize, entity.RewardPayoutKindClaim)
	if err != nil {
		return nil, err
	}

	event, err := d.createEvent(ctx, entity.RewardEventTypeBoxOpened, address, boxOpenedData{
		Prize:     prize,
		TierIndex: tierIndex,
		PayoutID:  payout.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot commit transaction: %v", err)
		return nil, errorx.Unknown
	}

	common.PromCounters[common.BoxesOpened].WithLabelValues(strconv.Itoa(tierIndex)).Inc()
	common.PromCounters[common.RewardsDistributed].WithLabelValues().Add(float64(prize))
	publishRewardEvents(ctx, d.publisher, event)

	decimals := xcontext.Configs(ctx).Chain.USDCDecimals
	return &model.ClaimBoxResponse{
		Prize:        numberutil.FormatUnits(prize, decimals),
		PrizeUnits:   prize,
		TierIndex:    tierIndex,
		PayoutID:     payout.ID,
		IsBiggestWin: prize > account.BiggestWin,
	}, nil
}

func (d *rewardDomain) GetUserStats(
	ctx context.Context, req *model.GetUserStatsRequest,
) (*model.GetUserStatsResponse, error) {
	target := req.Address
	if target == "" {
		target = xcontext.RequestUserID(ctx)
	}

	address, err := normalizeAddress(target)
	if err != nil {
		return nil, err
	}

	account, err := d.rewardRepo.GetAccount(ctx, address)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			xcontext.Logger(ctx).Errorf("Cannot get reward account: %v", err)
			return nil, errorx.Unknown
		}

		account = nil
	}

	decimals := xcontext.Configs(ctx).Chain.USDCDecimals
	return &model.GetUserStatsResponse{Stats: convertUserStats(address, account, decimals)}, nil
}

func (d *rewardDomain) DepositFunds(
	ctx context.Context, req *model.DepositFundsRequest,
) (*model.DepositFundsResponse, error) {
	address, err := requestAddress(ctx)
	if err != nil {
		return nil, err
	}

	cfg := xcontext.Configs(ctx).Chain
	amount, err := numberutil.ToUnits(req.Amount, cfg.USDCDecimals)
	if err != nil || amount == 0 {
		return nil, errorx.New(errorx.BadRequest, "Invalid amount")
	}

	txHashBytes, err := hexutil.Decode(req.TxHash)
	if err != nil || len(txHashBytes) != ethcommon.HashLength {
		return nil, errorx.New(errorx.BadRequest, "Invalid transaction hash")
	}
	txHash := ethcommon.BytesToHash(txHashBytes)

	receipt, err := d.ethClient.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, errorx.New(errorx.NotFound, "Transaction is not found or not yet mined")
		}

		xcontext.Logger(ctx).Errorf("Cannot get receipt of %s: %v", txHash, err)
		return nil, errorx.New(errorx.Unavailable, "Cannot get the transaction receipt")
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, errorx.New(errorx.BadRequest, "Transaction failed")
	}

	custody, err := blockchain.CustodyAddress(ctx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get custody address: %v", err)
		return nil, errorx.Unknown
	}

	ok, err := containsTransfer(receipt, ethcommon.HexToAddress(cfg.USDCAddress),
		ethcommon.HexToAddress(address), custody, new(big.Int).SetUint64(amount))
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot parse receipt logs: %v", err)
		return nil, errorx.Unknown
	}

	if !ok {
		return nil, errorx.New(errorx.BadRequest,
			"Transaction does not transfer %s USDC from %s to the custody wallet", req.Amount, address)
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	created, err := d.rewardRepo.CreateDepositIfNotExists(ctx, &entity.RewardDeposit{
		TxHash:    strings.ToLower(txHash.Hex()),
		Depositor: address,
		Amount:    amount,
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create deposit: %v", err)
		return nil, errorx.Unknown
	}

	if !created {
		return nil, errorx.New(errorx.AlreadyExists, "This deposit was already credited")
	}

	if err := d.rewardRepo.IncreaseVaultBalance(ctx, amount); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot increase vault balance: %v", err)
		return nil, errorx.Unknown
	}

	vault, err := d.rewardRepo.GetVault(ctx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get vault: %v", err)
		return nil, errorx.Unknown
	}

	event, err := d.createEvent(ctx, entity.RewardEventTypeFundsDeposited, address, fundsData{
		Amount: amount,
		TxHash: strings.ToLower(txHash.Hex()),
	})
	if err != nil {
		return nil, err
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot commit transaction: %v", err)
		return nil, errorx.Unknown
	}

	publishRewardEvents(ctx, d.publisher, event)
	return &model.DepositFundsResponse{
		Balance: numberutil.FormatUnits(vault.Balance, cfg.USDCDecimals),
	}, nil
}

// containsTransfer reports whether the receipt carries a token Transfer
// event matching exactly from, to and value.
func containsTransfer(
	receipt *ethtypes.Receipt, token, from, to ethcommon.Address, value *big.Int,
) (bool, error) {
	filterer, err := erc20.NewErc20Filterer(token, nil)
	if err != nil {
		return false, err
	}

	for _, log := range receipt.Logs {
		if log == nil || log.Address != token {
			continue
		}

		transfer, err := filterer.ParseTransfer(*log)
		if err != nil {
			continue
		}

		if transfer.From == from && transfer.To == to && transfer.Value.Cmp(value) == 0 {
			return true, nil
		}
	}

	return false, nil
}

func (d *rewardDomain) WithdrawFunds(
	ctx context.Context, req *model.WithdrawFundsRequest,
) (*model.WithdrawFundsResponse, error) {
	operator, err := verifyOperator(ctx)
	if err != nil {
		return nil, err
	}

	decimals := xcontext.Configs(ctx).Chain.USDCDecimals
	amount, err := numberutil.ToUnits(req.Amount, decimals)
	if err != nil || amount == 0 {
		return nil, errorx.New(errorx.BadRequest, "Invalid amount")
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	if err := d.rewardRepo.DecreaseVaultBalance(ctx, amount); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.InsufficientBalance, "Insufficient balance")
		}

		xcontext.Logger(ctx).Errorf("Cannot decrease vault balance: %v", err)
		return nil, errorx.Unknown
	}

	payout, err := d.createPayout(ctx, operator, amount, entity.RewardPayoutKindWithdraw)
	if err != nil {
		return nil, err
	}

	vault, err := d.rewardRepo.GetVault(ctx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get vault: %v", err)
		return nil, errorx.Unknown
	}

	event, err := d.createEvent(ctx, entity.RewardEventTypeFundsWithdrawn, operator, fundsData{
		Amount:   amount,
		PayoutID: payout.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot commit transaction: %v", err)
		return nil, errorx.Unknown
	}

	publishRewardEvents(ctx, d.publisher, event)
	return &model.WithdrawFundsResponse{
		PayoutID: payout.ID,
		Balance:  numberutil.FormatUnits(vault.Balance, decimals),
	}, nil
}

func (d *rewardDomain) UpdatePrizeTiers(
	ctx context.Context, req *model.UpdatePrizeTiersRequest,
) (*model.UpdatePrizeTiersResponse, error) {
	operator, err := verifyOperator(ctx)
	if err != nil {
		return nil, err
	}

	decimals := xcontext.Configs(ctx).Chain.USDCDecimals
	tiers, err := newPrizeTiers(req.Amounts, req.Weights, decimals)
	if err != nil {
		return nil, err
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	if err := d.rewardRepo.ReplacePrizeTiers(ctx, tiers); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot replace prize tiers: %v", err)
		return nil, errorx.Unknown
	}

	data := prizeTiersData{}
	for _, tier := range tiers {
		data.Amounts = append(data.Amounts, tier.Amount)
		data.Weights = append(data.Weights, tier.CumulativeWeight)
	}

	event, err := d.createEvent(ctx, entity.RewardEventTypePrizeTiersUpdated, operator, data)
	if err != nil {
		return nil, err
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot commit transaction: %v", err)
		return nil, errorx.Unknown
	}

	publishRewardEvents(ctx, d.publisher, event)
	return &model.UpdatePrizeTiersResponse{}, nil
}

func (d *rewardDomain) GetPrizeTiers(
	ctx context.Context, req *model.GetPrizeTiersRequest,
) (*model.GetPrizeTiersResponse, error) {
	tiers, err := d.prizeTiers(ctx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get prize tiers: %v", err)
		return nil, errorx.Unknown
	}

	decimals := xcontext.Configs(ctx).Chain.USDCDecimals
	result := []model.PrizeTier{}
	for _, tier := range tiers {
		result = append(result, convertPrizeTier(tier, decimals))
	}

	return &model.GetPrizeTiersResponse{Tiers: result}, nil
}

func (d *rewardDomain) GetGlobalStats(
	ctx context.Context, req *model.GetGlobalStatsRequest,
) (*model.GetGlobalStatsResponse, error) {
	vault, err := d.rewardRepo.GetVault(ctx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get vault: %v", err)
		return nil, errorx.Unknown
	}

	decimals := xcontext.Configs(ctx).Chain.USDCDecimals
	return &model.GetGlobalStatsResponse{
		TotalBoxesOpened:        vault.TotalBoxesOpened,
		TotalRewardsDistributed: numberutil.FormatUnits(vault.TotalRewardsDistributed, decimals),
		Balance:                 numberutil.FormatUnits(vault.Balance, decimals),
	}, nil
}

func (d *rewardDomain) GetEvents(
	ctx context.Context, req *model.GetRewardEventsRequest,
) (*model.GetRewardEventsResponse, error) {
	address, err := requestAddress(ctx)
	if err != nil {
		return nil, err
	}

	offset, limit, err := paginate(ctx, req.Offset, req.Limit)
	if err != nil {
		return nil, err
	}

	events, err := d.eventRepo.GetList(ctx, repository.RewardEventFilter{
		Address: address,
		Offset:  offset,
		Limit:   limit,
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get reward events: %v", err)
		return nil, errorx.Unknown
	}

	decimals := xcontext.Configs(ctx).Chain.USDCDecimals
	result := []model.RewardEvent{}
	for i := range events {
		result = append(result, convertRewardEvent(&events[i], decimals))
	}

	return &model.GetRewardEventsResponse{Events: result}, nil
}

// prizeTiers returns the stored table, or the default one if an operator
// never stored any.
func (d *rewardDomain) prizeTiers(ctx context.Context) ([]entity.PrizeTier, error) {
	tiers, err := d.rewardRepo.GetPrizeTiers(ctx)
	if err != nil {
		return nil, err
	}

	if len(tiers) > 0 {
		return tiers, nil
	}

	return DefaultPrizeTiers(xcontext.Configs(ctx).Chain.USDCDecimals)
}

func (d *rewardDomain) createPayout(
	ctx context.Context, recipient string, amount uint64, kind entity.RewardPayoutKind,
) (*entity.RewardPayout, error) {
	payout := &entity.RewardPayout{
		Base:      entity.Base{ID: uuid.NewString()},
		Recipient: recipient,
		Amount:    amount,
		Kind:      kind,
		Status:    entity.RewardPayoutStatusPending,
	}

	if err := d.payoutRepo.Create(ctx, payout); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create payout: %v", err)
		return nil, errorx.Unknown
	}

	return payout, nil
}

func (d *rewardDomain) createEvent(
	ctx context.Context, eventType entity.RewardEventType, address string, data any,
) (*entity.RewardEvent, error) {
	event := &entity.RewardEvent{
		SnowFlakeBase: entity.SnowFlakeBase{ID: idutil.NewID()},
		Type:          eventType,
		Address:       address,
		Data:          structs.Map(data),
	}

	if err := d.eventRepo.Create(ctx, event); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create reward event: %v", err)
		return nil, errorx.Unknown
	}

	return event, nil
}

// DefaultPrizeTiers is the table 0.01/0.02/0.05/0.5/1 USDC at cumulative
// weights 40/70/90/98/100.
func DefaultPrizeTiers(decimals int32) ([]entity.PrizeTier, error) {
	return newPrizeTiers(defaultPrizeAmounts, defaultPrizeWeights, decimals)
}

func newPrizeTiers(amounts []string, weights []int, decimals int32) ([]entity.PrizeTier, error) {
	if len(amounts) != len(weights) {
		return nil, errorx.New(errorx.BadRequest, "Length mismatch")
	}

	if len(amounts) == 0 {
		return nil, errorx.New(errorx.BadRequest, "Prize table must not be empty")
	}

	if weights[len(weights)-1] != maxWeight {
		return nil, errorx.New(errorx.BadRequest, "Weights must sum to 100")
	}

	tiers := []entity.PrizeTier{}
	previous := 0
	for i := range amounts {
		if weights[i] < previous {
			return nil, errorx.New(errorx.BadRequest, "Cumulative weights must be non-decreasing")
		}
		previous = weights[i]

		amount, err := numberutil.ToUnits(amounts[i], decimals)
		if err != nil || amount == 0 {
			return nil, errorx.New(errorx.BadRequest, "Invalid prize amount %s", amounts[i])
		}

		tiers = append(tiers, entity.PrizeTier{
			Position:         i + 1,
			Amount:           amount,
			CumulativeWeight: weights[i],
		})
	}

	return tiers, nil
}

// drawTier returns the index of the first tier whose cumulative weight is
// greater than roll. For a valid table and roll in [0, 100) there is always
// such a tier.
func drawTier(tiers []entity.PrizeTier, roll int) int {
	for i, tier := range tiers {
		if roll < tier.CumulativeWeight {
			return i
		}
	}

	return len(tiers) - 1
}
