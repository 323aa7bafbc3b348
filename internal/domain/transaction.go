package domain

import (
	"context"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/scanpay-lab/backend/contract/erc20"
	"github.com/scanpay-lab/backend/internal/common"
	"github.com/scanpay-lab/backend/internal/domain/blockchain/eth"
	"github.com/scanpay-lab/backend/internal/model"
	"github.com/scanpay-lab/backend/pkg/errorx"
	"github.com/scanpay-lab/backend/pkg/numberutil"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"github.com/scanpay-lab/backend/pkg/xredis"
)

const (
	TransferDirectionIn   = "in"
	TransferDirectionOut  = "out"
	TransferDirectionSelf = "self"
)

type TransactionDomain interface {
	GetHistory(context.Context, *model.GetTransactionHistoryRequest) (*model.GetTransactionHistoryResponse, error)
}

type transactionDomain struct {
	ethClient   eth.EthClient
	redisClient xredis.Client
}

// NewTransactionDomain creates the transfer history reader. redisClient may
// be nil, then nothing is cached.
func NewTransactionDomain(ethClient eth.EthClient, redisClient xredis.Client) *transactionDomain {
	return &transactionDomain{ethClient: ethClient, redisClient: redisClient}
}

func (d *transactionDomain) GetHistory(
	ctx context.Context, req *model.GetTransactionHistoryRequest,
) (*model.GetTransactionHistoryResponse, error) {
	address, err := normalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}

	cfg := xcontext.Configs(ctx).Chain
	cacheKey := common.RedisKeyTransferHistory(cfg.Name, address)
	if d.redisClient != nil {
		cached := &model.GetTransactionHistoryResponse{}
		err := d.redisClient.GetObj(ctx, cacheKey, cached)
		if err == nil {
			return cached, nil
		}

		if !xredis.IsNil(err) {
			xcontext.Logger(ctx).Warnf("Cannot get cached history of %s: %v", address, err)
		}
	}

	latest, err := d.ethClient.BlockNumber(ctx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get block number: %v", err)
		return nil, errorx.New(errorx.Unavailable, "Cannot read the chain now")
	}

	fromBlock := uint64(0)
	if latest > cfg.HistoryLookbackBlocks {
		fromBlock = latest - cfg.HistoryLookbackBlocks
	}

	token := ethcommon.HexToAddress(cfg.USDCAddress)
	account := ethcommon.HexToAddress(address)
	logs, err := d.transferLogs(ctx, token, account, fromBlock, latest)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot filter transfer logs of %s: %v", address, err)
		return nil, errorx.New(errorx.Unavailable, "Cannot read the chain now")
	}

	filterer, err := erc20.NewErc20Filterer(token, nil)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create erc20 filterer: %v", err)
		return nil, errorx.Unknown
	}

	resp := &model.GetTransactionHistoryResponse{
		Transfers: []model.Transfer{},
		FromBlock: fromBlock,
		ToBlock:   latest,
	}

	received, sent := new(big.Int), new(big.Int)
	customers := map[ethcommon.Address]struct{}{}
	blockTimes := map[uint64]time.Time{}
	for _, log := range logs {
		transfer, err := filterer.ParseTransfer(log)
		if err != nil {
			xcontext.Logger(ctx).Warnf("Cannot parse transfer log %s: %v", log.TxHash, err)
			continue
		}

		timestamp, ok := blockTimes[log.BlockNumber]
		if !ok {
			header, err := d.ethClient.HeaderByNumber(ctx, new(big.Int).SetUint64(log.BlockNumber))
			if err != nil {
				xcontext.Logger(ctx).Errorf("Cannot get header of block %d: %v", log.BlockNumber, err)
				return nil, errorx.New(errorx.Unavailable, "Cannot read the chain now")
			}

			timestamp = time.Unix(int64(header.Time), 0).UTC()
			blockTimes[log.BlockNumber] = timestamp
		}

		item := model.Transfer{
			TxHash:      strings.ToLower(log.TxHash.Hex()),
			BlockNumber: log.BlockNumber,
			LogIndex:    log.Index,
			From:        strings.ToLower(transfer.From.Hex()),
			To:          strings.ToLower(transfer.To.Hex()),
			Amount:      numberutil.FormatBigUnits(transfer.Value, cfg.USDCDecimals),
			AmountUnits: transfer.Value.String(),
			Timestamp:   timestamp,
		}

		switch {
		case transfer.From == account && transfer.To == account:
			item.Direction = TransferDirectionSelf
			item.Counterparty = item.From

		case transfer.To == account:
			item.Direction = TransferDirectionIn
			item.Counterparty = item.From
			received.Add(received, transfer.Value)
			customers[transfer.From] = struct{}{}

		default:
			item.Direction = TransferDirectionOut
			item.Counterparty = item.To
			sent.Add(sent, transfer.Value)
		}

		resp.Transfers = append(resp.Transfers, item)
	}

	resp.TotalReceived = numberutil.FormatBigUnits(received, cfg.USDCDecimals)
	resp.TotalSent = numberutil.FormatBigUnits(sent, cfg.USDCDecimals)
	resp.UniqueCustomer = len(customers)

	if d.redisClient != nil {
		if err := d.redisClient.SetObj(ctx, cacheKey, resp, cfg.HistoryCacheTTL); err != nil {
			xcontext.Logger(ctx).Warnf("Cannot cache history of %s: %v", address, err)
		}
	}

	return resp, nil
}

// transferLogs returns the token Transfer logs sent to or from account,
// newest first and without duplicates.
func (d *transactionDomain) transferLogs(
	ctx context.Context, token, account ethcommon.Address, fromBlock, toBlock uint64,
) ([]ethtypes.Log, error) {
	parsed, err := erc20.Erc20MetaData.GetAbi()
	if err != nil {
		return nil, err
	}

	transferID := parsed.Events["Transfer"].ID
	accountTopic := ethcommon.BytesToHash(account.Bytes())

	queries := []ethereum.FilterQuery{
		{
			FromBlock: new(big.Int).SetUint64(fromBlock),
			ToBlock:   new(big.Int).SetUint64(toBlock),
			Addresses: []ethcommon.Address{token},
			Topics:    [][]ethcommon.Hash{{transferID}, nil, {accountTopic}},
		},
		{
			FromBlock: new(big.Int).SetUint64(fromBlock),
			ToBlock:   new(big.Int).SetUint64(toBlock),
			Addresses: []ethcommon.Address{token},
			Topics:    [][]ethcommon.Hash{{transferID}, {accountTopic}},
		},
	}

	type logKey struct {
		txHash ethcommon.Hash
		index  uint
	}

	seen := map[logKey]struct{}{}
	result := []ethtypes.Log{}
	for _, query := range queries {
		logs, err := d.ethClient.FilterLogs(ctx, query)
		if err != nil {
			return nil, err
		}

		for _, log := range logs {
			if log.Removed {
				continue
			}

			key := logKey{txHash: log.TxHash, index: log.Index}
			if _, ok := seen[key]; ok {
				continue
			}

			seen[key] = struct{}{}
			result = append(result, log)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber > result[j].BlockNumber
		}

		return result[i].Index > result[j].Index
	})

	return result, nil
}
