package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Mohsinsiddi/w3probe/internal/chain"
	"github.com/Mohsinsiddi/w3probe/internal/config"
	"github.com/Mohsinsiddi/w3probe/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the node and the configured contract",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), config.DialTimeout)
		defer cancel()

		client, err := chain.Dial(ctx, cfg.RPCURL)
		if err != nil {
			return err
		}
		defer client.Close()

		pctx, pcancel := context.WithTimeout(ctx, config.PingTimeout)
		defer pcancel()
		latency, head, err := client.Ping(pctx)
		if err != nil {
			return fmt.Errorf("%s is not responding: %w", cfg.RPCURL, err)
		}
		chainID, err := client.ChainID(ctx)
		if err != nil {
			return err
		}

		pairs := [][2]string{
			{"RPC", cfg.RPCURL},
			{"Chain ID", chainID.String()},
			{"Latency", latency.String()},
			{"Head", strconv.FormatUint(head, 10)},
		}
		if blk, err := client.LatestBlock(ctx); err == nil {
			pairs = append(pairs, [2]string{"Gas used", blk.GasUsedPct()})
			if blk.BaseFee != nil {
				pairs = append(pairs, [2]string{"Base fee", chain.WeiToGwei(blk.BaseFee) + " gwei"})
			}
		} else {
			logger.Debug("latest block unavailable", zap.Error(err))
		}

		contractState := "not configured"
		if common.IsHexAddress(cfg.ContractAddress) {
			code, err := client.GetCode(ctx, common.HexToAddress(cfg.ContractAddress))
			switch {
			case err != nil:
				contractState = "error: " + err.Error()
			case len(code) == 0:
				contractState = "no code at " + cfg.ContractAddress
			default:
				contractState = fmt.Sprintf("%s (%d bytes)", cfg.ContractAddress, len(code))
			}
		}
		pairs = append(pairs, [2]string{"Contract", contractState})

		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("Node", pairs))
		return nil
	},
}
