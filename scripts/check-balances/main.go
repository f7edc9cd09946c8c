// check-balances: prints the configured token's balance and allowances for
// the four role accounts, reading each one in parallel.
//
// Run from the module root, with the same environment as w3probe:
//
//	go run ./scripts/check-balances
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/Mohsinsiddi/w3probe/internal/amount"
	"github.com/Mohsinsiddi/w3probe/internal/chain"
	"github.com/Mohsinsiddi/w3probe/internal/config"
	"github.com/Mohsinsiddi/w3probe/internal/contract"
	"github.com/Mohsinsiddi/w3probe/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
)

const rpcTimeout = 12 * time.Second

type result struct {
	order     int
	role      string
	address   common.Address
	balance   string
	allowance string // alice → bob, shown on alice's row
	err       string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "check-balances:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv(config.EnvConfigDir))
	if err != nil {
		return err
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return fmt.Errorf("contract_address is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	client, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return err
	}
	defer client.Close()

	entries, err := contract.Resolve(cfg.ABI)
	if err != nil {
		return err
	}
	token, err := contract.NewToken(common.HexToAddress(cfg.ContractAddress), entries, client, contract.Options{})
	if err != nil {
		return err
	}

	addrs := make(map[string]common.Address, len(config.Roles))
	for _, role := range config.Roles {
		if k := cfg.Keys.Get(role); k != "" {
			if a, err := wallet.NewAccount(role, k); err == nil {
				addrs[role] = a.Address
			}
		}
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []result
	)
	for i, role := range config.Roles {
		addr, ok := addrs[role]
		if !ok {
			mu.Lock()
			results = append(results, result{order: i, role: role, balance: "—", err: "key not set"})
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(i int, role string, addr common.Address) {
			defer wg.Done()
			r := result{order: i, role: role, address: addr, balance: "—"}
			if bal, err := token.BalanceOf(ctx, addr); err != nil {
				r.err = shortErr(err)
			} else {
				r.balance = amount.Format(bal, cfg.Decimals)
			}
			if bob, ok := addrs["bob"]; ok && role == "alice" {
				if v, err := token.Allowance(ctx, addr, bob); err == nil {
					r.allowance = amount.Format(v, cfg.Decimals)
				}
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(i, role, addr)
	}
	wg.Wait()

	printTable(results)
	return nil
}

func printTable(results []result) {
	sort.Slice(results, func(i, j int) bool { return results[i].order < results[j].order })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tADDRESS\tBALANCE\tALLOWANCE→BOB\tNOTE")
	fmt.Fprintln(w, strings.Repeat("-", 8)+"\t"+
		strings.Repeat("-", 14)+"\t"+
		strings.Repeat("-", 24)+"\t"+
		strings.Repeat("-", 14)+"\t"+
		strings.Repeat("-", 12))
	for _, r := range results {
		addr := ""
		if r.address != (common.Address{}) {
			addr = shortAddr(r.address.Hex())
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.role, addr, r.balance, r.allowance, r.err)
	}
	w.Flush()
}

func shortAddr(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func shortErr(err error) string {
	s := err.Error()
	if len(s) > 30 {
		return s[:30] + "…"
	}
	return s
}
