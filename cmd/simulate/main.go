package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"classroom-auction/auction"
	"classroom-auction/budget"
	"classroom-auction/config"
	"classroom-auction/domain"
	"classroom-auction/logger"
	"classroom-auction/metrics"
	"classroom-auction/orderbook"
	"classroom-auction/room"
)

const host = "simulator"

var (
	duration   time.Duration
	traders    int
	mode       string
	tree       string
	budgetCap  int64
	clearEvery time.Duration
	cpuProfile string
)

func init() {
	rootCmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "how long traders keep submitting")
	rootCmd.Flags().IntVar(&traders, "traders", runtime.NumCPU()-2, "concurrent trader goroutines (NumCPU - 2 by default)")
	rootCmd.Flags().StringVar(&mode, "mode", string(domain.ModeContinuous), "double auction mode: continuous or call")
	rootCmd.Flags().StringVar(&tree, "tree", orderbook.ShardedType.String(), "price tree implementation")
	rootCmd.Flags().Int64Var(&budgetCap, "budget", 200, "equal budget cap per trader")
	rootCmd.Flags().DurationVar(&clearEvery, "clear-every", 100*time.Millisecond, "host clear interval in call mode")
	rootCmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile to this file")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive a double auction room with concurrent traders and report throughput",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if traders < 1 {
			traders = 1
		}
		if budgetCap < 4 {
			return errors.Errorf("budget must be at least 4, got %d", budgetCap)
		}
		kind, ok := orderbook.ParseTreeType(tree)
		if !ok {
			return errors.Errorf("unknown tree %q", tree)
		}
		if mode != string(domain.ModeContinuous) && mode != string(domain.ModeCall) {
			return errors.Errorf("unknown mode %q", mode)
		}
		if cpuProfile != "" {
			f, err := os.Create(cpuProfile)
			if err != nil {
				return errors.Wrap(err, "create cpu profile")
			}
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				return errors.Wrap(err, "start cpu profile")
			}
			defer pprof.StopCPUProfile()
			fmt.Printf("生成 CPU profile: %s\n", cpuProfile)
		}
		return run(cmd.Context(), kind)
	},
}

func run(ctx context.Context, kind orderbook.TreeType) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log, err := logger.New(config.LogConfig{Level: "warn", Encoding: "console"})
	if err != nil {
		return err
	}
	reg := room.NewRegistry(room.Config{PriceTree: kind}, log, metrics.NopMetrics())
	defer reg.Close()

	a, err := reg.Create(auction.Options{
		Name:       "simulation",
		Owner:      host,
		Mechanism:  domain.MechanismDouble,
		Budget:     budget.Config{Strategy: budget.StrategyEqual, Base: budgetCap},
		DoubleMode: domain.DoubleMode(mode),
		ShowOrders: true,
	})
	if err != nil {
		return err
	}

	// 分配交易员并读取自动分配的买卖方向
	sides := make([]domain.Side, traders)
	for i := range sides {
		id := trader(i)
		if _, err := a.Submit(ctx, domain.Action{Kind: domain.ActionJoin, Actor: id}); err != nil {
			return errors.Wrapf(err, "join %s", id)
		}
		err := a.Inspect(ctx, func(r *auction.Room) {
			sides[i] = r.Mechanism().(*auction.Double).Side(id)
		})
		if err != nil {
			return err
		}
	}
	if _, err := a.Submit(ctx, domain.Action{Kind: domain.ActionStart, Actor: host}); err != nil {
		return errors.Wrap(err, "start room")
	}

	fmt.Println("=== 课堂双向拍卖模拟 ===")
	fmt.Printf("CPU 核心数: %d\n", runtime.NumCPU())
	fmt.Printf("交易员数量: %d\n", traders)
	fmt.Printf("撮合模式:   %s\n", mode)
	fmt.Printf("价格树:     %s\n", kind)
	fmt.Printf("测试时长:   %v\n\n", duration)

	var (
		orderCount    atomic.Int64
		rejectedCount atomic.Int64
		wg            sync.WaitGroup
	)
	stop := make(chan struct{})
	start := time.Now()

	for i := 0; i < traders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(i), uint64(start.UnixNano())))
			id := trader(i)
			for {
				select {
				case <-stop:
					return
				default:
				}
				action := domain.Action{Actor: id, Amount: quote(rng, sides[i])}
				if sides[i] == domain.SideSell {
					action.Kind = domain.ActionSubmitSell
				} else {
					action.Kind = domain.ActionSubmitBuy
				}
				if _, err := a.Submit(ctx, action); err != nil {
					rejectedCount.Add(1)
					if errors.Is(err, room.ErrRoomClosed) {
						return
					}
					continue
				}
				orderCount.Add(1)
			}
		}(i)
	}

	// 集合竞价模式下由主持人定期清算
	if mode == string(domain.ModeCall) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t := time.NewTicker(clearEvery)
			defer t.Stop()
			for {
				select {
				case <-stop:
					return
				case <-t.C:
					_, _ = a.Submit(ctx, domain.Action{Kind: domain.ActionClear, Actor: host})
				}
			}
		}()
	}

	ticker := time.NewTicker(time.Second)
	deadline := time.After(duration)
loop:
	for {
		select {
		case <-ticker.C:
			elapsed := time.Since(start)
			orders := orderCount.Load()
			trades := tradeCount(ctx, a)
			fmt.Printf("[%.0fs] 订单: %d (%.0f/s) | 成交: %d (%.0f/s)\n",
				elapsed.Seconds(), orders, float64(orders)/elapsed.Seconds(), trades, float64(trades)/elapsed.Seconds())
		case <-deadline:
			break loop
		case <-ctx.Done():
			break loop
		}
	}
	ticker.Stop()
	close(stop)
	wg.Wait()

	// 中断后仍需读取最终状态
	ctx = context.Background()
	elapsed := time.Since(start)
	totalOrders := orderCount.Load()
	totalTrades := tradeCount(ctx, a)
	qps := float64(totalOrders) / elapsed.Seconds()
	tps := float64(totalTrades) / elapsed.Seconds()

	fmt.Println("\n=== 模拟结果 ===")
	fmt.Printf("测试时长:     %v\n", elapsed)
	fmt.Printf("总订单数:     %d\n", totalOrders)
	fmt.Printf("被拒订单:     %d\n", rejectedCount.Load())
	fmt.Printf("总成交数:     %d\n", totalTrades)
	fmt.Printf("订单吞吐量:   %.0f orders/sec\n", qps)
	fmt.Printf("成交吞吐量:   %.0f trades/sec\n", tps)
	if totalOrders > 0 {
		fmt.Printf("平均延迟:     %.2f μs/order\n", elapsed.Seconds()*1e6/float64(totalOrders))
		// 每笔成交消耗一买一卖
		fmt.Printf("撮合率:       %.2f%%\n", float64(2*totalTrades)/float64(totalOrders)*100)
	}

	return printBook(ctx, a)
}

func trader(i int) string { return fmt.Sprintf("trader-%d", i) }

// quote draws a price inside the trader's cap. Buyers lean high and sellers
// lean low so the two sides overlap.
func quote(rng *rand.Rand, side domain.Side) int64 {
	if side == domain.SideSell {
		return 1 + rng.Int64N(budgetCap*3/4)
	}
	return budgetCap/4 + 1 + rng.Int64N(budgetCap-budgetCap/4)
}

func tradeCount(ctx context.Context, a *room.Actor) int {
	n := 0
	_ = a.Inspect(ctx, func(r *auction.Room) {
		n = len(r.Mechanism().(*auction.Double).Trades())
	})
	return n
}

func printBook(ctx context.Context, a *room.Actor) error {
	var (
		bids, asks []orderbook.DepthLevel
		bestBid    int64
		bestAsk    int64
	)
	err := a.Inspect(ctx, func(r *auction.Room) {
		book := r.Mechanism().(*auction.Double).Book()
		bestBid, _ = book.BestBid()
		bestAsk, _ = book.BestAsk()
		bids, asks = book.Depth(5)
	})
	if err != nil {
		return err
	}

	fmt.Println("\n=== 订单簿状态 ===")
	fmt.Printf("最佳买价:     %d\n", bestBid)
	fmt.Printf("最佳卖价:     %d\n", bestAsk)
	fmt.Println("\n买单深度 (前5档):")
	for i, level := range bids {
		fmt.Printf("  %d. 价格: %d, 订单数: %d\n", i+1, level.Price, level.Orders)
	}
	fmt.Println("\n卖单深度 (前5档):")
	for i, level := range asks {
		fmt.Printf("  %d. 价格: %d, 订单数: %d\n", i+1, level.Price, level.Orders)
	}
	return nil
}
