package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kyohei-watanabe/go-table-seating/internal/application"
	"github.com/kyohei-watanabe/go-table-seating/internal/config"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/policy"
	eventinfra "github.com/kyohei-watanabe/go-table-seating/internal/infrastructure/event"
	"github.com/kyohei-watanabe/go-table-seating/internal/infrastructure/postgres"
	redisinfra "github.com/kyohei-watanabe/go-table-seating/internal/infrastructure/redis"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "seatctl",
		Short: "テーブルアサイン運用コマンド",
	}
	root.AddCommand(newSweepHoldsCmd())
	root.AddCommand(newAutoAssignCmd())
	return root
}

// services はコマンド実行に必要なサービス一式
type services struct {
	holdService       *application.HoldService
	autoAssignService *application.AutoAssignService
	close             func()
}

func buildServices() (*services, error) {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	redisClient := redisinfra.NewClient(&cfg.Redis)
	lockManager := redisinfra.NewLockManager(redisClient)
	rateLimiter := redisinfra.NewHoldRateLimiter(redisClient, cfg.Holds.RateLimitWindow, cfg.Holds.RateLimitMax)

	// CLIからの操作はイベントをログに出すだけで十分
	emitter := eventinfra.NewLogEmitter()

	bookingRepo := postgres.NewBookingRepository(db)
	tableRepo := postgres.NewTableRepository(db)
	holdRepo := postgres.NewHoldRepository(db)
	demandRepo := postgres.NewDemandRepository(db)
	scarcityRepo := postgres.NewScarcityRepository(db)
	committer := postgres.NewAtomicCommitter(db)

	basePolicy := policy.DefaultPolicy().WithTimezone(cfg.Policy.Timezone)
	holdService := application.NewHoldService(holdRepo, rateLimiter, emitter, cfg.Holds)
	demandService := application.NewDemandService(demandRepo, cfg.Selector.DemandCacheTTL)
	scarcityService := application.NewScarcityService(scarcityRepo, cfg.Selector.ScarcityCacheTTL)
	quoteService := application.NewQuoteService(
		bookingRepo, tableRepo, holdService, demandService, scarcityService,
		emitter, basePolicy, cfg.Policy, cfg.Selector,
	)
	assignmentService := application.NewAssignmentService(committer, holdRepo, emitter, cfg.Policy.SignatureSalt)
	autoAssignService := application.NewAutoAssignService(bookingRepo, quoteService, assignmentService, lockManager)

	return &services{
		holdService:       holdService,
		autoAssignService: autoAssignService,
		close: func() {
			_ = redisClient.Close()
			_ = db.Close()
		},
	}, nil
}

func newSweepHoldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-holds",
		Short: "期限切れホールドを削除する",
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := buildServices()
			if err != nil {
				return err
			}
			defer svcs.close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			deleted, err := svcs.holdService.SweepExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "削除したホールド: %d件\n", len(deleted))
			return nil
		},
	}
}

func newAutoAssignCmd() *cobra.Command {
	var (
		restaurantID string
		date         string
		shadow       bool
	)

	c := &cobra.Command{
		Use:   "auto-assign",
		Short: "指定日の保留予約をまとめて割り当てる",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := time.Parse("2006-01-02", date); err != nil {
				return fmt.Errorf("--date は YYYY-MM-DD 形式で指定してください")
			}

			svcs, err := buildServices()
			if err != nil {
				return err
			}
			defer svcs.close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			report, err := svcs.autoAssignService.Run(ctx, application.AutoAssignInput{
				RestaurantID: restaurantID,
				Date:         date,
				Shadow:       shadow,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "処理: %d件 割当: %d件 シャドー: %d件 失敗: %d件\n",
				report.Processed, report.Assigned, report.Shadowed, report.Failed)
			for _, o := range report.Outcomes {
				line := fmt.Sprintf("  %s: %s", o.BookingID, o.Status)
				if o.TableKey != "" {
					line += " " + o.TableKey
				}
				if o.Reason != "" {
					line += " (" + o.Reason + ")"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	c.Flags().StringVar(&restaurantID, "restaurant", "", "対象レストランID")
	c.Flags().StringVar(&date, "date", "", "対象日 (YYYY-MM-DD)")
	c.Flags().BoolVar(&shadow, "shadow", false, "永続化せずスコアのみ記録する")
	_ = c.MarkFlagRequired("restaurant")
	_ = c.MarkFlagRequired("date")

	return c
}
