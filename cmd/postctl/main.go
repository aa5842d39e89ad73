package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"tg-content-assistant/internal/adapters/repo"
	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/infra/config"
	"tg-content-assistant/internal/infra/log"
	"tg-content-assistant/internal/infra/queue"
	"tg-content-assistant/internal/usecase/schedule"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app собирает зависимости одной команды оператора.
type app struct {
	store   repo.Store
	jobs    *schedule.Service
	loc     *time.Location
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func loadApp() (*app, error) {
	cfg := config.Load()
	logger := log.WithComponent(log.NewLogger(cfg.AppEnv), "postctl")
	loc, err := schedule.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, err
	}
	store, err := repo.Open(cfg.Storage.Driver, cfg.PGDSN, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	a := &app{store: store, loc: loc, closers: []func(){func() { _ = store.Close() }}}

	var notifier schedule.Notifier
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, func() { _ = client.Close() })
		notifier = queue.NewRedisWakeQueue(client, cfg.Scheduler.WakeQueue)
	}
	a.jobs = schedule.NewService(store, store, store, notifier, nil, logger)
	return a, nil
}

func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "postctl",
		Short:         "Операторские команды ассистента публикаций",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newJobsCmd(), newBalanceCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить схему хранилища",
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if err := a.store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("миграция: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "схема применена")
			return nil
		}),
	}
}

func newJobsCmd() *cobra.Command {
	jobs := &cobra.Command{Use: "jobs", Short: "Задачи отложенной публикации"}

	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "Показать задачи",
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			st, err := parseStatus(status)
			if err != nil {
				return err
			}
			items, err := a.jobs.ListJobs(cmd.Context(), st, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				_, _ = fmt.Fprintln(out, "нет задач")
				return nil
			}
			for _, job := range items {
				_, _ = fmt.Fprintf(out, "%s\t%s\t%s\tpost=%d\tchannel=%d\t%s\tattempts=%d\t%s\n",
					job.ID, job.Status, job.FireTime.In(a.loc).Format(schedule.CustomTimeLayout),
					job.PostID, job.ChannelID, job.Payload.ChannelTag, job.Attempts, job.LastError)
			}
			return nil
		}),
	}
	list.Flags().StringVar(&status, "status", "", "pending|delivered|failed, пусто для всех")
	list.Flags().IntVar(&limit, "limit", 50, "максимум строк")

	cancel := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Отменить ожидающую задачу",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.jobs.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "задача %s отменена\n", args[0])
			return nil
		}),
	}

	reschedule := &cobra.Command{
		Use:   "reschedule <id> <ГГГГ-ММ-ДД ЧЧ:ММ>",
		Short: "Перенести задачу на новое время",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			fireTime, err := schedule.ParseCustomTime(strings.Join(args[1:], " "), a.loc)
			if err != nil {
				return err
			}
			job, err := a.jobs.Reschedule(cmd.Context(), args[0], fireTime)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "задача перенесена: %s на %s\n", job.ID, job.FireTime.In(a.loc).Format(schedule.CustomTimeLayout))
			return nil
		}),
	}

	jobs.AddCommand(list, cancel, reschedule)
	return jobs
}

func newBalanceCmd() *cobra.Command {
	balance := &cobra.Command{Use: "balance", Short: "Баланс генераций пользователя"}

	show := &cobra.Command{
		Use:   "show <user_id>",
		Short: "Показать баланс",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			owner, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("некорректный user_id: %w", err)
			}
			amount, err := a.store.Balance(cmd.Context(), owner)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\n", owner, amount)
			return nil
		}),
	}

	topUp := &cobra.Command{
		Use:   "top-up <user_id> <amount>",
		Short: "Пополнить баланс",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			owner, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("некорректный user_id: %w", err)
			}
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("сумма должна быть положительным числом: %q", args[1])
			}
			total, err := a.store.TopUp(cmd.Context(), owner, amount)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\n", owner, total)
			return nil
		}),
	}

	balance.AddCommand(show, topUp)
	return balance
}

func parseStatus(raw string) (domain.JobStatus, error) {
	switch st := domain.JobStatus(strings.ToLower(strings.TrimSpace(raw))); st {
	case "", domain.JobPending, domain.JobDelivered, domain.JobFailed:
		return st, nil
	default:
		return "", fmt.Errorf("неизвестный статус %q", raw)
	}
}
