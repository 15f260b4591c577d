// Command almacenctl — административная консоль витрины almacén.
// Работает поверх REST API: просмотр заказов, смена статусов,
// отметка о прочтении и настройка политики доставки.
package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultAPIBaseURL = "http://localhost:8080"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "almacenctl",
		Short:         "Административные операции витрины almacén",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v.SetEnvPrefix("ALMACEN")
			v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			v.AutomaticEnv()
			return v.BindPFlags(cmd.Root().PersistentFlags())
		},
	}

	root.PersistentFlags().String("api", defaultAPIBaseURL, "базовый URL REST API (env ALMACEN_API)")
	root.PersistentFlags().Duration("timeout", 10*time.Second, "таймаут HTTP-запросов")

	clientFor := func() *apiClient {
		return newAPIClient(v.GetString("api"), v.GetDuration("timeout"))
	}

	root.AddCommand(newOrdersCommand(clientFor))
	root.AddCommand(newShippingCommand(clientFor))
	return root
}

type clientFactory func() *apiClient

func newOrdersCommand(client clientFactory) *cobra.Command {
	orders := &cobra.Command{
		Use:   "orders",
		Short: "Работа с заказами",
	}

	var listEmail string
	list := &cobra.Command{
		Use:   "list",
		Short: "Список заказов, новые первыми",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := client().ListOrders(listEmail)
			if err != nil {
				return err
			}
			return printOrdersTable(cmd, out)
		},
	}
	list.Flags().StringVar(&listEmail, "email", "", "фильтр по email клиента (точное совпадение)")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Детали заказа",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := client().GetOrder(args[0])
			if err != nil {
				return err
			}
			printOrderDetail(cmd, o)
			return nil
		},
	}

	timeline := &cobra.Command{
		Use:   "timeline <id>",
		Short: "События жизненного цикла заказа",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := client().OrderTimeline(args[0])
			if err != nil {
				return err
			}
			for _, ev := range events {
				line := fmt.Sprintf("%s  %s", ev.Occurred.Format(time.RFC3339), ev.Type)
				if ev.Reason != "" {
					line += "  (" + ev.Reason + ")"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	var statusReason string
	setStatus := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Перевести заказ в новый статус",
		Long:  "Допустимые статусы: confirmado, en-preparacion, enviado, entregado, cancelado.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := client().SetOrderStatus(args[0], args[1], statusReason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", o.ID, o.Status)
			return nil
		},
	}
	setStatus.Flags().StringVar(&statusReason, "reason", "", "причина перехода (обязательна для cancelado)")

	markRead := &cobra.Command{
		Use:   "mark-read <id>...",
		Short: "Отметить заказы прочитанными",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			marked, err := client().MarkOrdersRead(args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marked %d of %d\n", marked, len(args))
			return nil
		},
	}

	unread := &cobra.Command{
		Use:   "unread",
		Short: "Число непрочитанных заказов",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := client().UnreadCount()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}

	orders.AddCommand(list, get, timeline, setStatus, markRead, unread)
	return orders
}

func newShippingCommand(client clientFactory) *cobra.Command {
	shipping := &cobra.Command{
		Use:   "shipping",
		Short: "Политика доставки",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Показать активную политику",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := client().GetShipping()
			if err != nil {
				return err
			}
			printShippingConfig(cmd, cfg)
			return nil
		},
	}

	var (
		baseCost      int64
		freeThreshold int64
		freeEnabled   bool
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Обновить политику доставки",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := client().SetShipping(shippingConfig{
				BaseCost:      baseCost,
				FreeThreshold: freeThreshold,
				FreeEnabled:   freeEnabled,
			})
			if err != nil {
				return err
			}
			printShippingConfig(cmd, cfg)
			return nil
		},
	}
	set.Flags().Int64Var(&baseCost, "base-cost", 0, "базовый тариф доставки, CLP")
	set.Flags().Int64Var(&freeThreshold, "free-threshold", 0, "порог бесплатной доставки, CLP")
	set.Flags().BoolVar(&freeEnabled, "free-enabled", false, "включить бесплатную доставку от порога")

	shipping.AddCommand(get, set)
	return shipping
}

func printOrdersTable(cmd *cobra.Command, orders []order) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTOTAL\tEMAIL\tREAD\tCREATED")
	for _, o := range orders {
		read := ""
		if !o.Read {
			read = "new"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.Status, formatCLP(o.Total), o.Contact.Email, read,
			o.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func printOrderDetail(cmd *cobra.Command, o order) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s  %s\n", o.ID, o.Status, o.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "cliente: %s %s <%s>\n", o.Contact.Name, o.Contact.Surname, o.Contact.Email)
	for _, item := range o.Items {
		fmt.Fprintf(out, "  %dx %s  %s\n", item.Quantity, item.Name, formatCLP(item.Subtotal))
	}
	fmt.Fprintf(out, "subtotal: %s\n", formatCLP(o.Subtotal))
	fmt.Fprintf(out, "envio:    %s\n", formatCLP(o.ShippingCost))
	fmt.Fprintf(out, "total:    %s\n", formatCLP(o.Total))
}

func printShippingConfig(cmd *cobra.Command, cfg shippingConfig) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "base cost:      %s\n", formatCLP(cfg.BaseCost))
	fmt.Fprintf(out, "free threshold: %s\n", formatCLP(cfg.FreeThreshold))
	fmt.Fprintf(out, "free enabled:   %t\n", cfg.FreeEnabled)
	if !cfg.UpdatedAt.IsZero() {
		fmt.Fprintf(out, "updated at:     %s\n", cfg.UpdatedAt.Format(time.RFC3339))
	}
}

// formatCLP печатает сумму в песо с разделителями тысяч: 12345 -> $12.345.
func formatCLP(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}
