package kitchen

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

// Render writes the three board columns as plain text.
func Render(w io.Writer, b Buckets) error {
	columns := []struct {
		title  string
		orders []domain.Order
	}{
		{"PREPARING", b.Preparing},
		{"PREPARED", b.Prepared},
		{"DELIVERED", b.Delivered},
	}

	var sb strings.Builder
	for _, col := range columns {
		fmt.Fprintf(&sb, "== %s (%d)\n", col.title, len(col.orders))
		for _, o := range col.orders {
			fmt.Fprintf(&sb, "  %s  table %d  %s\n", o.Number, o.TableNumber, o.ID)
			for _, item := range o.Items {
				fmt.Fprintf(&sb, "      %dx %s", item.Quantity, item.Name)
				if item.SpecialInstructions != "" {
					fmt.Fprintf(&sb, " (%s)", item.SpecialInstructions)
				}
				sb.WriteString("\n")
			}
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Command is one line typed at the kitchen console: "move <orderId> <status>".
type Command struct {
	OrderID string
	Target  domain.Status
}

var errUsage = errors.New("usage: move <orderId> <status>")

func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "move" {
		return Command{}, errUsage
	}
	status, err := domain.ParseStatus(fields[2])
	if err != nil {
		return Command{}, err
	}
	return Command{OrderID: fields[1], Target: status}, nil
}
