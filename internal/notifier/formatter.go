package notifier

import (
	"fmt"
	"strconv"

	"TrendSentinel/internal/model"
)

// AlertMessage builds the device notification for a triggered alert.
func AlertMessage(a model.Alert, ins model.Instrument) Message {
	return Message{
		Title: fmt.Sprintf("🔔 %s : alerte à %s€ 🔔", ins.Symbol, formatPrice(a.Value)),
		Body:  fmt.Sprintf("L'alerte positionnée sur %s a été déclenchée.", ins.Name),
		Data: map[string]string{
			"isin": ins.ISIN,
			"uid":  a.ID,
			"type": string(model.KindAlert),
		},
	}
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
