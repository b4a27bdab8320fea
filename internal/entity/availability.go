package entity

import (
	"github.com/nerrad567/gray-logic-tuyable/internal/products"
	"github.com/nerrad567/gray-logic-tuyable/internal/tuya"
)

// Fingerbot modes, in datapoint enum order.
const (
	FingerbotModePush    = "push"
	FingerbotModeSwitch  = "switch"
	FingerbotModeProgram = "program"
)

// IsFingerbotInPushMode reports whether a fingerbot's mode datapoint reads
// push (0). Products without a fingerbot, and fingerbots whose mode has
// not been reported yet, count as push mode.
func IsFingerbotInPushMode(product products.Info, dps *tuya.Datapoints) bool {
	if product.Fingerbot == nil {
		return true
	}
	dp, ok := dps.Get(product.Fingerbot.Mode)
	if !ok {
		return true
	}
	mode, ok := dp.AsInt()
	return ok && mode == 0
}

func fingerbotInPushMode(b *Button, product products.Info) bool {
	return IsFingerbotInPushMode(product, b.Device().Datapoints())
}
