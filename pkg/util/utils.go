package util

import (
	"strings"
	"time"

	"github.com/go-ble/ble"
)

// AddrEqualAddr compares two BLE addresses (or UUID strings) ignoring case
func AddrEqualAddr(a string, b string) bool {
	return strings.ToUpper(a) == strings.ToUpper(b)
}

const bluetoothBaseSuffix = "00001000800000805F9B34FB"

// UuidEqualStr compares a parsed ble.UUID with its string form.
// Peripherals may report a base-UUID characteristic in its 16-bit short form.
func UuidEqualStr(u ble.UUID, s string) bool {
	compare := strings.ToUpper(strings.Replace(s, "-", "", -1))
	actual := strings.ToUpper(strings.Replace(u.String(), "-", "", -1))
	if len(actual) == 4 && len(compare) == 32 && strings.HasSuffix(compare, bluetoothBaseSuffix) {
		return compare[4:8] == actual
	}
	return compare == actual
}

// UnixTS returns the current unix (epoch) timestamp in milliseconds
func UnixTS() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
