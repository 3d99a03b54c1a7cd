package util

import (
	"fmt"
	"strings"
)

// dumpWidth is the number of bytes rendered per hexdump line.
const dumpWidth = 16

// Dump renders data as hex plus an ASCII gutter, one line per 16
// bytes, for diagnostic taps on link traffic.  Non-printable bytes
// show as '.'.
func Dump(data []byte) string {
	var b strings.Builder
	for off := 0; off < len(data); off += dumpWidth {
		end := off + dumpWidth
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]

		fmt.Fprintf(&b, "%08x  ", off)
		for i := 0; i < dumpWidth; i++ {
			if i < len(chunk) {
				fmt.Fprintf(&b, "%02x ", chunk[i])
			} else {
				b.WriteString("   ")
			}
		}

		b.WriteString(" |")
		for _, c := range chunk {
			if c > 31 && c < 127 {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
	}
	return b.String()
}
