package farm

import "time"

func unixNow() uint64 {
	return uint64(time.Now().Unix())
}
