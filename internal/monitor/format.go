package monitor

import "time"

// TimeStr renders a record's wall-clock timestamp (seconds since epoch) the
// way every monitor's CSV "time_str" column does.
func TimeStr(timestamp float64) string {
	sec := int64(timestamp)
	nsec := int64((timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).Format("2006-01-02 15:04:05.000")
}
