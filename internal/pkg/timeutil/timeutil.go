package timeutil

import "time"

func NowUnix() int64 {
	return time.Now().Unix()
}

// DaysAgoUnix is the unix time days before now.
func DaysAgoUnix(days int) int64 {
	return time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
}
